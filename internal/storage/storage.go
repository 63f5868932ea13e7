package storage

import (
	"context"

	"github.com/stewardhq/steward/internal/storage/sqlite"
	"github.com/stewardhq/steward/internal/types"
)

// Storage defines the interface for the activity-hierarchy store.
//
// The store exclusively owns Activity.Depth and Activity.Ancestors: they are
// computed on create and recomputed (with a full descendant cascade) on
// reparent, always atomically. MergeActivities is the one multi-entity
// transaction; everything else commits per call.
type Storage interface {
	// Activities
	CreateActivity(ctx context.Context, a *types.Activity) error
	GetActivity(ctx context.Context, id string) (*types.Activity, error)
	ListActivities(ctx context.Context, filter types.ActivityFilter) ([]*types.Activity, error)
	UpdateActivity(ctx context.Context, id string, updates map[string]interface{}) error
	ReparentActivity(ctx context.Context, id, newParentID string) error
	ArchiveActivity(ctx context.Context, id string) error
	GetChildren(ctx context.Context, id string) ([]*types.Activity, error)
	GetSubtree(ctx context.Context, id string) ([]*types.Activity, error)
	CountChildren(ctx context.Context, id string) (int, error)

	// Members
	AddMember(ctx context.Context, m *types.ActivityMember) error
	GetMembers(ctx context.Context, activityID string) ([]*types.ActivityMember, error)
	CountMembers(ctx context.Context, activityID string) (int, error)
	CountActivitiesWithMembers(ctx context.Context) (int, error)

	// Commitments
	AddCommitment(ctx context.Context, c *types.Commitment) error
	GetCommitmentsByActivity(ctx context.Context, activityID string) ([]*types.Commitment, error)
	CountLinkedCommitments(ctx context.Context) (linked, total int, err error)

	// Entities (lookup only; the data-quality core never creates entities,
	// but seeding and ingestion tooling do)
	AddEntity(ctx context.Context, e *types.Entity) error
	GetEntity(ctx context.Context, id string) (*types.Entity, error)
	FindEntitiesByName(ctx context.Context, name string, kind types.EntityKind, exact bool, limit int) ([]*types.Entity, error)

	// Embeddings: fixed-dimension vectors supplied by an external service.
	// Similarity is 1 - cosine distance, computed by the store.
	SetEmbedding(ctx context.Context, activityID string, vector []float64) error
	GetEmbedding(ctx context.Context, activityID string) ([]float64, error)
	SimilarActivityPairs(ctx context.Context, activityType types.ActivityType, minSimilarity float64, limit int) ([]types.SimilarPair, error)

	// Merge: consolidates mergeIDs into keepID in one transaction.
	// Children are reparented (with cascade), members moved (deduplicated on
	// activity/entity/role), commitments reassigned, merge targets
	// archived. All-or-nothing.
	MergeActivities(ctx context.Context, keepID string, mergeIDs []string) error

	// Data-quality reports
	SaveReport(ctx context.Context, r *types.DataQualityReport) error
	GetReport(ctx context.Context, id string) (*types.DataQualityReport, error)
	ListReports(ctx context.Context, limit int) ([]*types.DataQualityReport, error)

	// Lifecycle
	Close() error
}

// Config holds database configuration
type Config struct {
	// Path is the SQLite database file path.
	// Special value ":memory:" creates an in-memory database (useful for tests).
	Path string
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Path: ".steward/steward.db",
	}
}

// NewStorage creates a new SQLite storage backend.
// The ctx parameter is currently unused but kept for API consistency.
func NewStorage(ctx context.Context, cfg *Config) (Storage, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Path == "" {
		cfg.Path = DefaultConfig().Path
	}
	return sqlite.New(cfg.Path)
}
