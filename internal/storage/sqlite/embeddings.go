package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/stewardhq/steward/internal/similarity"
	"github.com/stewardhq/steward/internal/types"
)

// SetEmbedding stores the externally generated vector for an activity,
// replacing any previous one
func (s *SQLiteStorage) SetEmbedding(ctx context.Context, activityID string, vector []float64) error {
	if len(vector) == 0 {
		return types.NewValidationError("embedding vector cannot be empty")
	}
	encoded, err := json.Marshal(vector)
	if err != nil {
		return fmt.Errorf("failed to encode vector: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO activity_embeddings (activity_id, vector, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(activity_id) DO UPDATE SET vector = excluded.vector, updated_at = excluded.updated_at`,
		activityID, string(encoded), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to store embedding for %s: %w", activityID, err)
	}
	return nil
}

// GetEmbedding returns the stored vector for an activity
func (s *SQLiteStorage) GetEmbedding(ctx context.Context, activityID string) ([]float64, error) {
	var encoded string
	err := s.db.QueryRowContext(ctx,
		`SELECT vector FROM activity_embeddings WHERE activity_id = ?`, activityID).Scan(&encoded)
	if err == sql.ErrNoRows {
		return nil, types.NewNotFoundError("embedding", activityID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load embedding for %s: %w", activityID, err)
	}
	var vector []float64
	if err := json.Unmarshal([]byte(encoded), &vector); err != nil {
		return nil, fmt.Errorf("failed to decode embedding for %s: %w", activityID, err)
	}
	return vector, nil
}

// SimilarActivityPairs scans the embedded, non-deleted activities of one
// type and returns the pairs whose similarity (1 - cosine distance) is at
// least minSimilarity, best first, capped at limit. The scan is quadratic
// in the number of embedded activities of that type; callers keep it
// bounded by running it per type on already-filtered data.
func (s *SQLiteStorage) SimilarActivityPairs(ctx context.Context, activityType types.ActivityType, minSimilarity float64, limit int) ([]types.SimilarPair, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT a.id, a.name, e.vector
		FROM activities a JOIN activity_embeddings e ON e.activity_id = a.id
		WHERE a.type = ? AND a.deleted_at IS NULL
		ORDER BY a.created_at ASC`, activityType)
	if err != nil {
		return nil, fmt.Errorf("failed to load embedded activities: %w", err)
	}
	defer rows.Close()

	type embedded struct {
		id     string
		name   string
		vector []float64
	}
	var items []embedded
	for rows.Next() {
		var it embedded
		var encoded string
		if err := rows.Scan(&it.id, &it.name, &encoded); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(encoded), &it.vector); err != nil {
			return nil, fmt.Errorf("failed to decode embedding for %s: %w", it.id, err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var pairs []types.SimilarPair
	for i := 0; i < len(items); i++ {
		for j := i + 1; j < len(items); j++ {
			sim := similarity.Cosine(items[i].vector, items[j].vector)
			if sim >= minSimilarity {
				pairs = append(pairs, types.SimilarPair{
					AID:        items[i].id,
					BID:        items[j].id,
					AName:      items[i].name,
					BName:      items[j].name,
					Type:       activityType,
					Similarity: sim,
				})
			}
		}
	}

	sort.Slice(pairs, func(i, j int) bool { return pairs[i].Similarity > pairs[j].Similarity })
	if limit > 0 && len(pairs) > limit {
		pairs = pairs[:limit]
	}
	return pairs, nil
}
