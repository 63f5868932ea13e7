// Package orphans assigns parentless tasks to projects. Strategies run in
// order of decreasing confidence; the first that produces a parent wins
// and the method used is recorded for auditability.
package orphans

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/stewardhq/steward/internal/similarity"
	"github.com/stewardhq/steward/internal/storage"
	"github.com/stewardhq/steward/internal/types"
)

// Resolution method names, recorded per resolved task
const (
	MethodNameContainment = "name_containment"
	MethodFuzzySimilarity = "fuzzy_similarity"
	MethodBatchSibling    = "batch_sibling"
	MethodSingleProject   = "single_project"
	MethodUnsorted        = "unsorted"
)

// InferenceMetadataKey marks tasks whose parent was inferred rather than
// assigned by hand. The value is the resolution method name.
const InferenceMetadataKey = "parent_inference"

// Resolver assigns orphaned tasks to projects
type Resolver struct {
	store  storage.Storage
	config Config
}

// NewResolver creates an orphan resolver
func NewResolver(store storage.Storage, config Config) (*Resolver, error) {
	if store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &Resolver{store: store, config: config}, nil
}

// Resolution records how one task was assigned
type Resolution struct {
	TaskID   string `json:"task_id"`
	TaskName string `json:"task_name"`
	ParentID string `json:"parent_id"`
	Method   string `json:"method"`
}

// Result summarizes a resolver batch
type Result struct {
	Resolved   []Resolution      `json:"resolved"`
	Unresolved []string          `json:"unresolved,omitempty"` // task ids no strategy could place
	Errors     []types.ItemError `json:"errors,omitempty"`
}

// FindOrphanedTasks returns tasks whose parent is absent or dangling
func (r *Resolver) FindOrphanedTasks(ctx context.Context) ([]*types.Activity, error) {
	return r.store.ListActivities(ctx, types.ActivityFilter{
		Types:         []types.ActivityType{types.TypeTask},
		MissingParent: true,
	})
}

// ResolveOrphans runs the strategy chain over each task. Every assignment
// commits independently; a failed task is recorded in Errors and the batch
// continues. A task no strategy can place is counted unresolved, never
// defaulted.
func (r *Resolver) ResolveOrphans(ctx context.Context, tasks []*types.Activity) (*Result, error) {
	result := &Result{}

	for _, task := range tasks {
		res, err := r.resolveOne(ctx, task)
		if err != nil {
			result.Errors = append(result.Errors, types.ItemError{ID: task.ID, Err: err.Error()})
			continue
		}
		if res == nil {
			result.Unresolved = append(result.Unresolved, task.ID)
			continue
		}
		result.Resolved = append(result.Resolved, *res)
		log.Printf("[ORPHANS] %q -> %s via %s", task.Name, res.ParentID, res.Method)
	}
	return result, nil
}

// resolveOne tries each strategy in order and assigns the first hit.
// Returns (nil, nil) when no strategy applies.
func (r *Resolver) resolveOne(ctx context.Context, task *types.Activity) (*Resolution, error) {
	projects, err := r.ownerProjects(ctx, task)
	if err != nil {
		return nil, err
	}

	type strategy struct {
		method string
		find   func() (string, error)
	}
	strategies := []strategy{
		{MethodNameContainment, func() (string, error) { return r.byNameContainment(task, projects), nil }},
	}
	if r.config.EnableFuzzy {
		strategies = append(strategies, strategy{MethodFuzzySimilarity, func() (string, error) {
			return r.byFuzzySimilarity(task, projects), nil
		}})
	}
	strategies = append(strategies,
		strategy{MethodBatchSibling, func() (string, error) { return r.byBatchSibling(ctx, task) }},
		strategy{MethodSingleProject, func() (string, error) { return r.bySingleProject(task, projects), nil }},
		strategy{MethodUnsorted, func() (string, error) { return r.byUnsortedFallback(ctx, task) }},
	)

	for _, s := range strategies {
		parentID, err := s.find()
		if err != nil {
			return nil, err
		}
		if parentID == "" {
			continue
		}
		if err := r.store.ReparentActivity(ctx, task.ID, parentID); err != nil {
			return nil, fmt.Errorf("assigning to %s via %s: %w", parentID, s.method, err)
		}
		if err := r.recordInference(ctx, task, s.method); err != nil {
			return nil, err
		}
		return &Resolution{TaskID: task.ID, TaskName: task.Name, ParentID: parentID, Method: s.method}, nil
	}
	return nil, nil
}

// recordInference tags the task with the strategy that placed it. The tag
// distinguishes inferred parent links from hand-assigned ones in audits.
func (r *Resolver) recordInference(ctx context.Context, task *types.Activity, method string) error {
	meta := make(map[string]string, len(task.Metadata)+1)
	for k, v := range task.Metadata {
		meta[k] = v
	}
	meta[InferenceMetadataKey] = method
	return r.store.UpdateActivity(ctx, task.ID, map[string]interface{}{"metadata": meta})
}

// ownerProjects lists the candidate parents for a task: active or draft
// projects, restricted to the task's owner when it has one.
func (r *Resolver) ownerProjects(ctx context.Context, task *types.Activity) ([]*types.Activity, error) {
	return r.store.ListActivities(ctx, types.ActivityFilter{
		Types:         []types.ActivityType{types.TypeProject},
		Statuses:      []types.ActivityStatus{types.StatusActive, types.StatusDraft},
		OwnerEntityID: task.OwnerEntityID,
	})
}

// byNameContainment matches a project whose normalized name appears as a
// substring of the task's normalized name. Very short project names are
// skipped to avoid accidental containment.
func (r *Resolver) byNameContainment(task *types.Activity, projects []*types.Activity) string {
	taskName := similarity.NormalizeName(task.Name)
	for _, p := range projects {
		projName := similarity.NormalizeName(p.Name)
		if len(projName) < r.config.MinContainmentLen {
			continue
		}
		if strings.Contains(taskName, projName) {
			return p.ID
		}
	}
	return ""
}

// byFuzzySimilarity matches the best project whose name similarity with
// the task clears the configured threshold
func (r *Resolver) byFuzzySimilarity(task *types.Activity, projects []*types.Activity) string {
	taskName := similarity.NormalizeName(task.Name)
	best := ""
	bestScore := r.config.FuzzyThreshold
	for _, p := range projects {
		score := similarity.Similarity(taskName, similarity.NormalizeName(p.Name))
		if score >= bestScore {
			best = p.ID
			bestScore = score
		}
	}
	return best
}

// byBatchSibling reuses the parent of another task carrying the same batch
// identifier in metadata (tasks ingested together usually belong together)
func (r *Resolver) byBatchSibling(ctx context.Context, task *types.Activity) (string, error) {
	batchID := task.Metadata[r.config.BatchMetadataKey]
	if batchID == "" {
		return "", nil
	}
	siblings, err := r.store.ListActivities(ctx, types.ActivityFilter{
		Types: []types.ActivityType{types.TypeTask},
	})
	if err != nil {
		return "", err
	}
	for _, sib := range siblings {
		if sib.ID == task.ID || sib.ParentID == "" {
			continue
		}
		if sib.Metadata[r.config.BatchMetadataKey] != batchID {
			continue
		}
		// The sibling's parent must still exist.
		if _, err := r.store.GetActivity(ctx, sib.ParentID); err != nil {
			continue
		}
		return sib.ParentID, nil
	}
	return "", nil
}

// bySingleProject assigns the owner's only project. Zero or several
// projects is ambiguous and skips the strategy.
func (r *Resolver) bySingleProject(task *types.Activity, projects []*types.Activity) string {
	if task.OwnerEntityID == "" || len(projects) != 1 {
		return ""
	}
	return projects[0].ID
}

// byUnsortedFallback gets or creates the owner's sentinel project and
// assigns the task there. Ownerless tasks skip the fallback entirely.
func (r *Resolver) byUnsortedFallback(ctx context.Context, task *types.Activity) (string, error) {
	if task.OwnerEntityID == "" {
		return "", nil
	}

	existing, err := r.store.ListActivities(ctx, types.ActivityFilter{
		Types:         []types.ActivityType{types.TypeProject},
		OwnerEntityID: task.OwnerEntityID,
	})
	if err != nil {
		return "", err
	}
	for _, p := range existing {
		if strings.EqualFold(p.Name, r.config.UnsortedProjectName) {
			return p.ID, nil
		}
	}

	sentinel := &types.Activity{
		Name:          r.config.UnsortedProjectName,
		Description:   "Holding project for tasks no strategy could place",
		Type:          types.TypeProject,
		Status:        types.StatusActive,
		Priority:      3,
		OwnerEntityID: task.OwnerEntityID,
	}
	if err := r.store.CreateActivity(ctx, sentinel); err != nil {
		return "", fmt.Errorf("creating sentinel project: %w", err)
	}
	log.Printf("[ORPHANS] created %q for owner %s", sentinel.Name, task.OwnerEntityID)
	return sentinel.ID, nil
}
