package orphans

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stewardhq/steward/internal/storage"
	"github.com/stewardhq/steward/internal/types"
)

func testStore(t *testing.T) storage.Storage {
	t.Helper()
	store, err := storage.NewStorage(context.Background(), &storage.Config{Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testResolver(t *testing.T, store storage.Storage) *Resolver {
	t.Helper()
	r, err := NewResolver(store, DefaultConfig())
	require.NoError(t, err)
	return r
}

func createActivity(t *testing.T, store storage.Storage, a *types.Activity) *types.Activity {
	t.Helper()
	if a.Status == "" {
		a.Status = types.StatusActive
	}
	if a.Priority == 0 {
		a.Priority = 2
	}
	require.NoError(t, store.CreateActivity(context.Background(), a))
	return a
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{"defaults valid", func(c *Config) {}, false},
		{"threshold too high", func(c *Config) { c.FuzzyThreshold = 1.5 }, true},
		{"threshold negative", func(c *Config) { c.FuzzyThreshold = -0.1 }, true},
		{"zero containment length", func(c *Config) { c.MinContainmentLen = 0 }, true},
		{"empty batch key", func(c *Config) { c.BatchMetadataKey = "" }, true},
		{"empty sentinel name", func(c *Config) { c.UnsortedProjectName = "" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.modify(&config)
			err := config.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNameContainment(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)
	r := testResolver(t, store)

	project := createActivity(t, store, &types.Activity{Name: "Website Redesign", Type: types.TypeProject})
	createActivity(t, store, &types.Activity{Name: "Marketing", Type: types.TypeProject})
	task := createActivity(t, store, &types.Activity{Name: "Website redesign: update hero banner", Type: types.TypeTask})

	result, err := r.ResolveOrphans(ctx, []*types.Activity{task})
	require.NoError(t, err)
	require.Len(t, result.Resolved, 1)
	assert.Equal(t, project.ID, result.Resolved[0].ParentID)
	assert.Equal(t, MethodNameContainment, result.Resolved[0].Method)

	got, err := store.GetActivity(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, project.ID, got.ParentID)
}

func TestContainmentSkipsShortNames(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)
	r := testResolver(t, store)

	// A two-letter project name would match almost anything.
	createActivity(t, store, &types.Activity{Name: "Go", Type: types.TypeProject})
	createActivity(t, store, &types.Activity{Name: "Rust", Type: types.TypeProject})
	task := createActivity(t, store, &types.Activity{Name: "Gondola maintenance", Type: types.TypeTask})

	result, err := r.ResolveOrphans(ctx, []*types.Activity{task})
	require.NoError(t, err)
	if len(result.Resolved) > 0 {
		assert.NotEqual(t, MethodNameContainment, result.Resolved[0].Method)
	}
}

func TestFuzzySimilarity(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)
	r := testResolver(t, store)

	project := createActivity(t, store, &types.Activity{Name: "Quarterly Reports", Type: types.TypeProject})
	createActivity(t, store, &types.Activity{Name: "Infrastructure Migration", Type: types.TypeProject})
	// Close to "Quarterly Reports" but not a containment match.
	task := createActivity(t, store, &types.Activity{Name: "Quarterly Report", Type: types.TypeTask})

	result, err := r.ResolveOrphans(ctx, []*types.Activity{task})
	require.NoError(t, err)
	require.Len(t, result.Resolved, 1)
	assert.Equal(t, project.ID, result.Resolved[0].ParentID)
	assert.Equal(t, MethodFuzzySimilarity, result.Resolved[0].Method)
}

func TestFuzzyDisabled(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)
	config := DefaultConfig()
	config.EnableFuzzy = false
	r, err := NewResolver(store, config)
	require.NoError(t, err)

	createActivity(t, store, &types.Activity{Name: "Quarterly Reports", Type: types.TypeProject})
	createActivity(t, store, &types.Activity{Name: "Infrastructure Migration", Type: types.TypeProject})
	task := createActivity(t, store, &types.Activity{Name: "Quarterly Report", Type: types.TypeTask})

	result, err := r.ResolveOrphans(ctx, []*types.Activity{task})
	require.NoError(t, err)
	// Two projects, no owner: with fuzzy off no strategy applies.
	assert.Empty(t, result.Resolved)
	assert.Equal(t, []string{task.ID}, result.Unresolved)
}

func TestBatchSibling(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)
	r := testResolver(t, store)

	project := createActivity(t, store, &types.Activity{Name: "Import Cleanup", Type: types.TypeProject})
	createActivity(t, store, &types.Activity{Name: "Other Work", Type: types.TypeProject})
	createActivity(t, store, &types.Activity{
		Name: "Review rows 1-100", Type: types.TypeTask, ParentID: project.ID,
		Metadata: map[string]string{"batch_id": "import-7"},
	})
	task := createActivity(t, store, &types.Activity{
		Name: "Triage unknown vendors", Type: types.TypeTask,
		Metadata: map[string]string{"batch_id": "import-7"},
	})

	result, err := r.ResolveOrphans(ctx, []*types.Activity{task})
	require.NoError(t, err)
	require.Len(t, result.Resolved, 1)
	assert.Equal(t, project.ID, result.Resolved[0].ParentID)
	assert.Equal(t, MethodBatchSibling, result.Resolved[0].Method)
}

func TestSingleProjectFallback(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)
	r := testResolver(t, store)

	owner := &types.Entity{Name: "Dana", Kind: types.EntityPerson}
	require.NoError(t, store.AddEntity(ctx, owner))

	project := createActivity(t, store, &types.Activity{
		Name: "Side Hustle", Type: types.TypeProject, OwnerEntityID: owner.ID,
	})
	task := createActivity(t, store, &types.Activity{
		Name: "Completely unrelated errand", Type: types.TypeTask, OwnerEntityID: owner.ID,
	})

	result, err := r.ResolveOrphans(ctx, []*types.Activity{task})
	require.NoError(t, err)
	require.Len(t, result.Resolved, 1)
	assert.Equal(t, project.ID, result.Resolved[0].ParentID)
	assert.Equal(t, MethodSingleProject, result.Resolved[0].Method)
}

func TestUnsortedSentinel(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)
	r := testResolver(t, store)

	owner := &types.Entity{Name: "Dana", Kind: types.EntityPerson}
	require.NoError(t, store.AddEntity(ctx, owner))

	// Two projects makes single-project ambiguous; names share nothing.
	createActivity(t, store, &types.Activity{Name: "Alpha Launch", Type: types.TypeProject, OwnerEntityID: owner.ID})
	createActivity(t, store, &types.Activity{Name: "Beta Launch", Type: types.TypeProject, OwnerEntityID: owner.ID})
	taskA := createActivity(t, store, &types.Activity{Name: "zzz", Type: types.TypeTask, OwnerEntityID: owner.ID})
	taskB := createActivity(t, store, &types.Activity{Name: "qqq", Type: types.TypeTask, OwnerEntityID: owner.ID})

	result, err := r.ResolveOrphans(ctx, []*types.Activity{taskA, taskB})
	require.NoError(t, err)
	require.Len(t, result.Resolved, 2)
	assert.Equal(t, MethodUnsorted, result.Resolved[0].Method)
	// Both land in the same sentinel; only one gets created.
	assert.Equal(t, result.Resolved[0].ParentID, result.Resolved[1].ParentID)

	sentinel, err := store.GetActivity(ctx, result.Resolved[0].ParentID)
	require.NoError(t, err)
	assert.Equal(t, "Unsorted Tasks", sentinel.Name)
	assert.Equal(t, owner.ID, sentinel.OwnerEntityID)
}

func TestOwnerlessTaskStaysUnresolved(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)
	r := testResolver(t, store)

	createActivity(t, store, &types.Activity{Name: "Alpha Launch", Type: types.TypeProject})
	createActivity(t, store, &types.Activity{Name: "Beta Launch", Type: types.TypeProject})
	task := createActivity(t, store, &types.Activity{Name: "zzz", Type: types.TypeTask})

	result, err := r.ResolveOrphans(ctx, []*types.Activity{task})
	require.NoError(t, err)
	assert.Empty(t, result.Resolved)
	assert.Equal(t, []string{task.ID}, result.Unresolved)

	// No sentinel was conjured for the ownerless task.
	projects, err := store.ListActivities(ctx, types.ActivityFilter{Types: []types.ActivityType{types.TypeProject}})
	require.NoError(t, err)
	assert.Len(t, projects, 2)
}

func TestFindOrphanedTasks(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)
	r := testResolver(t, store)

	project := createActivity(t, store, &types.Activity{Name: "Live Project", Type: types.TypeProject})
	createActivity(t, store, &types.Activity{Name: "Attached", Type: types.TypeTask, ParentID: project.ID})
	orphan := createActivity(t, store, &types.Activity{Name: "Floating", Type: types.TypeTask})

	tasks, err := r.FindOrphanedTasks(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, orphan.ID, tasks[0].ID)
}
