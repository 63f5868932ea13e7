package audit

import (
	"context"
	"testing"
	"time"

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

func create(t *testing.T, store storage.Storage, a *types.Activity) *types.Activity {
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

// seedMessyData builds a dataset with one duplicate pair, one orphan
// and two activities missing a client.
func seedMessyData(t *testing.T, store storage.Storage) (dup *types.Activity, orphan *types.Activity) {
	ctx := context.Background()

	client := &types.Entity{Name: "Globex", Kind: types.EntityOrganization}
	require.NoError(t, store.AddEntity(ctx, client))

	original := create(t, store, &types.Activity{Name: "Website Redesign", Type: types.TypeProject, ClientEntityID: client.ID})
	dup = create(t, store, &types.Activity{Name: "website redesign", Type: types.TypeProject})
	create(t, store, &types.Activity{Name: "Bookkeeping", Type: types.TypeProject})
	orphan = create(t, store, &types.Activity{Name: "Floating task", Type: types.TypeTask})
	create(t, store, &types.Activity{Name: "Attached task", Type: types.TypeTask, ParentID: original.ID})
	return dup, orphan
}

func TestRunFullAudit(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)
	a, err := NewAuditor(store)
	require.NoError(t, err)

	dup, orphan := seedMessyData(t, store)

	report, err := a.RunFullAudit(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.ReportPending, report.Status)
	assert.Equal(t, 5, report.Metrics.TotalActivities)
	assert.Equal(t, 1, report.Metrics.DuplicateGroups)
	assert.Equal(t, 1, report.Metrics.OrphanedTasks)
	assert.Equal(t, 2, report.Metrics.MissingClient)

	var byType = map[types.IssueType][]types.QualityIssue{}
	for _, issue := range report.Issues {
		byType[issue.Type] = append(byType[issue.Type], issue)
	}
	require.Len(t, byType[types.IssueDuplicate], 1)
	assert.Equal(t, dup.ID, byType[types.IssueDuplicate][0].ActivityID)
	require.Len(t, byType[types.IssueOrphan], 1)
	assert.Equal(t, orphan.ID, byType[types.IssueOrphan][0].ActivityID)
	assert.Len(t, byType[types.IssueMissingClient], 2)

	// The report round-trips through the store.
	saved, err := store.GetReport(ctx, report.ID)
	require.NoError(t, err)
	assert.Equal(t, len(report.Issues), len(saved.Issues))
}

func TestAuditCleanDatasetIsResolved(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)
	a, err := NewAuditor(store)
	require.NoError(t, err)

	client := &types.Entity{Name: "Globex", Kind: types.EntityOrganization}
	require.NoError(t, store.AddEntity(ctx, client))
	project := create(t, store, &types.Activity{Name: "Tidy Project", Type: types.TypeProject, ClientEntityID: client.ID})
	create(t, store, &types.Activity{Name: "Tidy Task", Type: types.TypeTask, ParentID: project.ID})

	report, err := a.RunFullAudit(ctx)
	require.NoError(t, err)
	assert.Empty(t, report.Issues)
	assert.Equal(t, types.ReportResolved, report.Status)
}

func TestCoverageMetrics(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)
	a, err := NewAuditor(store)
	require.NoError(t, err)

	owner := &types.Entity{Name: "Dana", Kind: types.EntityPerson}
	require.NoError(t, store.AddEntity(ctx, owner))
	client := &types.Entity{Name: "Globex", Kind: types.EntityOrganization}
	require.NoError(t, store.AddEntity(ctx, client))

	covered := create(t, store, &types.Activity{Name: "Covered", Type: types.TypeProject, ClientEntityID: client.ID})
	create(t, store, &types.Activity{Name: "Bare", Type: types.TypeProject, ClientEntityID: client.ID})
	require.NoError(t, store.AddMember(ctx, &types.ActivityMember{
		ActivityID: covered.ID, EntityID: owner.ID, Role: types.RoleOwner, IsActive: true,
	}))

	due := time.Now().Add(24 * time.Hour)
	require.NoError(t, store.AddCommitment(ctx, &types.Commitment{
		FromEntityID: owner.ID, ToEntityID: client.ID, ActivityID: covered.ID, Description: "deliver", DueAt: &due,
	}))
	require.NoError(t, store.AddCommitment(ctx, &types.Commitment{
		FromEntityID: owner.ID, ToEntityID: client.ID, Description: "floating promise",
	}))

	metrics, err := a.GetCurrentMetrics(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, metrics.MemberCoverageRate, 1e-9)
	assert.InDelta(t, 0.5, metrics.CommitmentLinkRate, 1e-9)

	// No report was persisted by the metrics query.
	reports, err := store.ListReports(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, reports)
}

func TestResolveIssueLifecycle(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)
	a, err := NewAuditor(store)
	require.NoError(t, err)

	seedMessyData(t, store)
	report, err := a.RunFullAudit(ctx)
	require.NoError(t, err)
	require.True(t, len(report.Issues) >= 2)

	updated, err := a.ResolveIssue(ctx, report.ID, 0, "dana", "merged duplicates")
	require.NoError(t, err)
	assert.Equal(t, types.ReportReviewed, updated.Status)

	for i := 1; i < len(report.Issues); i++ {
		updated, err = a.ResolveIssue(ctx, report.ID, i, "dana", "fixed")
		require.NoError(t, err)
	}
	assert.Equal(t, types.ReportResolved, updated.Status)

	// Resolutions survive persistence.
	saved, err := store.GetReport(ctx, report.ID)
	require.NoError(t, err)
	assert.Len(t, saved.Resolutions, len(report.Issues))
	assert.Equal(t, types.ReportResolved, saved.Status)
}

func TestResolveIssueIndexOutOfRange(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)
	a, err := NewAuditor(store)
	require.NoError(t, err)

	seedMessyData(t, store)
	report, err := a.RunFullAudit(ctx)
	require.NoError(t, err)

	_, err = a.ResolveIssue(ctx, report.ID, len(report.Issues), "dana", "nope")
	require.Error(t, err)
	assert.True(t, types.IsValidation(err))

	_, err = a.ResolveIssue(ctx, report.ID, -1, "dana", "nope")
	require.Error(t, err)
	assert.True(t, types.IsValidation(err))
}

func TestResolveIssueUnknownReport(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)
	a, err := NewAuditor(store)
	require.NoError(t, err)

	_, err = a.ResolveIssue(ctx, "no-such-report", 0, "dana", "nope")
	require.Error(t, err)
	assert.True(t, types.IsNotFound(err))
}
