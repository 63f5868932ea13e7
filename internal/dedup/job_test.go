package dedup

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stewardhq/steward/internal/ai"
	"github.com/stewardhq/steward/internal/merge"
	"github.com/stewardhq/steward/internal/storage"
	"github.com/stewardhq/steward/internal/types"
)

// fakeOracle returns canned verdicts, or an error when failing is set
type fakeOracle struct {
	verdict ai.Verdict
	failing bool
	calls   int
	seen    [][]ai.Pair
}

func (f *fakeOracle) CheckDuplicatePairs(ctx context.Context, pairs []ai.Pair) ([]ai.Verdict, error) {
	f.calls++
	f.seen = append(f.seen, pairs)
	if f.failing {
		return nil, errors.New("overloaded")
	}
	out := make([]ai.Verdict, len(pairs))
	for i := range out {
		out[i] = f.verdict
	}
	return out, nil
}

func testJob(t *testing.T, store storage.Storage, oracle ai.Oracle) *Job {
	t.Helper()
	job, err := NewJob(store, merge.NewEngine(store), oracle, DefaultJobConfig())
	require.NoError(t, err)
	return job
}

// embed stores a unit-ish vector for an activity
func embed(t *testing.T, store storage.Storage, id string, v []float64) {
	t.Helper()
	require.NoError(t, store.SetEmbedding(context.Background(), id, v))
}

func TestJobConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*JobConfig)
		wantErr bool
	}{
		{"defaults valid", func(c *JobConfig) {}, false},
		{"floor above auto threshold", func(c *JobConfig) { c.ScanFloor = 0.95 }, true},
		{"negative confidence", func(c *JobConfig) { c.OracleConfidence = -0.1 }, true},
		{"zero pair cap", func(c *JobConfig) { c.MaxPairsPerRun = 0 }, true},
		{"huge pair cap", func(c *JobConfig) { c.MaxPairsPerRun = 10000 }, true},
		{"zero batch", func(c *JobConfig) { c.OracleBatchSize = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultJobConfig()
			tt.modify(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRunAutoMergeBand(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)
	oracle := &fakeOracle{}
	job := testJob(t, store, oracle)

	a := create(t, store, &types.Activity{Name: "Website Redesign", Type: types.TypeProject})
	b := create(t, store, &types.Activity{Name: "Website redesign v2", Type: types.TypeProject})
	// Identical vectors: similarity 1.0, auto-merge band.
	embed(t, store, a.ID, []float64{1, 0})
	embed(t, store, b.ID, []float64{1, 0})

	result, err := job.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.PairsScanned)
	assert.Equal(t, 1, result.AutoMerged)
	assert.Equal(t, 0, oracle.calls)

	// One of the two is archived, the other survives.
	_, errA := store.GetActivity(ctx, a.ID)
	_, errB := store.GetActivity(ctx, b.ID)
	assert.True(t, types.IsNotFound(errA) != types.IsNotFound(errB))
}

func TestRunOracleBandMerges(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)
	oracle := &fakeOracle{verdict: ai.Verdict{IsDuplicate: true, Confidence: 0.9, Reason: "same work"}}
	job := testJob(t, store, oracle)

	a := create(t, store, &types.Activity{Name: "Quarterly Report", Type: types.TypeProject})
	b := create(t, store, &types.Activity{Name: "Q3 Reporting", Type: types.TypeProject})
	// cos([1,0],[0.8,0.6]) = 0.8: mid band.
	embed(t, store, a.ID, []float64{1, 0})
	embed(t, store, b.ID, []float64{0.8, 0.6})

	result, err := job.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.PairsScanned)
	assert.Equal(t, 0, result.AutoMerged)
	assert.Equal(t, 1, result.OracleMerged)
	assert.Equal(t, 1, result.OracleCalls)
	require.Len(t, oracle.seen, 1)
	require.Len(t, oracle.seen[0], 1)
}

func TestRunOracleRejection(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)
	oracle := &fakeOracle{verdict: ai.Verdict{IsDuplicate: true, Confidence: 0.5, Reason: "maybe"}}
	job := testJob(t, store, oracle)

	a := create(t, store, &types.Activity{Name: "Quarterly Report", Type: types.TypeProject})
	b := create(t, store, &types.Activity{Name: "Q3 Reporting", Type: types.TypeProject})
	embed(t, store, a.ID, []float64{1, 0})
	embed(t, store, b.ID, []float64{0.8, 0.6})

	result, err := job.Run(ctx)
	require.NoError(t, err)
	// Confidence below the merge bar: rejected, nothing written.
	assert.Equal(t, 1, result.OracleRejected)
	assert.Equal(t, 0, result.OracleMerged)
	_, err = store.GetActivity(ctx, a.ID)
	assert.NoError(t, err)
	_, err = store.GetActivity(ctx, b.ID)
	assert.NoError(t, err)
}

func TestRunNilOracleSkipsMidBand(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)
	job := testJob(t, store, nil)

	a := create(t, store, &types.Activity{Name: "Quarterly Report", Type: types.TypeProject})
	b := create(t, store, &types.Activity{Name: "Q3 Reporting", Type: types.TypeProject})
	embed(t, store, a.ID, []float64{1, 0})
	embed(t, store, b.ID, []float64{0.8, 0.6})

	result, err := job.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.PairsScanned)
	assert.Zero(t, result.AutoMerged)
	assert.Zero(t, result.OracleCalls)
}

func TestRunOracleFailureCollectsErrors(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)
	oracle := &fakeOracle{failing: true}
	job := testJob(t, store, oracle)

	a := create(t, store, &types.Activity{Name: "Quarterly Report", Type: types.TypeProject})
	b := create(t, store, &types.Activity{Name: "Q3 Reporting", Type: types.TypeProject})
	embed(t, store, a.ID, []float64{1, 0})
	embed(t, store, b.ID, []float64{0.8, 0.6})

	result, err := job.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.OracleCalls)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0].Err, "oracle call failed")
}

func TestRunDryRun(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)
	cfg := DefaultJobConfig()
	cfg.DryRun = true
	job, err := NewJob(store, merge.NewEngine(store), nil, cfg)
	require.NoError(t, err)

	a := create(t, store, &types.Activity{Name: "Website Redesign", Type: types.TypeProject})
	b := create(t, store, &types.Activity{Name: "Website redesign v2", Type: types.TypeProject})
	embed(t, store, a.ID, []float64{1, 0})
	embed(t, store, b.ID, []float64{1, 0})

	result, err := job.Run(ctx)
	require.NoError(t, err)
	assert.True(t, result.DryRun)
	assert.Equal(t, 1, result.AutoMerged)

	// Both still live.
	_, err = store.GetActivity(ctx, a.ID)
	assert.NoError(t, err)
	_, err = store.GetActivity(ctx, b.ID)
	assert.NoError(t, err)
}

func TestRunSkipsConsumedIDs(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)
	job := testJob(t, store, nil)

	// Three identical vectors: three pairs all in the auto band.
	a := create(t, store, &types.Activity{Name: "Redesign", Type: types.TypeProject})
	b := create(t, store, &types.Activity{Name: "Redesign again", Type: types.TypeProject})
	c := create(t, store, &types.Activity{Name: "Redesign redux", Type: types.TypeProject})
	for _, act := range []*types.Activity{a, b, c} {
		embed(t, store, act.ID, []float64{0, 1})
	}

	result, err := job.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, result.PairsScanned)
	// Every pair either merged, was skipped over a consumed id, or hit an
	// already-archived activity; none errored.
	assert.Empty(t, result.Errors)
	assert.GreaterOrEqual(t, result.AutoMerged, 1)

	live := 0
	for _, act := range []*types.Activity{a, b, c} {
		if _, err := store.GetActivity(ctx, act.ID); err == nil {
			live++
		}
	}
	assert.Equal(t, 1, live)
}
