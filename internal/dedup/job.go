package dedup

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/stewardhq/steward/internal/ai"
	"github.com/stewardhq/steward/internal/merge"
	"github.com/stewardhq/steward/internal/storage"
	"github.com/stewardhq/steward/internal/types"
)

// Job is the periodic batch dedup pass. It scans embedding-similar pairs,
// merges the near-certain ones directly, and sends the mid-confidence band
// to the LLM oracle for arbitration.
//
// A run caps its pair count so each invocation stays short, and it is safe
// to run again before a previous run's merges have fully propagated: a
// pair whose member was archived by an earlier merge fails cleanly and is
// recorded, never corrupting state.
type Job struct {
	store  storage.Storage
	engine *merge.Engine
	oracle ai.Oracle
	config JobConfig
}

// NewJob creates a batch dedup job. oracle may be nil, in which case the
// mid-confidence band is skipped and only near-certain pairs merge.
func NewJob(store storage.Storage, engine *merge.Engine, oracle ai.Oracle, config JobConfig) (*Job, error) {
	if store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if engine == nil {
		return nil, fmt.Errorf("merge engine cannot be nil")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &Job{store: store, engine: engine, oracle: oracle, config: config}, nil
}

// RunResult summarizes one batch dedup invocation
type RunResult struct {
	PairsScanned   int               `json:"pairs_scanned"`
	AutoMerged     int               `json:"auto_merged"`
	OracleMerged   int               `json:"oracle_merged"`
	OracleRejected int               `json:"oracle_rejected"`
	OracleCalls    int               `json:"oracle_calls"`
	Skipped        int               `json:"skipped"`
	DurationMs     int64             `json:"duration_ms"`
	DryRun         bool              `json:"dry_run,omitempty"`
	Errors         []types.ItemError `json:"errors,omitempty"`
}

// Run executes one batch dedup pass over the given activity types.
// A top-level failure (the pair scan itself) returns an error and zero
// progress; the caller logs it and relies on the next scheduled run.
// Per-pair failures are collected in the result.
func (j *Job) Run(ctx context.Context, activityTypes ...types.ActivityType) (*RunResult, error) {
	start := time.Now()
	if len(activityTypes) == 0 {
		activityTypes = []types.ActivityType{types.TypeProject, types.TypeTask}
	}

	var pairs []types.SimilarPair
	for _, t := range activityTypes {
		p, err := j.store.SimilarActivityPairs(ctx, t, j.config.ScanFloor, j.config.MaxPairsPerRun)
		if err != nil {
			return nil, fmt.Errorf("pair scan for %s failed: %w", t, err)
		}
		pairs = append(pairs, p...)
	}
	if len(pairs) > j.config.MaxPairsPerRun {
		pairs = pairs[:j.config.MaxPairsPerRun]
	}

	result := &RunResult{PairsScanned: len(pairs), DryRun: j.config.DryRun}
	merged := make(map[string]bool) // ids consumed by a merge this run

	var oracleBand []types.SimilarPair
	for _, pair := range pairs {
		if pair.Similarity >= j.config.AutoMergeThreshold {
			j.mergePair(ctx, pair, merged, result, &result.AutoMerged)
		} else {
			oracleBand = append(oracleBand, pair)
		}
	}

	if j.oracle == nil || len(oracleBand) == 0 {
		result.DurationMs = time.Since(start).Milliseconds()
		return result, nil
	}

	for i := 0; i < len(oracleBand); i += j.config.OracleBatchSize {
		end := i + j.config.OracleBatchSize
		if end > len(oracleBand) {
			end = len(oracleBand)
		}
		batch := oracleBand[i:end]

		aiPairs := make([]ai.Pair, len(batch))
		for k, p := range batch {
			aiPairs[k] = ai.Pair{
				A: ai.Candidate{ID: p.AID, Name: p.AName, Type: p.Type},
				B: ai.Candidate{ID: p.BID, Name: p.BName, Type: p.Type},
			}
		}

		verdicts, err := j.oracle.CheckDuplicatePairs(ctx, aiPairs)
		result.OracleCalls++
		if err != nil {
			// One failed oracle batch does not abort the run.
			log.Printf("[DEDUP] oracle batch failed: %v", err)
			for _, p := range batch {
				result.Errors = append(result.Errors, types.ItemError{
					ID:  p.AID + "+" + p.BID,
					Err: fmt.Sprintf("oracle call failed: %v", err),
				})
			}
			continue
		}

		for k, verdict := range verdicts {
			pair := batch[k]
			if !verdict.IsDuplicate || verdict.Confidence < j.config.OracleConfidence {
				result.OracleRejected++
				continue
			}
			log.Printf("[DEDUP] oracle confirmed %q ~ %q (confidence %.2f): %s",
				pair.AName, pair.BName, verdict.Confidence, verdict.Reason)
			j.mergePair(ctx, pair, merged, result, &result.OracleMerged)
		}
	}

	result.DurationMs = time.Since(start).Milliseconds()
	return result, nil
}

// mergePair merges one similar pair, selecting the keeper by the engine's
// ranking. Pairs touching an id already consumed this run are skipped.
func (j *Job) mergePair(ctx context.Context, pair types.SimilarPair, merged map[string]bool, result *RunResult, counter *int) {
	if merged[pair.AID] || merged[pair.BID] {
		result.Skipped++
		return
	}

	a, err := j.store.GetActivity(ctx, pair.AID)
	if err != nil {
		j.recordPairError(pair, err, result)
		return
	}
	b, err := j.store.GetActivity(ctx, pair.BID)
	if err != nil {
		j.recordPairError(pair, err, result)
		return
	}

	group := types.DuplicateGroup{
		NormalizedName: pair.AName,
		Type:           pair.Type,
		Count:          2,
		Members: []types.DuplicateEntry{
			{ID: a.ID, Name: a.Name, Status: a.Status, CreatedAt: a.CreatedAt},
			{ID: b.ID, Name: b.Name, Status: b.Status, CreatedAt: b.CreatedAt},
		},
	}
	keeper, rest, err := j.engine.SelectKeeper(ctx, group)
	if err != nil {
		j.recordPairError(pair, err, result)
		return
	}

	if j.config.DryRun {
		log.Printf("[DEDUP] dry run: would merge %s into %s (similarity %.2f)",
			rest[0], keeper, pair.Similarity)
		*counter++
		merged[rest[0]] = true
		return
	}

	if err := j.engine.Merge(ctx, keeper, rest); err != nil {
		j.recordPairError(pair, err, result)
		return
	}
	*counter++
	merged[rest[0]] = true
	log.Printf("[DEDUP] merged %s into %s (similarity %.2f)", rest[0], keeper, pair.Similarity)
}

func (j *Job) recordPairError(pair types.SimilarPair, err error, result *RunResult) {
	if types.IsNotFound(err) {
		// Already merged by an earlier pair or a previous run.
		result.Skipped++
		return
	}
	result.Errors = append(result.Errors, types.ItemError{
		ID:  pair.AID + "+" + pair.BID,
		Err: err.Error(),
	})
}
