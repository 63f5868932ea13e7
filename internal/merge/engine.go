// Package merge consolidates duplicate activities. The storage layer owns
// the merge transaction itself; this package owns everything around it:
// input validation, keeper selection, and batch orchestration with
// per-group error collection.
package merge

import (
	"context"
	"fmt"
	"log"
	"sort"

	"github.com/stewardhq/steward/internal/storage"
	"github.com/stewardhq/steward/internal/types"
)

// Engine performs duplicate merges through the store's transactional
// MergeActivities operation
type Engine struct {
	store storage.Storage
}

// NewEngine creates a merge engine
func NewEngine(store storage.Storage) *Engine {
	return &Engine{store: store}
}

// Merge consolidates mergeIDs into keepID. keepID appearing in mergeIDs is
// a validation error; a missing or already-archived activity is NotFound.
// The underlying store runs all rewrites in one transaction.
func (e *Engine) Merge(ctx context.Context, keepID string, mergeIDs []string) error {
	if keepID == "" {
		return types.NewValidationError("keep activity id is required")
	}
	for _, id := range mergeIDs {
		if id == keepID {
			return types.NewValidationError("keep activity %s cannot be in the merge list", keepID)
		}
	}
	if len(mergeIDs) == 0 {
		return types.NewValidationError("merge list is empty")
	}
	return e.store.MergeActivities(ctx, keepID, mergeIDs)
}

// keeperRank holds the ranking signals for one duplicate-group member
type keeperRank struct {
	entry    types.DuplicateEntry
	children int
	members  int
}

// SelectKeeper ranks a duplicate group's members and returns the keeper id
// plus the remaining merge targets. Ranking: most direct children, then
// most members, then oldest creation time.
func (e *Engine) SelectKeeper(ctx context.Context, group types.DuplicateGroup) (string, []string, error) {
	if group.Count < 2 || len(group.Members) < 2 {
		return "", nil, types.NewValidationError("duplicate group %q has fewer than 2 members", group.NormalizedName)
	}

	ranks := make([]keeperRank, 0, len(group.Members))
	for _, entry := range group.Members {
		children, err := e.store.CountChildren(ctx, entry.ID)
		if err != nil {
			return "", nil, fmt.Errorf("counting children of %s: %w", entry.ID, err)
		}
		members, err := e.store.CountMembers(ctx, entry.ID)
		if err != nil {
			return "", nil, fmt.Errorf("counting members of %s: %w", entry.ID, err)
		}
		ranks = append(ranks, keeperRank{entry: entry, children: children, members: members})
	}

	sort.SliceStable(ranks, func(i, j int) bool {
		if ranks[i].children != ranks[j].children {
			return ranks[i].children > ranks[j].children
		}
		if ranks[i].members != ranks[j].members {
			return ranks[i].members > ranks[j].members
		}
		return ranks[i].entry.CreatedAt.Before(ranks[j].entry.CreatedAt)
	})

	keeper := ranks[0].entry.ID
	rest := make([]string, 0, len(ranks)-1)
	for _, r := range ranks[1:] {
		rest = append(rest, r.entry.ID)
	}
	return keeper, rest, nil
}

// AutoMergeResult summarizes an AutoMergeAll run
type AutoMergeResult struct {
	GroupsProcessed  int               `json:"groups_processed"`
	GroupsMerged     int               `json:"groups_merged"`
	ActivitiesMerged int               `json:"activities_merged"`
	DryRun           bool              `json:"dry_run,omitempty"`
	Planned          []PlannedMerge    `json:"planned,omitempty"`
	Errors           []types.ItemError `json:"errors,omitempty"`
}

// PlannedMerge describes one group's keeper decision (reported in dry runs
// and for auditability)
type PlannedMerge struct {
	Keeper   string   `json:"keeper"`
	MergeIDs []string `json:"merge_ids"`
	Name     string   `json:"name"`
}

// AutoMergeAll merges every supplied duplicate group into its selected
// keeper. Per-group failures are collected in the result and do not abort
// remaining groups. With dryRun set, keepers are selected and reported but
// nothing is written.
func (e *Engine) AutoMergeAll(ctx context.Context, groups []types.DuplicateGroup, dryRun bool) (*AutoMergeResult, error) {
	result := &AutoMergeResult{DryRun: dryRun}

	for _, group := range groups {
		result.GroupsProcessed++

		keeper, rest, err := e.SelectKeeper(ctx, group)
		if err != nil {
			result.Errors = append(result.Errors, types.ItemError{
				ID:  group.NormalizedName,
				Err: err.Error(),
			})
			continue
		}

		result.Planned = append(result.Planned, PlannedMerge{
			Keeper:   keeper,
			MergeIDs: rest,
			Name:     group.NormalizedName,
		})

		if dryRun {
			continue
		}

		if err := e.Merge(ctx, keeper, rest); err != nil {
			log.Printf("[MERGE] group %q failed: %v", group.NormalizedName, err)
			result.Errors = append(result.Errors, types.ItemError{
				ID:  group.NormalizedName,
				Err: err.Error(),
			})
			continue
		}

		result.GroupsMerged++
		result.ActivitiesMerged += len(rest)
		log.Printf("[MERGE] group %q: kept %s, merged %d", group.NormalizedName, keeper, len(rest))
	}

	return result, nil
}
