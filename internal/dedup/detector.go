// Package dedup finds duplicate activities. The detector does the cheap
// pass: exact grouping on normalized name and type. The batch job layers
// embedding similarity and LLM arbitration on top for the pairs the
// detector cannot see.
package dedup

import (
	"context"
	"sort"

	"github.com/stewardhq/steward/internal/similarity"
	"github.com/stewardhq/steward/internal/storage"
	"github.com/stewardhq/steward/internal/types"
)

// Detector groups activities by normalized name and type
type Detector struct {
	store storage.Storage
}

// NewDetector creates a duplicate detector
func NewDetector(store storage.Storage) *Detector {
	return &Detector{store: store}
}

// FindDuplicateGroups groups all non-deleted activities (optionally
// restricted to the given types) by (normalized name, type) and returns
// the groups with more than one member. Group members are ordered by
// creation time ascending, so index 0 is the reporting "original".
func (d *Detector) FindDuplicateGroups(ctx context.Context, activityTypes ...types.ActivityType) ([]types.DuplicateGroup, error) {
	activities, err := d.store.ListActivities(ctx, types.ActivityFilter{Types: activityTypes})
	if err != nil {
		return nil, err
	}
	return GroupDuplicates(activities), nil
}

// FindDuplicateProjects is the common case: duplicate groups among projects
func (d *Detector) FindDuplicateProjects(ctx context.Context) ([]types.DuplicateGroup, error) {
	return d.FindDuplicateGroups(ctx, types.TypeProject)
}

// GroupDuplicates is the pure grouping step over an already-fetched
// activity list. The audit shares its data fetch with this.
func GroupDuplicates(activities []*types.Activity) []types.DuplicateGroup {
	type key struct {
		name string
		typ  types.ActivityType
	}

	buckets := make(map[key][]*types.Activity)
	for _, a := range activities {
		if a.IsDeleted() {
			continue
		}
		k := key{name: similarity.NormalizeName(a.Name), typ: a.Type}
		buckets[k] = append(buckets[k], a)
	}

	var groups []types.DuplicateGroup
	for k, members := range buckets {
		if len(members) < 2 {
			continue
		}
		sort.Slice(members, func(i, j int) bool {
			if !members[i].CreatedAt.Equal(members[j].CreatedAt) {
				return members[i].CreatedAt.Before(members[j].CreatedAt)
			}
			return members[i].ID < members[j].ID
		})
		g := types.DuplicateGroup{
			NormalizedName: k.name,
			Type:           k.typ,
			Count:          len(members),
		}
		for _, m := range members {
			g.Members = append(g.Members, types.DuplicateEntry{
				ID:        m.ID,
				Name:      m.Name,
				Status:    m.Status,
				CreatedAt: m.CreatedAt,
			})
		}
		groups = append(groups, g)
	}

	sort.Slice(groups, func(i, j int) bool {
		if groups[i].NormalizedName != groups[j].NormalizedName {
			return groups[i].NormalizedName < groups[j].NormalizedName
		}
		return groups[i].Type < groups[j].Type
	})
	return groups
}
