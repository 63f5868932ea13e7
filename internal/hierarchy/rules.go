// Package hierarchy enforces the activity tree's structural rules: which
// activity types may parent which, and that no reparenting ever introduces
// a cycle. The storage layer calls into this package on create and update;
// nothing here touches the database beyond lookups through the store.
package hierarchy

import (
	"sort"
	"strings"

	"github.com/stewardhq/steward/internal/types"
)

// allowedChildren maps each activity type to the set of types it may
// directly parent. Types absent from a value set can only appear elsewhere
// in the tree; an empty set marks a leaf type.
var allowedChildren = map[types.ActivityType][]types.ActivityType{
	types.TypeArea:        {types.TypeBusiness, types.TypeDirection, types.TypeProject, types.TypeInitiative, types.TypeHabit, types.TypeLearning},
	types.TypeBusiness:    {types.TypeDirection, types.TypeProject, types.TypeEventSeries},
	types.TypeDirection:   {types.TypeProject, types.TypeInitiative, types.TypeLearning},
	types.TypeProject:     {types.TypeTask, types.TypeProject, types.TypeMilestone},
	types.TypeInitiative:  {types.TypeProject, types.TypeTask},
	types.TypeLearning:    {types.TypeTask, types.TypeMilestone},
	types.TypeEventSeries: {types.TypeTask},
	types.TypeHabit:       {},
	types.TypeTask:        {},
	types.TypeMilestone:   {},
}

// CanParent reports whether parent may directly contain child
func CanParent(parent, child types.ActivityType) bool {
	for _, t := range allowedChildren[parent] {
		if t == child {
			return true
		}
	}
	return false
}

// AllowedChildren returns a copy of the child types parent may contain
func AllowedChildren(parent types.ActivityType) []types.ActivityType {
	out := make([]types.ActivityType, len(allowedChildren[parent]))
	copy(out, allowedChildren[parent])
	return out
}

// describeAllowed renders the allowed-children set for error messages,
// or "none (leaf node)" for leaf types.
func describeAllowed(parent types.ActivityType) string {
	kids := allowedChildren[parent]
	if len(kids) == 0 {
		return "none (leaf node)"
	}
	names := make([]string, len(kids))
	for i, t := range kids {
		names[i] = string(t)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}
