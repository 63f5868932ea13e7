package hierarchy

import (
	"context"
	"fmt"

	"github.com/stewardhq/steward/internal/types"
)

// ActivityGetter is the slice of the storage layer the validator needs
type ActivityGetter interface {
	GetActivity(ctx context.Context, id string) (*types.Activity, error)
}

// Validator checks type-hierarchy rules and cycle freedom for activity
// creates and reparents
type Validator struct {
	store ActivityGetter
}

// NewValidator creates a hierarchy validator backed by the given store
func NewValidator(store ActivityGetter) *Validator {
	return &Validator{store: store}
}

// ValidateCreate checks that a new activity of childType may be created
// under parentID. A missing parentID is a root create and always passes.
func (v *Validator) ValidateCreate(ctx context.Context, childType types.ActivityType, parentID string) error {
	if parentID == "" {
		return nil
	}
	parent, err := v.store.GetActivity(ctx, parentID)
	if err != nil {
		return fmt.Errorf("loading parent %s: %w", parentID, err)
	}
	if !CanParent(parent.Type, childType) {
		return types.NewValidationError(
			"%s cannot contain %s: allowed children of %s are %s",
			parent.Type, childType, parent.Type, describeAllowed(parent.Type))
	}
	return nil
}

// ValidateReparent checks that activity may be moved under newParentID.
//
// Self-parenting is rejected before any store access. Otherwise the
// candidate parent is loaded, the type rule checked, then cycle detection
// runs: if the activity's own id appears among the candidate parent's
// ancestors, the move would nest the activity under its own descendant.
// Ancestor comparison is exact per entry, never a substring match.
func (v *Validator) ValidateReparent(ctx context.Context, activity *types.Activity, newParentID string) error {
	if newParentID == "" {
		return nil
	}
	if newParentID == activity.ID {
		return types.NewValidationError("activity %s cannot be its own parent", activity.ID)
	}

	parent, err := v.store.GetActivity(ctx, newParentID)
	if err != nil {
		return fmt.Errorf("loading new parent %s: %w", newParentID, err)
	}

	if !CanParent(parent.Type, activity.Type) {
		return types.NewValidationError(
			"%s cannot contain %s: allowed children of %s are %s",
			parent.Type, activity.Type, parent.Type, describeAllowed(parent.Type))
	}

	if parent.HasAncestor(activity.ID) {
		return types.NewValidationError(
			"moving %s under %s would create a cycle: %s is a descendant of %s",
			activity.ID, parent.ID, parent.ID, activity.ID)
	}
	return nil
}
