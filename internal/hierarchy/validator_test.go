package hierarchy

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stewardhq/steward/internal/types"
)

// fakeGetter serves activities from a map, returning NotFound for misses
type fakeGetter struct {
	activities map[string]*types.Activity
}

func (f *fakeGetter) GetActivity(_ context.Context, id string) (*types.Activity, error) {
	a, ok := f.activities[id]
	if !ok {
		return nil, types.NewNotFoundError("activity", id)
	}
	return a, nil
}

func newFake(activities ...*types.Activity) *fakeGetter {
	f := &fakeGetter{activities: make(map[string]*types.Activity)}
	for _, a := range activities {
		f.activities[a.ID] = a
	}
	return f
}

func act(id string, t types.ActivityType, ancestors ...string) *types.Activity {
	return &types.Activity{
		ID:        id,
		Name:      "activity " + id,
		Type:      t,
		Status:    types.StatusActive,
		Depth:     len(ancestors),
		Ancestors: ancestors,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
}

func TestValidateCreate(t *testing.T) {
	ctx := context.Background()
	area := act("area1", types.TypeArea)
	project := act("proj1", types.TypeProject, "area1")
	task := act("task1", types.TypeTask, "area1", "proj1")
	v := NewValidator(newFake(area, project, task))

	tests := []struct {
		name      string
		childType types.ActivityType
		parentID  string
		wantErr   string
	}{
		{"root create", types.TypeArea, "", ""},
		{"project under area", types.TypeProject, "area1", ""},
		{"task under project", types.TypeTask, "proj1", ""},
		{"subproject under project", types.TypeProject, "proj1", ""},
		{"task under area", types.TypeTask, "area1", "allowed children"},
		{"anything under task", types.TypeMilestone, "task1", "none (leaf node)"},
		{"missing parent", types.TypeTask, "ghost", "not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateCreate(ctx, tt.childType, tt.parentID)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("ValidateCreate() unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("ValidateCreate() error = %v, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidateReparentSelf(t *testing.T) {
	// Self-parenting must be rejected without any store lookup.
	v := NewValidator(newFake())
	a := act("a1", types.TypeProject)
	err := v.ValidateReparent(context.Background(), a, "a1")
	if err == nil || !types.IsValidation(err) {
		t.Fatalf("ValidateReparent(self) = %v, want ValidationError", err)
	}
}

func TestValidateReparentCycle(t *testing.T) {
	ctx := context.Background()
	// area1 -> proj1 -> proj2; moving proj1 under proj2 is a cycle.
	area := act("area1", types.TypeArea)
	proj1 := act("proj1", types.TypeProject, "area1")
	proj2 := act("proj2", types.TypeProject, "area1", "proj1")
	v := NewValidator(newFake(area, proj1, proj2))

	err := v.ValidateReparent(ctx, proj1, "proj2")
	if err == nil || !types.IsValidation(err) {
		t.Fatalf("ValidateReparent(cycle) = %v, want ValidationError", err)
	}
	if !strings.Contains(err.Error(), "cycle") {
		t.Errorf("error %q does not mention cycle", err)
	}

	// The reverse direction is fine.
	if err := v.ValidateReparent(ctx, proj2, "proj1"); err != nil {
		t.Errorf("ValidateReparent(proj2 under proj1) unexpected error: %v", err)
	}
}

func TestValidateReparentExactTokenMatch(t *testing.T) {
	ctx := context.Background()
	// Ancestor id "xabc" must not trip cycle detection for activity "abc".
	area := act("area1", types.TypeArea)
	xabc := act("xabc", types.TypeProject, "area1")
	target := act("tgt", types.TypeProject, "area1", "xabc")
	abc := act("abc", types.TypeProject, "area1")
	v := NewValidator(newFake(area, xabc, target, abc))

	if err := v.ValidateReparent(ctx, abc, "tgt"); err != nil {
		t.Fatalf("ValidateReparent() unexpected error: %v (partial segment matched?)", err)
	}
}

func TestCanParentTable(t *testing.T) {
	if !CanParent(types.TypeArea, types.TypeBusiness) {
		t.Error("area should contain business")
	}
	if CanParent(types.TypeTask, types.TypeTask) {
		t.Error("task is a leaf and should contain nothing")
	}
	if CanParent(types.TypeMilestone, types.TypeTask) {
		t.Error("milestone is a leaf and should contain nothing")
	}
	if len(AllowedChildren(types.TypeHabit)) != 0 {
		t.Error("habit should be a leaf")
	}
}
