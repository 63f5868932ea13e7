package sqlite

import (
	"context"
	"testing"

	"github.com/stewardhq/steward/internal/types"
)

func TestMergeConservesEverything(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	keep := mustCreate(t, s, "Project Alpha", types.TypeProject, "")
	dup := mustCreate(t, s, "project alpha", types.TypeProject, "")

	keepTask := mustCreate(t, s, "Keep task", types.TypeTask, keep.ID)
	dupTask1 := mustCreate(t, s, "Dup task 1", types.TypeTask, dup.ID)
	dupTask2 := mustCreate(t, s, "Dup task 2", types.TypeTask, dup.ID)
	dupSub := mustCreate(t, s, "Dup subproject", types.TypeProject, dup.ID)
	deepTask := mustCreate(t, s, "Deep task", types.TypeTask, dupSub.ID)

	if err := s.AddMember(ctx, &types.ActivityMember{ActivityID: keep.ID, EntityID: "alice", Role: types.RoleOwner, IsActive: true}); err != nil {
		t.Fatal(err)
	}
	// Same (entity, role) on the duplicate: must be skipped, not duplicated.
	if err := s.AddMember(ctx, &types.ActivityMember{ActivityID: dup.ID, EntityID: "alice", Role: types.RoleOwner, IsActive: true}); err != nil {
		t.Fatal(err)
	}
	if err := s.AddMember(ctx, &types.ActivityMember{ActivityID: dup.ID, EntityID: "bob", Role: types.RoleMember, IsActive: true}); err != nil {
		t.Fatal(err)
	}

	if err := s.AddCommitment(ctx, &types.Commitment{FromEntityID: "alice", ToEntityID: "bob", ActivityID: dup.ID, Description: "deliver"}); err != nil {
		t.Fatal(err)
	}

	if err := s.MergeActivities(ctx, keep.ID, []string{dup.ID}); err != nil {
		t.Fatalf("MergeActivities: %v", err)
	}

	// Children: keeper had 1, duplicate had 3 direct children.
	children, err := s.GetChildren(ctx, keep.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(children) != 4 {
		t.Errorf("keeper has %d children after merge, want 4", len(children))
	}
	for _, c := range children {
		if c.Depth != 1 || c.Ancestors[0] != keep.ID {
			t.Errorf("child %s: depth=%d ancestors=%v", c.Name, c.Depth, c.Ancestors)
		}
	}
	_ = keepTask
	_ = dupTask1
	_ = dupTask2

	// The moved subproject's own subtree cascaded too.
	gotDeep, err := s.GetActivity(ctx, deepTask.ID)
	if err != nil {
		t.Fatal(err)
	}
	if gotDeep.Depth != 2 || gotDeep.Ancestors[0] != keep.ID || gotDeep.Ancestors[1] != dupSub.ID {
		t.Errorf("deep task after merge: depth=%d ancestors=%v", gotDeep.Depth, gotDeep.Ancestors)
	}

	// Members: alice/owner deduplicated, bob/member moved.
	members, err := s.GetMembers(ctx, keep.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(members) != 2 {
		t.Errorf("keeper has %d members, want 2 (alice deduplicated)", len(members))
	}

	// Commitment reassigned.
	commitments, err := s.GetCommitmentsByActivity(ctx, keep.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(commitments) != 1 {
		t.Errorf("keeper has %d commitments, want 1", len(commitments))
	}

	// Duplicate is archived and gone.
	if _, err := s.GetActivity(ctx, dup.ID); !types.IsNotFound(err) {
		t.Errorf("merged activity still visible: %v", err)
	}
}

func TestMergeRejectsKeepInMergeList(t *testing.T) {
	s := testStore(t)
	keep := mustCreate(t, s, "Keep", types.TypeProject, "")
	other := mustCreate(t, s, "Other", types.TypeProject, "")

	err := s.MergeActivities(context.Background(), keep.ID, []string{other.ID, keep.ID})
	if err == nil || !types.IsValidation(err) {
		t.Fatalf("MergeActivities(keep in list) = %v, want ValidationError", err)
	}
	// Nothing happened.
	if _, err := s.GetActivity(context.Background(), other.ID); err != nil {
		t.Errorf("other activity affected by rejected merge: %v", err)
	}
}

func TestMergeRejectsDescendantKeeper(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	// project->project nesting is legal, so two duplicates can be
	// parent and child of each other. Merging the parent into the child
	// would reparent the child under itself.
	parent := mustCreate(t, s, "Website Redesign", types.TypeProject, "")
	child := mustCreate(t, s, "website redesign", types.TypeProject, parent.ID)
	grand := mustCreate(t, s, "Grandchild task", types.TypeTask, child.ID)

	err := s.MergeActivities(ctx, child.ID, []string{parent.ID})
	if err == nil || !types.IsValidation(err) {
		t.Fatalf("MergeActivities(into descendant) = %v, want ValidationError", err)
	}

	// Nothing changed: the child keeps its parent, no self-ancestry
	// appeared anywhere, and the parent is still live.
	gotChild, err := s.GetActivity(ctx, child.ID)
	if err != nil {
		t.Fatalf("child after rejected merge: %v", err)
	}
	if gotChild.ParentID != parent.ID || gotChild.Depth != 1 {
		t.Errorf("child: parent=%s depth=%d, want parent=%s depth=1", gotChild.ParentID, gotChild.Depth, parent.ID)
	}
	if gotChild.HasAncestor(child.ID) {
		t.Errorf("child lists itself as ancestor: %v", gotChild.Ancestors)
	}
	gotGrand, err := s.GetActivity(ctx, grand.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(gotGrand.Ancestors) != 2 || gotGrand.Ancestors[0] != parent.ID || gotGrand.Ancestors[1] != child.ID {
		t.Errorf("grandchild ancestors = %v, want [%s %s]", gotGrand.Ancestors, parent.ID, child.ID)
	}
	if _, err := s.GetActivity(ctx, parent.ID); err != nil {
		t.Errorf("parent archived by rejected merge: %v", err)
	}

	// The other direction (child into parent) is the valid resolution
	// and still works.
	if err := s.MergeActivities(ctx, parent.ID, []string{child.ID}); err != nil {
		t.Fatalf("merge child into parent: %v", err)
	}
	gotGrand, err = s.GetActivity(ctx, grand.ID)
	if err != nil {
		t.Fatal(err)
	}
	if gotGrand.ParentID != parent.ID || gotGrand.HasAncestor(child.ID) {
		t.Errorf("grandchild after merge: parent=%s ancestors=%v", gotGrand.ParentID, gotGrand.Ancestors)
	}
}

func TestMergeMissingTargetIsAllOrNothing(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	keep := mustCreate(t, s, "Keep", types.TypeProject, "")
	dup := mustCreate(t, s, "Dup", types.TypeProject, "")
	mustCreate(t, s, "Dup child", types.TypeTask, dup.ID)

	err := s.MergeActivities(ctx, keep.ID, []string{dup.ID, "ghost"})
	if !types.IsNotFound(err) {
		t.Fatalf("MergeActivities with missing id = %v, want NotFound", err)
	}

	// The valid duplicate was not touched.
	gotDup, err := s.GetActivity(ctx, dup.ID)
	if err != nil {
		t.Fatalf("dup archived by failed merge: %v", err)
	}
	if gotDup.Status != types.StatusActive {
		t.Errorf("dup status = %s after failed merge, want active", gotDup.Status)
	}
	n, _ := s.CountChildren(ctx, keep.ID)
	if n != 0 {
		t.Errorf("keeper gained %d children from failed merge", n)
	}
}

func TestMergeArchivedTargetFailsCleanly(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	keep := mustCreate(t, s, "Keep", types.TypeProject, "")
	dup := mustCreate(t, s, "Dup", types.TypeProject, "")

	if err := s.MergeActivities(ctx, keep.ID, []string{dup.ID}); err != nil {
		t.Fatalf("first merge: %v", err)
	}
	// Re-running the same merge (e.g. an overlapping batch run) fails
	// cleanly instead of corrupting state.
	err := s.MergeActivities(ctx, keep.ID, []string{dup.ID})
	if !types.IsNotFound(err) {
		t.Fatalf("second merge = %v, want NotFound", err)
	}
}
