package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/stewardhq/steward/internal/types"
)

// MergeActivities consolidates mergeIDs into keepID inside one transaction:
//
//  1. every direct child of a merge target is reparented to the keeper,
//     with the usual ancestry/depth cascade for the child's own subtree
//  2. memberships move to the keeper unless the keeper already has the
//     same (entity, role); those are skipped, never duplicated
//  3. commitments referencing a merge target are reassigned to the keeper
//  4. merge targets are archived and soft-deleted
//
// Any failure rolls the whole transaction back; no partial merge state is
// ever observable. Merging an id that is already archived fails cleanly
// with NotFound before anything is written, which makes re-running a
// partially propagated batch safe. A keeper that descends from one of
// the merge targets is rejected with a validation error; accepting it
// would leave the keeper parented to itself.
func (s *SQLiteStorage) MergeActivities(ctx context.Context, keepID string, mergeIDs []string) error {
	for _, id := range mergeIDs {
		if id == keepID {
			return types.NewValidationError("keep activity %s cannot be in the merge list", keepID)
		}
	}
	if len(mergeIDs) == 0 {
		return types.NewValidationError("merge list is empty")
	}

	// Load everything up front; missing or already-archived activities
	// fail the merge before the transaction opens. A keeper that sits
	// inside a merge target's subtree is rejected here: reparenting the
	// target's children to it would make the keeper its own ancestor.
	keep, err := s.GetActivity(ctx, keepID)
	if err != nil {
		return err
	}
	for _, id := range mergeIDs {
		if _, err := s.GetActivity(ctx, id); err != nil {
			return err
		}
		if keep.HasAncestor(id) {
			return types.NewValidationError(
				"cannot merge %s into its own descendant %s", id, keepID)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin merge transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.mergeTx(ctx, tx, keepID, mergeIDs); err != nil {
		return fmt.Errorf("merge into %s failed (rolled back): %w", keepID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit merge into %s: %w", keepID, err)
	}
	return nil
}

func (s *SQLiteStorage) mergeTx(ctx context.Context, tx *sql.Tx, keepID string, mergeIDs []string) error {
	now := time.Now().UTC()

	// Re-check the keeper inside the transaction; a concurrent merge or
	// reparent may have archived it, or moved it under a merge target,
	// between the pre-load and here.
	var keeperDeleted sql.NullTime
	var keeperAncestry string
	if err := tx.QueryRowContext(ctx,
		`SELECT deleted_at, ancestry FROM activities WHERE id = ?`, keepID).
		Scan(&keeperDeleted, &keeperAncestry); err != nil {
		if err == sql.ErrNoRows {
			return types.NewNotFoundError("activity", keepID)
		}
		return err
	}
	if keeperDeleted.Valid {
		return types.NewNotFoundError("activity", keepID)
	}
	keeperAncestors := make(map[string]bool)
	for _, anc := range decodeAncestry(keeperAncestry) {
		keeperAncestors[anc] = true
	}
	for _, mergeID := range mergeIDs {
		if keeperAncestors[mergeID] {
			return types.NewValidationError(
				"cannot merge %s into its own descendant %s", mergeID, keepID)
		}
	}

	for _, mergeID := range mergeIDs {
		var mergedDeleted sql.NullTime
		if err := tx.QueryRowContext(ctx,
			`SELECT deleted_at FROM activities WHERE id = ?`, mergeID).Scan(&mergedDeleted); err != nil {
			if err == sql.ErrNoRows {
				return types.NewNotFoundError("activity", mergeID)
			}
			return err
		}
		if mergedDeleted.Valid {
			return types.NewNotFoundError("activity", mergeID)
		}

		// 1. Reparent direct children to the keeper, cascading each
		// child's own subtree.
		children, err := childrenTx(ctx, tx, mergeID)
		if err != nil {
			return err
		}
		for _, child := range children {
			if err := reparentTx(ctx, tx, child, keepID); err != nil {
				return fmt.Errorf("failed to move child %s: %w", child.ID, err)
			}
		}

		// 2. Move memberships, skipping triples the keeper already has.
		_, err = tx.ExecContext(ctx, `
			UPDATE activity_members SET activity_id = ?
			WHERE activity_id = ?
			  AND NOT EXISTS (
				SELECT 1 FROM activity_members k
				WHERE k.activity_id = ? AND k.entity_id = activity_members.entity_id
				  AND k.role = activity_members.role
			  )`, keepID, mergeID, keepID)
		if err != nil {
			return fmt.Errorf("failed to move members of %s: %w", mergeID, err)
		}

		// 3. Reassign commitments.
		_, err = tx.ExecContext(ctx,
			`UPDATE commitments SET activity_id = ? WHERE activity_id = ?`, keepID, mergeID)
		if err != nil {
			return fmt.Errorf("failed to reassign commitments of %s: %w", mergeID, err)
		}

		// 4. Archive the merged activity.
		_, err = tx.ExecContext(ctx, `
			UPDATE activities SET status = ?, deleted_at = ?, updated_at = ?
			WHERE id = ?`, types.StatusArchived, now, now, mergeID)
		if err != nil {
			return fmt.Errorf("failed to archive %s: %w", mergeID, err)
		}
	}
	return nil
}

// childrenTx loads the direct non-deleted children of an activity inside a
// transaction
func childrenTx(ctx context.Context, tx *sql.Tx, parentID string) ([]*types.Activity, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT `+activityColumns+` FROM activities WHERE parent_id = ? AND deleted_at IS NULL`, parentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load children of %s: %w", parentID, err)
	}
	defer rows.Close()

	var out []*types.Activity
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
