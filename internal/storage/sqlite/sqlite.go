// Package sqlite implements the activity store on SQLite. It is the only
// package that touches Activity depth/ancestry columns: both are computed
// here on create and recomputed, with a full descendant cascade, on
// reparent and merge.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stewardhq/steward/internal/hierarchy"
	"github.com/stewardhq/steward/internal/types"
)

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	db        *sql.DB
	validator *hierarchy.Validator
}

// New creates a new SQLite storage backend
func New(path string) (*SQLiteStorage, error) {
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	// WAL mode for better concurrency; single-writer transactions are the
	// advisory lock that serializes merges and reparents.
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=ON")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	s := &SQLiteStorage{db: db}
	s.validator = hierarchy.NewValidator(s)
	return s, nil
}

// Close closes the underlying database
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// encodeAncestry renders the ancestor list for storage: ids joined by '/',
// empty string at root
func encodeAncestry(ancestors []string) string {
	return strings.Join(ancestors, "/")
}

// decodeAncestry splits the stored ancestry column back into an id list
func decodeAncestry(ancestry string) []string {
	if ancestry == "" {
		return nil
	}
	return strings.Split(ancestry, "/")
}

// fullPath is the subtree prefix for an activity: its ancestry plus its own
// id. Every descendant's ancestry either equals this or extends it past a
// '/' boundary, so prefix matching is always token-exact.
func fullPath(ancestry, id string) string {
	if ancestry == "" {
		return id
	}
	return ancestry + "/" + id
}

const activityColumns = `id, name, description, type, status, priority, parent_id, depth, ancestry,
	owner_entity_id, client_entity_id, deadline, start_date, end_date, tags, metadata,
	created_at, updated_at, last_activity_at, deleted_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanActivity(row rowScanner) (*types.Activity, error) {
	var a types.Activity
	var parentID, ownerID, clientID sql.NullString
	var ancestry, tagsJSON, metaJSON string
	var deadline, startDate, endDate, lastActivity, deletedAt sql.NullTime

	err := row.Scan(&a.ID, &a.Name, &a.Description, &a.Type, &a.Status, &a.Priority,
		&parentID, &a.Depth, &ancestry, &ownerID, &clientID,
		&deadline, &startDate, &endDate, &tagsJSON, &metaJSON,
		&a.CreatedAt, &a.UpdatedAt, &lastActivity, &deletedAt)
	if err != nil {
		return nil, err
	}

	a.ParentID = parentID.String
	a.OwnerEntityID = ownerID.String
	a.ClientEntityID = clientID.String
	a.Ancestors = decodeAncestry(ancestry)
	if deadline.Valid {
		a.Deadline = &deadline.Time
	}
	if startDate.Valid {
		a.StartDate = &startDate.Time
	}
	if endDate.Valid {
		a.EndDate = &endDate.Time
	}
	if lastActivity.Valid {
		a.LastActivityAt = &lastActivity.Time
	}
	if deletedAt.Valid {
		a.DeletedAt = &deletedAt.Time
	}
	if tagsJSON != "" {
		if err := json.Unmarshal([]byte(tagsJSON), &a.Tags); err != nil {
			return nil, fmt.Errorf("failed to decode tags for %s: %w", a.ID, err)
		}
	}
	if metaJSON != "" {
		if err := json.Unmarshal([]byte(metaJSON), &a.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode metadata for %s: %w", a.ID, err)
		}
	}
	return &a, nil
}

func nullStr(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// CreateActivity inserts a new activity. Depth and ancestry are computed
// from the parent here; any values the caller set are ignored. The type
// hierarchy is validated before the insert.
func (s *SQLiteStorage) CreateActivity(ctx context.Context, a *types.Activity) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.Status == "" {
		a.Status = types.StatusActive
	}
	now := time.Now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now

	if err := s.validator.ValidateCreate(ctx, a.Type, a.ParentID); err != nil {
		return err
	}

	if a.ParentID == "" {
		a.Depth = 0
		a.Ancestors = nil
	} else {
		parent, err := s.GetActivity(ctx, a.ParentID)
		if err != nil {
			return err
		}
		a.Depth = parent.Depth + 1
		a.Ancestors = append(append([]string{}, parent.Ancestors...), parent.ID)
	}

	if err := a.Validate(); err != nil {
		return types.NewValidationError("invalid activity: %v", err)
	}

	tagsJSON, err := json.Marshal(a.Tags)
	if err != nil {
		return fmt.Errorf("failed to encode tags: %w", err)
	}
	metaJSON, err := json.Marshal(a.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}
	if a.Tags == nil {
		tagsJSON = []byte("[]")
	}
	if a.Metadata == nil {
		metaJSON = []byte("{}")
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO activities (id, name, description, type, status, priority, parent_id, depth, ancestry,
			owner_entity_id, client_entity_id, deadline, start_date, end_date, tags, metadata,
			created_at, updated_at, last_activity_at, deleted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL)`,
		a.ID, a.Name, a.Description, a.Type, a.Status, a.Priority,
		nullStr(a.ParentID), a.Depth, encodeAncestry(a.Ancestors),
		nullStr(a.OwnerEntityID), nullStr(a.ClientEntityID),
		nullTime(a.Deadline), nullTime(a.StartDate), nullTime(a.EndDate),
		string(tagsJSON), string(metaJSON),
		a.CreatedAt, a.UpdatedAt, nullTime(a.LastActivityAt))
	if err != nil {
		return fmt.Errorf("failed to insert activity: %w", err)
	}
	return nil
}

// GetActivity loads one activity by id. Soft-deleted rows report NotFound.
func (s *SQLiteStorage) GetActivity(ctx context.Context, id string) (*types.Activity, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+activityColumns+` FROM activities WHERE id = ? AND deleted_at IS NULL`, id)
	a, err := scanActivity(row)
	if err == sql.ErrNoRows {
		return nil, types.NewNotFoundError("activity", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load activity %s: %w", id, err)
	}
	return a, nil
}

// getActivityAny loads an activity including soft-deleted rows
func (s *SQLiteStorage) getActivityAny(ctx context.Context, id string) (*types.Activity, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+activityColumns+` FROM activities WHERE id = ?`, id)
	a, err := scanActivity(row)
	if err == sql.ErrNoRows {
		return nil, types.NewNotFoundError("activity", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load activity %s: %w", id, err)
	}
	return a, nil
}

// ListActivities returns activities matching the filter, oldest first
func (s *SQLiteStorage) ListActivities(ctx context.Context, filter types.ActivityFilter) ([]*types.Activity, error) {
	var conds []string
	var args []interface{}

	if !filter.IncludeDeleted {
		conds = append(conds, "deleted_at IS NULL")
	}
	if len(filter.Types) > 0 {
		ph := make([]string, len(filter.Types))
		for i, t := range filter.Types {
			ph[i] = "?"
			args = append(args, t)
		}
		conds = append(conds, fmt.Sprintf("type IN (%s)", strings.Join(ph, ",")))
	}
	if len(filter.Statuses) > 0 {
		ph := make([]string, len(filter.Statuses))
		for i, st := range filter.Statuses {
			ph[i] = "?"
			args = append(args, st)
		}
		conds = append(conds, fmt.Sprintf("status IN (%s)", strings.Join(ph, ",")))
	}
	if filter.OwnerEntityID != "" {
		conds = append(conds, "owner_entity_id = ?")
		args = append(args, filter.OwnerEntityID)
	}
	if filter.ParentID != "" {
		conds = append(conds, "parent_id = ?")
		args = append(args, filter.ParentID)
	}
	if filter.MissingParent {
		// Parentless, or the parent row is gone or soft-deleted
		conds = append(conds, `(parent_id IS NULL OR parent_id NOT IN
			(SELECT id FROM activities WHERE deleted_at IS NULL))`)
	}
	if filter.MissingClient {
		conds = append(conds, "client_entity_id IS NULL")
	}

	query := `SELECT ` + activityColumns + ` FROM activities`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at ASC, id ASC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list activities: %w", err)
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

// updatableFields whitelists the columns UpdateActivity may touch.
// depth and ancestry are deliberately absent: they are derived state
// owned by this package and only change through reparent/merge cascades.
var updatableFields = map[string]bool{
	"name":             true,
	"description":      true,
	"status":           true,
	"priority":         true,
	"owner_entity_id":  true,
	"client_entity_id": true,
	"deadline":         true,
	"start_date":       true,
	"end_date":         true,
	"tags":             true,
	"metadata":         true,
	"last_activity_at": true,
}

// UpdateActivity applies a partial update. A "parent_id" key triggers the
// full reparent+cascade path; other keys map directly to columns.
func (s *SQLiteStorage) UpdateActivity(ctx context.Context, id string, updates map[string]interface{}) error {
	if newParent, ok := updates["parent_id"]; ok {
		parentID, _ := newParent.(string)
		if err := s.ReparentActivity(ctx, id, parentID); err != nil {
			return err
		}
	}

	// The updates map belongs to the caller; parent_id is skipped below
	// rather than deleted from it.
	var sets []string
	var args []interface{}
	for field, value := range updates {
		if field == "parent_id" {
			continue
		}
		if !updatableFields[field] {
			return types.NewValidationError("field %q cannot be updated directly", field)
		}
		if field == "tags" || field == "metadata" {
			encoded, err := json.Marshal(value)
			if err != nil {
				return fmt.Errorf("failed to encode %s: %w", field, err)
			}
			value = string(encoded)
		}
		sets = append(sets, field+" = ?")
		args = append(args, value)
	}
	if len(sets) == 0 {
		return nil
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, time.Now().UTC(), id)

	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf("UPDATE activities SET %s WHERE id = ? AND deleted_at IS NULL", strings.Join(sets, ", ")),
		args...)
	if err != nil {
		return fmt.Errorf("failed to update activity %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return types.NewNotFoundError("activity", id)
	}
	return nil
}

// ReparentActivity moves an activity under a new parent (or to the root
// when newParentID is empty), recomputing its depth/ancestry and cascading
// the change to every descendant. The activity's own update and the
// descendant cascade commit in one transaction; a failure leaves neither
// half-applied.
func (s *SQLiteStorage) ReparentActivity(ctx context.Context, id, newParentID string) error {
	a, err := s.GetActivity(ctx, id)
	if err != nil {
		return err
	}
	if err := s.validator.ValidateReparent(ctx, a, newParentID); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := reparentTx(ctx, tx, a, newParentID); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit reparent: %w", err)
	}
	return nil
}

// reparentTx performs the reparent of a (already validated) inside tx:
// the activity's own parent_id/depth/ancestry update plus the descendant
// cascade. Shared by ReparentActivity and MergeActivities.
func reparentTx(ctx context.Context, tx *sql.Tx, a *types.Activity, newParentID string) error {
	now := time.Now().UTC()

	newDepth := 0
	var newAncestors []string
	if newParentID != "" {
		row := tx.QueryRowContext(ctx,
			`SELECT depth, ancestry FROM activities WHERE id = ? AND deleted_at IS NULL`, newParentID)
		var parentDepth int
		var parentAncestry string
		if err := row.Scan(&parentDepth, &parentAncestry); err != nil {
			if err == sql.ErrNoRows {
				return types.NewNotFoundError("activity", newParentID)
			}
			return fmt.Errorf("failed to load new parent %s: %w", newParentID, err)
		}
		newDepth = parentDepth + 1
		newAncestors = append(decodeAncestry(parentAncestry), newParentID)
	}

	oldFull := fullPath(encodeAncestry(a.Ancestors), a.ID)
	newFull := fullPath(encodeAncestry(newAncestors), a.ID)
	delta := newDepth - a.Depth

	_, err := tx.ExecContext(ctx, `
		UPDATE activities SET parent_id = ?, depth = ?, ancestry = ?, updated_at = ?
		WHERE id = ?`,
		nullStr(newParentID), newDepth, encodeAncestry(newAncestors), now, a.ID)
	if err != nil {
		return fmt.Errorf("failed to reparent %s: %w", a.ID, err)
	}

	if oldFull == newFull {
		return nil
	}

	// One statement rewrites every descendant: those whose ancestry equals
	// the old subtree prefix or extends it past a '/' boundary. Callers
	// may supply their own ids, so the prefix is escaped against LIKE
	// metacharacters before it becomes a pattern.
	_, err = tx.ExecContext(ctx, `
		UPDATE activities
		SET ancestry = ? || substr(ancestry, ?),
		    depth = depth + ?,
		    updated_at = ?
		WHERE ancestry = ? OR ancestry LIKE ? || '/%' ESCAPE '\'`,
		newFull, len(oldFull)+1, delta, now, oldFull, escapeLike(oldFull))
	if err != nil {
		return fmt.Errorf("failed to cascade ancestry for %s: %w", a.ID, err)
	}
	return nil
}

// ArchiveActivity soft-deletes an activity: status becomes archived and
// deleted_at is set. The row survives for audit history.
func (s *SQLiteStorage) ArchiveActivity(ctx context.Context, id string) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE activities SET status = ?, deleted_at = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL`,
		types.StatusArchived, now, now, id)
	if err != nil {
		return fmt.Errorf("failed to archive activity %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return types.NewNotFoundError("activity", id)
	}
	return nil
}

// GetChildren returns the direct, non-deleted children of an activity
func (s *SQLiteStorage) GetChildren(ctx context.Context, id string) ([]*types.Activity, error) {
	return s.ListActivities(ctx, types.ActivityFilter{ParentID: id})
}

// CountChildren counts direct non-deleted children
func (s *SQLiteStorage) CountChildren(ctx context.Context, id string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM activities WHERE parent_id = ? AND deleted_at IS NULL`, id).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count children of %s: %w", id, err)
	}
	return n, nil
}

// GetSubtree returns every non-deleted descendant of an activity (the
// activity itself excluded), shallowest first
func (s *SQLiteStorage) GetSubtree(ctx context.Context, id string) ([]*types.Activity, error) {
	a, err := s.GetActivity(ctx, id)
	if err != nil {
		return nil, err
	}
	full := fullPath(encodeAncestry(a.Ancestors), a.ID)

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+activityColumns+` FROM activities
		WHERE (ancestry = ? OR ancestry LIKE ? || '/%' ESCAPE '\') AND deleted_at IS NULL
		ORDER BY depth ASC, created_at ASC`, full, escapeLike(full))
	if err != nil {
		return nil, fmt.Errorf("failed to load subtree of %s: %w", id, err)
	}
	defer rows.Close()

	var out []*types.Activity
	for rows.Next() {
		d, err := scanActivity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
