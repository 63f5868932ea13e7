package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stewardhq/steward/internal/types"
)

// escapeLike escapes %, _ and \ in user-supplied text before it is
// interpolated into a LIKE pattern
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}

// AddEntity inserts an entity. Seeding and ingestion tooling use this;
// the data-quality core itself only ever looks entities up.
func (s *SQLiteStorage) AddEntity(ctx context.Context, e *types.Entity) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now
	if e.Kind != types.EntityPerson && e.Kind != types.EntityOrganization {
		return types.NewValidationError("invalid entity kind: %s", e.Kind)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO entities (id, name, kind, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		e.ID, e.Name, e.Kind, e.CreatedAt, e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert entity: %w", err)
	}
	return nil
}

// GetEntity loads one entity by id
func (s *SQLiteStorage) GetEntity(ctx context.Context, id string) (*types.Entity, error) {
	var e types.Entity
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, kind, created_at, updated_at FROM entities WHERE id = ?`, id).
		Scan(&e.ID, &e.Name, &e.Kind, &e.CreatedAt, &e.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, types.NewNotFoundError("entity", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load entity %s: %w", id, err)
	}
	return &e, nil
}

// FindEntitiesByName searches entities by name, case-insensitively.
// With exact=true the whole name must match; otherwise a contains search
// runs with LIKE wildcards escaped out of the needle. An empty kind
// matches both people and organizations. Results come back most recently
// updated first.
func (s *SQLiteStorage) FindEntitiesByName(ctx context.Context, name string, kind types.EntityKind, exact bool, limit int) ([]*types.Entity, error) {
	if limit <= 0 {
		limit = 20
	}

	conds := []string{}
	args := []interface{}{}
	if exact {
		conds = append(conds, "name = ? COLLATE NOCASE")
		args = append(args, name)
	} else {
		// sqlite LIKE is case-insensitive for ASCII already
		conds = append(conds, `name LIKE ? ESCAPE '\'`)
		args = append(args, "%"+escapeLike(name)+"%")
	}
	if kind != "" {
		conds = append(conds, "kind = ?")
		args = append(args, kind)
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, kind, created_at, updated_at FROM entities
		WHERE `+strings.Join(conds, " AND ")+`
		ORDER BY updated_at DESC LIMIT ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search entities: %w", err)
	}
	defer rows.Close()

	var out []*types.Entity
	for rows.Next() {
		var e types.Entity
		if err := rows.Scan(&e.ID, &e.Name, &e.Kind, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

// AddMember adds an activity membership. The (activity, entity, role)
// triple is unique; re-adding an existing triple is a validation error.
func (s *SQLiteStorage) AddMember(ctx context.Context, m *types.ActivityMember) error {
	if !m.Role.IsValid() {
		return types.NewValidationError("invalid member role: %s", m.Role)
	}
	if m.JoinedAt.IsZero() {
		m.JoinedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO activity_members (activity_id, entity_id, role, is_active, joined_at, left_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		m.ActivityID, m.EntityID, m.Role, m.IsActive, m.JoinedAt, nullTime(m.LeftAt))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return types.NewValidationError("member (%s, %s, %s) already exists", m.ActivityID, m.EntityID, m.Role)
		}
		return fmt.Errorf("failed to insert member: %w", err)
	}
	return nil
}

// GetMembers returns all memberships on an activity
func (s *SQLiteStorage) GetMembers(ctx context.Context, activityID string) ([]*types.ActivityMember, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT activity_id, entity_id, role, is_active, joined_at, left_at
		FROM activity_members WHERE activity_id = ? ORDER BY joined_at ASC`, activityID)
	if err != nil {
		return nil, fmt.Errorf("failed to load members of %s: %w", activityID, err)
	}
	defer rows.Close()

	var out []*types.ActivityMember
	for rows.Next() {
		var m types.ActivityMember
		var leftAt sql.NullTime
		if err := rows.Scan(&m.ActivityID, &m.EntityID, &m.Role, &m.IsActive, &m.JoinedAt, &leftAt); err != nil {
			return nil, err
		}
		if leftAt.Valid {
			m.LeftAt = &leftAt.Time
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

// CountMembers counts memberships on an activity
func (s *SQLiteStorage) CountMembers(ctx context.Context, activityID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM activity_members WHERE activity_id = ?`, activityID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count members of %s: %w", activityID, err)
	}
	return n, nil
}

// CountActivitiesWithMembers counts live activities that have at least
// one membership, for the audit coverage metric
func (s *SQLiteStorage) CountActivitiesWithMembers(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT m.activity_id)
		FROM activity_members m
		JOIN activities a ON a.id = m.activity_id
		WHERE a.deleted_at IS NULL`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count activities with members: %w", err)
	}
	return n, nil
}

// AddCommitment inserts a commitment
func (s *SQLiteStorage) AddCommitment(ctx context.Context, c *types.Commitment) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO commitments (id, from_entity_id, to_entity_id, activity_id, description, due_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.FromEntityID, c.ToEntityID, nullStr(c.ActivityID), c.Description,
		nullTime(c.DueAt), c.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert commitment: %w", err)
	}
	return nil
}

// GetCommitmentsByActivity returns the commitments linked to an activity
func (s *SQLiteStorage) GetCommitmentsByActivity(ctx context.Context, activityID string) ([]*types.Commitment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, from_entity_id, to_entity_id, activity_id, description, due_at, created_at
		FROM commitments WHERE activity_id = ? ORDER BY created_at ASC`, activityID)
	if err != nil {
		return nil, fmt.Errorf("failed to load commitments of %s: %w", activityID, err)
	}
	defer rows.Close()

	var out []*types.Commitment
	for rows.Next() {
		var c types.Commitment
		var actID sql.NullString
		var dueAt sql.NullTime
		if err := rows.Scan(&c.ID, &c.FromEntityID, &c.ToEntityID, &actID, &c.Description, &dueAt, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.ActivityID = actID.String
		if dueAt.Valid {
			c.DueAt = &dueAt.Time
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

// CountLinkedCommitments reports how many commitments reference an
// activity versus the total, for the audit's linkage-rate metric
func (s *SQLiteStorage) CountLinkedCommitments(ctx context.Context) (linked, total int, err error) {
	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(activity_id), COUNT(*) FROM commitments`).Scan(&linked, &total)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count commitments: %w", err)
	}
	return linked, total, nil
}
