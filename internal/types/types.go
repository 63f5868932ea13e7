package types

import (
	"fmt"
	"time"
)

// Activity represents one node in the work hierarchy: an area, a business,
// a project, a task, and so on. Activities form a tree via ParentID.
//
// Ancestors is the ordered list of ancestor IDs from the root down to the
// direct parent (excluding the activity itself). Depth is always equal to
// len(Ancestors); the storage layer owns both fields and no other component
// may write them directly.
type Activity struct {
	ID             string            `json:"id"`
	Name           string            `json:"name"`
	Description    string            `json:"description,omitempty"`
	Type           ActivityType      `json:"type"`
	Status         ActivityStatus    `json:"status"`
	Priority       int               `json:"priority"`
	ParentID       string            `json:"parent_id,omitempty"`
	Depth          int               `json:"depth"`
	Ancestors      []string          `json:"ancestors,omitempty"`
	OwnerEntityID  string            `json:"owner_entity_id,omitempty"`
	ClientEntityID string            `json:"client_entity_id,omitempty"`
	Deadline       *time.Time        `json:"deadline,omitempty"`
	StartDate      *time.Time        `json:"start_date,omitempty"`
	EndDate        *time.Time        `json:"end_date,omitempty"`
	Tags           []string          `json:"tags,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
	LastActivityAt *time.Time        `json:"last_activity_at,omitempty"`
	DeletedAt      *time.Time        `json:"deleted_at,omitempty"`
}

// Validate checks if the activity has valid field values
func (a *Activity) Validate() error {
	if len(a.Name) == 0 {
		return fmt.Errorf("name is required")
	}
	if len(a.Name) > 500 {
		return fmt.Errorf("name must be 500 characters or less (got %d)", len(a.Name))
	}
	if !a.Type.IsValid() {
		return fmt.Errorf("invalid activity type: %s", a.Type)
	}
	if !a.Status.IsValid() {
		return fmt.Errorf("invalid activity status: %s", a.Status)
	}
	if a.Priority < 0 || a.Priority > 4 {
		return fmt.Errorf("priority must be between 0 and 4 (got %d)", a.Priority)
	}
	if a.Depth != len(a.Ancestors) {
		return fmt.Errorf("depth (%d) does not match ancestor count (%d)", a.Depth, len(a.Ancestors))
	}
	for _, anc := range a.Ancestors {
		if anc == a.ID {
			return fmt.Errorf("activity %s appears in its own ancestor list", a.ID)
		}
	}
	return nil
}

// IsDeleted reports whether the activity has been soft-deleted
func (a *Activity) IsDeleted() bool {
	return a.DeletedAt != nil
}

// HasAncestor reports whether id appears in the activity's ancestor list.
// The comparison is exact per entry, never a substring match.
func (a *Activity) HasAncestor(id string) bool {
	for _, anc := range a.Ancestors {
		if anc == id {
			return true
		}
	}
	return false
}

// ActivityType categorizes the kind of node in the hierarchy
type ActivityType string

const (
	TypeArea        ActivityType = "area"
	TypeBusiness    ActivityType = "business"
	TypeDirection   ActivityType = "direction"
	TypeProject     ActivityType = "project"
	TypeTask        ActivityType = "task"
	TypeMilestone   ActivityType = "milestone"
	TypeInitiative  ActivityType = "initiative"
	TypeHabit       ActivityType = "habit"
	TypeLearning    ActivityType = "learning"
	TypeEventSeries ActivityType = "event_series"
)

// IsValid checks if the activity type value is valid
func (t ActivityType) IsValid() bool {
	switch t {
	case TypeArea, TypeBusiness, TypeDirection, TypeProject, TypeTask,
		TypeMilestone, TypeInitiative, TypeHabit, TypeLearning, TypeEventSeries:
		return true
	}
	return false
}

// ActivityStatus represents the current state of an activity
type ActivityStatus string

const (
	StatusActive    ActivityStatus = "active"
	StatusIdea      ActivityStatus = "idea"
	StatusDraft     ActivityStatus = "draft"
	StatusPaused    ActivityStatus = "paused"
	StatusCompleted ActivityStatus = "completed"
	StatusCancelled ActivityStatus = "cancelled"
	StatusArchived  ActivityStatus = "archived"
)

// IsValid checks if the status value is valid
func (s ActivityStatus) IsValid() bool {
	switch s {
	case StatusActive, StatusIdea, StatusDraft, StatusPaused,
		StatusCompleted, StatusCancelled, StatusArchived:
		return true
	}
	return false
}

// MemberRole is the role an entity plays on an activity
type MemberRole string

const (
	RoleOwner  MemberRole = "owner"
	RoleClient MemberRole = "client"
	RoleMember MemberRole = "member"
)

// IsValid checks if the member role value is valid
func (r MemberRole) IsValid() bool {
	switch r {
	case RoleOwner, RoleClient, RoleMember:
		return true
	}
	return false
}

// ActivityMember links an entity to an activity in a given role.
// (ActivityID, EntityID, Role) is unique; deactivation is soft via
// IsActive/LeftAt rather than row deletion.
type ActivityMember struct {
	ActivityID string     `json:"activity_id"`
	EntityID   string     `json:"entity_id"`
	Role       MemberRole `json:"role"`
	IsActive   bool       `json:"is_active"`
	JoinedAt   time.Time  `json:"joined_at"`
	LeftAt     *time.Time `json:"left_at,omitempty"`
}

// EntityKind distinguishes people from organizations
type EntityKind string

const (
	EntityPerson       EntityKind = "person"
	EntityOrganization EntityKind = "organization"
)

// Entity is a person or organization referenced by activities, memberships,
// and commitments. This core looks entities up; it never creates them.
type Entity struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Kind      EntityKind `json:"kind"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Commitment is an obligation between two entities, optionally tied
// to a single activity.
type Commitment struct {
	ID           string     `json:"id"`
	FromEntityID string     `json:"from_entity_id"`
	ToEntityID   string     `json:"to_entity_id"`
	ActivityID   string     `json:"activity_id,omitempty"`
	Description  string     `json:"description,omitempty"`
	DueAt        *time.Time `json:"due_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// DuplicateGroup is a derived grouping of non-deleted activities sharing a
// normalized name and type. Members are ordered by creation time ascending;
// index 0 is the "original" for reporting, which is not necessarily the
// merge keeper.
type DuplicateGroup struct {
	NormalizedName string           `json:"normalized_name"`
	Type           ActivityType     `json:"type"`
	Count          int              `json:"count"`
	Members        []DuplicateEntry `json:"members"`
}

// DuplicateEntry is one activity inside a duplicate group
type DuplicateEntry struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Status    ActivityStatus `json:"status"`
	CreatedAt time.Time      `json:"created_at"`
}

// SimilarPair is a candidate duplicate pair produced by the store's
// embedding scan. Similarity is 1 - cosine distance of the two vectors.
type SimilarPair struct {
	AID        string       `json:"a_id"`
	BID        string       `json:"b_id"`
	AName      string       `json:"a_name"`
	BName      string       `json:"b_name"`
	Type       ActivityType `json:"type"`
	Similarity float64      `json:"similarity"`
}

// ActivityFilter narrows activity queries. Zero values mean "no constraint".
type ActivityFilter struct {
	Types          []ActivityType
	Statuses       []ActivityStatus
	OwnerEntityID  string
	ParentID       string
	MissingParent  bool // only tasks whose parent is absent or dangling
	MissingClient  bool // only activities with no client entity
	IncludeDeleted bool
	Limit          int
}
