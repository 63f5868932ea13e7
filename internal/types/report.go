package types

import (
	"fmt"
	"time"
)

// ReportStatus is the lifecycle state of a data-quality report
type ReportStatus string

const (
	ReportPending  ReportStatus = "pending"
	ReportReviewed ReportStatus = "reviewed"
	ReportResolved ReportStatus = "resolved"
)

// IssueType classifies a data-quality finding
type IssueType string

const (
	IssueDuplicate     IssueType = "DUPLICATE"
	IssueOrphan        IssueType = "ORPHAN"
	IssueMissingClient IssueType = "MISSING_CLIENT"
)

// IssueSeverity ranks how urgent a finding is
type IssueSeverity string

const (
	SeverityLow    IssueSeverity = "low"
	SeverityMedium IssueSeverity = "medium"
	SeverityHigh   IssueSeverity = "high"
)

// QualityIssue is a single finding inside a report. Issues are addressed
// by index into the report's Issues slice.
type QualityIssue struct {
	Type            IssueType     `json:"type"`
	Severity        IssueSeverity `json:"severity"`
	ActivityID      string        `json:"activity_id,omitempty"`
	Description     string        `json:"description"`
	SuggestedAction string        `json:"suggested_action,omitempty"`
}

// IssueResolution records that a specific issue index was addressed
type IssueResolution struct {
	IssueIndex int       `json:"issue_index"`
	ResolvedAt time.Time `json:"resolved_at"`
	ResolvedBy string    `json:"resolved_by"`
	Action     string    `json:"action"`
}

// QualityMetrics is the snapshot of dataset health captured by an audit run
type QualityMetrics struct {
	TotalActivities      int     `json:"total_activities"`
	DuplicateGroups      int     `json:"duplicate_groups"`
	OrphanedTasks        int     `json:"orphaned_tasks"`
	MissingClient        int     `json:"missing_client"`
	MemberCoverageRate   float64 `json:"member_coverage_rate"`
	CommitmentLinkRate   float64 `json:"commitment_link_rate"`
	InferredRelations    int     `json:"inferred_relations"`
	FieldFillRate        float64 `json:"field_fill_rate"`
}

// DataQualityReport is the persisted output of one audit run.
//
// Status derives from resolution coverage: pending with no resolutions,
// reviewed once some but not all issue indices are resolved, resolved once
// every index has a resolution entry.
type DataQualityReport struct {
	ID          string            `json:"id"`
	ReportDate  time.Time         `json:"report_date"`
	Metrics     QualityMetrics    `json:"metrics"`
	Issues      []QualityIssue    `json:"issues"`
	Resolutions []IssueResolution `json:"resolutions,omitempty"`
	Status      ReportStatus      `json:"status"`
}

// ComputeStatus derives the report status from its resolution coverage
func (r *DataQualityReport) ComputeStatus() ReportStatus {
	if len(r.Issues) == 0 {
		return ReportResolved
	}
	resolved := make(map[int]bool, len(r.Resolutions))
	for _, res := range r.Resolutions {
		if res.IssueIndex >= 0 && res.IssueIndex < len(r.Issues) {
			resolved[res.IssueIndex] = true
		}
	}
	switch {
	case len(resolved) == 0:
		return ReportPending
	case len(resolved) == len(r.Issues):
		return ReportResolved
	default:
		return ReportReviewed
	}
}

// Validate checks report field consistency
func (r *DataQualityReport) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("report id is required")
	}
	for i, res := range r.Resolutions {
		if res.IssueIndex < 0 || res.IssueIndex >= len(r.Issues) {
			return fmt.Errorf("resolution %d references issue index %d out of range [0,%d)",
				i, res.IssueIndex, len(r.Issues))
		}
	}
	switch r.Status {
	case ReportPending, ReportReviewed, ReportResolved:
	default:
		return fmt.Errorf("invalid report status: %s", r.Status)
	}
	return nil
}
