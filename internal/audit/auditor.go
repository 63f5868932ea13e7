// Package audit produces data-quality reports over the activity store:
// a metrics snapshot plus an itemized issue list, persisted with a
// pending/reviewed/resolved lifecycle.
package audit

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/stewardhq/steward/internal/dedup"
	"github.com/stewardhq/steward/internal/orphans"
	"github.com/stewardhq/steward/internal/storage"
	"github.com/stewardhq/steward/internal/types"
)

// Auditor runs data-quality audits against the store
type Auditor struct {
	store storage.Storage
}

// NewAuditor creates an auditor
func NewAuditor(store storage.Storage) (*Auditor, error) {
	if store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	return &Auditor{store: store}, nil
}

// snapshot is the shared fetch every metric and issue derives from.
// One listing per audit keeps metrics and issues consistent with each
// other even while writers are active.
type snapshot struct {
	activities []*types.Activity
	byID       map[string]*types.Activity
	dupGroups  []types.DuplicateGroup
}

func (a *Auditor) takeSnapshot(ctx context.Context) (*snapshot, error) {
	activities, err := a.store.ListActivities(ctx, types.ActivityFilter{})
	if err != nil {
		return nil, fmt.Errorf("listing activities: %w", err)
	}
	snap := &snapshot{
		activities: activities,
		byID:       make(map[string]*types.Activity, len(activities)),
	}
	for _, act := range activities {
		snap.byID[act.ID] = act
	}
	snap.dupGroups = dedup.GroupDuplicates(activities)
	return snap, nil
}

// orphanedTasks returns tasks with no parent or a dangling parent id
func (s *snapshot) orphanedTasks() []*types.Activity {
	var out []*types.Activity
	for _, act := range s.activities {
		if act.Type != types.TypeTask {
			continue
		}
		if act.ParentID == "" {
			out = append(out, act)
			continue
		}
		if _, ok := s.byID[act.ParentID]; !ok {
			out = append(out, act)
		}
	}
	return out
}

// missingClient returns projects and businesses with no client link
func (s *snapshot) missingClient() []*types.Activity {
	var out []*types.Activity
	for _, act := range s.activities {
		if act.Type != types.TypeProject && act.Type != types.TypeBusiness {
			continue
		}
		if act.ClientEntityID == "" {
			out = append(out, act)
		}
	}
	return out
}

// fillableFields is the number of optional fields the fill-rate metric
// inspects per activity: description, owner, client, deadline, tags.
const fillableFields = 5

func (s *snapshot) fieldFillRate() float64 {
	if len(s.activities) == 0 {
		return 0
	}
	filled := 0
	for _, act := range s.activities {
		if act.Description != "" {
			filled++
		}
		if act.OwnerEntityID != "" {
			filled++
		}
		if act.ClientEntityID != "" {
			filled++
		}
		if act.Deadline != nil {
			filled++
		}
		if len(act.Tags) > 0 {
			filled++
		}
	}
	return float64(filled) / float64(len(s.activities)*fillableFields)
}

func (s *snapshot) inferredRelations() int {
	n := 0
	for _, act := range s.activities {
		if act.Metadata[orphans.InferenceMetadataKey] != "" {
			n++
		}
	}
	return n
}

func (a *Auditor) computeMetrics(ctx context.Context, snap *snapshot) (types.QualityMetrics, error) {
	metrics := types.QualityMetrics{
		TotalActivities:   len(snap.activities),
		DuplicateGroups:   len(snap.dupGroups),
		OrphanedTasks:     len(snap.orphanedTasks()),
		MissingClient:     len(snap.missingClient()),
		InferredRelations: snap.inferredRelations(),
		FieldFillRate:     snap.fieldFillRate(),
	}

	if len(snap.activities) > 0 {
		withMembers, err := a.store.CountActivitiesWithMembers(ctx)
		if err != nil {
			return metrics, fmt.Errorf("counting member coverage: %w", err)
		}
		metrics.MemberCoverageRate = float64(withMembers) / float64(len(snap.activities))
	}

	linked, total, err := a.store.CountLinkedCommitments(ctx)
	if err != nil {
		return metrics, fmt.Errorf("counting commitment linkage: %w", err)
	}
	if total > 0 {
		metrics.CommitmentLinkRate = float64(linked) / float64(total)
	}
	return metrics, nil
}

// collectIssues builds the itemized findings. Within a duplicate group the
// oldest member is the original; every other member is an issue.
func collectIssues(snap *snapshot) []types.QualityIssue {
	var issues []types.QualityIssue

	for _, g := range snap.dupGroups {
		original := g.Members[0]
		for _, m := range g.Members[1:] {
			issues = append(issues, types.QualityIssue{
				Type:            types.IssueDuplicate,
				Severity:        types.SeverityHigh,
				ActivityID:      m.ID,
				Description:     fmt.Sprintf("%s %q duplicates %q (created %s)", g.Type, m.Name, original.Name, original.CreatedAt.Format("2006-01-02")),
				SuggestedAction: fmt.Sprintf("merge into %s", original.ID),
			})
		}
	}

	for _, task := range snap.orphanedTasks() {
		issues = append(issues, types.QualityIssue{
			Type:            types.IssueOrphan,
			Severity:        types.SeverityMedium,
			ActivityID:      task.ID,
			Description:     fmt.Sprintf("task %q has no live parent project", task.Name),
			SuggestedAction: "run orphan resolution",
		})
	}

	for _, act := range snap.missingClient() {
		issues = append(issues, types.QualityIssue{
			Type:            types.IssueMissingClient,
			Severity:        types.SeverityLow,
			ActivityID:      act.ID,
			Description:     fmt.Sprintf("%s %q has no client", act.Type, act.Name),
			SuggestedAction: "run client resolution",
		})
	}
	return issues
}

// RunFullAudit computes metrics and issues from one snapshot and persists
// the resulting report in pending status (resolved when it finds nothing).
func (a *Auditor) RunFullAudit(ctx context.Context) (*types.DataQualityReport, error) {
	snap, err := a.takeSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	metrics, err := a.computeMetrics(ctx, snap)
	if err != nil {
		return nil, err
	}

	report := &types.DataQualityReport{
		ID:         uuid.New().String(),
		ReportDate: time.Now().UTC(),
		Metrics:    metrics,
		Issues:     collectIssues(snap),
	}
	report.Status = report.ComputeStatus()

	if err := a.store.SaveReport(ctx, report); err != nil {
		return nil, fmt.Errorf("saving report: %w", err)
	}
	log.Printf("[AUDIT] report %s: %d activities, %d issues", report.ID, metrics.TotalActivities, len(report.Issues))
	return report, nil
}

// GetCurrentMetrics computes a metrics snapshot without persisting a report
func (a *Auditor) GetCurrentMetrics(ctx context.Context) (types.QualityMetrics, error) {
	snap, err := a.takeSnapshot(ctx)
	if err != nil {
		return types.QualityMetrics{}, err
	}
	return a.computeMetrics(ctx, snap)
}

// ResolveIssue marks one issue on a persisted report as addressed and
// recomputes the report status.
func (a *Auditor) ResolveIssue(ctx context.Context, reportID string, issueIndex int, resolvedBy, action string) (*types.DataQualityReport, error) {
	report, err := a.store.GetReport(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if issueIndex < 0 || issueIndex >= len(report.Issues) {
		return nil, types.NewValidationError("issue index %d out of range [0,%d)", issueIndex, len(report.Issues))
	}

	report.Resolutions = append(report.Resolutions, types.IssueResolution{
		IssueIndex: issueIndex,
		ResolvedAt: time.Now().UTC(),
		ResolvedBy: resolvedBy,
		Action:     action,
	})
	report.Status = report.ComputeStatus()

	if err := a.store.SaveReport(ctx, report); err != nil {
		return nil, fmt.Errorf("saving report: %w", err)
	}
	return report, nil
}

// History lists recent reports, newest first
func (a *Auditor) History(ctx context.Context, limit int) ([]*types.DataQualityReport, error) {
	return a.store.ListReports(ctx, limit)
}
