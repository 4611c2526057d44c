package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	aggregatedomain "github.com/smallbiznis/concord/internal/aggregate/domain"
	"github.com/smallbiznis/concord/internal/config"
	extractdomain "github.com/smallbiznis/concord/internal/extract/domain"
	"github.com/smallbiznis/concord/internal/objectstore"
	overridedomain "github.com/smallbiznis/concord/internal/override/domain"
	persistdomain "github.com/smallbiznis/concord/internal/persist/domain"
	"github.com/smallbiznis/concord/internal/reconcile"
	"github.com/smallbiznis/concord/internal/retry"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Store    objectstore.Store
	FieldMap *config.FieldMapHolder
	Log      *zap.Logger
}

type Service struct {
	store    objectstore.Store
	fieldMap *config.FieldMapHolder
	log      *zap.Logger

	deleteConfirm retry.Policy
	createVerify  retry.Policy
	updateRetry   retry.Policy
}

func New(p Params) persistdomain.Service {
	return &Service{
		store:    p.Store,
		fieldMap: p.FieldMap,
		log:      p.Log.Named("persist.service"),

		deleteConfirm: retry.Fixed(4, 15*time.Second),
		createVerify:  retry.Fixed(4, 60*time.Second),
		updateRetry:   retry.Linear(3, 5*time.Second),
	}
}

var objectTypeKeys = map[extractdomain.EntityKind]string{
	extractdomain.KindClient:    config.ObjectTypeClient,
	extractdomain.KindMatter:    config.ObjectTypeMatter,
	extractdomain.KindWorkspace: config.ObjectTypeWorkspace,
	extractdomain.KindUser:      config.ObjectTypeUser,
}

// ApplyReconciliation creates billing records for new source entities and
// writes the per-field update streams for drifted ones. Individual failures
// are collected, never fatal for the pass.
func (s *Service) ApplyReconciliation(ctx context.Context, result reconcile.Result) (persistdomain.ReconcileOutcome, error) {
	var outcome persistdomain.ReconcileOutcome
	fm := s.fieldMap.Get()

	typeKey, ok := objectTypeKeys[result.Kind]
	if !ok {
		return outcome, fmt.Errorf("no object type for entity kind %q", result.Kind)
	}
	objectType, err := fm.ObjectType(typeKey)
	if err != nil {
		return outcome, err
	}
	fields, err := fm.Entity(string(result.Kind))
	if err != nil {
		return outcome, err
	}

	for _, record := range result.New {
		values := recordValues(fields, record)
		if _, err := s.store.Create(ctx, objectType, values); err != nil {
			outcome.CreateFailures = append(outcome.CreateFailures,
				fmt.Sprintf("%s: %v", record.SourceKey, err))
			s.log.Warn("billing record create failed",
				zap.String("kind", string(result.Kind)),
				zap.String("source_key", record.SourceKey),
				zap.String("error_kind", string(objectstore.KindOf(err))),
				zap.Error(err))
			continue
		}
		outcome.Created++
	}

	for _, field := range reconcile.TrackedFields {
		ref := trackedFieldRef(fields, field)
		changes := result.Changes[field]
		if len(changes) == 0 {
			continue
		}
		if ref == uuid.Nil {
			outcome.UpdateFailures = append(outcome.UpdateFailures,
				fmt.Sprintf("field %s not mapped for %s", field, result.Kind))
			continue
		}
		for _, change := range changes {
			err := s.updateWithRetry(ctx, change.TargetArtifactID, []objectstore.FieldValue{
				{Field: ref, Value: change.NewValue},
			})
			if err != nil {
				outcome.UpdateFailures = append(outcome.UpdateFailures,
					fmt.Sprintf("%s %s: %v", change.SourceKey, field, err))
				continue
			}
			outcome.Updated++
		}
	}

	return outcome, nil
}

// WriteSummaries replaces the period's billing detail rows. Ordering matters
// against the eventually consistent store: delete and confirm first, create
// and verify next, and only then write bucket values into the fresh rows.
func (s *Service) WriteSummaries(ctx context.Context, dateKey string, summaries []aggregatedomain.MatterSummary, overrides map[int]overridedomain.OverrideSet) (persistdomain.SummaryOutcome, error) {
	outcome := persistdomain.SummaryOutcome{DateKey: dateKey}
	fm := s.fieldMap.Get()

	detailType, err := fm.ObjectType(config.ObjectTypeBillingDetail)
	if err != nil {
		return outcome, err
	}
	matterField, err := fm.Field(config.FieldMatterArtifactID)
	if err != nil {
		return outcome, err
	}
	dateField, err := fm.Field(config.FieldDateKey)
	if err != nil {
		return outcome, err
	}
	periodCond := objectstore.Where(dateField, objectstore.OpEq, dateKey)

	existing, err := s.store.Query(ctx, detailType, periodCond)
	if err != nil {
		return outcome, err
	}
	outcome.DuplicateKeys = duplicateDetailKeys(existing, matterField, dateKey)

	outcome.Deleted, outcome.DeleteConfirmed = s.deleteAndConfirm(ctx, detailType, periodCond, existing)

	created, failures := s.createDetails(ctx, detailType, matterField, dateField, dateKey, summaries)
	outcome.Created = created
	outcome.CreateFailures = failures
	outcome.CreateConfirmed = s.verifyCreates(ctx, detailType, periodCond, created)

	outcome.Updated, outcome.UpdateFailures = s.writeBucketValues(ctx, detailType, matterField, periodCond, fm, summaries, overrides)

	outcome.Activated, outcome.ActivationFailures = s.activateDormantMatters(ctx, fm, summaries)

	return outcome, nil
}

// deleteAndConfirm removes every current-period row, then polls until the
// store stops returning them. Non-convergence is logged and tolerated.
func (s *Service) deleteAndConfirm(ctx context.Context, detailType int, cond objectstore.Condition, existing []objectstore.Row) (int, bool) {
	deleted := 0
	for _, row := range existing {
		if err := s.store.Delete(ctx, row.ArtifactID); err != nil {
			s.log.Warn("billing detail delete failed",
				zap.Int("artifact_id", row.ArtifactID),
				zap.Error(err))
			continue
		}
		deleted++
	}
	if deleted == 0 {
		return 0, true
	}

	err := s.deleteConfirm.Do(ctx, func(attempt int) (bool, error) {
		rows, err := s.store.Query(ctx, detailType, cond)
		if err != nil {
			return false, err
		}
		if len(rows) == 0 {
			return true, nil
		}
		return false, fmt.Errorf("%d rows still visible", len(rows))
	})
	if err != nil {
		s.log.Warn("billing detail deletion not confirmed, proceeding", zap.Error(err))
		return deleted, false
	}
	return deleted, true
}

func (s *Service) createDetails(ctx context.Context, detailType int, matterField, dateField objectstore.FieldRef, dateKey string, summaries []aggregatedomain.MatterSummary) (int, []string) {
	created := 0
	var failures []string
	for _, summary := range summaries {
		values := []objectstore.FieldValue{
			{Field: matterField, Value: summary.MatterArtifactID},
			{Field: dateField, Value: dateKey},
		}
		if _, err := s.store.Create(ctx, detailType, values); err != nil {
			failures = append(failures, fmt.Sprintf("matter %d: %v", summary.MatterArtifactID, err))
			s.log.Warn("billing detail create failed",
				zap.Int("matter_artifact_id", summary.MatterArtifactID),
				zap.String("date_key", dateKey),
				zap.Error(err))
			continue
		}
		created++
	}
	return created, failures
}

func (s *Service) verifyCreates(ctx context.Context, detailType int, cond objectstore.Condition, expected int) bool {
	if expected == 0 {
		return true
	}
	err := s.createVerify.Do(ctx, func(attempt int) (bool, error) {
		rows, err := s.store.Query(ctx, detailType, cond)
		if err != nil {
			return false, err
		}
		if len(rows) >= expected {
			return true, nil
		}
		return false, fmt.Errorf("%d of %d rows visible", len(rows), expected)
	})
	if err != nil {
		s.log.Warn("billing detail creation not confirmed", zap.Error(err))
		return false
	}
	return true
}

// writeBucketValues resolves each summary's destination fields and updates
// the freshly created row for its matter. Each update retries on its own;
// every failure lands in one collected detail list.
func (s *Service) writeBucketValues(ctx context.Context, detailType int, matterField objectstore.FieldRef, cond objectstore.Condition, fm config.FieldMap, summaries []aggregatedomain.MatterSummary, overrides map[int]overridedomain.OverrideSet) (int, []string) {
	rows, err := s.store.Query(ctx, detailType, cond)
	if err != nil {
		return 0, []string{fmt.Sprintf("query period rows: %v", err)}
	}
	byMatter := map[string]int{}
	for _, row := range rows {
		if v, ok := row.Value(matterField); ok {
			byMatter[fmt.Sprint(v)] = row.ArtifactID
		}
	}

	updated := 0
	var failures []string
	for _, summary := range summaries {
		artifactID, ok := byMatter[fmt.Sprint(summary.MatterArtifactID)]
		if !ok {
			failures = append(failures, fmt.Sprintf("matter %d: no detail row visible", summary.MatterArtifactID))
			continue
		}
		values, err := overridedomain.Resolve(fm, summary, overrides[summary.MatterArtifactID])
		if err != nil {
			failures = append(failures, err.Error())
			continue
		}
		if len(values) == 0 {
			continue
		}
		if err := s.updateWithRetry(ctx, artifactID, values); err != nil {
			failures = append(failures, fmt.Sprintf("matter %d: %v", summary.MatterArtifactID, err))
			continue
		}
		updated++
	}
	return updated, failures
}

// activateDormantMatters batch-transitions dormant matters that showed
// current-period activity to Active. Per-matter validation failures inside
// the batch are reported, not retried.
func (s *Service) activateDormantMatters(ctx context.Context, fm config.FieldMap, summaries []aggregatedomain.MatterSummary) (int, []string) {
	matterType, err := fm.ObjectType(config.ObjectTypeMatter)
	if err != nil {
		return 0, []string{err.Error()}
	}
	matterField, err := fm.Field(config.FieldMatterArtifactID)
	if err != nil {
		return 0, []string{err.Error()}
	}
	statusField, err := fm.Field(config.FieldStatus)
	if err != nil {
		return 0, []string{err.Error()}
	}

	dormant, err := s.store.Query(ctx, matterType,
		objectstore.Where(statusField, objectstore.OpEq, persistdomain.StatusDormant))
	if err != nil {
		return 0, []string{fmt.Sprintf("query dormant matters: %v", err)}
	}
	if len(dormant) == 0 {
		return 0, nil
	}

	active := map[string]bool{}
	for _, summary := range summaries {
		active[fmt.Sprint(summary.MatterArtifactID)] = true
	}

	var ids []int
	for _, row := range dormant {
		v, ok := row.Value(matterField)
		if !ok || !active[fmt.Sprint(v)] {
			continue
		}
		ids = append(ids, row.ArtifactID)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	result, err := s.store.MassUpdate(ctx, ids, []objectstore.FieldValue{
		{Field: statusField, Value: persistdomain.StatusActive},
	}, objectstore.MassUpdateContinueOnFailure)
	if err != nil {
		return 0, []string{fmt.Sprintf("mass activate: %v", err)}
	}
	for _, failure := range result.Failures {
		s.log.Warn("matter activation rejected", zap.String("detail", failure))
	}
	return len(ids) - len(result.Failures), result.Failures
}

func (s *Service) updateWithRetry(ctx context.Context, artifactID int, values []objectstore.FieldValue) error {
	var attemptErrs []string
	err := s.updateRetry.Do(ctx, func(attempt int) (bool, error) {
		if err := s.store.Update(ctx, artifactID, values); err != nil {
			attemptErrs = append(attemptErrs, fmt.Sprintf("attempt %d: %v", attempt, err))
			return false, err
		}
		return true, nil
	})
	if err != nil {
		return fmt.Errorf("update artifact %d: %s", artifactID, strings.Join(attemptErrs, "; "))
	}
	return nil
}

func duplicateDetailKeys(rows []objectstore.Row, matterField objectstore.FieldRef, dateKey string) []string {
	counts := map[string]int{}
	for _, row := range rows {
		if v, ok := row.Value(matterField); ok {
			counts[fmt.Sprint(v)]++
		}
	}
	var duplicates []string
	for matter, count := range counts {
		if count > 1 {
			duplicates = append(duplicates, fmt.Sprintf("matter %s has %d rows for %s", matter, count, dateKey))
		}
	}
	return duplicates
}

func recordValues(fields config.EntityFields, record extractdomain.Record) []objectstore.FieldValue {
	var values []objectstore.FieldValue
	add := func(ref objectstore.FieldRef, value any) {
		if ref == uuid.Nil {
			return
		}
		values = append(values, objectstore.FieldValue{Field: ref, Value: value})
	}

	add(fields.SourceKey, record.SourceKey)
	if record.Name != "" {
		add(fields.Name, record.Name)
	}
	if record.Number != "" {
		add(fields.Number, record.Number)
	}
	if record.CreatedBy != "" {
		add(fields.CreatedBy, record.CreatedBy)
	}
	if record.CreatedOn != nil {
		add(fields.CreatedOn, record.CreatedOn.UTC())
	}
	if record.CaseTeam != "" {
		add(fields.CaseTeam, record.CaseTeam)
	}
	if record.Analyst != "" {
		add(fields.Analyst, record.Analyst)
	}
	if record.Status != "" {
		add(fields.Status, record.Status)
	}
	return values
}

func trackedFieldRef(fields config.EntityFields, field reconcile.TrackedField) uuid.UUID {
	switch field {
	case reconcile.FieldName:
		return fields.Name
	case reconcile.FieldNumber:
		return fields.Number
	case reconcile.FieldCreatedBy:
		return fields.CreatedBy
	case reconcile.FieldCreatedOn:
		return fields.CreatedOn
	case reconcile.FieldCaseTeam:
		return fields.CaseTeam
	case reconcile.FieldAnalyst:
		return fields.Analyst
	case reconcile.FieldStatus:
		return fields.Status
	}
	return uuid.Nil
}
