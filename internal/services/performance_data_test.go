package services

import (
	"errors"
	"testing"

	"github.com/kwanter/sakip-sub003/internal/models"
	"github.com/kwanter/sakip-sub003/internal/scoring"
	"github.com/kwanter/sakip-sub003/internal/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPerformanceData_QuarterlyExample(t *testing.T) {
	env := newTestEnv(t)
	_, ind := env.seedIndicator(t)
	env.seedTarget(t, ind.ID, 2024, 1000)

	q1 := env.record(t, ind.ID, "2024-02-15", 1100)
	q2 := env.record(t, ind.ID, "2024-05-01", 900)
	env.validate(t, q1.ID)
	env.validate(t, q2.ID)

	assert.Equal(t, 110.0, q1.PerformancePercentage)
	assert.Equal(t, string(scoring.CategoryGood), q1.Category)
	assert.Equal(t, "2024-Q1", q1.PeriodLabel)
	assert.Equal(t, 1000.0, q1.TargetValue)
	require.NotNil(t, q1.TargetID)

	assert.Equal(t, 90.0, q2.PerformancePercentage)
	assert.Equal(t, string(scoring.CategoryFair), q2.Category)
	assert.Equal(t, "2024-Q2", q2.PeriodLabel)

	m, err := env.data.Metrics(ind.ID, 2024)
	require.NoError(t, err)
	assert.Equal(t, 100.0, m.Metrics.AveragePerformance)
	assert.Equal(t, 50.0, m.Metrics.AchievementRate)
	assert.Equal(t, 2, m.Metrics.DataPoints)
	assert.Equal(t, scoring.TrendStable, m.Trend.Direction)
	assert.Len(t, m.Points, 2)
}

func TestPerformanceData_PeriodNormalizedAndUnique(t *testing.T) {
	env := newTestEnv(t)
	_, ind := env.seedIndicator(t)

	d := env.record(t, ind.ID, "2024-03-31", 10)
	assert.Equal(t, "2024-01-01", d.Period.Format(dateLayout))

	_, err := env.data.Create(operator, &CreatePerformanceDataRequest{IndicatorID: ind.ID, Period: "2024-01-20", ActualValue: 12})
	assert.ErrorIs(t, err, ErrConflict)

	_, err = env.data.Create(operator, &CreatePerformanceDataRequest{IndicatorID: ind.ID, Period: "20/01/2024", ActualValue: 12})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestPerformanceData_NoTargetScoresZero(t *testing.T) {
	env := newTestEnv(t)
	_, ind := env.seedIndicator(t)

	d := env.record(t, ind.ID, "2024-01-01", 500)
	assert.Nil(t, d.TargetID)
	assert.Equal(t, 0.0, d.PerformancePercentage)
	assert.Equal(t, string(scoring.CategoryPoor), d.Category)
}

func TestPerformanceData_ValidateSchedulesScore(t *testing.T) {
	env := newTestEnv(t)
	_, ind := env.seedIndicator(t)
	env.seedTarget(t, ind.ID, 2024, 1000)

	d := env.record(t, ind.ID, "2024-01-01", 1100)
	validated := env.validate(t, d.ID)
	assert.Equal(t, workflow.StatusValidated, validated.Status)
	require.NotNil(t, validated.ValidatedBy)
	assert.Equal(t, approver.UserID, *validated.ValidatedBy)

	snap, err := env.scores.Get(ind.ID, 2024)
	require.NoError(t, err)
	assert.Equal(t, 1, snap.DataPoints)
	assert.Equal(t, 110.0, snap.AveragePerformance)
}

func TestPerformanceData_EditValidatedDemotes(t *testing.T) {
	env := newTestEnv(t)
	_, ind := env.seedIndicator(t)
	env.seedTarget(t, ind.ID, 2024, 1000)
	d := env.record(t, ind.ID, "2024-01-01", 1100)
	env.validate(t, d.ID)
	before := env.auditCount(t, string(workflow.KindPerformanceData), d.ID)

	actual := 1300.0
	change, err := env.data.Update(operator, d.ID, &UpdatePerformanceDataRequest{ActualValue: &actual})
	require.NoError(t, err)
	env.queue.Wait()

	assert.True(t, change.Outcome.Demoted)
	assert.NotEmpty(t, change.Outcome.SideEffect)
	assert.Equal(t, workflow.StatusDraft, change.Data.Status)
	assert.Nil(t, change.Data.ValidatedBy)
	assert.Equal(t, 130.0, change.Data.PerformancePercentage)
	assert.Equal(t, string(scoring.CategoryExcellent), change.Data.Category)
	assert.Equal(t, before+1, env.auditCount(t, string(workflow.KindPerformanceData), d.ID))

	// No validated data left: the snapshot is gone.
	_, err = env.scores.Get(ind.ID, 2024)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPerformanceData_EditSubmittedIsIllegal(t *testing.T) {
	env := newTestEnv(t)
	_, ind := env.seedIndicator(t)
	d := env.record(t, ind.ID, "2024-01-01", 10)
	_, err := env.data.Submit(operator, d.ID)
	require.NoError(t, err)

	notes := "late fix"
	_, err = env.data.Update(operator, d.ID, &UpdatePerformanceDataRequest{Notes: &notes})
	assert.ErrorIs(t, err, workflow.ErrIllegalTransition)
}

func TestPerformanceData_RejectNeedsReason(t *testing.T) {
	env := newTestEnv(t)
	_, ind := env.seedIndicator(t)
	d := env.record(t, ind.ID, "2024-01-01", 10)
	_, err := env.data.Submit(operator, d.ID)
	require.NoError(t, err)

	_, err = env.data.Reject(approver, d.ID, "  ")
	assert.ErrorIs(t, err, workflow.ErrIllegalTransition)

	rejected, err := env.data.Reject(approver, d.ID, "wrong unit")
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusRejected, rejected.Status)
	assert.Equal(t, "wrong unit", rejected.RejectionReason)

	// Resubmission clears the reason.
	resubmitted, err := env.data.Submit(operator, d.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusSubmitted, resubmitted.Status)
	assert.Empty(t, resubmitted.RejectionReason)
}

func TestPerformanceData_ForbiddenLeavesStatus(t *testing.T) {
	env := newTestEnv(t)
	_, ind := env.seedIndicator(t)
	d := env.record(t, ind.ID, "2024-01-01", 10)
	_, err := env.data.Submit(operator, d.ID)
	require.NoError(t, err)

	_, err = env.data.Validate(operator, d.ID)
	assert.ErrorIs(t, err, workflow.ErrForbidden)

	var te *workflow.TransitionError
	assert.True(t, errors.As(err, &te))

	got, err := env.data.GetByID(d.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusSubmitted, got.Status)
}

func TestPerformanceData_DeleteRules(t *testing.T) {
	env := newTestEnv(t)
	_, ind := env.seedIndicator(t)
	env.seedTarget(t, ind.ID, 2024, 100)
	d := env.record(t, ind.ID, "2024-01-01", 90)
	env.validate(t, d.ID)

	err := env.data.Delete(operator, d.ID)
	assert.ErrorIs(t, err, workflow.ErrIllegalTransition)

	draft := env.record(t, ind.ID, "2024-04-01", 95)
	require.NoError(t, env.data.Delete(operator, draft.ID))
	_, err = env.data.GetByID(draft.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, int64(2), env.auditCount(t, string(workflow.KindPerformanceData), draft.ID))
}

func TestPerformanceData_InactiveIndicator(t *testing.T) {
	env := newTestEnv(t)
	_, ind := env.seedIndicator(t)
	inactive := false
	_, err := env.indicators.Update(admin, ind.ID, &UpdateIndicatorRequest{IsActive: &inactive})
	require.NoError(t, err)

	_, err = env.data.Create(operator, &CreatePerformanceDataRequest{IndicatorID: ind.ID, Period: "2024-01-01", ActualValue: 1})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestPerformanceData_MetricsUseValidatedOnly(t *testing.T) {
	env := newTestEnv(t)
	_, ind := env.seedIndicator(t)
	env.seedTarget(t, ind.ID, 2024, 100)
	good := env.record(t, ind.ID, "2024-01-01", 100)
	env.validate(t, good.ID)
	env.record(t, ind.ID, "2024-07-01", 40)
	bad := env.record(t, ind.ID, "2024-04-01", 10)
	_, err := env.data.Submit(operator, bad.ID)
	require.NoError(t, err)
	_, err = env.data.Reject(approver, bad.ID, "typo")
	require.NoError(t, err)

	m, err := env.data.Metrics(ind.ID, 2024)
	require.NoError(t, err)
	assert.Equal(t, 1, m.Metrics.DataPoints)
	assert.Equal(t, 100.0, m.Metrics.AveragePerformance)
	require.Len(t, m.Points, 1)
	assert.Equal(t, workflow.StatusValidated, m.Points[0].Status)

	var stored models.PerformanceData
	require.NoError(t, env.db.First(&stored, bad.ID).Error)
	assert.Equal(t, workflow.StatusRejected, stored.Status)
}

// assessed validates a data point and approves an assessment on it.
func assessed(t *testing.T, env *testEnv) (*models.PerformanceData, *models.Assessment) {
	t.Helper()
	crit := rubric(t, env)
	d := validatedPoint(t, env)
	change, err := env.assessments.Create(operator, &CreateAssessmentRequest{
		PerformanceDataID: d.ID,
		Scores:            []CriterionScoreInput{{CriterionID: crit[0].ID, Score: 85}},
	})
	require.NoError(t, err)
	_, err = env.assessments.Submit(operator, change.Assessment.ID)
	require.NoError(t, err)
	a, err := env.assessments.Approve(approver, change.Assessment.ID)
	require.NoError(t, err)
	return d, a
}

func TestPerformanceData_EditDemotesApprovedAssessment(t *testing.T) {
	env := newTestEnv(t)
	d, a := assessed(t, env)
	before := env.auditCount(t, string(workflow.KindAssessment), a.ID)

	actual := 120.0
	change, err := env.data.Update(operator, d.ID, &UpdatePerformanceDataRequest{ActualValue: &actual})
	require.NoError(t, err)
	env.queue.Wait()
	assert.Equal(t, workflow.StatusDraft, change.Data.Status)

	got, err := env.assessments.GetByID(a.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusDraft, got.Status)
	assert.Nil(t, got.ReviewedBy)
	assert.Equal(t, before+1, env.auditCount(t, string(workflow.KindAssessment), a.ID))
}

func TestPerformanceData_EditBlockedByAssessmentUnderReview(t *testing.T) {
	env := newTestEnv(t)
	crit := rubric(t, env)
	d := validatedPoint(t, env)
	change, err := env.assessments.Create(operator, &CreateAssessmentRequest{
		PerformanceDataID: d.ID,
		Scores:            []CriterionScoreInput{{CriterionID: crit[0].ID, Score: 85}},
	})
	require.NoError(t, err)
	_, err = env.assessments.Submit(operator, change.Assessment.ID)
	require.NoError(t, err)

	actual := 120.0
	_, err = env.data.Update(operator, d.ID, &UpdatePerformanceDataRequest{ActualValue: &actual})
	assert.ErrorIs(t, err, workflow.ErrIllegalTransition)

	got, err := env.data.GetByID(d.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusValidated, got.Status)
	assert.Equal(t, 95.0, got.ActualValue)
}

func TestPerformanceData_DeleteKeepsProtectedAssessment(t *testing.T) {
	env := newTestEnv(t)
	d, a := assessed(t, env)

	actual := 120.0
	_, err := env.data.Update(operator, d.ID, &UpdatePerformanceDataRequest{ActualValue: &actual})
	require.NoError(t, err)
	env.queue.Wait()
	_, err = env.assessments.Submit(operator, a.ID)
	require.NoError(t, err)

	err = env.data.Delete(operator, d.ID)
	assert.ErrorIs(t, err, workflow.ErrIllegalTransition)
	_, err = env.data.GetByID(d.ID)
	require.NoError(t, err)
	got, err := env.assessments.GetByID(a.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusPendingReview, got.Status)

	// A rejected assessment goes with its data point.
	_, err = env.assessments.Reject(approver, a.ID, "recheck")
	require.NoError(t, err)
	require.NoError(t, env.data.Delete(operator, d.ID))
	_, err = env.assessments.GetByID(a.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
