package workflow

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	admin    = Actor{ID: 1, Role: RoleAdmin}
	approver = Actor{ID: 2, Role: RoleApprover}
	operator = Actor{ID: 3, Role: RoleOperator}
	viewer   = Actor{ID: 4, Role: RoleViewer}
)

func TestApply_TargetHappyPath(t *testing.T) {
	m := NewMachine(nil)

	out, err := m.Apply(Request{Kind: KindTarget, From: StatusDraft, Action: ActionSubmit, Actor: operator})
	require.NoError(t, err)
	assert.Equal(t, StatusPendingReview, out.NewStatus)
	assert.Equal(t, StatusDraft, out.From)

	out, err = m.Apply(Request{Kind: KindTarget, From: out.NewStatus, Action: ActionApprove, Actor: approver})
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, out.NewStatus)
}

func TestApply_Transitions(t *testing.T) {
	m := NewMachine(nil)

	tests := []struct {
		name   string
		req    Request
		want   Status
		reason string
	}{
		{"target reject", Request{Kind: KindTarget, From: StatusPendingReview, Action: ActionReject, Actor: approver, Reason: " too low "}, StatusRejected, "too low"},
		{"target revision", Request{Kind: KindTarget, From: StatusPendingReview, Action: ActionRequestRevision, Actor: approver, Reason: "split by quarter"}, StatusRevised, "split by quarter"},
		{"target resubmit after revision", Request{Kind: KindTarget, From: StatusRevised, Action: ActionSubmit, Actor: operator}, StatusPendingReview, ""},
		{"target resubmit after reject", Request{Kind: KindTarget, From: StatusRejected, Action: ActionSubmit, Actor: admin}, StatusPendingReview, ""},
		{"data submit", Request{Kind: KindPerformanceData, From: StatusDraft, Action: ActionSubmit, Actor: operator}, StatusSubmitted, ""},
		{"data validate", Request{Kind: KindPerformanceData, From: StatusSubmitted, Action: ActionValidate, Actor: approver}, StatusValidated, ""},
		{"data reject", Request{Kind: KindPerformanceData, From: StatusSubmitted, Action: ActionReject, Actor: admin, Reason: "wrong unit"}, StatusRejected, "wrong unit"},
		{"assessment revision", Request{Kind: KindAssessment, From: StatusPendingReview, Action: ActionRequestRevision, Actor: approver, Reason: "add evidence"}, StatusNeedsRevision, "add evidence"},
		{"assessment resubmit", Request{Kind: KindAssessment, From: StatusNeedsRevision, Action: ActionSubmit, Actor: operator}, StatusPendingReview, ""},
		{"report submit", Request{Kind: KindReport, From: StatusDraft, Action: ActionSubmit, Actor: operator}, StatusPendingApproval, ""},
		{"report approve", Request{Kind: KindReport, From: StatusPendingApproval, Action: ActionApprove, Actor: approver}, StatusApproved, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := m.Apply(tt.req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out.NewStatus)
			assert.Equal(t, tt.reason, out.Reason)
		})
	}
}

func TestApply_ApproveApprovedIsIllegal(t *testing.T) {
	m := NewMachine(nil)
	for _, kind := range []Kind{KindTarget, KindAssessment, KindReport} {
		out, err := m.Apply(Request{Kind: kind, From: StatusApproved, Action: ActionApprove, Actor: admin})
		require.Error(t, err, string(kind))
		assert.ErrorIs(t, err, ErrIllegalTransition)
		assert.Equal(t, Outcome{}, out)

		var te *TransitionError
		require.True(t, errors.As(err, &te))
		assert.Equal(t, StatusApproved, te.From)
		assert.Contains(t, err.Error(), "cannot approve")
	}
}

func TestApply_IllegalTransitions(t *testing.T) {
	m := NewMachine(nil)

	tests := []struct {
		name string
		req  Request
	}{
		{"approve draft", Request{Kind: KindTarget, From: StatusDraft, Action: ActionApprove, Actor: admin}},
		{"submit pending", Request{Kind: KindTarget, From: StatusPendingReview, Action: ActionSubmit, Actor: admin}},
		{"validate draft data", Request{Kind: KindPerformanceData, From: StatusDraft, Action: ActionValidate, Actor: admin}},
		{"approve data", Request{Kind: KindPerformanceData, From: StatusSubmitted, Action: ActionApprove, Actor: admin}},
		{"revise report", Request{Kind: KindReport, From: StatusPendingApproval, Action: ActionRequestRevision, Actor: admin, Reason: "x"}},
		{"reject without reason", Request{Kind: KindTarget, From: StatusPendingReview, Action: ActionReject, Actor: admin, Reason: "   "}},
		{"revision without notes", Request{Kind: KindAssessment, From: StatusPendingReview, Action: ActionRequestRevision, Actor: admin}},
		{"unknown status", Request{Kind: KindTarget, From: StatusValidated, Action: ActionSubmit, Actor: admin}},
		{"unknown kind", Request{Kind: "program", From: StatusDraft, Action: ActionSubmit, Actor: admin}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Apply(tt.req)
			assert.ErrorIs(t, err, ErrIllegalTransition)
			assert.NotErrorIs(t, err, ErrForbidden)
		})
	}
}

func TestApply_Forbidden(t *testing.T) {
	m := NewMachine(nil)

	tests := []struct {
		name string
		req  Request
	}{
		{"operator approves", Request{Kind: KindTarget, From: StatusPendingReview, Action: ActionApprove, Actor: operator}},
		{"operator validates", Request{Kind: KindPerformanceData, From: StatusSubmitted, Action: ActionValidate, Actor: operator}},
		{"approver submits", Request{Kind: KindPerformanceData, From: StatusDraft, Action: ActionSubmit, Actor: approver}},
		{"viewer rejects", Request{Kind: KindReport, From: StatusPendingApproval, Action: ActionReject, Actor: viewer, Reason: "no"}},
		{"viewer edits", Request{Kind: KindTarget, From: StatusDraft, Action: ActionEdit, Actor: viewer}},
		{"viewer deletes", Request{Kind: KindTarget, From: StatusDraft, Action: ActionDelete, Actor: viewer}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Apply(tt.req)
			assert.ErrorIs(t, err, ErrForbidden)
		})
	}
}

func TestApply_StateCheckedBeforePermission(t *testing.T) {
	m := NewMachine(nil)
	_, err := m.Apply(Request{Kind: KindTarget, From: StatusApproved, Action: ActionApprove, Actor: viewer})
	assert.ErrorIs(t, err, ErrIllegalTransition)
}

func TestApply_CustomAuthorizer(t *testing.T) {
	onlyUser9 := AuthorizerFunc(func(a Actor, _ Action, _ Kind) bool { return a.ID == 9 })
	m := NewMachine(onlyUser9)

	_, err := m.Apply(Request{Kind: KindReport, From: StatusPendingApproval, Action: ActionApprove, Actor: admin})
	assert.ErrorIs(t, err, ErrForbidden)

	out, err := m.Apply(Request{Kind: KindReport, From: StatusPendingApproval, Action: ActionApprove, Actor: Actor{ID: 9, Role: RoleViewer}})
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, out.NewStatus)
}

func TestEdit(t *testing.T) {
	m := NewMachine(nil)

	tests := []struct {
		kind    Kind
		from    Status
		want    Status
		demoted bool
	}{
		{KindTarget, StatusApproved, StatusDraft, true},
		{KindTarget, StatusDraft, StatusDraft, false},
		{KindTarget, StatusRevised, StatusRevised, false},
		{KindPerformanceData, StatusValidated, StatusDraft, true},
		{KindPerformanceData, StatusRejected, StatusRejected, false},
		{KindAssessment, StatusApproved, StatusDraft, true},
		{KindAssessment, StatusNeedsRevision, StatusNeedsRevision, false},
		{KindReport, StatusApproved, StatusDraft, true},
	}

	for _, tt := range tests {
		out, err := m.Edit(tt.kind, tt.from)
		require.NoError(t, err)
		assert.Equal(t, tt.want, out.NewStatus, "%s/%s", tt.kind, tt.from)
		assert.Equal(t, tt.demoted, out.Demoted, "%s/%s", tt.kind, tt.from)
		if tt.demoted {
			assert.NotEmpty(t, out.SideEffect)
		} else {
			assert.Empty(t, out.SideEffect)
		}
	}
}

func TestEdit_UnderReview(t *testing.T) {
	m := NewMachine(nil)
	for kind, status := range map[Kind]Status{
		KindTarget:          StatusPendingReview,
		KindPerformanceData: StatusSubmitted,
		KindAssessment:      StatusPendingReview,
		KindReport:          StatusPendingApproval,
	} {
		_, err := m.Edit(kind, status)
		assert.ErrorIs(t, err, ErrIllegalTransition, string(kind))
	}
}

func TestApply_EditThroughApply(t *testing.T) {
	m := NewMachine(nil)
	out, err := m.Apply(Request{Kind: KindTarget, From: StatusApproved, Action: ActionEdit, Actor: operator})
	require.NoError(t, err)
	assert.True(t, out.Demoted)
	assert.Equal(t, StatusDraft, out.NewStatus)
}

func TestCanDelete(t *testing.T) {
	m := NewMachine(nil)

	for _, kind := range []Kind{KindTarget, KindPerformanceData, KindAssessment, KindReport} {
		for _, st := range States(kind) {
			err := m.CanDelete(kind, st)
			if st == StatusDraft || st == StatusRejected {
				assert.NoError(t, err, "%s/%s", kind, st)
			} else {
				assert.ErrorIs(t, err, ErrIllegalTransition, "%s/%s", kind, st)
			}
		}
	}
}

func TestApply_Delete(t *testing.T) {
	m := NewMachine(nil)

	out, err := m.Apply(Request{Kind: KindReport, From: StatusRejected, Action: ActionDelete, Actor: operator})
	require.NoError(t, err)
	assert.True(t, out.Deleted)

	_, err = m.Apply(Request{Kind: KindReport, From: StatusApproved, Action: ActionDelete, Actor: admin})
	assert.ErrorIs(t, err, ErrIllegalTransition)
}

func TestValidStatus(t *testing.T) {
	assert.True(t, ValidStatus(KindTarget, StatusRevised))
	assert.False(t, ValidStatus(KindTarget, StatusNeedsRevision))
	assert.True(t, ValidStatus(KindAssessment, StatusNeedsRevision))
	assert.False(t, ValidStatus(KindReport, StatusPendingReview))
}
