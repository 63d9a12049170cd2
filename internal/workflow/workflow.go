package workflow

import (
	"fmt"
	"strings"
)

// Kind names an entity routed through approval.
type Kind string

const (
	KindTarget          Kind = "target"
	KindPerformanceData Kind = "performance_data"
	KindAssessment      Kind = "assessment"
	KindReport          Kind = "report"
)

type Status string

const (
	StatusDraft           Status = "draft"
	StatusPendingReview   Status = "pending_review"
	StatusPendingApproval Status = "pending_approval"
	StatusSubmitted       Status = "submitted"
	StatusApproved        Status = "approved"
	StatusValidated       Status = "validated"
	StatusRejected        Status = "rejected"
	StatusRevised         Status = "revised"
	StatusNeedsRevision   Status = "needs_revision"
)

type Action string

const (
	ActionSubmit          Action = "submit"
	ActionApprove         Action = "approve"
	ActionValidate        Action = "validate"
	ActionReject          Action = "reject"
	ActionRequestRevision Action = "request_revision"
	ActionEdit            Action = "edit"
	ActionDelete          Action = "delete"
)

// Actor is whoever asks for a transition.
type Actor struct {
	ID   uint
	Role string
}

type Request struct {
	Kind   Kind
	From   Status
	Action Action
	Actor  Actor
	Reason string // rejection reason or revision notes
}

// Outcome is the result of a legal request. The machine never mutates
// state; callers persist NewStatus.
type Outcome struct {
	Kind       Kind
	Action     Action
	From       Status
	NewStatus  Status
	Reason     string
	SideEffect string
	Demoted    bool
	Deleted    bool
}

type rule struct {
	from        []Status
	to          Status
	needsReason string // guard message when the reason is blank
}

func (r rule) allows(s Status) bool {
	for _, f := range r.from {
		if f == s {
			return true
		}
	}
	return false
}

var transitions = map[Kind]map[Action]rule{
	KindTarget: {
		ActionSubmit:          {from: []Status{StatusDraft, StatusRejected, StatusRevised}, to: StatusPendingReview},
		ActionApprove:         {from: []Status{StatusPendingReview}, to: StatusApproved},
		ActionReject:          {from: []Status{StatusPendingReview}, to: StatusRejected, needsReason: "rejection reason is required"},
		ActionRequestRevision: {from: []Status{StatusPendingReview}, to: StatusRevised, needsReason: "revision notes are required"},
	},
	KindPerformanceData: {
		ActionSubmit:   {from: []Status{StatusDraft, StatusRejected}, to: StatusSubmitted},
		ActionValidate: {from: []Status{StatusSubmitted}, to: StatusValidated},
		ActionReject:   {from: []Status{StatusSubmitted}, to: StatusRejected, needsReason: "rejection reason is required"},
	},
	KindAssessment: {
		ActionSubmit:          {from: []Status{StatusDraft, StatusRejected, StatusNeedsRevision}, to: StatusPendingReview},
		ActionApprove:         {from: []Status{StatusPendingReview}, to: StatusApproved},
		ActionReject:          {from: []Status{StatusPendingReview}, to: StatusRejected, needsReason: "rejection reason is required"},
		ActionRequestRevision: {from: []Status{StatusPendingReview}, to: StatusNeedsRevision, needsReason: "revision notes are required"},
	},
	KindReport: {
		ActionSubmit:  {from: []Status{StatusDraft, StatusRejected}, to: StatusPendingApproval},
		ActionApprove: {from: []Status{StatusPendingApproval}, to: StatusApproved},
		ActionReject:  {from: []Status{StatusPendingApproval}, to: StatusRejected, needsReason: "rejection reason is required"},
	},
}

var states = map[Kind][]Status{
	KindTarget:          {StatusDraft, StatusPendingReview, StatusApproved, StatusRejected, StatusRevised},
	KindPerformanceData: {StatusDraft, StatusSubmitted, StatusValidated, StatusRejected},
	KindAssessment:      {StatusDraft, StatusPendingReview, StatusApproved, StatusRejected, StatusNeedsRevision},
	KindReport:          {StatusDraft, StatusPendingApproval, StatusApproved, StatusRejected},
}

// States lists the statuses an entity kind can be in.
func States(kind Kind) []Status {
	return states[kind]
}

func ValidStatus(kind Kind, s Status) bool {
	for _, st := range states[kind] {
		if st == s {
			return true
		}
	}
	return false
}

// terminalSuccess is the status an edit demotes back to draft.
func terminalSuccess(kind Kind) Status {
	if kind == KindPerformanceData {
		return StatusValidated
	}
	return StatusApproved
}

// underReview reports whether the entity is waiting on a reviewer.
func underReview(kind Kind, s Status) bool {
	switch kind {
	case KindPerformanceData:
		return s == StatusSubmitted
	case KindReport:
		return s == StatusPendingApproval
	default:
		return s == StatusPendingReview
	}
}

type Machine struct {
	auth Authorizer
}

// NewMachine builds a machine that consults auth for every action.
// A nil Authorizer falls back to RoleAuthorizer.
func NewMachine(auth Authorizer) *Machine {
	if auth == nil {
		auth = RoleAuthorizer{}
	}
	return &Machine{auth: auth}
}

// Apply checks the request against the transition table, the authorizer
// and the reason guard, in that order.
func (m *Machine) Apply(req Request) (Outcome, error) {
	if !ValidStatus(req.Kind, req.From) {
		return Outcome{}, illegal(req, fmt.Sprintf("unknown status %q", req.From))
	}

	var out Outcome
	switch req.Action {
	case ActionEdit:
		o, err := m.edit(req)
		if err != nil {
			return Outcome{}, err
		}
		out = o
	case ActionDelete:
		if err := m.CanDelete(req.Kind, req.From); err != nil {
			return Outcome{}, err
		}
		out = Outcome{Kind: req.Kind, Action: req.Action, From: req.From, NewStatus: req.From, Deleted: true}
	default:
		r, ok := transitions[req.Kind][req.Action]
		if !ok {
			return Outcome{}, illegal(req, "action not supported")
		}
		if !r.allows(req.From) {
			return Outcome{}, illegal(req, "")
		}
		if !m.auth.Allowed(req.Actor, req.Action, req.Kind) {
			return Outcome{}, forbidden(req)
		}
		if r.needsReason != "" && strings.TrimSpace(req.Reason) == "" {
			return Outcome{}, illegal(req, r.needsReason)
		}
		return Outcome{
			Kind:      req.Kind,
			Action:    req.Action,
			From:      req.From,
			NewStatus: r.to,
			Reason:    strings.TrimSpace(req.Reason),
		}, nil
	}

	if !m.auth.Allowed(req.Actor, req.Action, req.Kind) {
		return Outcome{}, forbidden(req)
	}
	return out, nil
}

// Edit reports what editing an entity in status from does to its status.
// Approved (or validated) entities are demoted to draft; entities under
// review cannot be edited.
func (m *Machine) Edit(kind Kind, from Status) (Outcome, error) {
	return m.edit(Request{Kind: kind, From: from, Action: ActionEdit})
}

func (m *Machine) edit(req Request) (Outcome, error) {
	if underReview(req.Kind, req.From) {
		return Outcome{}, illegal(req, "entity is under review")
	}
	out := Outcome{Kind: req.Kind, Action: ActionEdit, From: req.From, NewStatus: req.From}
	if req.From == terminalSuccess(req.Kind) {
		out.NewStatus = StatusDraft
		out.Demoted = true
		out.SideEffect = fmt.Sprintf("%s %s demoted to %s after edit", req.From, req.Kind, StatusDraft)
	}
	return out, nil
}

// CanDelete allows deletion only from draft or rejected.
func (m *Machine) CanDelete(kind Kind, status Status) error {
	if status == StatusDraft || status == StatusRejected {
		return nil
	}
	return illegal(Request{Kind: kind, From: status, Action: ActionDelete}, "only draft or rejected entities can be deleted")
}
