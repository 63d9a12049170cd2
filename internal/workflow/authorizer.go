package workflow

const (
	RoleAdmin    = "admin"
	RoleApprover = "approver"
	RoleOperator = "operator"
	RoleViewer   = "viewer"
)

// Roles lists every assignable role.
var Roles = []string{RoleAdmin, RoleApprover, RoleOperator, RoleViewer}

func ValidRole(role string) bool {
	for _, r := range Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Authorizer decides whether an actor may perform an action on a kind.
type Authorizer interface {
	Allowed(actor Actor, action Action, kind Kind) bool
}

// AuthorizerFunc adapts a function to Authorizer.
type AuthorizerFunc func(actor Actor, action Action, kind Kind) bool

func (f AuthorizerFunc) Allowed(actor Actor, action Action, kind Kind) bool {
	return f(actor, action, kind)
}

// RoleAuthorizer grants review actions to admins and approvers and data
// entry actions to admins and operators. Viewers can do nothing.
type RoleAuthorizer struct{}

func (RoleAuthorizer) Allowed(actor Actor, action Action, _ Kind) bool {
	switch action {
	case ActionApprove, ActionValidate, ActionReject, ActionRequestRevision:
		return actor.Role == RoleAdmin || actor.Role == RoleApprover
	case ActionSubmit, ActionEdit, ActionDelete:
		return actor.Role == RoleAdmin || actor.Role == RoleOperator
	}
	return false
}
