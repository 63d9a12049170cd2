package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoleAuthorizer(t *testing.T) {
	auth := RoleAuthorizer{}

	tests := []struct {
		role   string
		action Action
		want   bool
	}{
		{RoleAdmin, ActionApprove, true},
		{RoleAdmin, ActionSubmit, true},
		{RoleApprover, ActionValidate, true},
		{RoleApprover, ActionRequestRevision, true},
		{RoleApprover, ActionSubmit, false},
		{RoleOperator, ActionSubmit, true},
		{RoleOperator, ActionDelete, true},
		{RoleOperator, ActionApprove, false},
		{RoleViewer, ActionEdit, false},
		{RoleViewer, ActionApprove, false},
		{"", ActionSubmit, false},
		{RoleAdmin, Action("archive"), false},
	}

	for _, tt := range tests {
		got := auth.Allowed(Actor{Role: tt.role}, tt.action, KindTarget)
		assert.Equal(t, tt.want, got, "%s %s", tt.role, tt.action)
	}
}

func TestValidRole(t *testing.T) {
	assert.True(t, ValidRole(RoleOperator))
	assert.False(t, ValidRole("developer"))
}
