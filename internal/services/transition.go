package services

import (
	"fmt"
	"time"

	"github.com/kwanter/sakip-sub003/internal/workflow"
	"gorm.io/gorm"
)

// ActionRequest carries the free-text input of a workflow action.
type ActionRequest struct {
	Reason string `json:"reason"`
}

// transition is the persistence half of a workflow action: the machine
// decides, this writes the new status under an optimistic status check and
// records the audit row in the same transaction.
type transition struct {
	kind   workflow.Kind
	module string
	table  interface{}
	id     uint
	from   workflow.Status
	action workflow.Action
	reason string
	// columns returns the extra columns written with the new status.
	columns func(out workflow.Outcome, now time.Time) map[string]interface{}
}

type transitioner struct {
	machine *workflow.Machine
	audit   *SystemLogService
}

func (t transitioner) run(tx *gorm.DB, p Principal, tr transition) (workflow.Outcome, error) {
	out, err := t.machine.Apply(workflow.Request{
		Kind:   tr.kind,
		From:   tr.from,
		Action: tr.action,
		Actor:  p.Actor(),
		Reason: tr.reason,
	})
	if err != nil {
		return out, err
	}

	now := time.Now()
	updates := map[string]interface{}{"status": out.NewStatus}
	if tr.columns != nil {
		for k, v := range tr.columns(out, now) {
			updates[k] = v
		}
	}

	if err := guardedUpdate(tx, tr.table, tr.id, tr.from, updates); err != nil {
		return out, err
	}

	msg := fmt.Sprintf("%s %d: %s -> %s", tr.kind, tr.id, out.From, out.NewStatus)
	if out.Reason != "" {
		msg += " (" + out.Reason + ")"
	}
	err = t.audit.Record(tx, AuditEntry{
		Actor:      p,
		Module:     tr.module,
		Action:     string(tr.action),
		Message:    msg,
		EntityType: string(tr.kind),
		EntityID:   tr.id,
		Old:        map[string]interface{}{"status": out.From},
		New:        updates,
	})
	return out, err
}

// guardedUpdate applies updates only while the row still has status from.
func guardedUpdate(tx *gorm.DB, table interface{}, id uint, from workflow.Status, updates map[string]interface{}) error {
	res := tx.Model(table).Where("id = ? AND status = ?", id, from).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrConcurrentUpdate
	}
	return nil
}

// guardedDelete removes the row only while it still has status from.
func guardedDelete(tx *gorm.DB, table interface{}, id uint, from workflow.Status) error {
	res := tx.Where("id = ? AND status = ?", id, from).Delete(table)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrConcurrentUpdate
	}
	return nil
}

func committed(out workflow.Outcome) {
	WorkflowTransitions.WithLabelValues(string(out.Kind), string(out.Action)).Inc()
}

func userRef(p Principal) *uint {
	return p.userID()
}
