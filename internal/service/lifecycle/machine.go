// Package lifecycle is the single authority on application state transitions and on
// which operations each state permits.
package lifecycle

import (
	"errors"
	"fmt"
	"time"

	"github.com/mamadbah2/orchard/internal/domain/models"
)

// Event triggers a transition.
type Event string

const (
	EventStart   Event = "start"
	EventClose   Event = "close"
	EventApprove Event = "approve"
)

// Operation is a mutation gated by state.
type Operation string

const (
	OpEditMixtures   Operation = "edit_mixtures"
	OpRecordMovement Operation = "record_movement"
	OpDeleteMovement Operation = "delete_movement"
	OpRenderReport   Operation = "render_report"
)

var (
	// ErrInvalidTransition is returned for any (state, event) pair not in the table.
	ErrInvalidTransition = errors.New("lifecycle: transition not allowed")
	// ErrOperationNotAllowed is returned when the state forbids an operation.
	ErrOperationNotAllowed = errors.New("lifecycle: operation not allowed in current state")
	// ErrStartDateMissing is returned when execution starts without a date.
	ErrStartDateMissing = errors.New("lifecycle: start date required")
	// ErrStartDateInFuture is returned when the start date is after today.
	ErrStartDateInFuture = errors.New("lifecycle: start date cannot be in the future")
	// ErrStockNotAcknowledged is the soft gate raised when stock is short and the caller
	// has not confirmed to proceed.
	ErrStockNotAcknowledged = errors.New("lifecycle: insufficient stock must be acknowledged")
	// ErrNoMovements is returned when closing without recorded movements.
	ErrNoMovements = errors.New("lifecycle: at least one movement is required to close")
	// ErrNoLabor is returned when closing without labor-days or with a negative activity.
	ErrNoLabor = errors.New("lifecycle: labor-day allocation required to close")
	// ErrApproverMissing is returned when approving without naming the manager.
	ErrApproverMissing = errors.New("lifecycle: approver required")
)

// Facts are the values guards evaluate.
type Facts struct {
	Now               time.Time
	StartDate         *time.Time
	Shortfalls        int
	StockAcknowledged bool
	Movements         int
	Labor             models.LaborAllocation
	RequiresApproval  bool
	Approver          string
}

// Guard rejects a transition when its precondition does not hold.
type Guard func(Facts) error

type transition struct {
	from   models.Estado
	event  Event
	guards []Guard
	target func(Facts) models.Estado
}

func to(state models.Estado) func(Facts) models.Estado {
	return func(Facts) models.Estado { return state }
}

// Machine holds the transition and permission tables.
type Machine struct {
	transitions []transition
	permissions map[Operation][]models.Estado
}

// New builds the application state machine.
func New() *Machine {
	return &Machine{
		transitions: []transition{
			{
				from:   models.EstadoCalculada,
				event:  EventStart,
				guards: []Guard{startDateNotFuture, stockAcknowledged},
				target: to(models.EstadoEnEjecucion),
			},
			{
				from:   models.EstadoEnEjecucion,
				event:  EventClose,
				guards: []Guard{hasMovements, hasLabor},
				target: func(f Facts) models.Estado {
					if f.RequiresApproval {
						return models.EstadoPendienteAprobacion
					}
					return models.EstadoCerrada
				},
			},
			{
				from:   models.EstadoPendienteAprobacion,
				event:  EventApprove,
				guards: []Guard{hasApprover},
				target: to(models.EstadoCerrada),
			},
		},
		permissions: map[Operation][]models.Estado{
			OpEditMixtures:   {models.EstadoCalculada},
			OpRecordMovement: {models.EstadoEnEjecucion},
			OpDeleteMovement: {models.EstadoEnEjecucion},
			OpRenderReport:   {models.EstadoPendienteAprobacion, models.EstadoCerrada},
		},
	}
}

// Initial is the state assigned once a valid plan is created.
func (m *Machine) Initial() models.Estado {
	return models.EstadoCalculada
}

// Permits reports whether the table has an entry for the pair, ignoring guards.
func (m *Machine) Permits(from models.Estado, event Event) bool {
	_, ok := m.find(from, event)
	return ok
}

// Check evaluates the guards of a transition without computing its target.
func (m *Machine) Check(from models.Estado, event Event, facts Facts) error {
	t, ok := m.find(from, event)
	if !ok {
		return fmt.Errorf("%w: %s from %q", ErrInvalidTransition, event, from)
	}
	for _, guard := range t.guards {
		if err := guard(facts); err != nil {
			return err
		}
	}
	return nil
}

// Fire checks the guards and returns the resulting state.
func (m *Machine) Fire(from models.Estado, event Event, facts Facts) (models.Estado, error) {
	if err := m.Check(from, event, facts); err != nil {
		return from, err
	}
	t, _ := m.find(from, event)
	return t.target(facts), nil
}

// Allows reports whether the operation is permitted in the given state.
func (m *Machine) Allows(state models.Estado, op Operation) error {
	for _, s := range m.permissions[op] {
		if s == state {
			return nil
		}
	}
	return fmt.Errorf("%w: %s while %q", ErrOperationNotAllowed, op, state)
}

func (m *Machine) find(from models.Estado, event Event) (transition, bool) {
	for _, t := range m.transitions {
		if t.from == from && t.event == event {
			return t, true
		}
	}
	return transition{}, false
}

func startDateNotFuture(f Facts) error {
	if f.StartDate == nil || f.StartDate.IsZero() {
		return ErrStartDateMissing
	}
	now := f.Now
	start := f.StartDate.In(now.Location())
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	startDay := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, now.Location())
	if startDay.After(today) {
		return ErrStartDateInFuture
	}
	return nil
}

func stockAcknowledged(f Facts) error {
	if f.Shortfalls > 0 && !f.StockAcknowledged {
		return ErrStockNotAcknowledged
	}
	return nil
}

func hasMovements(f Facts) error {
	if f.Movements == 0 {
		return ErrNoMovements
	}
	return nil
}

func hasLabor(f Facts) error {
	if f.Labor.HasNegative() || f.Labor.Total() <= 0 {
		return ErrNoLabor
	}
	return nil
}

func hasApprover(f Facts) error {
	if f.Approver == "" {
		return ErrApproverMissing
	}
	return nil
}
