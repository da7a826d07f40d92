package fsm

import (
	"context"
	"errors"

	loopfsm "github.com/looplab/fsm"

	"github.com/neomorfeo/controlplane/internal/domain"
)

// Compile-time check: Validator implements domain.TransitionValidator.
var _ domain.TransitionValidator = (*Validator)(nil)

// buildEvents converts a workflow into looplab/fsm EventDesc format. Each
// destination status becomes one event whose sources are every state with an
// edge into it (e.g. ORDER "failed" is reachable from pending, paid and
// provisioned).
func buildEvents(wf domain.Workflow) []loopfsm.EventDesc {
	grouped := make(map[domain.Status][]string)
	order := make([]domain.Status, 0)

	for _, t := range wf.Transitions {
		if _, exists := grouped[t.Dst]; !exists {
			order = append(order, t.Dst)
		}
		grouped[t.Dst] = append(grouped[t.Dst], string(t.Src))
	}

	out := make([]loopfsm.EventDesc, 0, len(order))
	for _, dst := range order {
		out = append(out, loopfsm.EventDesc{
			Name: string(dst),
			Src:  grouped[dst],
			Dst:  string(dst),
		})
	}
	return out
}

// Validator implements domain.TransitionValidator using looplab/fsm.
// It creates a short-lived FSM instance per Validate call, initialized with
// the entity's current status, because looplab/fsm tracks the current state
// internally.
type Validator struct {
	events map[domain.Kind][]loopfsm.EventDesc
}

// New creates a validator for the given workflows. With no arguments it uses
// domain.Workflows.
func New(workflows ...map[domain.Kind]domain.Workflow) *Validator {
	tables := domain.Workflows
	if len(workflows) > 0 {
		tables = workflows[0]
	}
	events := make(map[domain.Kind][]loopfsm.EventDesc, len(tables))
	for kind, wf := range tables {
		events[kind] = buildEvents(wf)
	}
	return &Validator{events: events}
}

// Validate returns nil when from→to is a declared edge of kind. It returns a
// *domain.UnknownKindError when the kind has no table and a
// *domain.TransitionError for any other rejected move.
func (v *Validator) Validate(ctx context.Context, kind domain.Kind, from, to domain.Status) error {
	events, ok := v.events[kind]
	if !ok {
		return &domain.UnknownKindError{Kind: kind}
	}

	machine := loopfsm.NewFSM(string(from), events, nil)

	if err := machine.Event(ctx, string(to)); err != nil {
		var invalidEvent loopfsm.InvalidEventError
		var unknownEvent loopfsm.UnknownEventError
		var noTransition loopfsm.NoTransitionError
		if errors.As(err, &invalidEvent) || errors.As(err, &unknownEvent) || errors.As(err, &noTransition) {
			return &domain.TransitionError{Kind: kind, From: from, To: to}
		}
		return err
	}

	return nil
}
