package trade

import (
	"context"
	"errors"
	"fmt"

	"github.com/qmuntal/stateless"
)

var ErrInvalidTransition = errors.New("invalid trade status transition")

// Action is a lifecycle trigger.
type Action string

const (
	ActionAccept  Action = "accept"
	ActionCancel  Action = "cancel"
	ActionDecline Action = "decline"
	ActionExpire  Action = "expire"
)

var actionTargets = map[Action]Status{
	ActionAccept:  StatusAccepted,
	ActionCancel:  StatusCancelled,
	ActionDecline: StatusDeclined,
	ActionExpire:  StatusExpired,
}

// Lifecycle guards status transitions: Pending moves to exactly one terminal
// state and terminal states never move again.
type Lifecycle struct {
	status Status
	fsm    *stateless.StateMachine
}

func NewLifecycle(status Status) *Lifecycle {
	l := &Lifecycle{status: status}
	l.fsm = stateless.NewStateMachineWithExternalStorage(func(_ context.Context) (stateless.State, error) {
		return l.status, nil
	}, func(_ context.Context, s stateless.State) error {
		l.status = s.(Status)
		return nil
	}, stateless.FiringImmediate)

	pending := l.fsm.Configure(StatusPending)
	for action, target := range actionTargets {
		pending.Permit(action, target)
	}
	for _, terminal := range []Status{StatusAccepted, StatusCancelled, StatusExpired, StatusDeclined} {
		l.fsm.Configure(terminal)
	}
	return l
}

func (l *Lifecycle) Status() Status {
	return l.status
}

func (l *Lifecycle) Can(action Action) bool {
	ok, err := l.fsm.CanFire(action)
	return err == nil && ok
}

func (l *Lifecycle) Apply(action Action) (Status, error) {
	if _, known := actionTargets[action]; !known || !l.Can(action) {
		return l.status, fmt.Errorf("%w: cannot %s a %s trade", ErrInvalidTransition, action, l.status)
	}
	if err := l.fsm.Fire(action); err != nil {
		return l.status, fmt.Errorf("%w: %v", ErrInvalidTransition, err)
	}
	return l.status, nil
}

// ActionFor maps a terminal status back to the action that produces it.
func ActionFor(target Status) (Action, bool) {
	for action, status := range actionTargets {
		if status == target {
			return action, true
		}
	}
	return "", false
}
