package orchestrator

import (
	"context"

	"github.com/looplab/fsm"

	fsmutil "github.com/autopeer-io/platformctl/internal/pkg/util/fsm"
	"github.com/autopeer-io/platformctl/internal/platform"
)

// Setup phases. The transition table is the ordering invariant: background
// work cannot start until the critical tier is done, and settling cannot
// start before background work has been kicked off.
const (
	StateIdle       = "idle"
	StateCritical   = "critical"
	StateBackground = "background"
	StateSettled    = "settled"

	eventCritical   = "event_critical"
	eventBackground = "event_background"
	eventSettle     = "event_settle"
)

// phaseMachine drives one setup run through its phases, invoking the
// platform from state-entry callbacks.
type phaseMachine struct {
	*fsm.FSM

	platform platform.Platform
}

func newPhaseMachine(p platform.Platform) *phaseMachine {
	m := &phaseMachine{platform: p}

	events := fsm.Events{
		{Name: eventCritical, Src: []string{StateIdle}, Dst: StateCritical},
		{Name: eventBackground, Src: []string{StateCritical}, Dst: StateBackground},
		{Name: eventSettle, Src: []string{StateBackground}, Dst: StateSettled},
	}

	callbacks := fsm.Callbacks{
		"enter_" + StateCritical:   fsmutil.WrapEvent(m.enterCritical),
		"enter_" + StateBackground: fsmutil.WrapEvent(m.enterBackground),
		"enter_" + StateSettled:    fsmutil.WrapEvent(m.enterSettled),
	}

	m.FSM = fsm.NewFSM(StateIdle, events, callbacks)
	return m
}

func (m *phaseMachine) enterCritical(ctx context.Context, _ *fsm.Event) error {
	return m.platform.Setup(ctx, platform.PriorityDefault)
}

func (m *phaseMachine) enterBackground(ctx context.Context, _ *fsm.Event) error {
	return m.platform.Setup(ctx, platform.PriorityBackground)
}

func (m *phaseMachine) enterSettled(ctx context.Context, _ *fsm.Event) error {
	return m.platform.WaitReady(ctx)
}
