// Package stealth models the hiding mechanic as an explicit state machine.
//
// A character is Visible by default. Hide puts it into Hidden for a number of
// turns; attacking or being revealed moves it to Exposed, which blocks hiding
// again until the owner's next turn starts.
package stealth

import (
	"errors"
	"fmt"
	"sync"
)

// State is a stealth state.
type State int8

const (
	Visible State = iota
	Hidden
	Exposed
)

// String returns human-readable state name
func (s State) String() string {
	switch s {
	case Visible:
		return "VISIBLE"
	case Hidden:
		return "HIDDEN"
	case Exposed:
		return "EXPOSED"
	default:
		return "UNKNOWN"
	}
}

// Event triggers stealth transitions.
type Event int8

const (
	EventHide Event = iota
	EventAttack
	EventReveal
	EventTurnEnd
	EventTurnStart
	EventDeath
)

// String returns human-readable event name
func (e Event) String() string {
	switch e {
	case EventHide:
		return "HIDE"
	case EventAttack:
		return "ATTACK"
	case EventReveal:
		return "REVEAL"
	case EventTurnEnd:
		return "TURN_END"
	case EventTurnStart:
		return "TURN_START"
	case EventDeath:
		return "DEATH"
	default:
		return "UNKNOWN"
	}
}

// ErrInvalidTransition is returned when an event is not allowed in the current state.
var ErrInvalidTransition = errors.New("invalid stealth transition")

// Options tune how a hide behaves.
type Options struct {
	Turns        int  // duration in owner turns (minimum 1)
	KeepOnAttack bool // talent: attacking does not break stealth
}

type transitionKey struct {
	from  State
	event Event
}

// transitions is the static table. The resolve func may pick between targets
// based on machine data (countdown, options).
var transitions = map[transitionKey]func(m *Machine) State{
	{Visible, EventHide}: func(*Machine) State { return Hidden },
	{Hidden, EventHide}:  func(*Machine) State { return Hidden },
	{Hidden, EventAttack}: func(m *Machine) State {
		if m.opts.KeepOnAttack {
			return Hidden
		}
		return Exposed
	},
	{Hidden, EventReveal}: func(*Machine) State { return Exposed },
	{Hidden, EventTurnEnd}: func(m *Machine) State {
		if m.turnsLeft <= 1 {
			return Visible
		}
		return Hidden
	},
	{Exposed, EventTurnStart}: func(*Machine) State { return Visible },
	{Visible, EventDeath}:     func(*Machine) State { return Visible },
	{Hidden, EventDeath}:      func(*Machine) State { return Visible },
	{Exposed, EventDeath}:     func(*Machine) State { return Visible },
}

// Machine is a per-character stealth state machine. Thread-safe.
type Machine struct {
	mu        sync.Mutex
	state     State
	turnsLeft int
	opts      Options

	onEnter map[State][]func(from State)
	onExit  map[State][]func(to State)
}

// NewMachine creates a machine in the Visible state.
func NewMachine() *Machine {
	return &Machine{
		state:   Visible,
		onEnter: make(map[State][]func(State)),
		onExit:  make(map[State][]func(State)),
	}
}

// OnEnter registers a callback run after entering state s from a different state.
func (m *Machine) OnEnter(s State, fn func(from State)) *Machine {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onEnter[s] = append(m.onEnter[s], fn)
	return m
}

// OnExit registers a callback run before leaving state s for a different state.
func (m *Machine) OnExit(s State, fn func(to State)) *Machine {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onExit[s] = append(m.onExit[s], fn)
	return m
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// TurnsLeft returns remaining hidden turns (0 when not hidden).
func (m *Machine) TurnsLeft() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != Hidden {
		return 0
	}
	return m.turnsLeft
}

// Hide fires EventHide with options. Hiding while Hidden refreshes the duration.
func (m *Machine) Hide(opts Options) (State, error) {
	if opts.Turns < 1 {
		opts.Turns = 1
	}
	return m.fire(EventHide, &opts)
}

// Fire applies an event and returns the resulting state.
// Events with no entry in the table for the current state return
// ErrInvalidTransition except TurnEnd/TurnStart, which are no-ops when they
// don't apply so the battle loop can fire them unconditionally.
func (m *Machine) Fire(ev Event) (State, error) {
	if ev == EventHide {
		return m.Hide(Options{Turns: 1})
	}
	return m.fire(ev, nil)
}

func (m *Machine) fire(ev Event, opts *Options) (State, error) {
	m.mu.Lock()

	from := m.state
	resolve, ok := transitions[transitionKey{from, ev}]
	if !ok {
		m.mu.Unlock()
		if ev == EventTurnEnd || ev == EventTurnStart {
			return from, nil
		}
		return from, fmt.Errorf("%w: %s on %s", ErrInvalidTransition, ev, from)
	}

	if opts != nil {
		m.opts = *opts
	}
	to := resolve(m)

	switch {
	case ev == EventHide:
		m.turnsLeft = m.opts.Turns
	case ev == EventTurnEnd && to == Hidden:
		m.turnsLeft--
	case to != Hidden:
		m.turnsLeft = 0
	}
	m.state = to

	var exits []func(State)
	var enters []func(State)
	if from != to {
		exits = append(exits, m.onExit[from]...)
		enters = append(enters, m.onEnter[to]...)
	}
	m.mu.Unlock()

	// Callbacks run outside the lock so they can query the machine.
	for _, fn := range exits {
		fn(to)
	}
	for _, fn := range enters {
		fn(from)
	}
	return to, nil
}
