package passcode

import "fmt"

// DefaultLength is the number of digits a passcode has unless configured otherwise.
const DefaultLength = 4

// Mode describes the purpose of a flow.
type Mode int

const (
	ModeVerify Mode = iota
	ModeChange
	ModeCreate
	ModeDeactivate
)

func (m Mode) String() string {
	switch m {
	case ModeVerify:
		return "verify"
	case ModeChange:
		return "change"
	case ModeCreate:
		return "create"
	case ModeDeactivate:
		return "deactivate"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode maps the textual form used by hosts back to a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "verify":
		return ModeVerify, nil
	case "change":
		return ModeChange, nil
	case "create":
		return ModeCreate, nil
	case "deactivate":
		return ModeDeactivate, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

// Step is the sub-phase of a Create flow. Other modes always carry StepNone.
type Step int

const (
	StepNone Step = iota
	StepFirst
	StepConfirm
)

func (s Step) String() string {
	switch s {
	case StepFirst:
		return "first"
	case StepConfirm:
		return "confirm"
	default:
		return "none"
	}
}

// Phase is where a flow is in its lifecycle.
type Phase int

const (
	PhaseAwaitingInput Phase = iota
	PhaseEvaluating
	PhaseSucceeded
	PhaseCancelled
)

func (p Phase) String() string {
	switch p {
	case PhaseAwaitingInput:
		return "awaiting_input"
	case PhaseEvaluating:
		return "evaluating"
	case PhaseSucceeded:
		return "succeeded"
	case PhaseCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// State is the mode, creation step and lifecycle phase of a flow held as one value,
// so the step can never drift away from the mode it belongs to.
type State struct {
	Mode  Mode
	Step  Step
	Phase Phase
}

// Initial returns the starting state for a flow opened in mode.
func Initial(mode Mode) State {
	s := State{Mode: mode, Phase: PhaseAwaitingInput}
	if mode == ModeCreate {
		s.Step = StepFirst
	}
	return s
}

// Terminal reports whether the flow accepts no more input.
func (s State) Terminal() bool {
	return s.Phase == PhaseSucceeded || s.Phase == PhaseCancelled
}

func (s State) String() string {
	if s.Mode == ModeCreate {
		return fmt.Sprintf("%s/%s/%s", s.Mode, s.Step, s.Phase)
	}
	return fmt.Sprintf("%s/%s", s.Mode, s.Phase)
}

// Outcome is what a single input event resulted in.
type Outcome int

const (
	// OutcomePending means the entry is still incomplete.
	OutcomePending Outcome = iota
	// OutcomeConfirm means the first creation entry was stashed and confirmation is expected.
	OutcomeConfirm
	// OutcomeRekey means a Change flow verified the current passcode and now collects a new one.
	OutcomeRekey
	OutcomeSucceeded
	OutcomeFailed
	OutcomeCancelled
)

func (o Outcome) String() string {
	switch o {
	case OutcomePending:
		return "pending"
	case OutcomeConfirm:
		return "confirm"
	case OutcomeRekey:
		return "rekey"
	case OutcomeSucceeded:
		return "succeeded"
	case OutcomeFailed:
		return "failed"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Effect is the side effect on the secret store that a transition requires.
type Effect int

const (
	EffectNone Effect = iota
	EffectWrite
	EffectClear
)

// Check is the result of comparing a complete entry against its reference value.
type Check int

const (
	// CheckNone is used for Create/First where nothing is compared.
	CheckNone Check = iota
	CheckMatch
	CheckMismatch
)

// Transition computes the state that follows a complete entry. It is pure: the caller
// performs the returned Effect and only commits next when the effect succeeded.
func Transition(s State, check Check) (next State, outcome Outcome, effect Effect) {
	next = s
	next.Phase = PhaseAwaitingInput

	if s.Mode == ModeCreate && s.Step == StepFirst {
		next.Step = StepConfirm
		return next, OutcomeConfirm, EffectNone
	}

	if check != CheckMatch {
		return next, OutcomeFailed, EffectNone
	}

	switch s.Mode {
	case ModeCreate:
		next.Phase = PhaseSucceeded
		return next, OutcomeSucceeded, EffectWrite
	case ModeChange:
		return Initial(ModeCreate), OutcomeRekey, EffectNone
	case ModeDeactivate:
		next.Phase = PhaseSucceeded
		return next, OutcomeSucceeded, EffectClear
	default:
		next.Phase = PhaseSucceeded
		return next, OutcomeSucceeded, EffectNone
	}
}
