// Package passcode implements the state machine behind a numeric passcode lock screen:
// collecting a fixed-length PIN, verifying it against a secret store, creating and
// confirming a new one, changing it and removing it.
//
// A Flow is not safe for concurrent use. Hosts deliver one event at a time.
package passcode

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"log/slog"
)

// MaxLength bounds the configurable passcode length.
const MaxLength = 12

// Options configures a Flow. Zero values select the defaults.
type Options struct {
	Length    int
	Messages  Messages
	Presenter Presenter
	Logger    *slog.Logger
}

// Flow collects digits for one passcode interaction and drives it to a terminal state.
type Flow struct {
	store     SecretStore
	presenter Presenter
	logger    *slog.Logger
	messages  Messages
	length    int

	state    State
	prompt   string
	entered  []byte
	reserved []byte
}

// New opens a flow in mode against store.
func New(store SecretStore, mode Mode, opts Options) (*Flow, error) {
	if store == nil {
		return nil, errors.New("passcode: secret store is required")
	}
	if mode < ModeVerify || mode > ModeDeactivate {
		return nil, fmt.Errorf("%w: %d", ErrUnknownMode, int(mode))
	}
	length := opts.Length
	if length == 0 {
		length = DefaultLength
	}
	if length < 1 || length > MaxLength {
		return nil, fmt.Errorf("passcode: length %d out of range 1..%d", length, MaxLength)
	}
	presenter := opts.Presenter
	if presenter == nil {
		presenter = discardPresenter{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	f := &Flow{
		store:     store,
		presenter: presenter,
		logger:    logger.With(slog.String("component", "passcode")),
		messages:  opts.Messages.withDefaults(),
		length:    length,
		state:     Initial(mode),
		entered:   make([]byte, 0, length),
	}
	f.prompt = f.messages.Prompt(f.state)
	return f, nil
}

// State returns the current state.
func (f *Flow) State() State { return f.state }

// Prompt returns the message currently shown to the user.
func (f *Flow) Prompt() string { return f.prompt }

// Filled returns how many digits have been entered.
func (f *Flow) Filled() int { return len(f.entered) }

// Length returns the number of digits a complete entry has.
func (f *Flow) Length() int { return f.length }

// OnDigit appends d to the entry and evaluates the entry once it is complete.
func (f *Flow) OnDigit(ctx context.Context, d int) (Outcome, error) {
	if err := f.acceptInput(); err != nil {
		return OutcomePending, err
	}
	if d < 0 || d > 9 {
		return OutcomePending, fmt.Errorf("%w: %d", ErrInvalidDigit, d)
	}
	if len(f.entered) >= f.length {
		return OutcomePending, ErrInputFull
	}

	f.entered = append(f.entered, byte('0'+d))
	f.presenter.OnSlotFilled(len(f.entered)-1, d)
	if len(f.entered) < f.length {
		return OutcomePending, nil
	}
	return f.evaluate(ctx), nil
}

// OnBackspace removes the last entered digit. It does nothing on an empty entry.
func (f *Flow) OnBackspace() error {
	if err := f.acceptInput(); err != nil {
		return err
	}
	if len(f.entered) == 0 {
		return nil
	}
	last := len(f.entered) - 1
	f.entered[last] = 0
	f.entered = f.entered[:last]
	f.presenter.OnSlotCleared(last)
	return nil
}

// Cancel ends the flow because the host dismissed it.
func (f *Flow) Cancel() error {
	if err := f.acceptInput(); err != nil {
		return err
	}
	prev := f.state
	f.state.Phase = PhaseCancelled
	f.wipe()
	f.logger.Debug("passcode.transition",
		slog.String("from", prev.String()),
		slog.String("to", f.state.String()),
		slog.String("outcome", OutcomeCancelled.String()),
	)
	return nil
}

func (f *Flow) acceptInput() error {
	switch {
	case f.state.Terminal():
		return ErrFlowClosed
	case f.state.Phase == PhaseEvaluating:
		return ErrEvaluating
	}
	return nil
}

func (f *Flow) evaluate(ctx context.Context) Outcome {
	prev := f.state
	f.state.Phase = PhaseEvaluating

	check := CheckNone
	reason := ReasonMismatch
	switch {
	case prev.Mode == ModeCreate && prev.Step == StepFirst:
	case prev.Mode == ModeCreate:
		check = compare(f.entered, f.reserved)
	default:
		secret, err := f.store.Read(ctx)
		switch {
		case errors.Is(err, ErrNoSecret):
			check, reason = CheckMismatch, ReasonNoSecret
		case err != nil:
			return f.abort(prev, fmt.Errorf("read: %w", err))
		case secret.Matches(string(f.entered)):
			check = CheckMatch
		default:
			check = CheckMismatch
		}
	}

	next, outcome, effect := Transition(prev, check)
	switch effect {
	case EffectWrite:
		if err := f.store.Write(ctx, string(f.entered)); err != nil {
			return f.abort(prev, fmt.Errorf("write: %w", err))
		}
	case EffectClear:
		if err := f.store.Clear(ctx); err != nil {
			return f.abort(prev, fmt.Errorf("clear: %w", err))
		}
	}

	f.state = next
	f.logger.Debug("passcode.transition",
		slog.String("from", prev.String()),
		slog.String("to", next.String()),
		slog.String("outcome", outcome.String()),
	)

	switch outcome {
	case OutcomeConfirm:
		f.reserved = append(f.reserved[:0], f.entered...)
		f.reset()
		f.setPrompt(f.messages.Prompt(next))
	case OutcomeRekey:
		f.reset()
		f.setPrompt(f.messages.Prompt(next))
	case OutcomeSucceeded:
		f.wipe()
		f.presenter.OnSuccess()
	case OutcomeFailed:
		f.fail(reason)
	}
	return outcome
}

// abort handles a secret store failure: nothing is committed and the user retries the
// same step.
func (f *Flow) abort(prev State, err error) Outcome {
	f.state = prev
	f.logger.Warn("passcode evaluation aborted",
		slog.String("state", prev.String()),
		slog.String("reason", ReasonStoreUnavailable),
		slog.Any("error", fmt.Errorf("%w: %w", ErrStoreUnavailable, err)),
	)
	f.reset()
	f.presenter.OnFailure()
	f.setPrompt(f.messages.Failure)
	return OutcomeFailed
}

func (f *Flow) fail(reason string) {
	f.logger.Info("passcode rejected",
		slog.String("state", f.state.String()),
		slog.String("reason", reason),
	)
	f.reset()
	f.presenter.OnFailure()
	f.setPrompt(f.messages.Failure)
}

func (f *Flow) setPrompt(msg string) {
	f.prompt = msg
	f.presenter.OnPromptChanged(msg)
}

func (f *Flow) reset() {
	clear(f.entered)
	f.entered = f.entered[:0]
	f.presenter.OnReset()
}

func (f *Flow) wipe() {
	clear(f.entered)
	f.entered = f.entered[:0]
	clear(f.reserved)
	f.reserved = f.reserved[:0]
}

func compare(entered, reserved []byte) Check {
	if len(reserved) == len(entered) && subtle.ConstantTimeCompare(entered, reserved) == 1 {
		return CheckMatch
	}
	return CheckMismatch
}
