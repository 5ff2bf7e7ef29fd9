package passcode

import (
	"context"
	"errors"
	"testing"
)

func newFlow(t *testing.T, store SecretStore, mode Mode) (*Flow, *Recorder) {
	t.Helper()
	rec := &Recorder{}
	f, err := New(store, mode, Options{Presenter: rec})
	if err != nil {
		t.Fatalf("new flow: %v", err)
	}
	return f, rec
}

func enter(t *testing.T, f *Flow, digits ...int) Outcome {
	t.Helper()
	var out Outcome
	for _, d := range digits {
		o, err := f.OnDigit(context.Background(), d)
		if err != nil {
			t.Fatalf("digit %d: %v", d, err)
		}
		out = o
	}
	return out
}

func TestVerifySucceeds(t *testing.T) {
	store := NewMemoryStore("1212")
	f, rec := newFlow(t, store, ModeVerify)

	if out := enter(t, f, 1, 2, 1, 2); out != OutcomeSucceeded {
		t.Fatalf("expected succeeded, got %s", out)
	}
	if f.State().Phase != PhaseSucceeded {
		t.Fatalf("expected succeeded phase, got %s", f.State())
	}
	if rec.Count(EventSuccess) != 1 {
		t.Fatalf("expected one success event, got %d", rec.Count(EventSuccess))
	}
	if _, err := f.OnDigit(context.Background(), 1); !errors.Is(err, ErrFlowClosed) {
		t.Fatalf("expected flow closed, got %v", err)
	}
}

func TestVerifyMismatchRetriesInPlace(t *testing.T) {
	store := NewMemoryStore("1212")
	f, rec := newFlow(t, store, ModeVerify)

	if out := enter(t, f, 1, 2, 1, 3); out != OutcomeFailed {
		t.Fatalf("expected failed, got %s", out)
	}
	if f.Filled() != 0 {
		t.Fatalf("expected entry reset, got %d digits", f.Filled())
	}
	if rec.Count(EventFailure) != 1 {
		t.Fatalf("expected one failure event, got %d", rec.Count(EventFailure))
	}
	if got := f.State(); got != Initial(ModeVerify) {
		t.Fatalf("expected to await input in verify, got %s", got)
	}
	if f.Prompt() != DefaultMessages().Failure {
		t.Fatalf("unexpected prompt %q", f.Prompt())
	}

	if out := enter(t, f, 1, 2, 1, 2); out != OutcomeSucceeded {
		t.Fatalf("expected retry to succeed, got %s", out)
	}
}

func TestChangeRekeysThenCommits(t *testing.T) {
	store := NewMemoryStore("1212")
	f, rec := newFlow(t, store, ModeChange)

	if out := enter(t, f, 1, 2, 1, 2); out != OutcomeRekey {
		t.Fatalf("expected rekey, got %s", out)
	}
	if got := f.State(); got != (State{Mode: ModeCreate, Step: StepFirst}) {
		t.Fatalf("expected create/first, got %s", got)
	}
	if f.Filled() != 0 {
		t.Fatalf("expected entry reset")
	}
	if f.Prompt() != DefaultMessages().New {
		t.Fatalf("unexpected prompt %q", f.Prompt())
	}

	if out := enter(t, f, 9, 9, 9, 9); out != OutcomeConfirm {
		t.Fatalf("expected confirm, got %s", out)
	}
	if f.State().Step != StepConfirm {
		t.Fatalf("expected confirm step, got %s", f.State())
	}
	if string(f.reserved) != "9999" {
		t.Fatalf("expected reserved 9999, got %q", f.reserved)
	}
	if pin, _ := store.Value(); pin != "1212" {
		t.Fatalf("secret changed before confirmation: %q", pin)
	}

	if out := enter(t, f, 9, 9, 9, 9); out != OutcomeSucceeded {
		t.Fatalf("expected succeeded, got %s", out)
	}
	if pin, _ := store.Value(); pin != "9999" {
		t.Fatalf("expected stored 9999, got %q", pin)
	}
	if rec.Count(EventFailure) != 0 {
		t.Fatalf("unexpected failure events")
	}
}

func TestChangeWrongCurrentPasscode(t *testing.T) {
	store := NewMemoryStore("1212")
	f, _ := newFlow(t, store, ModeChange)

	if out := enter(t, f, 4, 3, 2, 1); out != OutcomeFailed {
		t.Fatalf("expected failed, got %s", out)
	}
	if got := f.State(); got != Initial(ModeChange) {
		t.Fatalf("expected change to be retried, got %s", got)
	}
}

func TestCreateRoundTrip(t *testing.T) {
	store := NewMemoryStore("")
	f, rec := newFlow(t, store, ModeCreate)

	if out := enter(t, f, 0, 1, 2, 3); out != OutcomeConfirm {
		t.Fatalf("expected confirm, got %s", out)
	}
	if f.Prompt() != DefaultMessages().Confirm {
		t.Fatalf("unexpected prompt %q", f.Prompt())
	}
	if out := enter(t, f, 0, 1, 2, 3); out != OutcomeSucceeded {
		t.Fatalf("expected succeeded, got %s", out)
	}
	if pin, ok := store.Value(); !ok || pin != "0123" {
		t.Fatalf("expected stored 0123, got %q (set=%v)", pin, ok)
	}
	if len(f.reserved) != 0 {
		t.Fatalf("reserved entry not wiped")
	}
	if rec.Count(EventSuccess) != 1 {
		t.Fatalf("expected success event")
	}
}

func TestCreateConfirmMismatchStaysOnConfirm(t *testing.T) {
	store := NewMemoryStore("")
	f, rec := newFlow(t, store, ModeCreate)

	enter(t, f, 5, 5, 5, 5)
	if out := enter(t, f, 5, 5, 5, 6); out != OutcomeFailed {
		t.Fatalf("expected failed, got %s", out)
	}
	if _, ok := store.Value(); ok {
		t.Fatalf("secret written on mismatch")
	}
	if f.State().Step != StepConfirm {
		t.Fatalf("expected to stay on confirm, got %s", f.State())
	}
	if rec.Count(EventFailure) != 1 {
		t.Fatalf("expected one failure event")
	}

	// The first entry is still the reference.
	if out := enter(t, f, 5, 5, 5, 5); out != OutcomeSucceeded {
		t.Fatalf("expected succeeded, got %s", out)
	}
}

func TestDeactivate(t *testing.T) {
	t.Run("wrong pin", func(t *testing.T) {
		store := NewMemoryStore("1212")
		f, _ := newFlow(t, store, ModeDeactivate)
		if out := enter(t, f, 0, 0, 0, 0); out != OutcomeFailed {
			t.Fatalf("expected failed, got %s", out)
		}
		if pin, ok := store.Value(); !ok || pin != "1212" {
			t.Fatalf("secret modified: %q", pin)
		}
		if f.State().Phase != PhaseAwaitingInput {
			t.Fatalf("expected awaiting input, got %s", f.State())
		}
	})
	t.Run("correct pin", func(t *testing.T) {
		store := NewMemoryStore("1212")
		f, _ := newFlow(t, store, ModeDeactivate)
		if out := enter(t, f, 1, 2, 1, 2); out != OutcomeSucceeded {
			t.Fatalf("expected succeeded, got %s", out)
		}
		if _, ok := store.Value(); ok {
			t.Fatalf("secret not cleared")
		}
	})
}

func TestVerifyWithoutSecretFails(t *testing.T) {
	f, rec := newFlow(t, NewMemoryStore(""), ModeVerify)
	if out := enter(t, f, 1, 2, 3, 4); out != OutcomeFailed {
		t.Fatalf("expected failed, got %s", out)
	}
	if rec.Count(EventFailure) != 1 {
		t.Fatalf("expected failure event")
	}
}

func TestIncompleteEntryNeverEvaluates(t *testing.T) {
	store := &failingStore{}
	f, rec := newFlow(t, store, ModeVerify)
	for i := 0; i < f.Length()-1; i++ {
		if out := enter(t, f, 7); out != OutcomePending {
			t.Fatalf("expected pending, got %s", out)
		}
	}
	if store.reads != 0 {
		t.Fatalf("store read before entry complete")
	}
	if rec.Count(EventSlotFilled) != f.Length()-1 {
		t.Fatalf("expected %d slot events, got %d", f.Length()-1, rec.Count(EventSlotFilled))
	}
}

func TestBackspace(t *testing.T) {
	f, rec := newFlow(t, NewMemoryStore("1212"), ModeVerify)

	if err := f.OnBackspace(); err != nil {
		t.Fatalf("backspace on empty: %v", err)
	}
	if len(rec.Events()) != 0 {
		t.Fatalf("backspace on empty emitted %v", rec.Events())
	}

	enter(t, f, 1, 2, 1)
	if err := f.OnBackspace(); err != nil {
		t.Fatalf("backspace: %v", err)
	}
	if f.Filled() != 2 {
		t.Fatalf("expected 2 digits, got %d", f.Filled())
	}
	events := rec.Events()
	last := events[len(events)-1]
	if last.Kind != EventSlotCleared || last.Index == nil || *last.Index != 2 {
		t.Fatalf("unexpected event %+v", last)
	}

	if out := enter(t, f, 1, 2); out != OutcomeSucceeded {
		t.Fatalf("expected succeeded, got %s", out)
	}
}

func TestInvalidDigitRejected(t *testing.T) {
	f, _ := newFlow(t, NewMemoryStore("1212"), ModeVerify)
	enter(t, f, 1)
	for _, d := range []int{-1, 10, 42} {
		if _, err := f.OnDigit(context.Background(), d); !errors.Is(err, ErrInvalidDigit) {
			t.Fatalf("digit %d: expected invalid digit, got %v", d, err)
		}
	}
	if f.Filled() != 1 {
		t.Fatalf("entry corrupted: %d digits", f.Filled())
	}
}

func TestInputFullRejected(t *testing.T) {
	f, _ := newFlow(t, NewMemoryStore("1212"), ModeVerify)
	// A full entry is evaluated on the same call that completes it, so the public API
	// never leaves one behind. Set it directly to exercise the guard.
	f.entered = append(f.entered, '1', '2', '1', '2')
	if _, err := f.OnDigit(context.Background(), 3); !errors.Is(err, ErrInputFull) {
		t.Fatalf("expected input full, got %v", err)
	}
	if f.Filled() != 4 {
		t.Fatalf("digit appended past length")
	}
}

func TestCancelIsTerminal(t *testing.T) {
	f, _ := newFlow(t, NewMemoryStore("1212"), ModeVerify)
	enter(t, f, 1, 2)
	if err := f.Cancel(); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if f.State().Phase != PhaseCancelled || f.Filled() != 0 {
		t.Fatalf("unexpected state after cancel: %s filled=%d", f.State(), f.Filled())
	}
	if err := f.OnBackspace(); !errors.Is(err, ErrFlowClosed) {
		t.Fatalf("expected flow closed, got %v", err)
	}
	if err := f.Cancel(); !errors.Is(err, ErrFlowClosed) {
		t.Fatalf("expected flow closed, got %v", err)
	}
}

func TestStoreFailureLeavesSecretUntouched(t *testing.T) {
	store := &failingStore{secret: "1212", failWrite: true}
	f, rec := newFlow(t, store, ModeChange)

	if out := enter(t, f, 1, 2, 1, 2); out != OutcomeRekey {
		t.Fatalf("expected rekey, got %s", out)
	}
	enter(t, f, 3, 3, 3, 3)
	if out := enter(t, f, 3, 3, 3, 3); out != OutcomeFailed {
		t.Fatalf("expected failed, got %s", out)
	}
	if store.secret != "1212" {
		t.Fatalf("secret modified: %q", store.secret)
	}
	if got := f.State(); got != (State{Mode: ModeCreate, Step: StepConfirm}) {
		t.Fatalf("expected create/confirm, got %s", got)
	}
	if rec.Count(EventFailure) != 1 {
		t.Fatalf("expected one failure event")
	}

	store.failWrite = false
	if out := enter(t, f, 3, 3, 3, 3); out != OutcomeSucceeded {
		t.Fatalf("expected succeeded after store recovery, got %s", out)
	}
	if store.secret != "3333" {
		t.Fatalf("expected 3333, got %q", store.secret)
	}
}

func TestStoreReadFailure(t *testing.T) {
	store := &failingStore{secret: "1212", failRead: true}
	f, _ := newFlow(t, store, ModeVerify)
	if out := enter(t, f, 1, 2, 1, 2); out != OutcomeFailed {
		t.Fatalf("expected failed, got %s", out)
	}
	if f.State() != Initial(ModeVerify) {
		t.Fatalf("unexpected state %s", f.State())
	}
}

type reentrantStore struct {
	MemoryStore
	flow *Flow
	err  error
}

func (s *reentrantStore) Read(ctx context.Context) (Secret, error) {
	_, s.err = s.flow.OnDigit(ctx, 1)
	return s.MemoryStore.Read(ctx)
}

func TestReentrantEventRejectedWhileEvaluating(t *testing.T) {
	store := &reentrantStore{MemoryStore: MemoryStore{secret: "1212", set: true}}
	f, _ := newFlow(t, store, ModeVerify)
	store.flow = f

	if out := enter(t, f, 1, 2, 1, 2); out != OutcomeSucceeded {
		t.Fatalf("expected succeeded, got %s", out)
	}
	if !errors.Is(store.err, ErrEvaluating) {
		t.Fatalf("expected evaluating error, got %v", store.err)
	}
}

func TestCustomLength(t *testing.T) {
	store := NewMemoryStore("123456")
	f, err := New(store, ModeVerify, Options{Length: 6})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if out := enter(t, f, 1, 2, 3, 4); out != OutcomePending {
		t.Fatalf("expected pending after four digits, got %s", out)
	}
	if out := enter(t, f, 5, 6); out != OutcomeSucceeded {
		t.Fatalf("expected succeeded, got %s", out)
	}
}

func TestNewValidates(t *testing.T) {
	if _, err := New(nil, ModeVerify, Options{}); err == nil {
		t.Fatalf("expected error for nil store")
	}
	if _, err := New(NewMemoryStore(""), Mode(9), Options{}); !errors.Is(err, ErrUnknownMode) {
		t.Fatalf("expected unknown mode, got %v", err)
	}
	if _, err := New(NewMemoryStore(""), ModeVerify, Options{Length: MaxLength + 1}); err == nil {
		t.Fatalf("expected length error")
	}
}

type failingStore struct {
	secret    string
	failRead  bool
	failWrite bool
	reads     int
}

var errBackend = errors.New("backend down")

func (s *failingStore) Read(context.Context) (Secret, error) {
	s.reads++
	if s.failRead {
		return nil, errBackend
	}
	if s.secret == "" {
		return nil, ErrNoSecret
	}
	return PlainSecret(s.secret), nil
}

func (s *failingStore) Write(_ context.Context, pin string) error {
	if s.failWrite {
		return errBackend
	}
	s.secret = pin
	return nil
}

func (s *failingStore) Clear(context.Context) error {
	s.secret = ""
	return nil
}
