package passcode

// Messages holds the prompts shown to the user.
type Messages struct {
	Current string
	New     string
	Confirm string
	Failure string
}

// DefaultMessages returns the built-in prompt texts.
func DefaultMessages() Messages {
	return Messages{
		Current: "Enter your current passcode",
		New:     "This passcode will be used to unlock your device",
		Confirm: "Confirm your passcode",
		Failure: "Unable to verify passcode, please try again.",
	}
}

// Prompt returns the message for a state awaiting input.
func (m Messages) Prompt(s State) string {
	if s.Mode != ModeCreate {
		return m.Current
	}
	if s.Step == StepConfirm {
		return m.Confirm
	}
	return m.New
}

func (m Messages) withDefaults() Messages {
	d := DefaultMessages()
	if m.Current == "" {
		m.Current = d.Current
	}
	if m.New == "" {
		m.New = d.New
	}
	if m.Confirm == "" {
		m.Confirm = d.Confirm
	}
	if m.Failure == "" {
		m.Failure = d.Failure
	}
	return m
}

// Presenter receives display intents from a flow. Implementations own animation and
// timing; they must not call back into the flow from these methods.
type Presenter interface {
	OnSlotFilled(index, digit int)
	OnSlotCleared(index int)
	OnPromptChanged(message string)
	OnFailure()
	OnSuccess()
	OnReset()
}

// EventKind names a presenter callback.
type EventKind string

const (
	EventSlotFilled    EventKind = "slot_filled"
	EventSlotCleared   EventKind = "slot_cleared"
	EventPromptChanged EventKind = "prompt_changed"
	EventFailure       EventKind = "failure"
	EventSuccess       EventKind = "success"
	EventReset         EventKind = "reset"
)

// Event is a recorded presenter callback. Digits are never recorded, only slot indexes.
type Event struct {
	Kind    EventKind `json:"kind"`
	Index   *int      `json:"index,omitempty"`
	Message string    `json:"message,omitempty"`
}

// Recorder is a Presenter that keeps the events it receives.
type Recorder struct {
	events []Event
}

func (r *Recorder) OnSlotFilled(index, _ int) {
	r.events = append(r.events, Event{Kind: EventSlotFilled, Index: &index})
}

func (r *Recorder) OnSlotCleared(index int) {
	r.events = append(r.events, Event{Kind: EventSlotCleared, Index: &index})
}

func (r *Recorder) OnPromptChanged(message string) {
	r.events = append(r.events, Event{Kind: EventPromptChanged, Message: message})
}

func (r *Recorder) OnFailure() { r.events = append(r.events, Event{Kind: EventFailure}) }
func (r *Recorder) OnSuccess() { r.events = append(r.events, Event{Kind: EventSuccess}) }
func (r *Recorder) OnReset()   { r.events = append(r.events, Event{Kind: EventReset}) }

// Events returns the recorded events in order.
func (r *Recorder) Events() []Event {
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Drain returns the recorded events and forgets them.
func (r *Recorder) Drain() []Event {
	out := r.events
	r.events = nil
	return out
}

// Count returns how many events of kind were recorded.
func (r *Recorder) Count(kind EventKind) int {
	n := 0
	for _, e := range r.events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

type discardPresenter struct{}

func (discardPresenter) OnSlotFilled(int, int)  {}
func (discardPresenter) OnSlotCleared(int)      {}
func (discardPresenter) OnPromptChanged(string) {}
func (discardPresenter) OnFailure()             {}
func (discardPresenter) OnSuccess()             {}
func (discardPresenter) OnReset()               {}
