package main

import (
	"fmt"
	"io"
	"strings"
)

// terminal renders flow events as a row of slots followed by the prompt.
type terminal struct {
	out    io.Writer
	slots  []bool
	prompt string
	status string
}

func newTerminal(out io.Writer, length int, prompt string) *terminal {
	return &terminal{out: out, slots: make([]bool, length), prompt: prompt}
}

func (t *terminal) OnSlotFilled(index, _ int) {
	t.slots[index] = true
	t.status = ""
}

func (t *terminal) OnSlotCleared(index int) {
	t.slots[index] = false
}

func (t *terminal) OnPromptChanged(message string) {
	t.prompt = message
}

func (t *terminal) OnFailure() {
	t.status = "\a✗"
}

func (t *terminal) OnSuccess() {
	t.status = "✓"
}

func (t *terminal) OnReset() {
	for i := range t.slots {
		t.slots[i] = false
	}
}

func (t *terminal) render() {
	var b strings.Builder
	for _, filled := range t.slots {
		if filled {
			b.WriteString("[•]")
		} else {
			b.WriteString("[ ]")
		}
	}
	if t.status != "" {
		b.WriteString(" ")
		b.WriteString(t.status)
	}
	fmt.Fprintf(t.out, "%s  %s\n", b.String(), t.prompt)
}
