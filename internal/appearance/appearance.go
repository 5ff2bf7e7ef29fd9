// Package appearance loads the display options of the lock screen: image, colours and
// prompt texts. None of it affects how a passcode is validated.
package appearance

import (
	"errors"
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/congo-pay/passcode/internal/passcode"
)

var hexColor = regexp.MustCompile(`^#[0-9a-fA-F]{6}([0-9a-fA-F]{2})?$`)

// Colors are hex RGB or RGBA values.
type Colors struct {
	MessageText         string `yaml:"message_text" json:"message_text"`
	ViewBackground      string `yaml:"view_background" json:"view_background"`
	ContainerBackground string `yaml:"container_background" json:"container_background"`
	ContainerBorder     string `yaml:"container_border" json:"container_border"`
	PinText             string `yaml:"pin_text" json:"pin_text"`
	IncorrectInput      string `yaml:"incorrect_input" json:"incorrect_input"`
}

// Messages override the prompts shown by a flow.
type Messages struct {
	Current string `yaml:"current" json:"current"`
	New     string `yaml:"new" json:"new"`
	Confirm string `yaml:"confirm" json:"confirm"`
	Failure string `yaml:"failure" json:"failure"`
}

// Appearance is the presentation configuration handed to clients.
type Appearance struct {
	Image    string   `yaml:"image" json:"image"`
	Title    string   `yaml:"title" json:"title"`
	Colors   Colors   `yaml:"colors" json:"colors"`
	Messages Messages `yaml:"messages" json:"messages"`
}

// Default returns the built-in appearance.
func Default() Appearance {
	m := passcode.DefaultMessages()
	return Appearance{
		Image: "face",
		Title: "Enter your passcode",
		Colors: Colors{
			MessageText:         "#000000",
			ViewBackground:      "#EDF0F5",
			ContainerBackground: "#FFFFFF",
			ContainerBorder:     "#FFFFFF",
			PinText:             "#000000",
			IncorrectInput:      "#FF0000",
		},
		Messages: Messages{Current: m.Current, New: m.New, Confirm: m.Confirm, Failure: m.Failure},
	}
}

// Load reads a YAML document from path and overlays it on Default. An empty path
// returns Default.
func Load(path string) (Appearance, error) {
	if path == "" {
		return Default(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Appearance{}, fmt.Errorf("read appearance: %w", err)
	}
	return Parse(raw)
}

// Parse decodes a YAML document and overlays it on Default.
func Parse(raw []byte) (Appearance, error) {
	a := Default()
	if err := yaml.Unmarshal(raw, &a); err != nil {
		return Appearance{}, fmt.Errorf("decode appearance: %w", err)
	}
	if err := a.Validate(); err != nil {
		return Appearance{}, err
	}
	return a, nil
}

// Validate checks colour values.
func (a Appearance) Validate() error {
	var errs []error
	for name, v := range map[string]string{
		"message_text":         a.Colors.MessageText,
		"view_background":      a.Colors.ViewBackground,
		"container_background": a.Colors.ContainerBackground,
		"container_border":     a.Colors.ContainerBorder,
		"pin_text":             a.Colors.PinText,
		"incorrect_input":      a.Colors.IncorrectInput,
	} {
		if !hexColor.MatchString(v) {
			errs = append(errs, fmt.Errorf("colors.%s: invalid hex colour %q", name, v))
		}
	}
	return errors.Join(errs...)
}

// PromptMessages converts the configured texts for use by a passcode flow.
func (a Appearance) PromptMessages() passcode.Messages {
	return passcode.Messages{
		Current: a.Messages.Current,
		New:     a.Messages.New,
		Confirm: a.Messages.Confirm,
		Failure: a.Messages.Failure,
	}
}
