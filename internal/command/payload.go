// Package command defines the command type vocabulary and the action payload
// union shared by the server-side encoder and the device-side dispatcher.
package command

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Type identifies which executor module a command targets.
type Type string

const (
	TypeMedia      Type = "media"
	TypeVolume     Type = "volume"
	TypeBrightness Type = "brightness"
)

// AllTypes lists every valid command type.
var AllTypes = []Type{TypeMedia, TypeVolume, TypeBrightness}

// ParseType validates a wire string as a command type.
func ParseType(s string) (Type, error) {
	switch Type(s) {
	case TypeMedia, TypeVolume, TypeBrightness:
		return Type(s), nil
	}
	return "", fmt.Errorf("unknown command type %q", s)
}

// MediaAction controls the active media player.
type MediaAction struct {
	Action string `json:"action" validate:"required,oneof=next previous play_pause stop"`
}

// VolumeAction controls the default audio sink. Value is a percentage and is
// required for "set".
type VolumeAction struct {
	Action string `json:"action" validate:"required,oneof=set increase decrease mute unmute"`
	Value  *int   `json:"value,omitempty" validate:"omitempty,min=0,max=100"`
}

// BrightnessAction controls the display backlight. Value is a percentage and
// is required for "set".
type BrightnessAction struct {
	Action string `json:"action" validate:"required,oneof=set increase decrease"`
	Value  *int   `json:"value,omitempty" validate:"omitempty,min=0,max=100"`
}

// Payload is the tagged union carried inside a command's ciphertext. Exactly
// one variant is set, and it must match the command's declared type.
type Payload struct {
	Media      *MediaAction      `json:"media,omitempty"`
	Volume     *VolumeAction     `json:"volume,omitempty"`
	Brightness *BrightnessAction `json:"brightness,omitempty"`
}

var validate = validator.New()

// Validate checks that the payload carries exactly the variant declared by t
// and that the variant's fields are well formed.
func (p *Payload) Validate(t Type) error {
	set := 0
	if p.Media != nil {
		set++
	}
	if p.Volume != nil {
		set++
	}
	if p.Brightness != nil {
		set++
	}
	if set != 1 {
		return fmt.Errorf("payload must carry exactly one action, got %d", set)
	}

	switch t {
	case TypeMedia:
		if p.Media == nil {
			return fmt.Errorf("payload does not match command type %q", t)
		}
		if err := validate.Struct(p.Media); err != nil {
			return fmt.Errorf("invalid media action: %w", err)
		}
	case TypeVolume:
		if p.Volume == nil {
			return fmt.Errorf("payload does not match command type %q", t)
		}
		if err := validate.Struct(p.Volume); err != nil {
			return fmt.Errorf("invalid volume action: %w", err)
		}
		if p.Volume.Action == "set" && p.Volume.Value == nil {
			return fmt.Errorf("volume set requires a value")
		}
	case TypeBrightness:
		if p.Brightness == nil {
			return fmt.Errorf("payload does not match command type %q", t)
		}
		if err := validate.Struct(p.Brightness); err != nil {
			return fmt.Errorf("invalid brightness action: %w", err)
		}
		if p.Brightness.Action == "set" && p.Brightness.Value == nil {
			return fmt.Errorf("brightness set requires a value")
		}
	default:
		return fmt.Errorf("unknown command type %q", t)
	}

	return nil
}

// Encode serializes the payload to its canonical JSON byte encoding, the form
// that gets encrypted.
func (p *Payload) Encode() ([]byte, error) {
	return json.Marshal(p)
}

// DecodePayload parses the canonical JSON byte encoding produced by Encode.
func DecodePayload(data []byte) (*Payload, error) {
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("malformed payload: %w", err)
	}
	return &p, nil
}
