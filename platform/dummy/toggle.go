package dummy

import (
	"context"
	"fmt"

	"github.com/joshuasello/mycelium-iot/component"
	"github.com/joshuasello/mycelium-iot/errors"
	"github.com/joshuasello/mycelium-iot/platform"
)

// Toggle simulates a single-pin on/off actuator (LED, relay, DC motor).
// Setting is_on is idempotent; writing toggle flips the current state and
// is therefore not safe to retry blindly.
type Toggle struct {
	isOn bool
}

// NewToggle builds a simulated toggle. Setup arguments:
//
//	turn_on (bool, default false): initial state
func NewToggle(setup platform.Setup) (component.Component, error) {
	on, err := setup.Bool("turn_on", false)
	if err != nil {
		return nil, err
	}
	return &Toggle{isOn: on}, nil
}

var _ component.Component = (*Toggle)(nil)

// Writable declares the toggle's command fields
func (t *Toggle) Writable() map[string]component.FieldSpec {
	return map[string]component.FieldSpec{
		"is_on": {
			Type:        component.TypeBool,
			Idempotent:  true,
			Description: "Target on/off state",
		},
		"toggle": {
			Type:        component.TypeBool,
			Description: "Flip the current state when written true",
		},
	}
}

// Readable declares the toggle's state fields
func (t *Toggle) Readable() map[string]component.FieldSpec {
	return map[string]component.FieldSpec{
		"is_on": {
			Type:        component.TypeBool,
			Description: "Current on/off state",
		},
	}
}

// Write applies a command field
func (t *Toggle) Write(_ context.Context, field string, value component.Value) error {
	switch field {
	case "is_on":
		on, err := value.Bool()
		if err != nil {
			return err
		}
		t.isOn = on
		return nil
	case "toggle":
		flip, err := value.Bool()
		if err != nil {
			return err
		}
		if flip {
			t.isOn = !t.isOn
		}
		return nil
	default:
		return unknownField("Toggle", field)
	}
}

// Read returns a state field
func (t *Toggle) Read(_ context.Context, field string) (component.Value, error) {
	if field != "is_on" {
		return component.Value{}, unknownField("Toggle", field)
	}
	return component.BoolValue(t.isOn), nil
}

func unknownField(comp, field string) error {
	return errors.WrapInvalid(
		fmt.Errorf("field %q: %w", field, errors.ErrUnknownField),
		comp, "field", "lookup")
}
