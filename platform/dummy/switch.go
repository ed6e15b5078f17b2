package dummy

import (
	"context"

	"github.com/joshuasello/mycelium-iot/component"
	"github.com/joshuasello/mycelium-iot/platform"
)

// Switch simulates a push button or toggle switch read through an input
// pin. On real hardware the position is read-only; the simulation exposes
// it as a writable field so tests and development controllers can move the
// switch.
type Switch struct {
	isOn bool
}

// NewSwitch builds a simulated switch. Setup arguments:
//
//	is_on (bool, default false): initial position
func NewSwitch(setup platform.Setup) (component.Component, error) {
	on, err := setup.Bool("is_on", false)
	if err != nil {
		return nil, err
	}
	return &Switch{isOn: on}, nil
}

var _ component.Component = (*Switch)(nil)

// Writable declares the simulated position field
func (s *Switch) Writable() map[string]component.FieldSpec {
	return map[string]component.FieldSpec{
		"is_on": {
			Type:        component.TypeBool,
			Idempotent:  true,
			Description: "Simulated switch position",
		},
	}
}

// Readable declares the switch state fields
func (s *Switch) Readable() map[string]component.FieldSpec {
	return map[string]component.FieldSpec{
		"is_on": {
			Type:        component.TypeBool,
			Description: "Current switch position",
		},
	}
}

// Write moves the simulated switch
func (s *Switch) Write(_ context.Context, field string, value component.Value) error {
	if field != "is_on" {
		return unknownField("Switch", field)
	}
	on, err := value.Bool()
	if err != nil {
		return err
	}
	s.isOn = on
	return nil
}

// Read returns the switch position
func (s *Switch) Read(_ context.Context, field string) (component.Value, error) {
	if field != "is_on" {
		return component.Value{}, unknownField("Switch", field)
	}
	return component.BoolValue(s.isOn), nil
}
