package dummy

import (
	"context"
	"fmt"

	"github.com/joshuasello/mycelium-iot/component"
	"github.com/joshuasello/mycelium-iot/errors"
	"github.com/joshuasello/mycelium-iot/platform"
)

// speedOfSound in air at 20 degrees C, meters per second
const speedOfSound = 343.0

// Ultrasonic simulates an HC-SR04 style distance sensor. The reported
// time_change is the round-trip echo time for a target at the simulated
// distance, which tests can move by writing the distance field.
type Ultrasonic struct {
	distance     float64
	measurements int64
}

// NewUltrasonic builds a simulated ultrasonic sensor. Setup arguments:
//
//	distance     (float, default 0.5): simulated target distance in meters
//	measurements (int, default 1): readings averaged per sample
func NewUltrasonic(setup platform.Setup) (component.Component, error) {
	distance, err := setup.Float("distance", 0.5)
	if err != nil {
		return nil, err
	}
	measurements, err := setup.Int("measurements", 1)
	if err != nil {
		return nil, err
	}

	if distance < 0 || measurements < 1 {
		return nil, errors.WrapInvalid(
			fmt.Errorf("inconsistent ultrasonic setup: %w", errors.ErrInvalidConfig),
			"Ultrasonic", "NewUltrasonic", "setup validation")
	}

	return &Ultrasonic{distance: distance, measurements: measurements}, nil
}

var _ component.Component = (*Ultrasonic)(nil)

// Writable declares the simulation control fields
func (u *Ultrasonic) Writable() map[string]component.FieldSpec {
	return map[string]component.FieldSpec{
		"distance": {
			Type:        component.TypeFloat,
			Idempotent:  true,
			Description: "Simulated target distance in meters",
		},
	}
}

// Readable declares the sensor output fields
func (u *Ultrasonic) Readable() map[string]component.FieldSpec {
	return map[string]component.FieldSpec{
		"time_change": {
			Type:        component.TypeFloat,
			Description: "Round-trip echo time in seconds",
		},
		"distance": {
			Type:        component.TypeFloat,
			Description: "Simulated target distance in meters",
		},
	}
}

// Write moves the simulated target
func (u *Ultrasonic) Write(_ context.Context, field string, value component.Value) error {
	if field != "distance" {
		return unknownField("Ultrasonic", field)
	}
	distance, err := value.Float()
	if err != nil {
		return err
	}
	if distance < 0 {
		return errors.WrapTransient(
			fmt.Errorf("distance %g is negative: %w", distance, errors.ErrHardwareFault),
			"Ultrasonic", "Write", "range check")
	}
	u.distance = distance
	return nil
}

// Read returns a sensor field
func (u *Ultrasonic) Read(_ context.Context, field string) (component.Value, error) {
	switch field {
	case "time_change":
		return component.FloatValue(2 * u.distance / speedOfSound), nil
	case "distance":
		return component.FloatValue(u.distance), nil
	default:
		return component.Value{}, unknownField("Ultrasonic", field)
	}
}
