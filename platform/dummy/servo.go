package dummy

import (
	"context"
	"fmt"
	"math"

	"github.com/joshuasello/mycelium-iot/component"
	"github.com/joshuasello/mycelium-iot/errors"
	"github.com/joshuasello/mycelium-iot/platform"
)

// Servo simulates a hobby servo driven by a PWM pin. The defaults match a
// Tower Pro SG90: 50 Hz, 0.5 ms to 2.5 ms pulse width over 180 degrees.
// Moving the horn requires activating the servo first, exactly like the
// hardware variant refuses to move without a running PWM carrier.
type Servo struct {
	active bool
	angle  float64

	frequency   float64
	startOnTime float64
	endOnTime   float64
	maxAngle    float64
}

// NewServo builds a simulated servo. Setup arguments:
//
//	frequency     (float, default 50): PWM carrier frequency in Hz
//	start_on_time (float, default 0.0005): pulse width at angle 0, seconds
//	end_on_time   (float, default 0.0025): pulse width at max angle, seconds
//	max_angle     (float, default 180): mechanical range in degrees
func NewServo(setup platform.Setup) (component.Component, error) {
	frequency, err := setup.Float("frequency", 50)
	if err != nil {
		return nil, err
	}
	startOnTime, err := setup.Float("start_on_time", 0.0005)
	if err != nil {
		return nil, err
	}
	endOnTime, err := setup.Float("end_on_time", 0.0025)
	if err != nil {
		return nil, err
	}
	maxAngle, err := setup.Float("max_angle", 180)
	if err != nil {
		return nil, err
	}

	if frequency <= 0 || maxAngle <= 0 || endOnTime <= startOnTime {
		return nil, errors.WrapInvalid(
			fmt.Errorf("inconsistent servo timing: %w", errors.ErrInvalidConfig),
			"Servo", "NewServo", "setup validation")
	}

	return &Servo{
		frequency:   frequency,
		startOnTime: startOnTime,
		endOnTime:   endOnTime,
		maxAngle:    maxAngle,
	}, nil
}

var _ component.Component = (*Servo)(nil)

// Writable declares the servo command fields
func (s *Servo) Writable() map[string]component.FieldSpec {
	return map[string]component.FieldSpec{
		"is_active": {
			Type:        component.TypeBool,
			Idempotent:  true,
			Description: "Start or stop the PWM carrier",
		},
		"angle": {
			Type:        component.TypeFloat,
			Idempotent:  true,
			Description: "Target horn angle in degrees",
		},
	}
}

// Readable declares the servo state fields
func (s *Servo) Readable() map[string]component.FieldSpec {
	return map[string]component.FieldSpec{
		"is_active": {
			Type:        component.TypeBool,
			Description: "Whether the PWM carrier is running",
		},
		"angle": {
			Type:        component.TypeFloat,
			Description: "Current horn angle in degrees",
		},
		"duty_cycle": {
			Type:        component.TypeFloat,
			Description: "Current PWM duty cycle in percent",
		},
	}
}

// Write applies a command field
func (s *Servo) Write(_ context.Context, field string, value component.Value) error {
	switch field {
	case "is_active":
		active, err := value.Bool()
		if err != nil {
			return err
		}
		s.active = active
		return nil
	case "angle":
		angle, err := value.Float()
		if err != nil {
			return err
		}
		if !s.active {
			return errors.WrapTransient(
				fmt.Errorf("servo is not active: %w", errors.ErrHardwareFault),
				"Servo", "Write", "activation check")
		}
		if angle < 0 || angle > s.maxAngle {
			return errors.WrapTransient(
				fmt.Errorf("angle %g outside [0, %g]: %w",
					angle, s.maxAngle, errors.ErrHardwareFault),
				"Servo", "Write", "range check")
		}
		s.angle = angle
		return nil
	default:
		return unknownField("Servo", field)
	}
}

// Read returns a state field
func (s *Servo) Read(_ context.Context, field string) (component.Value, error) {
	switch field {
	case "is_active":
		return component.BoolValue(s.active), nil
	case "angle":
		return component.FloatValue(s.angle), nil
	case "duty_cycle":
		return component.FloatValue(s.dutyCycle()), nil
	default:
		return component.Value{}, unknownField("Servo", field)
	}
}

// dutyCycle converts the current angle to a PWM duty cycle in percent
func (s *Servo) dutyCycle() float64 {
	timeDelta := s.endOnTime - s.startOnTime
	dc := s.frequency * 100 * (s.startOnTime + timeDelta*s.angle/s.maxAngle)
	return math.Round(dc*100) / 100
}
