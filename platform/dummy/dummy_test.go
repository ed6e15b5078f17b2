package dummy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuasello/mycelium-iot/component"
	"github.com/joshuasello/mycelium-iot/errors"
	"github.com/joshuasello/mycelium-iot/platform"
)

func TestDefaultRegistryTags(t *testing.T) {
	registry := Default()
	assert.Equal(t,
		[]string{"led", "motor", "servo", "switch", "toggle", "ultrasonic"},
		registry.Tags())
}

func TestToggleWriteRead(t *testing.T) {
	ctx := context.Background()
	comp, err := NewToggle(nil)
	require.NoError(t, err)

	// Write followed by Read mirrors the value
	require.NoError(t, comp.Write(ctx, "is_on", component.BoolValue(true)))
	v, err := comp.Read(ctx, "is_on")
	require.NoError(t, err)
	on, err := v.Bool()
	require.NoError(t, err)
	assert.True(t, on)

	// toggle flips state
	require.NoError(t, comp.Write(ctx, "toggle", component.BoolValue(true)))
	v, err = comp.Read(ctx, "is_on")
	require.NoError(t, err)
	on, err = v.Bool()
	require.NoError(t, err)
	assert.False(t, on)

	// toggle=false is a no-op
	require.NoError(t, comp.Write(ctx, "toggle", component.BoolValue(false)))
	v, err = comp.Read(ctx, "is_on")
	require.NoError(t, err)
	on, err = v.Bool()
	require.NoError(t, err)
	assert.False(t, on)
}

func TestToggleSetupDefault(t *testing.T) {
	comp, err := NewToggle(platform.Setup{"turn_on": true})
	require.NoError(t, err)

	v, err := comp.Read(context.Background(), "is_on")
	require.NoError(t, err)
	on, err := v.Bool()
	require.NoError(t, err)
	assert.True(t, on)
}

func TestToggleUnknownField(t *testing.T) {
	ctx := context.Background()
	comp, err := NewToggle(nil)
	require.NoError(t, err)

	err = comp.Write(ctx, "brightness", component.IntValue(50))
	assert.ErrorIs(t, err, errors.ErrUnknownField)

	_, err = comp.Read(ctx, "brightness")
	assert.ErrorIs(t, err, errors.ErrUnknownField)
}

func TestToggleIdempotencyAnnotations(t *testing.T) {
	comp, err := NewToggle(nil)
	require.NoError(t, err)

	writable := comp.Writable()
	assert.True(t, writable["is_on"].Idempotent)
	assert.False(t, writable["toggle"].Idempotent)
}

func TestSwitchSimulatedPosition(t *testing.T) {
	ctx := context.Background()
	comp, err := NewSwitch(platform.Setup{"is_on": true})
	require.NoError(t, err)

	v, err := comp.Read(ctx, "is_on")
	require.NoError(t, err)
	on, err := v.Bool()
	require.NoError(t, err)
	assert.True(t, on)

	require.NoError(t, comp.Write(ctx, "is_on", component.BoolValue(false)))
	v, err = comp.Read(ctx, "is_on")
	require.NoError(t, err)
	on, err = v.Bool()
	require.NoError(t, err)
	assert.False(t, on)
}

func TestServoRequiresActivation(t *testing.T) {
	ctx := context.Background()
	comp, err := NewServo(nil)
	require.NoError(t, err)

	err = comp.Write(ctx, "angle", component.FloatValue(90))
	assert.ErrorIs(t, err, errors.ErrHardwareFault)

	require.NoError(t, comp.Write(ctx, "is_active", component.BoolValue(true)))
	require.NoError(t, comp.Write(ctx, "angle", component.FloatValue(90)))

	v, err := comp.Read(ctx, "angle")
	require.NoError(t, err)
	angle, err := v.Float()
	require.NoError(t, err)
	assert.Equal(t, 90.0, angle)
}

func TestServoAngleBounds(t *testing.T) {
	ctx := context.Background()
	comp, err := NewServo(platform.Setup{"max_angle": 90})
	require.NoError(t, err)
	require.NoError(t, comp.Write(ctx, "is_active", component.BoolValue(true)))

	err = comp.Write(ctx, "angle", component.FloatValue(91))
	assert.ErrorIs(t, err, errors.ErrHardwareFault)

	err = comp.Write(ctx, "angle", component.FloatValue(-1))
	assert.ErrorIs(t, err, errors.ErrHardwareFault)

	assert.NoError(t, comp.Write(ctx, "angle", component.FloatValue(90)))
}

func TestServoDutyCycle(t *testing.T) {
	ctx := context.Background()
	comp, err := NewServo(nil)
	require.NoError(t, err)
	require.NoError(t, comp.Write(ctx, "is_active", component.BoolValue(true)))
	require.NoError(t, comp.Write(ctx, "angle", component.FloatValue(180)))

	// SG90 defaults: 50 Hz * 100 * 2.5ms = 12.5% at full deflection
	v, err := comp.Read(ctx, "duty_cycle")
	require.NoError(t, err)
	dc, err := v.Float()
	require.NoError(t, err)
	assert.InDelta(t, 12.5, dc, 0.001)
}

func TestServoInvalidSetup(t *testing.T) {
	_, err := NewServo(platform.Setup{"frequency": -1})
	assert.ErrorIs(t, err, errors.ErrInvalidConfig)

	_, err = NewServo(platform.Setup{"start_on_time": 0.003, "end_on_time": 0.001})
	assert.ErrorIs(t, err, errors.ErrInvalidConfig)
}

func TestServoAcceptsIntAngle(t *testing.T) {
	ctx := context.Background()
	comp, err := NewServo(nil)
	require.NoError(t, err)
	require.NoError(t, comp.Write(ctx, "is_active", component.BoolValue(true)))

	// Int widens to the declared float type
	assert.NoError(t, comp.Write(ctx, "angle", component.IntValue(45)))
}

func TestUltrasonicEchoTime(t *testing.T) {
	ctx := context.Background()
	comp, err := NewUltrasonic(platform.Setup{"distance": 1.715}) // = speedOfSound/200
	require.NoError(t, err)

	v, err := comp.Read(ctx, "time_change")
	require.NoError(t, err)
	echo, err := v.Float()
	require.NoError(t, err)
	assert.InDelta(t, 0.01, echo, 1e-9)

	// Moving the target changes the echo time
	require.NoError(t, comp.Write(ctx, "distance", component.FloatValue(3.43)))
	v, err = comp.Read(ctx, "time_change")
	require.NoError(t, err)
	echo, err = v.Float()
	require.NoError(t, err)
	assert.InDelta(t, 0.02, echo, 1e-9)
}

func TestUltrasonicRejectsNegativeDistance(t *testing.T) {
	ctx := context.Background()
	comp, err := NewUltrasonic(nil)
	require.NoError(t, err)

	err = comp.Write(ctx, "distance", component.FloatValue(-2))
	assert.ErrorIs(t, err, errors.ErrHardwareFault)

	_, err = NewUltrasonic(platform.Setup{"measurements": 0})
	assert.ErrorIs(t, err, errors.ErrInvalidConfig)
}

func TestContractsValidate(t *testing.T) {
	registry := Default()
	for _, tag := range registry.Tags() {
		comp, err := registry.New(tag, nil)
		require.NoError(t, err, tag)
		assert.NoError(t, component.ContractOf(comp).Validate(), tag)
	}
}
