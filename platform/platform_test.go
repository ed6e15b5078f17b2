package platform

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuasello/mycelium-iot/component"
	"github.com/joshuasello/mycelium-iot/errors"
)

// fakeComponent is a minimal contract implementation for registry tests
type fakeComponent struct {
	initial bool
}

func (f *fakeComponent) Writable() map[string]component.FieldSpec {
	return map[string]component.FieldSpec{"is_on": {Type: component.TypeBool}}
}

func (f *fakeComponent) Readable() map[string]component.FieldSpec {
	return map[string]component.FieldSpec{"is_on": {Type: component.TypeBool}}
}

func (f *fakeComponent) Write(context.Context, string, component.Value) error { return nil }

func (f *fakeComponent) Read(context.Context, string) (component.Value, error) {
	return component.BoolValue(f.initial), nil
}

func newFake(setup Setup) (component.Component, error) {
	on, err := setup.Bool("turn_on", false)
	if err != nil {
		return nil, err
	}
	return &fakeComponent{initial: on}, nil
}

func TestSetupGetters(t *testing.T) {
	setup := Setup{
		"frequency":   50,
		"pulse_width": 0.0005,
		"label":       "front",
		"enabled":     true,
	}

	f, err := setup.Float("frequency", 0) // int widens to float
	require.NoError(t, err)
	assert.Equal(t, 50.0, f)

	f, err = setup.Float("pulse_width", 0)
	require.NoError(t, err)
	assert.Equal(t, 0.0005, f)

	f, err = setup.Float("missing", 180)
	require.NoError(t, err)
	assert.Equal(t, 180.0, f)

	i, err := setup.Int("frequency", 0)
	require.NoError(t, err)
	assert.Equal(t, int64(50), i)

	s, err := setup.String("label", "")
	require.NoError(t, err)
	assert.Equal(t, "front", s)

	b, err := setup.Bool("enabled", false)
	require.NoError(t, err)
	assert.True(t, b)

	_, err = setup.Bool("label", false)
	assert.ErrorIs(t, err, errors.ErrTypeMismatch)
}

func TestRegistryRegisterAndNew(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.Register("fake", newFake))

	comp, err := registry.New("fake", Setup{"turn_on": true})
	require.NoError(t, err)

	v, err := comp.Read(context.Background(), "is_on")
	require.NoError(t, err)
	on, err := v.Bool()
	require.NoError(t, err)
	assert.True(t, on)
}

func TestRegistryDuplicateTag(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.Register("fake", newFake))

	err := registry.Register("fake", newFake)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestRegistryUnknownTag(t *testing.T) {
	registry := NewRegistry()
	_, err := registry.New("hologram", nil)
	assert.ErrorIs(t, err, errors.ErrInvalidConfig)
}

func TestRegistryAlias(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.Register("toggle", newFake))
	require.NoError(t, registry.Alias("led", "toggle"))

	_, err := registry.New("led", nil)
	assert.NoError(t, err)

	err = registry.Alias("motor", "unregistered")
	assert.Error(t, err)
}

func TestRegistryTags(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.Register("servo", newFake))
	require.NoError(t, registry.Register("led", newFake))

	assert.Equal(t, []string{"led", "servo"}, registry.Tags())
}
