package component

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuasello/mycelium-iot/errors"
)

func TestValueAccessors(t *testing.T) {
	b := BoolValue(true)
	got, err := b.Bool()
	require.NoError(t, err)
	assert.True(t, got)

	_, err = b.Int()
	assert.ErrorIs(t, err, errors.ErrTypeMismatch)

	i := IntValue(42)
	n, err := i.Int()
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)

	// Int widens to float losslessly
	f, err := i.Float()
	require.NoError(t, err)
	assert.Equal(t, 42.0, f)

	s := StringValue("hello")
	text, err := s.Text()
	require.NoError(t, err)
	assert.Equal(t, "hello", text)
}

func TestValueJSONRoundTrip(t *testing.T) {
	values := []Value{
		BoolValue(true),
		BoolValue(false),
		IntValue(-7),
		IntValue(1 << 40), // large ints must not drift through JSON
		FloatValue(3.25),
		StringValue("servo"),
	}

	for _, v := range values {
		data, err := json.Marshal(v)
		require.NoError(t, err)

		var decoded Value
		require.NoError(t, json.Unmarshal(data, &decoded))
		assert.True(t, v.Equal(decoded), "round trip changed %s", v)
		assert.Equal(t, v.Type(), decoded.Type())
	}
}

func TestValueUnmarshalUnknownType(t *testing.T) {
	var v Value
	err := json.Unmarshal([]byte(`{"type":"complex","value":1}`), &v)
	assert.Error(t, err)
}

func TestZeroValueMarshalFails(t *testing.T) {
	var v Value
	assert.True(t, v.IsZero())
	_, err := json.Marshal(v)
	assert.Error(t, err)
}

func TestFromAny(t *testing.T) {
	v, err := FromAny(5)
	require.NoError(t, err)
	assert.Equal(t, TypeInt, v.Type())

	v, err = FromAny(2.5)
	require.NoError(t, err)
	assert.Equal(t, TypeFloat, v.Type())

	v, err = FromAny("on")
	require.NoError(t, err)
	assert.Equal(t, TypeString, v.Type())

	_, err = FromAny([]int{1})
	assert.Error(t, err)
}

func TestContractCheckWrite(t *testing.T) {
	ct := Contract{
		Writable: map[string]FieldSpec{
			"is_on": {Type: TypeBool, Idempotent: true},
			"angle": {Type: TypeFloat},
		},
		Readable: map[string]FieldSpec{
			"is_on": {Type: TypeBool},
		},
	}

	assert.NoError(t, ct.CheckWrite("is_on", BoolValue(true)))

	// Int accepted where float declared
	assert.NoError(t, ct.CheckWrite("angle", IntValue(90)))

	err := ct.CheckWrite("is_on", IntValue(1))
	assert.ErrorIs(t, err, errors.ErrTypeMismatch)

	err = ct.CheckWrite("frequency", FloatValue(50))
	assert.ErrorIs(t, err, errors.ErrUnknownField)
}

func TestContractCheckRead(t *testing.T) {
	ct := Contract{
		Readable: map[string]FieldSpec{"angle": {Type: TypeFloat}},
	}

	spec, err := ct.CheckRead("angle")
	require.NoError(t, err)
	assert.Equal(t, TypeFloat, spec.Type)

	_, err = ct.CheckRead("missing")
	assert.ErrorIs(t, err, errors.ErrUnknownField)
}

func TestContractValidate(t *testing.T) {
	good := Contract{
		Writable: map[string]FieldSpec{"x": {Type: TypeInt}},
		Readable: map[string]FieldSpec{"y": {Type: TypeBool}},
	}
	assert.NoError(t, good.Validate())

	bad := Contract{Writable: map[string]FieldSpec{"x": {Type: "vector"}}}
	assert.Error(t, bad.Validate())
}

func TestContractJSONRoundTrip(t *testing.T) {
	ct := Contract{
		Writable: map[string]FieldSpec{"is_on": {Type: TypeBool, Idempotent: true}},
		Readable: map[string]FieldSpec{"is_on": {Type: TypeBool}},
	}

	data, err := json.Marshal(ct)
	require.NoError(t, err)

	var decoded Contract
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, ct, decoded)
	assert.True(t, decoded.Writable["is_on"].Idempotent)
}
