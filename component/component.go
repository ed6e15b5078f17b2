// Package component defines the capability contract shared by controller
// and driver: a component is a named hardware unit exposing typed writable
// and readable fields. The controller only ever sees this contract; concrete
// pin toggling, PWM timing, and sensing live behind it on the driver side.
package component

import (
	"context"
	"fmt"

	"github.com/joshuasello/mycelium-iot/errors"
)

// FieldSpec declares one field of a component's contract
type FieldSpec struct {
	Type ValueType `json:"type"`

	// Idempotent marks writable fields that are safe to retry blindly.
	// The engine never retries on its own; this annotation is for gates
	// that choose to.
	Idempotent bool `json:"idempotent,omitempty"`

	Description string `json:"description,omitempty"`
}

// Component is the abstract hardware unit contract. Implementations are
// provided by platform packages (or by proxy.Proxy on the controller side)
// and must be safe for the driver's per-component serialized dispatch:
// the server guarantees no two operations on the same component run
// concurrently, so implementations need no internal locking.
type Component interface {
	// Writable returns the fields accepted by Write, keyed by field name
	Writable() map[string]FieldSpec

	// Readable returns the fields returned by Read, keyed by field name
	Readable() map[string]FieldSpec

	// Write sets a writable field to the given value
	Write(ctx context.Context, field string, value Value) error

	// Read returns the current value of a readable field
	Read(ctx context.Context, field string) (Value, error)
}

// Contract is the serializable form of a component's field sets, returned
// by the protocol's describe operation and used by proxies for local
// validation before a request ever reaches the wire.
type Contract struct {
	Writable map[string]FieldSpec `json:"writable"`
	Readable map[string]FieldSpec `json:"readable"`
}

// ContractOf captures a component's field contract
func ContractOf(c Component) Contract {
	return Contract{
		Writable: c.Writable(),
		Readable: c.Readable(),
	}
}

// CheckWrite validates that field is writable and value matches its
// declared type. Unknown fields map to ErrUnknownField, wrong types to
// ErrTypeMismatch, mirroring the wire-level error codes.
func (ct Contract) CheckWrite(field string, value Value) error {
	spec, ok := ct.Writable[field]
	if !ok {
		return errors.WrapInvalid(
			fmt.Errorf("field %q: %w", field, errors.ErrUnknownField),
			"Contract", "CheckWrite", "field lookup")
	}
	if !typeAccepts(spec.Type, value.Type()) {
		return errors.WrapInvalid(
			fmt.Errorf("field %q wants %s, got %s: %w",
				field, spec.Type, value.Type(), errors.ErrTypeMismatch),
			"Contract", "CheckWrite", "type check")
	}
	return nil
}

// CheckRead validates that field is readable and returns its spec
func (ct Contract) CheckRead(field string) (FieldSpec, error) {
	spec, ok := ct.Readable[field]
	if !ok {
		return FieldSpec{}, errors.WrapInvalid(
			fmt.Errorf("field %q: %w", field, errors.ErrUnknownField),
			"Contract", "CheckRead", "field lookup")
	}
	return spec, nil
}

// Validate checks that every declared field has a supported type
func (ct Contract) Validate() error {
	for name, spec := range ct.Writable {
		if !spec.Type.Valid() {
			return errors.WrapInvalid(
				fmt.Errorf("writable field %q has invalid type %q", name, spec.Type),
				"Contract", "Validate", "writable field check")
		}
	}
	for name, spec := range ct.Readable {
		if !spec.Type.Valid() {
			return errors.WrapInvalid(
				fmt.Errorf("readable field %q has invalid type %q", name, spec.Type),
				"Contract", "Validate", "readable field check")
		}
	}
	return nil
}

// typeAccepts reports whether a field declared as want accepts a value
// tagged as got. Int values are accepted by float fields, matching
// Value.Float's lossless widening.
func typeAccepts(want, got ValueType) bool {
	if want == got {
		return true
	}
	return want == TypeFloat && got == TypeInt
}
