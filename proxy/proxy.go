package proxy

import (
	"context"
	"fmt"

	"github.com/joshuasello/mycelium-iot/component"
	"github.com/joshuasello/mycelium-iot/errors"
)

// Proxy presents one remote component behind the local Component interface.
// It validates writes and reads against the component's contract before
// anything reaches the wire, so a gate wired to an unknown field fails fast
// without a round trip.
type Proxy struct {
	client   *Client
	id       string
	contract component.Contract
}

var _ component.Component = (*Proxy)(nil)

// Open creates a proxy for a remote component, fetching its contract from
// the driver
func Open(ctx context.Context, client *Client, componentID string) (*Proxy, error) {
	contract, err := client.Describe(ctx, componentID)
	if err != nil {
		return nil, errors.Wrap(err, "Proxy", "Open", "describing component")
	}
	if err := contract.Validate(); err != nil {
		return nil, errors.Wrap(err, "Proxy", "Open", "validating contract")
	}
	return New(client, componentID, contract), nil
}

// New creates a proxy with a known contract, skipping the describe round
// trip. Use Open unless the contract was obtained elsewhere.
func New(client *Client, componentID string, contract component.Contract) *Proxy {
	return &Proxy{client: client, id: componentID, contract: contract}
}

// ID returns the remote component's id
func (p *Proxy) ID() string { return p.id }

// Contract returns the remote component's field contract
func (p *Proxy) Contract() component.Contract { return p.contract }

// Writable returns the remote component's writable fields
func (p *Proxy) Writable() map[string]component.FieldSpec { return p.contract.Writable }

// Readable returns the remote component's readable fields
func (p *Proxy) Readable() map[string]component.FieldSpec { return p.contract.Readable }

// Write validates the value against the contract and forwards it to the
// driver
func (p *Proxy) Write(ctx context.Context, field string, value component.Value) error {
	if err := p.contract.CheckWrite(field, value); err != nil {
		return err
	}
	if err := p.client.Write(ctx, p.id, field, value); err != nil {
		return errors.Wrap(err, "Proxy", "Write", fmt.Sprintf("writing %s.%s", p.id, field))
	}
	return nil
}

// Read validates the field against the contract, fetches the value from
// the driver, and checks that the returned value carries the declared type
func (p *Proxy) Read(ctx context.Context, field string) (component.Value, error) {
	spec, err := p.contract.CheckRead(field)
	if err != nil {
		return component.Value{}, err
	}

	value, err := p.client.Read(ctx, p.id, field)
	if err != nil {
		return component.Value{}, errors.Wrap(err, "Proxy", "Read",
			fmt.Sprintf("reading %s.%s", p.id, field))
	}

	if value.Type() != spec.Type && !(spec.Type == component.TypeFloat && value.Type() == component.TypeInt) {
		return component.Value{}, errors.WrapInvalid(
			fmt.Errorf("field %q declared %s but driver returned %s: %w",
				field, spec.Type, value.Type(), errors.ErrTypeMismatch),
			"Proxy", "Read", "checking response type")
	}
	return value, nil
}
