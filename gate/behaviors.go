package gate

import (
	"context"

	"github.com/joshuasello/mycelium-iot/component"
)

// Const returns a source behavior that emits the same values every cycle
func Const(out Outputs) Behavior {
	fixed := make(Outputs, len(out))
	for port, value := range out {
		fixed[port] = value
	}
	return func(context.Context, Inputs) (Outputs, error) {
		return fixed, nil
	}
}

// ReadField returns a source behavior that reads one component field each
// cycle and emits it on outPort. The component is typically a proxy, which
// makes this gate the network's window onto a remote sensor.
func ReadField(c component.Component, field, outPort string) Behavior {
	return func(ctx context.Context, _ Inputs) (Outputs, error) {
		value, err := c.Read(ctx, field)
		if err != nil {
			return nil, err
		}
		return Outputs{outPort: value}, nil
	}
}

// WriteField returns a sink behavior that writes the value arriving on
// inPort to one component field each cycle.
func WriteField(c component.Component, field, inPort string) Behavior {
	return func(ctx context.Context, in Inputs) (Outputs, error) {
		if err := c.Write(ctx, field, in[inPort]); err != nil {
			return nil, err
		}
		return Outputs{}, nil
	}
}

// Map returns a behavior that transforms its inputs with a plain function
func Map(f func(in Inputs) (Outputs, error)) Behavior {
	return func(_ context.Context, in Inputs) (Outputs, error) {
		return f(in)
	}
}
