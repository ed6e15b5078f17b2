package proxy

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuasello/mycelium-iot/component"
	"github.com/joshuasello/mycelium-iot/errors"
	"github.com/joshuasello/mycelium-iot/transport"
	"github.com/joshuasello/mycelium-iot/wire"
)

// scriptedDriver reads requests off the driver end of a pipe and answers
// with whatever the respond function produces. A nil response drops the
// request on the floor.
func scriptedDriver(t *testing.T, ch transport.Channel, respond func(wire.Request) *wire.Response) {
	t.Helper()
	go func() {
		for {
			data, err := ch.Receive()
			if err != nil {
				return
			}
			req, err := wire.DecodeRequest(data)
			if err != nil {
				return
			}
			resp := respond(req)
			if resp == nil {
				continue
			}
			payload, err := wire.EncodeResponse(*resp)
			if err != nil {
				return
			}
			if err := ch.Send(payload); err != nil {
				return
			}
		}
	}()
}

func newClientPair(t *testing.T, config ClientConfig) (*Client, transport.Channel) {
	t.Helper()
	controllerEnd, driverEnd := transport.Pipe(transport.DefaultConfig())
	client := NewClient(controllerEnd, config, nil)
	t.Cleanup(func() {
		_ = client.Close()
		_ = driverEnd.Close()
	})
	return client, driverEnd
}

func TestClientRoundTrip(t *testing.T) {
	client, driverEnd := newClientPair(t, DefaultClientConfig())
	scriptedDriver(t, driverEnd, func(req wire.Request) *wire.Response {
		resp := wire.OKResponse(req.CorrelationID)
		return &resp
	})

	err := client.Write(context.Background(), "led", "is_on", component.BoolValue(true))
	assert.NoError(t, err)
}

func TestClientReadValue(t *testing.T) {
	client, driverEnd := newClientPair(t, DefaultClientConfig())
	scriptedDriver(t, driverEnd, func(req wire.Request) *wire.Response {
		resp := wire.ValueResponse(req.CorrelationID, component.FloatValue(0.42))
		return &resp
	})

	value, err := client.Read(context.Background(), "sensor", "distance")
	require.NoError(t, err)
	f, err := value.Float()
	require.NoError(t, err)
	assert.InDelta(t, 0.42, f, 1e-9)
}

func TestClientCorrelatesOutOfOrderResponses(t *testing.T) {
	client, driverEnd := newClientPair(t, DefaultClientConfig())

	// Hold the first request's response until the second has been answered
	var mu sync.Mutex
	var held *wire.Response
	release := make(chan struct{})
	scriptedDriver(t, driverEnd, func(req wire.Request) *wire.Response {
		resp := wire.ValueResponse(req.CorrelationID, component.StringValue(req.ComponentID))
		mu.Lock()
		defer mu.Unlock()
		if held == nil {
			held = &resp
			go func() {
				<-release
				payload, _ := wire.EncodeResponse(resp)
				_ = driverEnd.Send(payload)
			}()
			return nil
		}
		close(release)
		return &resp
	})

	ctx := context.Background()
	var wg sync.WaitGroup
	results := make([]component.Value, 2)
	errs := make([]error, 2)
	ids := []string{"alpha", "beta"}
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = client.Read(ctx, ids[i], "state")
		}(i)
		time.Sleep(20 * time.Millisecond) // make arrival order deterministic
	}
	wg.Wait()

	for i := range ids {
		require.NoError(t, errs[i])
		text, err := results[i].Text()
		require.NoError(t, err)
		assert.Equal(t, ids[i], text)
	}
}

func TestClientCallTimeout(t *testing.T) {
	client, driverEnd := newClientPair(t, ClientConfig{CallTimeout: 50 * time.Millisecond})
	scriptedDriver(t, driverEnd, func(wire.Request) *wire.Response {
		return nil // never answer
	})

	_, err := client.Read(context.Background(), "sensor", "distance")
	assert.ErrorIs(t, err, errors.ErrTimeout)
	assert.True(t, errors.IsTransient(err))
}

func TestClientContextCancelled(t *testing.T) {
	client, driverEnd := newClientPair(t, ClientConfig{})
	scriptedDriver(t, driverEnd, func(wire.Request) *wire.Response {
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, err := client.Read(ctx, "sensor", "distance")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClientConnectionLostFailsPendingCalls(t *testing.T) {
	client, driverEnd := newClientPair(t, DefaultClientConfig())
	scriptedDriver(t, driverEnd, func(wire.Request) *wire.Response {
		go func() {
			time.Sleep(20 * time.Millisecond)
			_ = driverEnd.Close()
		}()
		return nil
	})

	_, err := client.Read(context.Background(), "sensor", "distance")
	assert.ErrorIs(t, err, errors.ErrConnectionLost)

	// The client is dead; later calls fail immediately
	_, err = client.Read(context.Background(), "sensor", "distance")
	assert.ErrorIs(t, err, errors.ErrConnectionLost)
}

func TestClientErrorResponseCarriesSentinel(t *testing.T) {
	client, driverEnd := newClientPair(t, DefaultClientConfig())
	scriptedDriver(t, driverEnd, func(req wire.Request) *wire.Response {
		resp := wire.ErrorResponse(req.CorrelationID, errors.ErrUnknownField)
		return &resp
	})

	_, err := client.Read(context.Background(), "led", "brightness")
	assert.ErrorIs(t, err, errors.ErrUnknownField)
	assert.True(t, errors.IsInvalid(err))
}

func TestClientRejectsInvalidRequest(t *testing.T) {
	client, _ := newClientPair(t, DefaultClientConfig())

	_, err := client.Call(context.Background(), wire.Request{Op: wire.OpRead})
	assert.ErrorIs(t, err, errors.ErrProtocol)
}

var testContract = component.Contract{
	Writable: map[string]component.FieldSpec{
		"is_on": {Type: component.TypeBool, Idempotent: true},
		"angle": {Type: component.TypeFloat},
	},
	Readable: map[string]component.FieldSpec{
		"is_on":    {Type: component.TypeBool},
		"distance": {Type: component.TypeFloat},
	},
}

func TestProxyOpenFetchesContract(t *testing.T) {
	client, driverEnd := newClientPair(t, DefaultClientConfig())
	scriptedDriver(t, driverEnd, func(req wire.Request) *wire.Response {
		require.Equal(t, wire.OpDescribe, req.Op)
		resp := wire.ContractResponse(req.CorrelationID, testContract)
		return &resp
	})

	p, err := Open(context.Background(), client, "servo")
	require.NoError(t, err)
	assert.Equal(t, "servo", p.ID())
	assert.Contains(t, p.Writable(), "angle")
	assert.Contains(t, p.Readable(), "distance")
}

func TestProxyValidatesLocallyBeforeWire(t *testing.T) {
	client, driverEnd := newClientPair(t, DefaultClientConfig())

	var wireRequests int
	scriptedDriver(t, driverEnd, func(req wire.Request) *wire.Response {
		wireRequests++
		resp := wire.OKResponse(req.CorrelationID)
		return &resp
	})

	p := New(client, "servo", testContract)
	ctx := context.Background()

	err := p.Write(ctx, "no_such_field", component.BoolValue(true))
	assert.ErrorIs(t, err, errors.ErrUnknownField)

	err = p.Write(ctx, "is_on", component.IntValue(1))
	assert.ErrorIs(t, err, errors.ErrTypeMismatch)

	_, err = p.Read(ctx, "no_such_field")
	assert.ErrorIs(t, err, errors.ErrUnknownField)

	assert.Zero(t, wireRequests, "invalid operations must not reach the wire")
}

func TestProxyWriteAcceptsIntForFloatField(t *testing.T) {
	client, driverEnd := newClientPair(t, DefaultClientConfig())
	scriptedDriver(t, driverEnd, func(req wire.Request) *wire.Response {
		resp := wire.OKResponse(req.CorrelationID)
		return &resp
	})

	p := New(client, "servo", testContract)
	assert.NoError(t, p.Write(context.Background(), "angle", component.IntValue(90)))
}

func TestProxyReadChecksResponseType(t *testing.T) {
	client, driverEnd := newClientPair(t, DefaultClientConfig())
	scriptedDriver(t, driverEnd, func(req wire.Request) *wire.Response {
		resp := wire.ValueResponse(req.CorrelationID, component.StringValue("oops"))
		return &resp
	})

	p := New(client, "servo", testContract)
	_, err := p.Read(context.Background(), "distance")
	assert.ErrorIs(t, err, errors.ErrTypeMismatch)
}

func TestClientList(t *testing.T) {
	client, driverEnd := newClientPair(t, DefaultClientConfig())
	scriptedDriver(t, driverEnd, func(req wire.Request) *wire.Response {
		resp := wire.ListResponse(req.CorrelationID, []string{"led", "servo"})
		return &resp
	})

	ids, err := client.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"led", "servo"}, ids)
}
