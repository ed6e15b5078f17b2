// Package proxy is the controller-side view of a remote driver. A Client
// owns one transport channel and correlates concurrent requests with their
// responses; a Proxy wraps one remote component behind the local Component
// interface so gates never notice the network.
package proxy

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joshuasello/mycelium-iot/component"
	"github.com/joshuasello/mycelium-iot/errors"
	"github.com/joshuasello/mycelium-iot/transport"
	"github.com/joshuasello/mycelium-iot/wire"
)

// ClientConfig holds controller-side request settings
type ClientConfig struct {
	// CallTimeout bounds one request/response exchange. Zero disables
	// the per-call timer; the caller's context still applies.
	CallTimeout time.Duration
}

// DefaultClientConfig returns a config with sensible defaults
func DefaultClientConfig() ClientConfig {
	return ClientConfig{CallTimeout: 5 * time.Second}
}

// Client multiplexes correlated requests over a single channel to one
// driver. It is safe for concurrent use; responses are matched to waiting
// callers by correlation id, so they may arrive in any order.
type Client struct {
	channel transport.Channel
	config  ClientConfig
	logger  *slog.Logger

	nextID atomic.Uint64

	mu      sync.Mutex
	pending map[uint64]chan wire.Response
	cause   error

	done chan struct{}
}

// NewClient wraps an established channel and starts the receive loop. The
// client owns the channel from here on; close the client, not the channel.
func NewClient(channel transport.Channel, config ClientConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	c := &Client{
		channel: channel,
		config:  config,
		logger:  logger,
		pending: make(map[uint64]chan wire.Response),
		done:    make(chan struct{}),
	}
	go c.receiveLoop()
	return c
}

// Close tears down the channel and fails all in-flight calls
func (c *Client) Close() error {
	err := c.channel.Close()
	<-c.done
	return err
}

// Call sends one request and waits for its correlated response. The
// correlation id is assigned here; any value already set is overwritten.
func (c *Client) Call(ctx context.Context, req wire.Request) (wire.Response, error) {
	req.CorrelationID = c.nextID.Add(1)
	if err := req.Validate(); err != nil {
		return wire.Response{}, err
	}

	data, err := wire.EncodeRequest(req)
	if err != nil {
		return wire.Response{}, err
	}

	ch := make(chan wire.Response, 1)

	c.mu.Lock()
	if c.cause != nil {
		cause := c.cause
		c.mu.Unlock()
		return wire.Response{}, errors.WrapTransient(cause, "Client", "Call", "sending request")
	}
	c.pending[req.CorrelationID] = ch
	c.mu.Unlock()

	if err := c.channel.Send(data); err != nil {
		c.unregister(req.CorrelationID)
		return wire.Response{}, errors.WrapTransient(err, "Client", "Call", "sending request")
	}

	var timeout <-chan time.Time
	if c.config.CallTimeout > 0 {
		timer := time.NewTimer(c.config.CallTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case resp := <-ch:
		return resp, nil
	case <-timeout:
		c.unregister(req.CorrelationID)
		return wire.Response{}, errors.WrapTransient(
			fmt.Errorf("no response after %s: %w", c.config.CallTimeout, errors.ErrTimeout),
			"Client", "Call", "awaiting response")
	case <-ctx.Done():
		c.unregister(req.CorrelationID)
		return wire.Response{}, errors.WrapTransient(ctx.Err(), "Client", "Call", "awaiting response")
	case <-c.done:
		c.mu.Lock()
		cause := c.cause
		c.mu.Unlock()
		return wire.Response{}, errors.WrapTransient(cause, "Client", "Call", "awaiting response")
	}
}

// Write sets one field on a remote component
func (c *Client) Write(ctx context.Context, componentID, field string, value component.Value) error {
	resp, err := c.Call(ctx, wire.Request{
		Op:          wire.OpWrite,
		ComponentID: componentID,
		Field:       field,
		Value:       &value,
	})
	if err != nil {
		return err
	}
	return resp.Err()
}

// Read returns the current value of one field on a remote component
func (c *Client) Read(ctx context.Context, componentID, field string) (component.Value, error) {
	resp, err := c.Call(ctx, wire.Request{
		Op:          wire.OpRead,
		ComponentID: componentID,
		Field:       field,
	})
	if err != nil {
		return component.Value{}, err
	}
	if err := resp.Err(); err != nil {
		return component.Value{}, err
	}
	if resp.Value == nil {
		return component.Value{}, errors.WrapInvalid(
			fmt.Errorf("read response without value: %w", errors.ErrProtocol),
			"Client", "Read", "decoding response")
	}
	return *resp.Value, nil
}

// Describe fetches a remote component's field contract
func (c *Client) Describe(ctx context.Context, componentID string) (component.Contract, error) {
	resp, err := c.Call(ctx, wire.Request{
		Op:          wire.OpDescribe,
		ComponentID: componentID,
	})
	if err != nil {
		return component.Contract{}, err
	}
	if err := resp.Err(); err != nil {
		return component.Contract{}, err
	}
	if resp.Contract == nil {
		return component.Contract{}, errors.WrapInvalid(
			fmt.Errorf("describe response without contract: %w", errors.ErrProtocol),
			"Client", "Describe", "decoding response")
	}
	return *resp.Contract, nil
}

// List returns the ids of all components the driver serves
func (c *Client) List(ctx context.Context) ([]string, error) {
	resp, err := c.Call(ctx, wire.Request{Op: wire.OpList})
	if err != nil {
		return nil, err
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}
	return resp.Components, nil
}

// receiveLoop demultiplexes responses to their waiting callers until the
// channel fails or is closed
func (c *Client) receiveLoop() {
	for {
		data, err := c.channel.Receive()
		if err != nil {
			c.fail(err)
			return
		}

		resp, err := wire.DecodeResponse(data)
		if err != nil {
			// A peer that sends malformed frames can no longer be
			// trusted to correlate anything; drop the connection.
			c.logger.Warn("Malformed response frame; closing connection", "error", err)
			_ = c.channel.Close()
			c.fail(err)
			return
		}

		c.mu.Lock()
		ch, ok := c.pending[resp.CorrelationID]
		if ok {
			delete(c.pending, resp.CorrelationID)
		}
		c.mu.Unlock()

		if !ok {
			// Late response to a timed-out or cancelled call
			c.logger.Debug("Discarding unmatched response",
				"correlation_id", resp.CorrelationID)
			continue
		}
		ch <- resp
	}
}

// fail marks the client dead and wakes every in-flight call
func (c *Client) fail(cause error) {
	c.mu.Lock()
	if c.cause == nil {
		c.cause = cause
	}
	c.pending = make(map[uint64]chan wire.Response)
	c.mu.Unlock()
	close(c.done)
}

func (c *Client) unregister(correlationID uint64) {
	c.mu.Lock()
	delete(c.pending, correlationID)
	c.mu.Unlock()
}
