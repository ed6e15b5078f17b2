package proxy

import (
	"context"
	"log/slog"
	"time"

	"github.com/joshuasello/mycelium-iot/errors"
	"github.com/joshuasello/mycelium-iot/pkg/retry"
	"github.com/joshuasello/mycelium-iot/transport"
)

// DialDriver connects to a driver's TCP address with backoff, covering the
// window where the driver process is still booting. Reconnecting after a
// lost connection is the same call; clients are cheap and a dead one is
// never reused.
func DialDriver(
	ctx context.Context,
	address string,
	transportConfig transport.Config,
	clientConfig ClientConfig,
	logger *slog.Logger,
) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	channel, err := retry.DoWithResult(ctx, retry.Dial(), func() (transport.Channel, error) {
		ch, dialErr := transport.DialTimeout(address, transportConfig, 3*time.Second)
		if dialErr != nil {
			logger.Debug("Driver dial failed; backing off", "address", address, "error", dialErr)
		}
		return ch, dialErr
	})
	if err != nil {
		return nil, errors.WrapTransient(err, "proxy", "DialDriver", "connecting to driver")
	}

	logger.Info("Connected to driver", "address", address)
	return NewClient(channel, clientConfig, logger), nil
}
