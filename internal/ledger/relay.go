package ledger

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/smukkama/farm-carbon/internal/protocol"
)

// MessageSource is the consumer side of the ledger topic
type MessageSource interface {
	Fetch(ctx context.Context) (kafka.Message, error)
	Commit(ctx context.Context, msg kafka.Message) error
}

// RelayConfig tunes delivery retries
type RelayConfig struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultRelayConfig retries a delivery five times, backing off up to 30s
func DefaultRelayConfig() RelayConfig {
	return RelayConfig{MaxAttempts: 5, InitialBackoff: time.Second, MaxBackoff: 30 * time.Second}
}

// Relay consumes ledger updates and delivers them one at a time. An
// offset is committed once the update was delivered, or dropped after the
// last attempt, so a crash redelivers at most the message in flight.
type Relay struct {
	source   MessageSource
	sender   Sender
	cfg      RelayConfig
	logger   *zap.Logger
	onResult func(error)
}

// NewRelay creates a relay
func NewRelay(source MessageSource, sender Sender, cfg RelayConfig, logger *zap.Logger, onResult func(error)) *Relay {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = time.Second
	}
	if cfg.MaxBackoff < cfg.InitialBackoff {
		cfg.MaxBackoff = cfg.InitialBackoff
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if onResult == nil {
		onResult = func(error) {}
	}
	return &Relay{source: source, sender: sender, cfg: cfg, logger: logger, onResult: onResult}
}

// Run consumes until ctx is cancelled
func (r *Relay) Run(ctx context.Context) error {
	for {
		msg, err := r.source.Fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			r.logger.Warn("Consumer error", zap.Error(err))
			if !sleep(ctx, r.cfg.InitialBackoff) {
				return nil
			}
			continue
		}

		r.logger.Debug("Consumed ledger update",
			zap.Int("partition", msg.Partition),
			zap.Int64("offset", msg.Offset))

		if !r.process(ctx, msg) {
			return nil
		}

		if err := r.source.Commit(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			r.logger.Error("Failed to commit offset", zap.Int64("offset", msg.Offset), zap.Error(err))
		}
	}
}

// process delivers one message; false means ctx ended before a verdict
func (r *Relay) process(ctx context.Context, msg kafka.Message) bool {
	update, err := protocol.DecodeLedgerUpdate(msg.Value)
	if err != nil {
		r.logger.Error("Dropping undecodable ledger update", zap.Int64("offset", msg.Offset), zap.Error(err))
		r.onResult(err)
		return true
	}

	backoff := r.cfg.InitialBackoff
	for attempt := 1; ; attempt++ {
		err = r.sender.Send(ctx, update)
		if err == nil {
			r.logger.Info("Ledger update delivered",
				zap.String("message_id", update.MessageID),
				zap.String("nft_id", update.NFT.NftID))
			r.onResult(nil)
			return true
		}
		if ctx.Err() != nil {
			return false
		}
		if attempt >= r.cfg.MaxAttempts {
			r.logger.Error("Dropping ledger update after retries",
				zap.String("message_id", update.MessageID),
				zap.Int("attempts", attempt),
				zap.Error(err))
			r.onResult(err)
			return true
		}

		r.logger.Warn("Ledger delivery failed, retrying",
			zap.String("message_id", update.MessageID),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", backoff),
			zap.Error(err))
		if !sleep(ctx, backoff) {
			return false
		}
		backoff = min(backoff*2, r.cfg.MaxBackoff)
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
