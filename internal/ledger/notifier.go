// Package ledger forwards NFT updates to the external ledger. The API
// publishes updates to Kafka without waiting; the relay delivers them.
package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/smukkama/farm-carbon/internal/protocol"
)

// Publisher writes one keyed message to the ledger topic
type Publisher interface {
	Publish(ctx context.Context, key string, value []byte) error
}

// Notifier publishes ledger updates in the background. Its outcome never
// reaches the caller.
type Notifier struct {
	publisher Publisher
	timeout   time.Duration
	logger    *zap.Logger
	onResult  func(error)
	now       func() time.Time
	wg        sync.WaitGroup
}

// NewNotifier creates a notifier; each publish gets timeout to complete
func NewNotifier(publisher Publisher, timeout time.Duration, logger *zap.Logger, onResult func(error)) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	if onResult == nil {
		onResult = func(error) {}
	}
	return &Notifier{
		publisher: publisher,
		timeout:   timeout,
		logger:    logger,
		onResult:  onResult,
		now:       time.Now,
	}
}

// NotifyAsync queues an update for nft and returns immediately
func (n *Notifier) NotifyAsync(updateType protocol.UpdateType, nft protocol.NFT) {
	update := protocol.NewLedgerUpdate(updateType, nft, n.now())

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()

		err := n.publish(update)
		if err != nil {
			n.logger.Error("Ledger notification failed",
				zap.String("message_id", update.MessageID),
				zap.String("type", string(update.Type)),
				zap.String("nft_id", update.NFT.NftID),
				zap.Error(err))
		} else {
			n.logger.Debug("Ledger notification published",
				zap.String("message_id", update.MessageID),
				zap.String("nft_id", update.NFT.NftID))
		}
		n.onResult(err)
	}()
}

func (n *Notifier) publish(update *protocol.LedgerUpdate) error {
	// detached from the request that triggered it
	ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
	defer cancel()

	data, err := protocol.EncodeLedgerUpdate(update)
	if err != nil {
		return fmt.Errorf("failed to encode ledger update: %w", err)
	}
	return n.publisher.Publish(ctx, update.Key(), data)
}

// Wait blocks until every queued notification has finished
func (n *Notifier) Wait() {
	n.wg.Wait()
}
