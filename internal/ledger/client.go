package ledger

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/smukkama/farm-carbon/internal/protocol"
)

// Sender delivers one update to the ledger
type Sender interface {
	Send(ctx context.Context, update *protocol.LedgerUpdate) error
}

// HTTPSender posts updates as JSON to the ledger endpoint
type HTTPSender struct {
	url    string
	client *http.Client
}

// NewHTTPSender creates a sender with a per-request timeout
func NewHTTPSender(url string, timeout time.Duration) *HTTPSender {
	return &HTTPSender{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// Send posts the update; any non-2xx answer is an error
func (s *HTTPSender) Send(ctx context.Context, update *protocol.LedgerUpdate) error {
	body, err := protocol.EncodeLedgerUpdate(update)
	if err != nil {
		return fmt.Errorf("failed to encode ledger update: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build ledger request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", update.MessageID)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach ledger: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("ledger answered %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// LogSender only logs updates; used while no ledger endpoint is configured
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender creates a log-only sender
func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

// Send logs the update
func (s *LogSender) Send(_ context.Context, update *protocol.LedgerUpdate) error {
	s.logger.Info("Ledger update (no ledger URL configured)",
		zap.String("message_id", update.MessageID),
		zap.String("type", string(update.Type)),
		zap.String("nft_id", update.NFT.NftID),
		zap.String("farm_id", update.NFT.FarmID))
	return nil
}

// NewSender picks the HTTP sender, or the log sender when url is empty
func NewSender(url string, timeout time.Duration, logger *zap.Logger) Sender {
	if url == "" {
		return NewLogSender(logger)
	}
	return NewHTTPSender(url, timeout)
}
