package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// UpdateType names the ledger operation requested
type UpdateType string

const (
	UpdateTypeNFTCreated UpdateType = "NFT_CREATED"
	UpdateTypeNFTMinted  UpdateType = "NFT_MINTED"
)

// LedgerUpdate is the message published for the ledger relay
type LedgerUpdate struct {
	MessageID   string     `json:"messageId"`
	Type        UpdateType `json:"type"`
	NFT         NFT        `json:"nft"`
	RequestedAt time.Time  `json:"requestedAt"`
}

// NewLedgerUpdate stamps an update with a fresh message id
func NewLedgerUpdate(updateType UpdateType, nft NFT, now time.Time) *LedgerUpdate {
	return &LedgerUpdate{
		MessageID:   uuid.NewString(),
		Type:        updateType,
		NFT:         nft,
		RequestedAt: now.UTC(),
	}
}

// Key partitions updates by NFT so one instrument's updates stay ordered
func (u *LedgerUpdate) Key() string {
	return u.NFT.NftID
}

// EncodeLedgerUpdate encodes a LedgerUpdate to JSON
func EncodeLedgerUpdate(u *LedgerUpdate) ([]byte, error) {
	return json.Marshal(u)
}

// DecodeLedgerUpdate decodes JSON to LedgerUpdate
func DecodeLedgerUpdate(data []byte) (*LedgerUpdate, error) {
	var u LedgerUpdate
	if err := json.Unmarshal(data, &u); err != nil {
		return nil, err
	}
	switch u.Type {
	case UpdateTypeNFTCreated, UpdateTypeNFTMinted:
	default:
		return nil, fmt.Errorf("unknown ledger update type: %q", u.Type)
	}
	if _, err := uuid.Parse(u.MessageID); err != nil {
		return nil, fmt.Errorf("invalid message id %q: %w", u.MessageID, err)
	}
	return &u, nil
}
