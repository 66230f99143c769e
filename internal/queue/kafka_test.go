package queue

import (
	"context"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProducer_KeyedAndDurable(t *testing.T) {
	p := NewProducer([]string{"kafka-1:9092", "kafka-2:9092"}, "farm.ledger.updates")
	defer p.Close()

	assert.Equal(t, "farm.ledger.updates", p.writer.Topic)
	assert.IsType(t, &kafka.Hash{}, p.writer.Balancer)
	assert.Equal(t, kafka.RequireAll, p.writer.RequiredAcks)
}

func TestEnsureTopic_NoBrokers(t *testing.T) {
	err := EnsureTopic(context.Background(), nil, "farm.ledger.updates", 3, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no kafka brokers")
}
