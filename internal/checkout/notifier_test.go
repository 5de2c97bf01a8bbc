package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (m *mockWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if m.err != nil {
		return m.err
	}
	m.msgs = append(m.msgs, msgs...)
	return nil
}

func (m *mockWriter) Close() error {
	m.closed = true
	return nil
}

func TestKafkaNotifier_PublishesEvent(t *testing.T) {
	w := &mockWriter{}
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	n := &KafkaNotifier{writer: w, timeout: time.Second, now: func() time.Time { return fixed }}

	err := n.OrderConfirmed(context.Background(), domain.Order{
		ID:          42,
		UserID:      7,
		Status:      domain.OrderStatusPending,
		TotalAmount: decimal.RequireFromString("64.80"),
		Items:       []domain.OrderItem{{ProductID: 1, Quantity: 3}},
	})
	require.NoError(t, err)

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, "42", string(msg.Key))
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, "event_type", msg.Headers[0].Key)
	assert.Equal(t, EventOrderConfirmed, string(msg.Headers[0].Value))

	var event OrderEvent
	require.NoError(t, json.Unmarshal(msg.Value, &event))
	assert.Equal(t, EventOrderConfirmed, event.EventType)
	assert.Equal(t, int64(7), event.UserID)
	assert.Equal(t, "64.8", event.TotalAmount.String())
	assert.True(t, fixed.Equal(event.ConfirmedAt))
	assert.Len(t, event.Items, 1)
}

func TestKafkaNotifier_WriteError(t *testing.T) {
	w := &mockWriter{err: errors.New("no brokers")}
	n := &KafkaNotifier{writer: w, timeout: time.Second, now: time.Now}

	err := n.OrderConfirmed(context.Background(), domain.Order{ID: 1})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "publish order event")
}

func TestKafkaNotifier_Close(t *testing.T) {
	w := &mockWriter{}
	n := &KafkaNotifier{writer: w}

	require.NoError(t, n.Close())
	assert.True(t, w.closed)
}
