package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"fund_ledger/internal/ledger"

	"github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChannel struct {
	exchange string
	key      string
	msg      amqp091.Publishing
	err      error
	closed   bool
}

func (f *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp091.Publishing) error {
	f.exchange, f.key, f.msg = exchange, key, msg
	return f.err
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

func TestPublisher_Notify(t *testing.T) {
	ch := &fakeChannel{}
	p := &Publisher{channel: ch, exchange: "fund_ledger"}
	at := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)

	err := p.Notify(context.Background(), ledger.Event{
		Type: ledger.EventDepositCreated, UserID: 3, FundID: 7, RecordID: 11, Amount: 42.5, OccurredAt: at,
	})
	require.NoError(t, err)

	assert.Equal(t, "fund_ledger", ch.exchange)
	assert.Equal(t, ledger.EventDepositCreated, ch.key)
	assert.Equal(t, "application/json", ch.msg.ContentType)
	assert.Equal(t, amqp091.Persistent, ch.msg.DeliveryMode)
	assert.True(t, at.Equal(ch.msg.Timestamp))

	var decoded ledger.Event
	require.NoError(t, json.Unmarshal(ch.msg.Body, &decoded))
	assert.Equal(t, uint(7), decoded.FundID)
	assert.Equal(t, 42.5, decoded.Amount)
}

func TestPublisher_NotifyError(t *testing.T) {
	ch := &fakeChannel{err: errors.New("channel closed")}
	p := &Publisher{channel: ch, exchange: "fund_ledger"}

	err := p.Notify(context.Background(), ledger.Event{Type: ledger.EventWithdrawalCreated})
	assert.ErrorContains(t, err, "publish withdrawal.created")

	require.NoError(t, p.Close())
	assert.True(t, ch.closed)
}
