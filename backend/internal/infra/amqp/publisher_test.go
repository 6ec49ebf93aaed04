package amqp

import (
	"context"
	"encoding/json"
	"testing"

	amqp091 "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ivankudzin/nikah/backend/internal/domain/enums"
	"github.com/ivankudzin/nikah/backend/internal/domain/model"
)

type channelStub struct {
	exchange string
	key      string
	msg      amqp091.Publishing
}

func (c *channelStub) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp091.Publishing) error {
	c.exchange = exchange
	c.key = key
	c.msg = msg
	return nil
}

func (c *channelStub) Close() error { return nil }

func TestPublisherEncodesNotification(t *testing.T) {
	ch := &channelStub{}
	p := &Publisher{channel: ch, exchange: DefaultExchange, logger: zap.NewNop()}

	err := p.Notify(context.Background(), model.Notification{
		ID:            "n-1",
		Kind:          enums.NotificationMatchCreated,
		UserID:        4,
		CounterpartID: 5,
		Recipient:     model.NotificationRecipient{Email: "wali@example.org"},
	})
	require.NoError(t, err)
	require.Equal(t, DefaultExchange, ch.exchange)
	require.Equal(t, "notification.match_created", ch.key)
	require.Equal(t, "n-1", ch.msg.MessageId)
	require.Equal(t, amqp091.Persistent, ch.msg.DeliveryMode)

	var decoded model.Notification
	require.NoError(t, json.Unmarshal(ch.msg.Body, &decoded))
	require.Equal(t, "wali@example.org", decoded.Recipient.Email)
	require.Equal(t, int64(5), decoded.CounterpartID)
}
