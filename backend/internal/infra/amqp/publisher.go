package amqp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp091 "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/ivankudzin/nikah/backend/internal/domain/model"
)

const DefaultExchange = "nikah.notifications"

type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	Close() error
}

// Publisher hands notifications to RabbitMQ for the mail and push workers. The
// routing key is "notification.<kind>".
type Publisher struct {
	conn     *amqp091.Connection
	channel  channel
	exchange string
	logger   *zap.Logger
	mu       sync.Mutex
}

func NewPublisher(url, exchange string, logger *zap.Logger) (*Publisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if exchange == "" {
		exchange = DefaultExchange
	}

	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open rabbitmq channel: %w", err)
	}

	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare rabbitmq exchange: %w", err)
	}

	logger.Info("rabbitmq publisher connected", zap.String("exchange", exchange))

	return &Publisher{
		conn:     conn,
		channel:  ch,
		exchange: exchange,
		logger:   logger,
	}, nil
}

func (p *Publisher) Notify(ctx context.Context, msg model.Notification) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.channel.PublishWithContext(ctx, p.exchange, RoutingKey(msg), false, false, amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		MessageId:    msg.ID,
		Timestamp:    time.Now().UTC(),
		Type:         string(msg.Kind),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}

	p.logger.Debug("notification published",
		zap.String("notification_id", msg.ID),
		zap.String("routing_key", RoutingKey(msg)),
	)
	return nil
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.channel != nil {
		if err := p.channel.Close(); err != nil {
			p.logger.Warn("close rabbitmq channel", zap.Error(err))
		}
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

func RoutingKey(msg model.Notification) string {
	return "notification." + string(msg.Kind)
}
