package messaging

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"tessera/internal/logger"

	"github.com/google/uuid"
	"github.com/nats-io/stan.go"
)

var ErrNotConnected = errors.New("nats streaming connection is not established")

type NATSClient struct {
	conn stan.Conn
}

type Config struct {
	URL            string
	ClusterID      string
	ClientID       string
	ConnectTimeout time.Duration
}

func NewNATSClient(cfg Config) (*NATSClient, error) {
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}

	// Уникальный client id, иначе второй инстанс выбьет первый из кластера
	uniqueClientID := fmt.Sprintf("%s-%s", cfg.ClientID, uuid.New().String()[:8])

	conn, err := stan.Connect(cfg.ClusterID, uniqueClientID,
		stan.NatsURL(cfg.URL),
		stan.ConnectWait(cfg.ConnectTimeout),
		stan.SetConnectionLostHandler(func(_ stan.Conn, reason error) {
			logger.Get().Error("NATS Streaming connection lost", "error", reason)
		}))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS Streaming: %w", err)
	}

	logger.Get().Info("Connected to NATS Streaming",
		"url", cfg.URL,
		"cluster", cfg.ClusterID,
		"client", uniqueClientID)

	return &NATSClient{conn: conn}, nil
}

// NewNATSClientWithConn wraps an existing connection.
func NewNATSClientWithConn(conn stan.Conn) *NATSClient {
	return &NATSClient{conn: conn}
}

// Publish sends data as JSON on subject.
func (nc *NATSClient) Publish(subject string, data interface{}) error {
	if nc == nil || nc.conn == nil {
		return ErrNotConnected
	}

	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}

	if err := nc.conn.Publish(subject, payload); err != nil {
		return fmt.Errorf("failed to publish to subject %s: %w", subject, err)
	}

	logger.Get().Debug("Published message", "subject", subject)
	return nil
}

// SubscribeQueue joins a durable queue group with manual acks; handlers must
// call msg.Ack once the message is processed.
func (nc *NATSClient) SubscribeQueue(subject, queue string, handler stan.MsgHandler) (stan.Subscription, error) {
	if nc == nil || nc.conn == nil {
		return nil, ErrNotConnected
	}
	sub, err := nc.conn.QueueSubscribe(subject, queue, handler,
		stan.DurableName(subject+"-"+queue+"-durable"),
		stan.SetManualAckMode(),
		stan.AckWait(30*time.Second),
		stan.MaxInflight(1))
	if err != nil {
		return nil, fmt.Errorf("failed to queue subscribe to subject %s: %w", subject, err)
	}

	logger.Get().Info("Subscribed to subject", "subject", subject, "queue", queue)
	return sub, nil
}

func (nc *NATSClient) Close() error {
	if nc != nil && nc.conn != nil {
		return nc.conn.Close()
	}
	return nil
}
