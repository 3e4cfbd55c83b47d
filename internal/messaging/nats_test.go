package messaging

import (
	"encoding/json"
	"errors"
	"testing"

	"tessera/internal/models"

	"github.com/nats-io/stan.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeConn records publishes; other stan.Conn methods are not used.
type fakeConn struct {
	stan.Conn
	subjects []string
	payloads [][]byte
	err      error
	closed   bool
}

func (c *fakeConn) Publish(subject string, data []byte) error {
	if c.err != nil {
		return c.err
	}
	c.subjects = append(c.subjects, subject)
	c.payloads = append(c.payloads, data)
	return nil
}

func (c *fakeConn) QueueSubscribe(subject, qgroup string, cb stan.MsgHandler, opts ...stan.SubscriptionOption) (stan.Subscription, error) {
	if c.err != nil {
		return nil, c.err
	}
	c.subjects = append(c.subjects, subject+"@"+qgroup)
	return nil, nil
}

func (c *fakeConn) Close() error {
	c.closed = true
	return nil
}

func TestPublishEncodesJSON(t *testing.T) {
	conn := &fakeConn{}
	nc := NewNATSClientWithConn(conn)

	err := nc.Publish(models.EventSeatsReleased, models.SeatsReleasedEvent{EventID: 3, UserID: 7, Seats: []string{"A1"}})
	require.NoError(t, err)

	require.Equal(t, []string{models.EventSeatsReleased}, conn.subjects)
	var got models.SeatsReleasedEvent
	require.NoError(t, json.Unmarshal(conn.payloads[0], &got))
	assert.Equal(t, int64(3), got.EventID)
	assert.Equal(t, []string{"A1"}, got.Seats)
}

func TestPublishErrors(t *testing.T) {
	var nilClient *NATSClient
	assert.ErrorIs(t, nilClient.Publish("x", 1), ErrNotConnected)
	assert.ErrorIs(t, (&NATSClient{}).Publish("x", 1), ErrNotConnected)

	conn := &fakeConn{err: errors.New("stan: connection closed")}
	err := NewNATSClientWithConn(conn).Publish("x", 1)
	assert.ErrorContains(t, err, "failed to publish to subject x")

	err = NewNATSClientWithConn(&fakeConn{}).Publish("x", func() {})
	assert.ErrorContains(t, err, "failed to marshal data")
}

func TestClose(t *testing.T) {
	conn := &fakeConn{}
	require.NoError(t, NewNATSClientWithConn(conn).Close())
	assert.True(t, conn.closed)
	assert.NoError(t, (&NATSClient{}).Close())
}

func TestSubscribeQueue(t *testing.T) {
	conn := &fakeConn{}
	_, err := NewNATSClientWithConn(conn).SubscribeQueue(models.EventTicketsPurchased, "workers", func(*stan.Msg) {})
	require.NoError(t, err)
	assert.Equal(t, []string{models.EventTicketsPurchased + "@workers"}, conn.subjects)

	_, err = (&NATSClient{}).SubscribeQueue("x", "q", nil)
	assert.ErrorIs(t, err, ErrNotConnected)

	_, err = NewNATSClientWithConn(&fakeConn{err: errors.New("stan: connection closed")}).SubscribeQueue("x", "q", nil)
	assert.ErrorContains(t, err, "failed to queue subscribe to subject x")
}
