package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	sent := New(ReservationStatusChanged, map[string]any{"reservation_id": 7})
	raw, err := json.Marshal(sent)
	require.NoError(t, err)

	got, err := decode(raw)
	require.NoError(t, err)
	assert.Equal(t, ChannelReservations, got.Channel)
	assert.Equal(t, ReservationStatusChanged, got.Name)
	assert.JSONEq(t, `{"reservation_id":7}`, string(got.Payload))
	assert.True(t, sent.At.Equal(got.At))

	// Publishers that only send the event name still get routed.
	got, err = decode([]byte(`{"event":"recieved-order"}`))
	require.NoError(t, err)
	assert.Equal(t, ChannelOrders, got.Channel)

	_, err = decode([]byte(`{"event":`))
	assert.Error(t, err)
}

// roundTrip publishes one event per channel and checks that only the
// subscribed channel comes through.
func roundTrip(t *testing.T, tr Transport) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream, err := tr.Subscribe(ctx, ChannelTables)
	require.NoError(t, err)

	require.NoError(t, tr.Publish(ctx, New(OrderReceived, map[string]any{"order_id": 1})))
	require.NoError(t, tr.Publish(ctx, New(TableSent, map[string]any{"table_id": 4})))

	evt := receive(t, stream)
	assert.Equal(t, TableSent, evt.Name)
	assert.Equal(t, ChannelTables, evt.Channel)
	assert.JSONEq(t, `{"table_id":4}`, string(evt.Payload))
	assertNoEvent(t, stream)

	cancel()
	select {
	case _, open := <-stream:
		assert.False(t, open)
	case <-time.After(time.Second):
		t.Fatal("stream stayed open after cancel")
	}
}

func TestRedisTransport_RoundTrip(t *testing.T) {
	srv := miniredis.RunT(t)
	tr := NewRedisTransport(srv.Addr(), "", 0)
	defer tr.Close()
	require.NoError(t, tr.Ping(context.Background()))

	roundTrip(t, tr)
}

func TestRedisTransport_MalformedMessageIsSkipped(t *testing.T) {
	srv := miniredis.RunT(t)
	tr := NewRedisTransport(srv.Addr(), "", 0)
	defer tr.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream, err := tr.Subscribe(ctx, ChannelOrders)
	require.NoError(t, err)
	srv.Publish(redisChannelPrefix+string(ChannelOrders), "not json")
	require.NoError(t, tr.Publish(ctx, New(OrderStatusChanged, nil)))

	assert.Equal(t, OrderStatusChanged, receive(t, stream).Name)
}

func TestRedisTransport_Unreachable(t *testing.T) {
	srv := miniredis.RunT(t)
	addr := srv.Addr()
	srv.Close()

	tr := NewRedisTransport(addr, "", 0)
	defer tr.Close()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.Error(t, tr.Publish(ctx, New(TableSent, nil)))
}

func TestPostgresTransport_RoundTrip(t *testing.T) {
	dsn := os.Getenv("POS_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("POS_TEST_DATABASE_URL not set")
	}
	db, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.Ping())

	roundTrip(t, NewPostgresTransport(db, dsn))
}

func TestAMQPTransport_RoundTrip(t *testing.T) {
	url := os.Getenv("POS_TEST_AMQP_URL")
	if url == "" {
		t.Skip("POS_TEST_AMQP_URL not set")
	}
	tr, err := NewAMQPTransport(url)
	require.NoError(t, err)
	defer tr.Close()

	roundTrip(t, tr)
}
