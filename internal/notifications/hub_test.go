package notifications

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testEventuallyTimeout = time.Second
	testPollInterval      = 10 * time.Millisecond
)

func receive(t *testing.T, c *Client) string {
	t.Helper()
	select {
	case msg := <-c.send:
		return string(msg)
	case <-time.After(testEventuallyTimeout):
		t.Fatalf("no message delivered to user %d", c.userID)
		return ""
	}
}

func TestHub_RegisterAndUnregister(t *testing.T) {
	hub := NewHub()

	a, err := hub.Register(1, nil)
	require.NoError(t, err)
	b, err := hub.Register(1, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, hub.ConnectionCount())

	hub.UnregisterClient(a)
	hub.UnregisterClient(a)
	assert.Equal(t, 1, hub.ConnectionCount())

	hub.UnregisterClient(b)
	assert.Equal(t, 0, hub.ConnectionCount())
}

func TestHub_PerUserLimit(t *testing.T) {
	hub := NewHub()
	for i := 0; i < maxConnsPerUser; i++ {
		_, err := hub.Register(3, nil)
		require.NoError(t, err)
	}
	_, err := hub.Register(3, nil)
	assert.ErrorIs(t, err, ErrUserFull)

	_, err = hub.Register(4, nil)
	assert.NoError(t, err)
}

func TestHub_BroadcastAllReachesEveryClient(t *testing.T) {
	hub := NewHub()
	a, _ := hub.Register(1, nil)
	b, _ := hub.Register(2, nil)

	hub.BroadcastAll([]byte("hello"))

	assert.Equal(t, "hello", receive(t, a))
	assert.Equal(t, "hello", receive(t, b))
}

func TestClient_EnqueueDropsOldestWhenFull(t *testing.T) {
	hub := NewHub()
	c, _ := hub.Register(1, nil)

	for i := 0; i < sendBufferSize; i++ {
		c.enqueue([]byte("event"))
	}
	c.enqueue([]byte("overflow"))

	assert.Len(t, c.send, sendBufferSize)

	var last string
	for len(c.send) > 0 {
		last = string(<-c.send)
	}
	assert.JSONEq(t, `{"type":"messages_dropped","payload":{"reason":"buffer_full"}}`, last)
}

func TestHub_ShutdownRejectsNewClients(t *testing.T) {
	hub := NewHub()
	c, _ := hub.Register(1, nil)

	require.NoError(t, hub.Shutdown(context.Background()))
	require.NoError(t, hub.Shutdown(context.Background()))

	assert.Equal(t, 0, hub.ConnectionCount())
	select {
	case <-c.done:
	default:
		t.Fatal("client was not closed on shutdown")
	}

	_, err := hub.Register(2, nil)
	assert.ErrorIs(t, err, ErrHubShutdown)
}

func TestHub_StartWiringRelaysRedisBroadcasts(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = rdb.Close() }()

	hub := NewHub()
	c, _ := hub.Register(8, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	n := NewNotifier(rdb)
	require.NoError(t, hub.StartWiring(ctx, n))
	require.NoError(t, n.PublishBroadcast(ctx, `{"type":"newThread","payload":{}}`))

	assert.JSONEq(t, `{"type":"newThread","payload":{}}`, receive(t, c))
}

func TestClient_EnqueueAfterCloseIsDropped(t *testing.T) {
	hub := NewHub()
	c, _ := hub.Register(1, nil)

	c.Close()
	c.Close()
	c.enqueue([]byte("late"))
	assert.Empty(t, c.send)
}
