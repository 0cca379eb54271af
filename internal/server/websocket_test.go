package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	gws "github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type feedEvent struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// listen serves the app on a loopback port and returns its address.
func (e *testEnv) listen(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	go func() { _ = e.app.Listener(ln) }()
	t.Cleanup(func() { _ = e.app.ShutdownWithTimeout(time.Second) })
	return ln.Addr().String()
}

func (e *testEnv) dialFeed(t *testing.T, addr, token string) *gws.Conn {
	t.Helper()
	u := url.URL{Scheme: "ws", Host: addr, Path: "/api/ws", RawQuery: "token=" + url.QueryEscape(token)}

	var conn *gws.Conn
	require.Eventually(t, func() bool {
		c, resp, err := gws.DefaultDialer.Dial(u.String(), nil)
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		if err != nil {
			return false
		}
		conn = c
		return true
	}, 2*time.Second, 20*time.Millisecond)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readFeedEvent(t *testing.T, conn *gws.Conn) feedEvent {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var ev feedEvent
	require.NoError(t, json.Unmarshal(data, &ev), string(data))
	return ev
}

func TestFeedWebsocket_LocalDelivery(t *testing.T) {
	env := newTestEnv(t, "", nil)
	_, token := env.login(t, "alice")
	addr := env.listen(t)

	conn := env.dialFeed(t, addr, token)
	require.Eventually(t, func() bool { return env.server.hub.ConnectionCount() == 1 },
		2*time.Second, 10*time.Millisecond)

	status, body := env.do(t, jsonRequest(t, http.MethodPost, "/api/thread", map[string]string{"content": "live"}), token)
	require.Equal(t, http.StatusCreated, status, string(body))

	ev := readFeedEvent(t, conn)
	assert.Equal(t, "newThread", ev.Type)
	assert.Contains(t, string(ev.Payload), `"content":"live"`)

	created := decode[struct {
		Data struct {
			ID uint `json:"id"`
		} `json:"data"`
	}](t, body).Data

	status, _ = env.do(t, jsonRequest(t, http.MethodPost, "/api/like/"+itoa(created.ID), nil), token)
	require.Equal(t, http.StatusOK, status)

	ev = readFeedEvent(t, conn)
	assert.Equal(t, "updateLike", ev.Type)
	assert.JSONEq(t, `{"threadId":`+itoa(created.ID)+`,"newLikeCount":1}`, string(ev.Payload))
}

func TestFeedWebsocket_RedisRelay(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	env := newTestEnv(t, "reply_broadcast=on", rdb)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, env.server.StartRealtime(ctx))

	_, token := env.login(t, "bob")
	addr := env.listen(t)

	conn := env.dialFeed(t, addr, token)
	require.Eventually(t, func() bool { return env.server.hub.ConnectionCount() == 1 },
		2*time.Second, 10*time.Millisecond)

	status, body := env.do(t, jsonRequest(t, http.MethodPost, "/api/thread", map[string]string{"content": "via redis"}), token)
	require.Equal(t, http.StatusCreated, status, string(body))
	ev := readFeedEvent(t, conn)
	assert.Equal(t, "newThread", ev.Type)

	threadID := decode[struct {
		Data struct {
			ID uint `json:"id"`
		} `json:"data"`
	}](t, body).Data.ID

	status, body = env.do(t, jsonRequest(t, http.MethodPost, "/api/reply", map[string]any{
		"thread_id": threadID, "content": "first",
	}), token)
	require.Equal(t, http.StatusCreated, status, string(body))

	ev = readFeedEvent(t, conn)
	assert.Equal(t, "newReply", ev.Type)
	reply := decode[struct {
		ThreadID     uint  `json:"threadId"`
		RepliesCount int64 `json:"repliesCount"`
	}](t, ev.Payload)
	assert.Equal(t, threadID, reply.ThreadID)
	assert.Equal(t, int64(1), reply.RepliesCount)
}

func TestFeedWebsocket_RejectsWithoutToken(t *testing.T) {
	env := newTestEnv(t, "", nil)
	addr := env.listen(t)

	u := url.URL{Scheme: "ws", Host: addr, Path: "/api/ws"}
	var resp *http.Response
	require.Eventually(t, func() bool {
		var err error
		_, resp, err = gws.DefaultDialer.Dial(u.String(), nil)
		return err != nil && resp != nil
	}, 2*time.Second, 20*time.Millisecond)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
