package ws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoCounter принимает n сообщений и отдает их в канал
func echoCounter(t *testing.T, n int) (*httptest.Server, <-chan []string) {
	t.Helper()
	received := make(chan []string, 1)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upgrader := websocket.Upgrader{}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		var msgs []string
		for i := 0; i < n; i++ {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			msgs = append(msgs, string(msg))
		}
		received <- msgs
	}))
	t.Cleanup(server.Close)
	return server, received
}

func dial(t *testing.T, server *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	return conn
}

func TestSafeWriterConcurrentWrites(t *testing.T) {
	server, received := echoCounter(t, 10)
	conn := dial(t, server, "")
	defer conn.Close()

	writer := NewSafeWriter(conn, time.Second)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			msg := struct {
				ID  int    `json:"id"`
				Msg string `json:"msg"`
			}{ID: id, Msg: "test"}
			assert.NoError(t, writer.WriteJSON(msg))
		}(i)
	}
	wg.Wait()

	select {
	case msgs := <-received:
		require.Len(t, msgs, 10)
		uniq := make(map[string]struct{})
		for _, m := range msgs {
			uniq[m] = struct{}{}
		}
		assert.Len(t, uniq, 10)
	case <-time.After(2 * time.Second):
		t.Fatal("messages not received")
	}
}

func TestSafeWriterClose(t *testing.T) {
	server, _ := echoCounter(t, 1)
	conn := dial(t, server, "")

	writer := NewSafeWriter(conn, 0)
	require.NoError(t, writer.Close())
	assert.Error(t, writer.WriteJSON("test"))
}

func TestSafeWriterCloseGracefully(t *testing.T) {
	closeErr := make(chan error, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upgrader := websocket.Upgrader{}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		_, _, err = conn.ReadMessage()
		closeErr <- err
	}))
	t.Cleanup(server.Close)

	writer := NewSafeWriter(dial(t, server, ""), time.Second)
	assert.NoError(t, writer.CloseGracefully(websocket.CloseGoingAway, "bye"))

	select {
	case err := <-closeErr:
		var ce *websocket.CloseError
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, websocket.CloseGoingAway, ce.Code)
		assert.Equal(t, "bye", ce.Text)
	case <-time.After(2 * time.Second):
		t.Fatal("close frame not received")
	}
	assert.Error(t, writer.WriteMessage(websocket.TextMessage, []byte("late")))
}
