package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"txdash/internal/core"
)

func readStatus(t *testing.T, conn *websocket.Conn) StatusMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg StatusMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestHub_BroadcastsStatus(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub(nil, nil)
	hub.Start(ctx)
	defer hub.Stop()

	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	initial := readStatus(t, conn)
	assert.Equal(t, "dataset_status", initial.Type)
	assert.Equal(t, core.StatePending, initial.State)

	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, hub.Notify(ctx, core.DatasetStatus{State: core.StateReady, Records: 60}))

	update := readStatus(t, conn)
	assert.Equal(t, core.StateReady, update.State)
	assert.Equal(t, 60, update.Records)
}

func TestHub_NewClientGetsLatestStatus(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub(nil, nil)
	hub.Start(ctx)

	require.NoError(t, hub.Notify(ctx, core.DatasetStatus{State: core.StateFailed, Error: "fetch failed"}))

	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	msg := readStatus(t, conn)
	assert.Equal(t, core.StateFailed, msg.State)
	assert.Equal(t, "fetch failed", msg.Error)
}

func TestHub_StatusDuringConnectIsNotMissed(t *testing.T) {
	for i := 0; i < 20; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		hub := NewHub(nil, nil)
		hub.Start(ctx)
		srv := httptest.NewServer(hub)

		go func() { _ = hub.Notify(ctx, core.DatasetStatus{State: core.StateReady, Records: 3}) }()

		conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
		require.NoError(t, err)

		var last StatusMessage
		for last.State != core.StateReady {
			last = readStatus(t, conn)
		}
		assert.Equal(t, 3, last.Records)

		conn.Close()
		srv.Close()
		cancel()
	}
}

func TestMulti_JoinsErrors(t *testing.T) {
	var got []core.DatasetState
	ok := NotifierFunc(func(_ context.Context, s core.DatasetStatus) error {
		got = append(got, s.State)
		return nil
	})
	failing := NotifierFunc(func(context.Context, core.DatasetStatus) error {
		return errors.New("broker down")
	})

	err := Multi{ok, nil, failing, ok}.Notify(context.Background(), core.DatasetStatus{State: core.StateSeeding})

	assert.ErrorContains(t, err, "broker down")
	assert.Equal(t, []core.DatasetState{core.StateSeeding, core.StateSeeding}, got)
}
