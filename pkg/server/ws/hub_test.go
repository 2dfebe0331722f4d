package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/peter-kozarec/tickreplay/pkg/bus"
	"github.com/peter-kozarec/tickreplay/pkg/common"
	"github.com/peter-kozarec/tickreplay/pkg/utility/fixed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func startHub(t *testing.T) (*Hub, string) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(zap.NewNop(), 16)
	go func() { _ = hub.Run(ctx) }()

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func receive(t *testing.T, hub *Hub, conn *websocket.Conn, id bus.EventId, payload any) (int, []byte) {
	t.Helper()
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 5*time.Millisecond)
	hub.Publish(id, payload)

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	mt, data, err := conn.ReadMessage()
	require.NoError(t, err)
	return mt, data
}

func TestHub_JSON(t *testing.T) {
	hub, url := startHub(t)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	mt, data := receive(t, hub, conn, bus.BalanceEvent, common.Balance{TimeStamp: 1, Value: fixed.FromInt(100_000, 0)})
	assert.Equal(t, websocket.TextMessage, mt)

	env, err := CodecJSON.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, "balance", env["type"])
	assert.Equal(t, "100000", env["payload"].(map[string]any)["value"])
}

func TestHub_Proto(t *testing.T) {
	hub, url := startHub(t)
	conn, _, err := websocket.DefaultDialer.Dial(url+"?codec=proto", nil)
	require.NoError(t, err)
	defer conn.Close()

	mt, data := receive(t, hub, conn, bus.ClockEvent, common.ClockUpdate{TimeStamp: 5, Display: "2024-03-04 09:30:00.000", Speed: 10})
	assert.Equal(t, websocket.BinaryMessage, mt)

	env, err := CodecProto.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, "clock", env["type"])
	payload := env["payload"].(map[string]any)
	assert.Equal(t, "2024-03-04 09:30:00.000", payload["display"])
	assert.Equal(t, float64(10), payload["speed"])
}

func TestHub_UnknownCodec(t *testing.T) {
	_, url := startHub(t)
	_, resp, err := websocket.DefaultDialer.Dial(url+"?codec=xml", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 400, resp.StatusCode)
}

func TestForward(t *testing.T) {
	hub := NewHub(zap.NewNop(), 1)
	handler := Forward[common.Balance](hub, bus.BalanceEvent)

	handler(context.Background(), common.Balance{Value: fixed.One})
	handler(context.Background(), common.Balance{Value: fixed.One})

	require.Len(t, hub.broadcast, 1)
	msg := <-hub.broadcast
	assert.Equal(t, bus.BalanceEvent, msg.id)
}

func TestParseCodec(t *testing.T) {
	tests := []struct {
		in      string
		want    Codec
		wantErr bool
	}{
		{"", CodecJSON, false},
		{"json", CodecJSON, false},
		{"proto", CodecProto, false},
		{"protobuf", CodecProto, false},
		{"xml", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseCodec(tt.in)
		if tt.wantErr {
			assert.Error(t, err)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}
