package alert

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"ladderbot/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockAlertChannel struct {
	name string
	err  error
	sent []AlertPayload
	mu   sync.Mutex
}

func (m *mockAlertChannel) Name() string {
	return m.name
}

func (m *mockAlertChannel) Send(ctx context.Context, alert AlertPayload) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, alert)
	return m.err
}

func (m *mockAlertChannel) getSent() []AlertPayload {
	m.mu.Lock()
	defer m.mu.Unlock()
	res := make([]AlertPayload, len(m.sent))
	copy(res, m.sent)
	return res
}

type mockLogger struct{}

func (m *mockLogger) Debug(msg string, f ...interface{})               {}
func (m *mockLogger) Info(msg string, f ...interface{})                {}
func (m *mockLogger) Warn(msg string, f ...interface{})                {}
func (m *mockLogger) Error(msg string, f ...interface{})               {}
func (m *mockLogger) Fatal(msg string, f ...interface{})               {}
func (m *mockLogger) WithField(k string, v interface{}) core.ILogger   { return m }
func (m *mockLogger) WithFields(f map[string]interface{}) core.ILogger { return m }

func TestAlertManager_FansOut(t *testing.T) {
	am := NewAlertManager(2, &mockLogger{})

	ch1 := &mockAlertChannel{name: "mock1"}
	ch2 := &mockAlertChannel{name: "mock2", err: errors.New("unreachable")}
	am.AddChannel(ch1)
	am.AddChannel(ch2)

	ctx, cancel := context.WithCancel(context.Background())
	am.Alert(ctx, "Ladder stopped", "step limit reached", core.AlertWarning, map[string]string{"step": "7"})
	cancel()
	am.Close()

	sent1 := ch1.getSent()
	require.Len(t, sent1, 1)
	assert.Equal(t, "Ladder stopped", sent1[0].Title)
	assert.Equal(t, core.AlertWarning, sent1[0].Level)
	assert.Equal(t, "7", sent1[0].Fields["step"])
	assert.Len(t, ch2.getSent(), 1)
}

func TestTelegramChannel_Send(t *testing.T) {
	var got map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botTOKEN/sendMessage", r.URL.Path)
		_ = json.NewDecoder(r.Body).Decode(&got)
	}))
	defer server.Close()

	ch := NewTelegramChannel("TOKEN", "42")
	ch.baseURL = server.URL

	err := ch.Send(context.Background(), AlertPayload{
		Level:   core.AlertCritical,
		Title:   "Gateway failure",
		Message: "close_all failed",
		Fields:  map[string]string{"op": "close_all", "attempt": "3"},
	})
	require.NoError(t, err)
	assert.Equal(t, "42", got["chat_id"])
	assert.Contains(t, got["text"], "[CRITICAL] Gateway failure")
	assert.Contains(t, got["text"], "- *attempt*: 3\n- *op*: close_all")
}

func TestTelegramChannel_Errors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	ch := NewTelegramChannel("TOKEN", "42")
	ch.baseURL = server.URL
	assert.Error(t, ch.Send(context.Background(), AlertPayload{Title: "x"}))

	unconfigured := NewTelegramChannel("", "")
	assert.NoError(t, unconfigured.Send(context.Background(), AlertPayload{Title: "x"}))
}

func TestSlackChannel_Send(t *testing.T) {
	var got struct {
		Attachments []struct {
			Color   string `json:"color"`
			Pretext string `json:"pretext"`
			Fields  []struct {
				Title string `json:"title"`
			} `json:"fields"`
		} `json:"attachments"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
	}))
	defer server.Close()

	ch := NewSlackChannel(server.URL)
	err := ch.Send(context.Background(), AlertPayload{
		Level:  core.AlertWarning,
		Title:  "Ladder stopped",
		Fields: map[string]string{"symbol": "XAUUSD", "pnl": "-0.04"},
	})
	require.NoError(t, err)
	require.Len(t, got.Attachments, 1)
	assert.Equal(t, "#ffcc00", got.Attachments[0].Color)
	assert.Equal(t, "[WARNING] Ladder stopped", got.Attachments[0].Pretext)
	require.Len(t, got.Attachments[0].Fields, 2)
	assert.Equal(t, "pnl", got.Attachments[0].Fields[0].Title)

	assert.NoError(t, NewSlackChannel("").Send(context.Background(), AlertPayload{}))
}
