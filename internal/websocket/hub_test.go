package websocket

import (
	"encoding/json"
	"testing"
	"time"

	"updown/internal/models"
)

func newTestHub() *Hub {
	h := NewHub(nil)
	go h.Run()
	return h
}

// testClient регистрирует клиента напрямую, без HTTP-апгрейда
func addTestClient(h *Hub) *Client {
	c := &Client{hub: h, send: make(chan []byte, clientSendBufferSize)}
	h.register <- c
	return c
}

func recv(t *testing.T, c *Client) []byte {
	t.Helper()
	select {
	case msg := <-c.send:
		return msg
	case <-time.After(time.Second):
		t.Fatal("сообщение не пришло")
		return nil
	}
}

func TestHub_PublishSeries(t *testing.T) {
	h := newTestHub()
	c := addTestClient(h)

	h.PublishSeries(&models.TradeSeries{
		ID:          "s1",
		BotID:       "bot1",
		Asset:       "eth",
		Status:      models.SeriesActive,
		BetColor:    models.ColorRed,
		CurrentStep: 2,
		Events: models.EventList{
			{Type: models.EventBuy, Message: "куплено"},
		},
	})

	var msg SeriesUpdateMessage
	if err := json.Unmarshal(recv(t, c), &msg); err != nil {
		t.Fatal(err)
	}
	if msg.Type != MessageTypeSeriesUpdate || msg.BotID != "bot1" || msg.Asset != "eth" {
		t.Errorf("type=%s bot=%s asset=%s", msg.Type, msg.BotID, msg.Asset)
	}
	if msg.Data.CurrentStep != 2 || msg.Data.BetColor != "red" {
		t.Errorf("step=%d color=%s", msg.Data.CurrentStep, msg.Data.BetColor)
	}
	if msg.Data.LastEvent != "куплено" {
		t.Errorf("last event = %q", msg.Data.LastEvent)
	}
}

func TestHub_PublishStats(t *testing.T) {
	h := newTestHub()
	c := addTestClient(h)

	stats := models.NewTradingStats("bot1", 100)
	stats.WonTrades = 3
	h.PublishStats(stats)

	var msg StatsUpdateMessage
	if err := json.Unmarshal(recv(t, c), &msg); err != nil {
		t.Fatal(err)
	}
	if msg.Type != MessageTypeStatsUpdate || msg.BotID != "bot1" {
		t.Errorf("type=%s bot=%s", msg.Type, msg.BotID)
	}
	if msg.Data.WonTrades != 3 {
		t.Errorf("wins = %d", msg.Data.WonTrades)
	}
}

func TestHub_BroadcastReachesAllClients(t *testing.T) {
	h := newTestHub()
	c1 := addTestClient(h)
	c2 := addTestClient(h)

	h.PublishSignal(models.Signal{
		Asset: "eth",
		Color: models.ColorGreen,
		Type:  models.SignalTwoCandles,
	})

	for _, c := range []*Client{c1, c2} {
		var msg SignalMessage
		if err := json.Unmarshal(recv(t, c), &msg); err != nil {
			t.Fatal(err)
		}
		if msg.Data.Asset != "eth" || msg.Data.Type != models.SignalTwoCandles {
			t.Errorf("signal: %+v", msg.Data)
		}
	}
}

func TestOriginChecker(t *testing.T) {
	tests := []struct {
		origins string
		origin  string
		want    bool
	}{
		{"", "http://evil.example", true}, // режим разработки
		{"*", "http://evil.example", true},
		{"http://localhost:3000", "http://localhost:3000", true},
		{"http://localhost:3000", "http://evil.example", false},
		{"http://a.example, http://b.example", "http://b.example", true},
		{"http://a.example", "", true}, // curl и другие не-браузеры
	}
	for _, tt := range tests {
		checker := NewOriginChecker(tt.origins)
		if got := checker.Check(tt.origin); got != tt.want {
			t.Errorf("NewOriginChecker(%q).Check(%q) = %v, want %v",
				tt.origins, tt.origin, got, tt.want)
		}
	}
}
