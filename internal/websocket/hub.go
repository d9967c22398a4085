package websocket

import (
	"bytes"
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"updown/internal/models"
)

// пул JSON-буферов: Broadcast вызывается на каждом событии серии
var jsonBufferPool = sync.Pool{
	New: func() interface{} {
		return bytes.NewBuffer(make([]byte, 0, 512))
	},
}

// Hub управляет всеми активными WebSocket соединениями дашборда
// и реализует контракт Publisher торгового движка: каждое изменение
// серии или статистики уходит всем подключенным клиентам без polling.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	log        *zap.Logger

	mu sync.RWMutex
}

func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		log:        log,
	}
}

// Run крутит главный цикл хаба; запускать горутиной
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			h.log.Info("websocket-клиент подключен", zap.Int("total", total))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			h.log.Info("websocket-клиент отключен", zap.Int("total", total))

		case message := <-h.broadcast:
			// список копируется под коротким RLock, отправка идёт
			// без блокировки, медленные клиенты удаляются после
			h.mu.RLock()
			clients := make([]*Client, 0, len(h.clients))
			for client := range h.clients {
				clients = append(clients, client)
			}
			h.mu.RUnlock()

			var toRemove []*Client
			for _, client := range clients {
				select {
				case client.send <- message:
				default:
					toRemove = append(toRemove, client)
				}
			}

			if len(toRemove) > 0 {
				h.mu.Lock()
				for _, client := range toRemove {
					if _, ok := h.clients[client]; ok {
						delete(h.clients, client)
						close(client.send)
					}
				}
				h.mu.Unlock()
				h.log.Warn("медленные websocket-клиенты отключены",
					zap.Int("removed", len(toRemove)))
			}
		}
	}
}

// Broadcast сериализует сообщение и рассылает его всем клиентам
func (h *Hub) Broadcast(message interface{}) {
	buf := jsonBufferPool.Get().(*bytes.Buffer)
	buf.Reset()

	if err := json.NewEncoder(buf).Encode(message); err != nil {
		h.log.Error("сериализация broadcast-сообщения не удалась", zap.Error(err))
		jsonBufferPool.Put(buf)
		return
	}

	data := buf.Bytes()
	if len(data) > 0 && data[len(data)-1] == '\n' {
		data = data[:len(data)-1]
	}
	msgCopy := make([]byte, len(data))
	copy(msgCopy, data)
	jsonBufferPool.Put(buf)

	select {
	case h.broadcast <- msgCopy:
	default:
		// переполненный канал хаба не должен тормозить тик движка
		h.log.Warn("broadcast-канал переполнен, сообщение пропущено")
	}
}

// PublishSeries реализует bot.Publisher
func (h *Hub) PublishSeries(series *models.TradeSeries) {
	h.Broadcast(NewSeriesUpdateMessage(series))
}

// PublishStats реализует bot.Publisher
func (h *Hub) PublishStats(stats *models.TradingStats) {
	h.Broadcast(NewStatsUpdateMessage(stats))
}

// PublishSignal транслирует обнаруженный сигнал
func (h *Hub) PublishSignal(sig models.Signal) {
	h.Broadcast(NewSignalMessage(sig))
}

// ClientCount возвращает количество подключенных клиентов
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
