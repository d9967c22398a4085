package websocket

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait = 10 * time.Second
	pongWait  = 60 * time.Second
	// ping обязан приходить чаще, чем истекает pongWait
	pingPeriod = (pongWait * 9) / 10

	// снимок серии с позициями и таймлайном занимает единицы килобайт
	maxMessageSize = 65536

	clientSendBufferSize = 256
)

// OriginChecker проверяет Origin по списку разрешённых за O(1)
type OriginChecker struct {
	allowed  map[string]struct{}
	allowAll bool
}

// NewOriginChecker собирает проверку из comma-separated списка.
// Пустая строка или "*" разрешают все origin (режим разработки).
func NewOriginChecker(origins string) *OriginChecker {
	checker := &OriginChecker{allowed: make(map[string]struct{})}
	if origins == "" || origins == "*" {
		checker.allowAll = true
		return checker
	}
	for _, origin := range strings.Split(origins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			checker.allowed[origin] = struct{}{}
		}
	}
	return checker
}

func (oc *OriginChecker) Check(origin string) bool {
	if origin == "" {
		// не-браузерные клиенты (curl, мониторинг)
		return true
	}
	if oc.allowAll {
		return true
	}
	_, ok := oc.allowed[origin]
	return ok
}

// Client - одно WebSocket соединение дашборда. Канал-only: клиент
// ничего не присылает, сервер толкает обновления серий и статистики.
type Client struct {
	conn *websocket.Conn
	hub  *Hub
	send chan []byte
}

// readPump дочитывает входящие фреймы ради ping/pong и закрытия
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Debug("websocket-соединение оборвано", zap.Error(err))
			}
			return
		}
	}
}

// writePump гонит сообщения из канала send в соединение,
// склеивая накопившийся буфер в один фрейм
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

		drainLoop:
			for {
				select {
				case msg, ok := <-c.send:
					if !ok {
						break drainLoop
					}
					w.Write([]byte{'\n'})
					w.Write(msg)
				default:
					break drainLoop
				}
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Upgrader строит websocket.Upgrader с проверкой origin
func Upgrader(checker *OriginChecker) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			return checker.Check(r.Header.Get("Origin"))
		},
		EnableCompression: true,
	}
}

// ServeWS апгрейдит HTTP-запрос и запускает горутины клиента
func (h *Hub) ServeWS(upgrader websocket.Upgrader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.log.Warn("websocket upgrade не удался", zap.Error(err))
			return
		}

		client := &Client{
			conn: conn,
			hub:  h,
			send: make(chan []byte, clientSendBufferSize),
		}
		h.register <- client

		go client.writePump()
		go client.readPump()
	}
}
