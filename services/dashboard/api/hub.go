package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	clientSendBufferSize = 16
	writeWait            = 5 * time.Second
	pongWait             = 60 * time.Second
	pingPeriod           = pongWait * 9 / 10
	maxClientMessageSize = 1024

	kindMetrics    = "metrics"
	kindSystemInfo = "system"
	kindControl    = "control"
)

// wsMessage is the frame pushed to every connected view
type wsMessage struct {
	Kind  string      `json:"kind"`
	State interface{} `json:"state"`
}

// clientMessage is a control signal sent by a view over its websocket
type clientMessage struct {
	Type    string `json:"type"`
	Visible *bool  `json:"visible,omitempty"`
}

type wsClient struct {
	conn      *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func (client *wsClient) close() {
	client.closeOnce.Do(func() {
		close(client.done)
		_ = client.conn.Close()
	})
}

// hub fans the poller states out to the connected websocket clients. A client that cannot keep up loses
// frames instead of slowing down the pollers.
type hub struct {
	upgrader websocket.Upgrader

	mut     sync.Mutex
	clients map[*wsClient]struct{}
	closed  bool
	wg      sync.WaitGroup
}

func newHub() *hub {
	return &hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*wsClient]struct{}),
	}
}

// serve upgrades the connection, queues the initial frames and blocks reading client messages until the
// connection drops
func (h *hub) serve(w http.ResponseWriter, r *http.Request, initial []wsMessage, onMessage func(msg clientMessage)) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debug("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	client := &wsClient{
		conn: conn,
		send: make(chan []byte, clientSendBufferSize),
		done: make(chan struct{}),
	}
	for _, msg := range initial {
		data, errMarshal := json.Marshal(msg)
		if errMarshal != nil {
			log.Warn("failed to marshal websocket frame", "kind", msg.Kind, "error", errMarshal)
			continue
		}
		client.send <- data
	}

	if !h.register(client) {
		client.close()
		return
	}
	defer h.unregister(client)

	log.Debug("websocket client connected", "remote", r.RemoteAddr)

	go h.writeLoop(client)

	h.readLoop(client, onMessage)
	log.Debug("websocket client disconnected", "remote", r.RemoteAddr)
}

func (h *hub) register(client *wsClient) bool {
	h.mut.Lock()
	defer h.mut.Unlock()

	if h.closed {
		return false
	}

	h.clients[client] = struct{}{}
	h.wg.Add(1)
	return true
}

func (h *hub) unregister(client *wsClient) {
	h.mut.Lock()
	delete(h.clients, client)
	h.mut.Unlock()

	client.close()
}

func (h *hub) readLoop(client *wsClient, onMessage func(msg clientMessage)) {
	client.conn.SetReadLimit(maxClientMessageSize)
	_ = client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		return client.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		messageType, data, err := client.conn.ReadMessage()
		if err != nil {
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var msg clientMessage
		err = json.Unmarshal(data, &msg)
		if err != nil {
			log.Debug("invalid websocket client message", "error", err)
			continue
		}

		onMessage(msg)
	}
}

func (h *hub) writeLoop(client *wsClient) {
	defer h.wg.Done()
	defer client.close()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-client.done:
			return
		case data := <-client.send:
			_ = client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := client.conn.WriteMessage(websocket.TextMessage, data)
			if err != nil {
				return
			}
		case <-ticker.C:
			_ = client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := client.conn.WriteMessage(websocket.PingMessage, nil)
			if err != nil {
				return
			}
		}
	}
}

// broadcast never blocks: frames for clients with a full queue are dropped
func (h *hub) broadcast(kind string, state interface{}) {
	h.mut.Lock()
	clients := make([]*wsClient, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mut.Unlock()

	if len(clients) == 0 {
		return
	}

	data, err := json.Marshal(wsMessage{Kind: kind, State: state})
	if err != nil {
		log.Warn("failed to marshal websocket frame", "kind", kind, "error", err)
		return
	}

	for _, client := range clients {
		select {
		case client.send <- data:
		default:
			log.Debug("websocket client too slow, frame dropped", "kind", kind, "remote", client.conn.RemoteAddr())
		}
	}
}

func (h *hub) numClients() int {
	h.mut.Lock()
	defer h.mut.Unlock()

	return len(h.clients)
}

func (h *hub) close() {
	h.mut.Lock()
	h.closed = true
	clients := make([]*wsClient, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mut.Unlock()

	for _, client := range clients {
		client.close()
	}
	h.wg.Wait()
}
