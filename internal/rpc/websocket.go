package rpc

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/LeJamon/goflashd/internal/crypto"
)

const (
	wsReadLimit    = 512 * 1024
	wsReadTimeout  = 60 * time.Second
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 54 * time.Second
	wsSendBuffer   = 256
)

// WebSocketServer upgrades HTTP connections and serves both RPC commands and
// stream subscriptions over them.
type WebSocketServer struct {
	upgrader websocket.Upgrader
	server   *Server
	manager  *SubscriptionManager

	mu    sync.Mutex
	conns map[string]*wsConn
}

type wsConn struct {
	conn  *websocket.Conn
	sub   *Connection
	close chan struct{}
	once  sync.Once
}

// NewWebSocketServer creates a WebSocket front end sharing the RPC server's
// method registry and the given subscription manager.
func NewWebSocketServer(server *Server, manager *SubscriptionManager) *WebSocketServer {
	return &WebSocketServer{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		server:  server,
		manager: manager,
		conns:   make(map[string]*wsConn),
	}
}

// wsCommand is the client-to-server message format.
type wsCommand struct {
	Command string      `json:"command"`
	ID      interface{} `json:"id,omitempty"`
	Streams []string    `json:"streams,omitempty"`
}

// wsResponse is the server-to-client reply format.
type wsResponse struct {
	Type   string      `json:"type"`
	ID     interface{} `json:"id,omitempty"`
	Status string      `json:"status,omitempty"`
	Result interface{} `json:"result,omitempty"`
	Error  *RpcError   `json:"error,omitempty"`
}

// ServeHTTP upgrades the connection and starts its pumps.
func (ws *WebSocketServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := ws.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("rpc: websocket upgrade: %v", err)
		return
	}

	id := connectionID()
	wc := &wsConn{
		conn:  conn,
		sub:   newConnection(id, wsSendBuffer),
		close: make(chan struct{}),
	}

	ws.mu.Lock()
	ws.conns[id] = wc
	ws.mu.Unlock()
	ws.manager.AddConnection(wc.sub)

	go ws.readPump(wc)
	go ws.writePump(wc)
}

func (ws *WebSocketServer) readPump(wc *wsConn) {
	defer ws.drop(wc)

	wc.conn.SetReadLimit(wsReadLimit)
	wc.conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	wc.conn.SetPongHandler(func(string) error {
		wc.conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		return nil
	})

	for {
		_, message, err := wc.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("rpc: websocket read: %v", err)
			}
			return
		}
		ws.handleMessage(wc, message)
	}
}

func (ws *WebSocketServer) writePump(wc *wsConn) {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()
	defer ws.drop(wc)

	for {
		select {
		case <-wc.close:
			return
		case message := <-wc.sub.Send:
			wc.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := wc.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			wc.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := wc.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (ws *WebSocketServer) handleMessage(wc *wsConn, message []byte) {
	var cmd wsCommand
	if err := json.Unmarshal(message, &cmd); err != nil {
		ws.reply(wc, &wsResponse{
			Type:   "response",
			Status: "error",
			Error:  NewRpcError(RpcJSON_RPC, "jsonInvalid", err.Error()),
		})
		return
	}

	switch cmd.Command {
	case "subscribe":
		ws.handleSubscribe(wc, cmd, true)
	case "unsubscribe":
		ws.handleSubscribe(wc, cmd, false)
	case "":
		ws.reply(wc, &wsResponse{
			Type:   "response",
			ID:     cmd.ID,
			Status: "error",
			Error:  NewRpcError(RpcMISSING_COMMAND, "missingCommand", "Missing command field"),
		})
	default:
		ctx := &RpcContext{Context: context.Background()}
		result, rpcErr := ws.server.execute(cmd.Command, message, ctx)
		resp := &wsResponse{Type: "response", ID: cmd.ID}
		if rpcErr != nil {
			resp.Status = "error"
			resp.Error = rpcErr
		} else {
			resp.Status = "success"
			resp.Result = result
		}
		ws.reply(wc, resp)
	}
}

func (ws *WebSocketServer) handleSubscribe(wc *wsConn, cmd wsCommand, subscribe bool) {
	for _, name := range cmd.Streams {
		stream := StreamType(name)
		if !validStream(stream) {
			ws.reply(wc, &wsResponse{
				Type:   "response",
				ID:     cmd.ID,
				Status: "error",
				Error:  RpcErrorInvalidParams("unknown stream: " + name),
			})
			return
		}
	}
	for _, name := range cmd.Streams {
		if subscribe {
			wc.sub.subscribe(StreamType(name))
		} else {
			wc.sub.unsubscribe(StreamType(name))
		}
	}
	ws.reply(wc, &wsResponse{
		Type:   "response",
		ID:     cmd.ID,
		Status: "success",
		Result: map[string]interface{}{},
	})
}

func (ws *WebSocketServer) reply(wc *wsConn, resp *wsResponse) {
	data, err := json.Marshal(resp)
	if err != nil {
		log.Printf("rpc: marshal websocket response: %v", err)
		return
	}
	select {
	case wc.sub.Send <- data:
	default:
	}
}

func (ws *WebSocketServer) drop(wc *wsConn) {
	wc.once.Do(func() {
		close(wc.close)
		ws.manager.RemoveConnection(wc.sub.ID)
		ws.mu.Lock()
		delete(ws.conns, wc.sub.ID)
		ws.mu.Unlock()
		wc.conn.Close()
	})
}

func connectionID() string {
	b, err := crypto.RandomBytes(16)
	if err != nil {
		return fmt.Sprintf("conn-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b)
}
