package events

import (
	"log"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/ridgeline-services/crm-server/cmd/utils"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // You might want to implement proper origin checking
	},
}

type EventsHandler struct {
	hub *Hub
}

func NewEventsHandler(hub *Hub) *EventsHandler {
	return &EventsHandler{hub: hub}
}

func (h *EventsHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/ws", utils.AccessCodeMiddleware(h.HandleWebSocket))
}

// HandleWebSocket upgrades a dashboard client onto the change feed
func (h *EventsHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	client := &Client{
		hub:  h.hub,
		conn: conn,
		send: make(chan []byte, 256),
	}
	h.hub.register <- client

	go client.WritePump()
	go client.ReadPump()
}
