package ws

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/lefinal/arena-server/client"
	"github.com/lefinal/arena-server/errors"
	"github.com/lefinal/arena-server/logging"
)

// HandleWS handles websocket requests. The passed context is used in order to
// stop all remaining read-pumps.
func HandleWS(hub *Hub, ctx context.Context) http.HandlerFunc {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
	}
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			errors.Log(logging.WSLogger, errors.Wrap(err, "upgrade connection", nil))
			return
		}
		c := &Client{
			Client: &client.Client{
				ID:      uuid.New().String(),
				Send:    make(chan []byte, 256),
				Receive: make(chan []byte, 256),
			},
			hub:        hub,
			connection: conn,
		}
		// Use the client's hub so that the reference from the handler can be dropped.
		c.hub.register <- c
		// Power the pumps.
		go c.writePump()
		go c.readPump(ctx)
	}
}
