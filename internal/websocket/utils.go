package websocket

import (
	"time"

	"github.com/gorilla/websocket"
)

const (
	// writeWait bounds a single frame write. The clock stream ticks every
	// second, so a write stalled this long means the client is gone.
	writeWait = 10 * time.Second

	// readWait is generous: an idle learner sends nothing between pings,
	// and we only need reads to eventually notice a dead connection.
	readWait = 5 * time.Minute
)

// WriteTyped sends one event frame with the write deadline applied.
// Callers must serialize: the underlying connection permits a single
// writer at a time, so all frames for a stream go through one goroutine.
func WriteTyped(conn *websocket.Conn, v interface{}) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(v)
}

// WriteError sends an error event before the caller closes the stream.
func WriteError(conn *websocket.Conn, errMsg string) error {
	return WriteTyped(conn, ErrorResponse{
		Event: EventError,
		Error: errMsg,
	})
}

// ReadJSON decodes the next client frame with the read deadline applied.
func ReadJSON(conn *websocket.Conn, v interface{}) error {
	conn.SetReadDeadline(time.Now().Add(readWait))
	return conn.ReadJSON(v)
}
