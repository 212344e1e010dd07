package tui

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"asistente-tienda/internal/domain/model"
)

// Frame is any server frame of the support chat protocol.
type Frame struct {
	Type            string                 `json:"type"`
	Message         string                 `json:"message"`
	Recommendations []model.Recommendation `json:"recommendations,omitempty"`
	Timestamp       string                 `json:"timestamp,omitempty"`
}

// Client is a websocket connection to /ws/support.
type Client struct {
	conn   *websocket.Conn
	frames chan Frame

	mu  sync.Mutex // guards writes and err
	err error
}

func Dial(ctx context.Context, url string, header http.Header) (*Client, error) {
	d := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := d.DialContext(ctx, url, header)
	if err != nil {
		return nil, err
	}
	c := &Client{conn: conn, frames: make(chan Frame, 16)}
	go c.readLoop()
	return c, nil
}

func (c *Client) readLoop() {
	defer close(c.frames)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			c.err = err
			c.mu.Unlock()
			return
		}
		var f Frame
		if err := json.Unmarshal(data, &f); err != nil {
			f = Frame{Type: "raw", Message: string(data)}
		}
		c.frames <- f
	}
}

// Frames is closed once the connection ends; Err then tells why.
func (c *Client) Frames() <-chan Frame { return c.frames }

func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Send writes one utterance as a tagged message object.
func (c *Client) Send(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return c.conn.WriteJSON(map[string]string{"type": "message", "text": text})
}

// Close performs a normal closure and drops the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye")
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	c.mu.Unlock()
	return c.conn.Close()
}
