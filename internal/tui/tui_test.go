//go:build !integration

package tui

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gorilla/websocket"

	"asistente-tienda/internal/domain/model"
)

type fakeChat struct {
	sent    []string
	sendErr error
	frames  chan Frame
}

func newFakeChat() *fakeChat { return &fakeChat{frames: make(chan Frame, 4)} }

func (f *fakeChat) Send(text string) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, text)
	return nil
}
func (f *fakeChat) Frames() <-chan Frame { return f.frames }
func (f *fakeChat) Err() error           { return nil }

func typeText(m tea.Model, s string) tea.Model {
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
	return m
}

func TestModelSendAndReceive(t *testing.T) {
	chat := newFakeChat()
	var m tea.Model = New(chat, "Tienda")
	m, _ = m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})

	m = typeText(m, "¿Qué laptops tienes?")
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if len(chat.sent) != 1 || chat.sent[0] != "¿Qué laptops tienes?" {
		t.Fatalf("sent = %v", chat.sent)
	}
	if got := m.(Model).input.Value(); got != "" {
		t.Fatalf("input not cleared: %q", got)
	}

	m, cmd := m.Update(frameMsg{
		Type:    "bot",
		Message: "Tenemos esta laptop.",
		Recommendations: []model.Recommendation{
			{ID: 1, Title: "Laptop Gaming ASUS ROG", Price: 1299.99, Reason: "coincide con tu búsqueda"},
		},
	})
	if cmd == nil {
		t.Fatal("expected the model to keep waiting for frames")
	}
	view := m.View()
	for _, want := range []string{"Tenemos esta laptop.", "Laptop Gaming ASUS ROG", "1299.99"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestModelIgnoresBlankAndClosed(t *testing.T) {
	chat := newFakeChat()
	var m tea.Model = New(chat, "Tienda")
	m, _ = m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if len(chat.sent) != 0 {
		t.Fatalf("blank input must not be sent")
	}

	m, cmd := m.Update(closedMsg{err: errors.New("close 1001")})
	if cmd != nil {
		t.Fatal("no more frame waits after close")
	}
	m = typeText(m, "hola")
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if len(chat.sent) != 0 {
		t.Fatalf("closed chat must not send")
	}
	if !strings.Contains(m.View(), "close 1001") {
		t.Fatalf("status should carry the close reason")
	}
}

func TestModelSendError(t *testing.T) {
	chat := newFakeChat()
	chat.sendErr = errors.New("broken pipe")
	var m tea.Model = New(chat, "Tienda")
	m, _ = m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	m = typeText(m, "hola")
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if !strings.Contains(m.(Model).status, "broken pipe") {
		t.Fatalf("status = %q", m.(Model).status)
	}
}

func TestRenderFrame(t *testing.T) {
	cases := []struct {
		f    Frame
		want string
	}{
		{Frame{Type: "warning", Message: "mensaje vacío"}, "aviso: mensaje vacío"},
		{Frame{Type: "error", Message: "internal"}, "error: internal"},
		{Frame{Type: "raw", Message: "???"}, "???"},
	}
	for _, c := range cases {
		if got := renderFrame(c.f); !strings.Contains(got, c.want) {
			t.Errorf("renderFrame(%+v) = %q, want it to contain %q", c.f, got, c.want)
		}
	}
}

func TestClientRoundTrip(t *testing.T) {
	got := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		up := websocket.Upgrader{}
		c, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()
		_ = c.WriteJSON(map[string]string{"type": "chat_opened", "message": "Bienvenido"})
		var in struct {
			Type string `json:"type"`
			Text string `json:"text"`
		}
		if err := c.ReadJSON(&in); err != nil {
			return
		}
		got <- in.Type + ":" + in.Text
		_ = c.WriteMessage(websocket.TextMessage, []byte("not json"))
		_ = c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	c, err := Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close()

	f := <-c.Frames()
	if f.Type != "chat_opened" || f.Message != "Bienvenido" {
		t.Fatalf("first frame = %+v", f)
	}
	if err := c.Send("hola"); err != nil {
		t.Fatal(err)
	}
	if s := <-got; s != "message:hola" {
		t.Fatalf("server got %q", s)
	}
	if f := <-c.Frames(); f.Type != "raw" || f.Message != "not json" {
		t.Fatalf("raw frame = %+v", f)
	}
	if _, ok := <-c.Frames(); ok {
		t.Fatal("frames should close with the connection")
	}
	if !websocket.IsCloseError(c.Err(), websocket.CloseGoingAway) {
		t.Fatalf("err = %v", c.Err())
	}
}
