package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"asistente-tienda/internal/tui"
)

func main() {
	url := flag.String("url", "ws://localhost:8000/ws/support", "support chat websocket url")
	title := flag.String("title", "Asistente Tienda", "window title")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	client, err := tui.Dial(ctx, *url, nil)
	cancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect %s: %v\n", *url, err)
		os.Exit(1)
	}
	defer client.Close()

	if _, err := tea.NewProgram(tui.New(client, *title), tea.WithAltScreen()).Run(); err != nil {
		fmt.Fprintf(os.Stderr, "tui error: %v\n", err)
		os.Exit(1)
	}
}
