// A throwaway visitor client for poking a running relay by hand: connects,
// prints everything the server sends, and relays stdin lines as chat
// messages once an operator is bound.
//
// Usage:
//
//	go run ./scripts/visitorclient <token> [display_name]
package main

import (
	"bufio"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/websocket"

	"codeberg.org/motorline/relay/internal/relay"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run ./scripts/visitorclient <token> [display_name]")
		os.Exit(1)
	}

	token := os.Args[1]

	displayName := "Test Visitor"
	if len(os.Args) > 2 {
		displayName = os.Args[2]
	}

	endpoint := os.Getenv("RELAY_WS_ENDPOINT")
	if endpoint == "" {
		endpoint = "ws://localhost:8080/api/v1/ws"
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		log.Fatal("bad endpoint:", err)
	}

	q := u.Query()
	q.Set("token", token)
	q.Set("display_name", displayName)
	u.RawQuery = q.Encode()

	fmt.Printf("Connecting to %s\n", u.Host)

	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer c.Close()

	fmt.Println("✅ Connected, waiting for an operator...")

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	done := make(chan struct{})

	go func() {
		defer close(done)
		for {
			var msg relay.Message
			if err := c.ReadJSON(&msg); err != nil {
				log.Println("read:", err)
				return
			}

			fmt.Printf("📨 %s: %s\n", msg.Type, msg.Payload)

			if msg.Type == relay.TypeChatEnded {
				fmt.Println("Chat ended by the operator.")
				return
			}
		}
	}()

	// relay stdin lines as chat messages
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			msg, err := relay.NewMessage(relay.TypeSendMessage, "", "", relay.SendMessagePayload{
				Text: scanner.Text(),
				From: displayName,
			})
			if err != nil {
				continue
			}

			if err := c.WriteJSON(msg); err != nil {
				log.Println("write:", err)
				return
			}
		}
	}()

	select {
	case <-done:
	case <-interrupt:
		fmt.Println("\n🛑 Interrupt received, closing connection...")

		err := c.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		if err != nil {
			log.Println("write close:", err)
			return
		}

		select {
		case <-done:
		case <-time.After(time.Second):
		}
	}
}
