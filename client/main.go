package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cohort-labs/messaging-core/pkg/model"
	"github.com/cohort-labs/messaging-core/pkg/notify"
	"github.com/cohort-labs/messaging-core/pkg/realtime"
)

type LoginResponse struct {
	Token string `json:"token"`
}

func login(apiAddr, userID string) (string, error) {
	reqBody, _ := json.Marshal(map[string]string{"user_id": userID})
	resp, err := http.Post(apiAddr+"/login", "application/json", bytes.NewBuffer(reqBody))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("login failed: %s", string(body))
	}

	var loginResp LoginResponse
	if err := json.NewDecoder(resp.Body).Decode(&loginResp); err != nil {
		return "", err
	}

	return loginResp.Token, nil
}

func main() {
	serverAddr := flag.String("addr", "localhost:8080", "gateway service address")
	apiAddr := flag.String("api", "http://localhost:8081", "api service address")
	userID := flag.String("user", "user1", "user id")
	dmUser := flag.String("dm", "user2", "user id to chat with")
	flag.Parse()

	scope := realtime.Scope(*userID, *dmUser)

	// 1. Login to get token
	log.Printf("Logging in as %s...", *userID)
	token, err := login(*apiAddr, *userID)
	if err != nil {
		log.Fatal("Login failed:", err)
	}
	log.Printf("Login successful. Token: %s...", token[:10])

	// The attention chime counts starting the client as the priming gesture.
	sound := notify.SharedSound()
	sound.Prime()

	// 2. Connect to WebSocket with token
	u := url.URL{Scheme: "ws", Host: *serverAddr, Path: "/ws"}
	log.Printf("connecting to %s", u.String())

	header := http.Header{}
	header.Add("Authorization", "Bearer "+token)
	q := u.Query()
	q.Set("scope", scope)
	u.RawQuery = q.Encode()

	c, _, err := websocket.DefaultDialer.Dial(u.String(), header)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer c.Close()

	done := make(chan struct{})

	// 3. Read events from the gateway
	go func() {
		defer close(done)
		for {
			_, raw, err := c.ReadMessage()
			if err != nil {
				log.Println("read:", err)
				return
			}

			var ev model.Event
			if err := json.Unmarshal(raw, &ev); err != nil {
				fmt.Printf("\rReceived raw: %s\n> ", raw)
				continue
			}

			switch ev.Type {
			case model.EventTyping:
				if ev.From != *userID && ev.IsTyping {
					fmt.Printf("\r%s is typing...      \n> ", ev.From)
				}
			case model.EventPresence:
				if ev.From != *userID && (ev.Content == model.PresenceJoin || ev.Content == model.PresenceLeave) {
					fmt.Printf("\r%s %sed\n> ", ev.From, ev.Content)
				}
			case model.EventMessage:
				if ev.Message == nil {
					continue
				}
				fmt.Printf("\r%s: %s\n> ", ev.Message.SenderID, ev.Message.Content)
				if ev.Message.ReceiverID == *userID {
					// Best effort only.
					_ = sound.Play()
				}
			}
		}
	}()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	sendEvent := func(ev model.Event) bool {
		payload, _ := json.Marshal(ev)
		if err := c.WriteMessage(websocket.TextMessage, payload); err != nil {
			log.Println("write:", err)
			return false
		}
		return true
	}

	// 4. Read from stdin and send events
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		fmt.Print("> ")
		for scanner.Scan() {
			text := scanner.Text()
			if text == "" {
				fmt.Print("> ")
				continue
			}

			if text == "/quit" {
				close(interrupt)
				break
			}

			if text == "/typing" {
				if !sendEvent(model.Event{Type: model.EventTyping, IsTyping: true}) {
					break
				}
				fmt.Print("> ")
				continue
			}

			// Normal message, immediately followed by the typing stop the
			// widget would send.
			if !sendEvent(model.Event{Type: model.EventMessage, Content: text}) {
				break
			}
			if !sendEvent(model.Event{Type: model.EventTyping, IsTyping: false}) {
				break
			}
			fmt.Print("> ")
		}
	}()

	for {
		select {
		case <-done:
			return
		case <-interrupt:
			log.Println("interrupt")

			// Cleanly close the connection by sending a close message and then
			// waiting (with timeout) for the server to close the connection.
			err := c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			if err != nil {
				log.Println("write close:", err)
				return
			}
			select {
			case <-done:
			case <-time.After(time.Second):
			}
			return
		}
	}
}
