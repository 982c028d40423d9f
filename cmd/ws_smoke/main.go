package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"waitlist_contest/internal/service"
	"waitlist_contest/internal/ws"

	"github.com/gorilla/websocket"
)

func main() {
	listen := flag.Duration("listen", 10*time.Second, "how long to print events")
	rank := flag.Bool("rank", false, "trigger a ranking run through the admin API (needs ADMIN_JWT_SECRET)")
	flag.Parse()

	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}

	// use 127.0.0.1 to prefer IPv4 (avoid resolving to [::1])
	base := "127.0.0.1:" + port
	conn, _, err := websocket.DefaultDialer.Dial("ws://"+base+"/ws/leaderboard", nil)
	if err != nil {
		log.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	expect := func(want string) {
		conn.SetReadDeadline(time.Now().Add(3 * time.Second))
		var msg ws.Message
		if err := conn.ReadJSON(&msg); err != nil {
			log.Fatalf("waiting for %s: %v", want, err)
		}
		if msg.Type != want {
			log.Fatalf("got %q; want %q", msg.Type, want)
		}
	}

	expect(ws.MsgReady)
	if err := conn.WriteJSON(ws.Message{Type: ws.MsgPing}); err != nil {
		log.Fatalf("ping: %v", err)
	}
	expect(ws.MsgPong)
	log.Println("connected, ping ok")

	if *rank {
		if err := triggerRanking(base); err != nil {
			log.Fatalf("ranking: %v", err)
		}
	}

	deadline := time.Now().Add(*listen)
	for time.Now().Before(deadline) {
		conn.SetReadDeadline(deadline)
		_, raw, err := conn.ReadMessage()
		if err != nil {
			break
		}
		var msg ws.Message
		if json.Unmarshal(raw, &msg) != nil {
			log.Printf("unparsed frame: %s", raw)
			continue
		}
		log.Printf("%s: %s", msg.Type, raw)
	}

	log.Println("smoke test finished")
}

func triggerRanking(base string) error {
	secret := os.Getenv("ADMIN_JWT_SECRET")
	if secret == "" {
		return fmt.Errorf("ADMIN_JWT_SECRET not set")
	}
	tok, err := service.NewAdminTokens(secret).Issue("ws-smoke", time.Minute)
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, "http://"+base+"/api/v1/admin/recalculate-final-points", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+tok)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}
