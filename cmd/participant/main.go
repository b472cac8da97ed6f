// Headless session participant. Joins a session through the relay,
// publishes a static audio/video source and logs remote participant state.
// Useful for load exercises and for keeping a session warm in development.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/skillsync/session-relay/config"
	"github.com/skillsync/session-relay/internal/client"
	"github.com/skillsync/session-relay/internal/namecache"
)

func main() {
	relayURL := flag.String("relay", "ws://localhost:8080/ws", "relay websocket endpoint")
	sessionID := flag.String("session", "", "session id or join code (blank for the default session)")
	userID := flag.String("user", "", "user id (blank to let the relay assign one)")
	userName := flag.String("name", "Headless Participant", "display name")
	token := flag.String("token", "", "JWT for relays running with RELAY_REQUIRE_AUTH")
	flag.Parse()

	cfg := config.Load()

	opts := client.Options{
		URL:        *relayURL,
		SessionID:  *sessionID,
		UserID:     *userID,
		UserName:   *userName,
		Token:      *token,
		ICEServers: iceServers(cfg.ICEServers),
		Capture: client.NewCaptureManager(func() (client.MediaSource, error) {
			return client.NewStaticSource("headless", true, true)
		}),
		Names: namecache.NewMemoryCache(),
		OnViewChange: func(view client.RemoteMediaView) {
			log.Printf("Participant %s (%s): stream=%v audio=%v video=%v reconnecting=%v",
				view.UserName, view.UserID, view.HasStream, view.AudioEnabled, view.VideoEnabled, view.Reconnecting)
		},
	}
	opts.OnDisconnect = func(err error) {
		log.Printf("Disconnected from relay: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	c, err := client.Dial(ctx, opts)
	cancel()
	if err != nil {
		log.Fatalf("Failed to join session: %v", err)
	}
	log.Printf("Connected as %s", c.UserID())

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Println("Leaving session")
	c.Leave()
}

func iceServers(servers []config.ICEServer) []webrtc.ICEServer {
	var out []webrtc.ICEServer
	for _, server := range servers {
		ice := webrtc.ICEServer{URLs: []string{server.URL}}
		if server.Username != "" {
			ice.Username = server.Username
			ice.Credential = server.Credential
		}
		out = append(out, ice)
	}
	return out
}
