// Command voiceclient is a development client for exercising the voice
// pipeline end to end: it authenticates, opens a session, streams a
// local audio file as binary frames, and saves the synthesized replies.
package main

import (
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

	wsproto "github.com/widyatma/lantang/internal/websocket"
)

type tokenRequest struct {
	UserID string `json:"user_id"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	UserID    string    `json:"user_id"`
}

func main() {
	var (
		host      = flag.String("host", "localhost:8080", "server host:port")
		userID    = flag.String("user", "dev-user", "user id to authenticate as")
		audioPath = flag.String("audio", "sample_audio.wav", "audio file to stream")
		outPath   = flag.String("out", "response_audio.raw", "file for received audio")
	)
	flag.Parse()

	token, err := fetchToken(*host, *userID)
	if err != nil {
		log.Fatal("Failed to fetch token:", err)
	}
	log.Printf("Authenticated as %s", *userID)

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	u := url.URL{Scheme: "ws", Host: *host, Path: "/ws"}
	headers := http.Header{}
	headers.Add("Authorization", "Bearer "+token)

	c, _, err := websocket.DefaultDialer.Dial(u.String(), headers)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer c.Close()

	done := make(chan struct{})
	go readLoop(c, *outPath, done)

	runConversation(c, *audioPath)

	select {
	case <-done:
	case <-interrupt:
		log.Println("interrupt")
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

func fetchToken(host, userID string) (string, error) {
	body, err := json.Marshal(tokenRequest{UserID: userID})
	if err != nil {
		return "", err
	}

	resp, err := http.Post("http://"+host+"/api/v1/auth/token", "application/json", bytes.NewBuffer(body))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token request failed: %s", string(raw))
	}

	var tr tokenResponse
	if err := json.Unmarshal(raw, &tr); err != nil {
		return "", err
	}
	return tr.Token, nil
}

func runConversation(c *websocket.Conn, audioPath string) {
	send := func(msg map[string]any) {
		data, err := json.Marshal(msg)
		if err != nil {
			log.Fatal("marshal:", err)
		}
		if err := c.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Fatal("write:", err)
		}
	}

	log.Println("Starting session")
	send(map[string]any{
		"type":          "start_session",
		"language_code": "en-US",
		"sample_rate":   16000,
	})
	time.Sleep(300 * time.Millisecond)

	audio, err := os.ReadFile(audioPath)
	if err != nil {
		log.Printf("Cannot read audio file %s: %v", audioPath, err)
		return
	}
	log.Printf("Read %s (%d bytes)", audioPath, len(audio))

	send(map[string]any{"type": "start_recording"})
	time.Sleep(100 * time.Millisecond)

	// Stream in small frames the way a microphone client would.
	const frameSize = 1024
	for start := 0; start < len(audio); start += frameSize {
		end := start + frameSize
		if end > len(audio) {
			end = len(audio)
		}
		if err := c.WriteMessage(websocket.BinaryMessage, audio[start:end]); err != nil {
			log.Printf("Error sending frame at %d: %v", start, err)
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	log.Printf("Streamed %d bytes", len(audio))

	send(map[string]any{"type": "stop_recording"})
	send(map[string]any{"type": "get_stats"})
	log.Println("Waiting for the response...")
}

func readLoop(c *websocket.Conn, outPath string, done chan struct{}) {
	defer close(done)

	out, err := os.Create(outPath)
	if err != nil {
		log.Fatal("create output:", err)
	}
	defer out.Close()

	for {
		msgType, payload, err := c.ReadMessage()
		if err != nil {
			log.Println("read:", err)
			return
		}
		switch msgType {
		case websocket.BinaryMessage:
			id, idx, total, audio, err := wsproto.DecodeAudioChunk(payload)
			if err != nil {
				log.Printf("<- undecodable binary frame: %v", err)
				continue
			}
			out.Write(audio)
			log.Printf("<- audio frame %s %d/%d (%d bytes)", id, idx+1, total, len(audio))
		case websocket.TextMessage:
			log.Printf("<- %s", payload)
		}
	}
}
