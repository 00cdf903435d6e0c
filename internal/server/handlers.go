package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"quizbuzzer/internal/gateway"
	"quizbuzzer/internal/wshub"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"
)

const (
	maxFrameBytes = 8 << 10
	qrSize        = 320
)

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"name":    "Quiz Buzzer API",
		"version": Version,
		"status":  "running",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	timestamp := s.now().UTC().Format(gateway.TimestampLayout)
	if s.DB != nil {
		if err := s.DB.Ping(r.Context()); err != nil {
			s.log.Warn("health check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status":    "db_error",
				"error":     err.Error(),
				"timestamp": timestamp,
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": timestamp,
	})
}

func (s *Server) handleRooms(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Rooms.ListSummaries())
}

// handleRoomQR renders the room's join link as a PNG.
func (s *Server) handleRoomQR(w http.ResponseWriter, r *http.Request) {
	room, ok := s.Rooms.GetByCode(r.PathValue("code"))
	if !ok {
		http.Error(w, "Room not found", http.StatusNotFound)
		return
	}

	link := strings.TrimSuffix(s.cfg.ClientURL, "/") + "/room/" + room.Code
	png, err := qrcode.Encode(link, qrcode.Medium, qrSize)
	if err != nil {
		s.log.Error("qr generation failed", zap.String("room", room.ID), zap.Error(err))
		http.Error(w, "qr generation failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(png)
}

// handleWebSocket runs one player connection. Frames are handled in arrival
// order on this goroutine; writes happen in the client's write pump.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: originPatterns(s.cfg.ClientURL),
	})
	if err != nil {
		s.log.Debug("websocket accept failed", zap.Error(err))
		return
	}
	defer conn.CloseNow()
	conn.SetReadLimit(maxFrameBytes)

	client := wshub.NewClient(uuid.NewString(), conn, s.cfg.SendBuffer)
	session := s.Gateway.Connect(client)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go func() {
		defer cancel()
		if err := client.WritePump(ctx); err != nil && ctx.Err() == nil {
			s.log.Debug("write pump stopped", zap.String("conn", client.ID), zap.Error(err))
		}
	}()
	go func() {
		select {
		case <-client.Done():
			cancel()
		case <-ctx.Done():
		}
	}()

	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			break
		}
		if typ != websocket.MessageText {
			continue
		}
		s.Gateway.Handle(session, data)
	}

	s.Gateway.Disconnect(session)
	conn.Close(websocket.StatusNormalClosure, "")
}

// handleEvents streams the operator feed as server-sent events.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	msgChan := s.Operators.Subscribe()
	defer s.Operators.Unsubscribe(msgChan)

	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case msg := <-msgChan:
			fmt.Fprintf(w, "event: %s\n", msg.Event)
			for _, line := range strings.Split(msg.Data, "\n") {
				fmt.Fprintf(w, "data: %s\n", line)
			}
			fmt.Fprint(w, "\n")
			flusher.Flush()
		}
	}
}

// withCORS admits the configured browser client on every route.
func (s *Server) withCORS(next http.Handler) http.Handler {
	origin := clientOrigin(s.cfg.ClientURL)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", origin)
		h.Add("Vary", "Origin")
		if r.Method == http.MethodOptions {
			h.Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientOrigin(clientURL string) string {
	u, err := url.Parse(clientURL)
	if err != nil || u.Host == "" {
		return clientURL
	}
	return u.Scheme + "://" + u.Host
}

func originPatterns(clientURL string) []string {
	u, err := url.Parse(clientURL)
	if err != nil || u.Host == "" {
		return nil
	}
	return []string{u.Host}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
