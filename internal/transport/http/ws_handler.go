package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/Legit-prep/live-quiz-socket/internal/app"
	"github.com/Legit-prep/live-quiz-socket/internal/domain"
	"github.com/Legit-prep/live-quiz-socket/internal/telemetry"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

type WSHandler struct {
	service  *app.QuizService
	hub      *Hub
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.QuizService, hub *Hub, checkOrigin func(r *http.Request) bool) *WSHandler {
	if checkOrigin == nil {
		checkOrigin = func(r *http.Request) bool { return true }
	}
	return &WSHandler{
		service: service,
		hub:     hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
	}
}

// ServeWS upgrades HTTP requests to websockets and routes named events into
// the quiz use cases. Each connection gets a fresh id; participants are
// identified by name, so a reconnect simply rejoins under the new id.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("ws upgrade failed")
		return
	}

	connID := uuid.NewString()
	send := h.hub.Register(connID)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		writePump(conn, send)
	}()
	log.Info().Str("conn", connID).Str("remote", r.RemoteAddr).Msg("ws connected")

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	ctx := context.WithoutCancel(r.Context())
	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("conn", connID).Msg("ws read error")
			}
			break
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		var inbound inboundMessage
		if err := json.Unmarshal(frame, &inbound); err != nil || inbound.Event == "" {
			telemetry.EventsReceived.WithLabelValues("unknown", "rejected").Inc()
			h.reject(connID, "", domain.ErrInvalidPayload)
			continue
		}
		h.handle(ctx, connID, inbound)
	}

	h.hub.Unregister(connID)
	<-writerDone
	log.Info().Str("conn", connID).Msg("ws disconnected")
}

func (h *WSHandler) handle(ctx context.Context, connID string, msg inboundMessage) {
	err := h.dispatch(ctx, connID, msg)
	switch {
	case err == nil:
		telemetry.EventsReceived.WithLabelValues(msg.Event, "ok").Inc()
	case errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, domain.ErrParticipantNotFound),
		errors.Is(err, domain.ErrNoActiveRound):
		// Unknown pins, unknown names and stale answers are dropped silently.
		telemetry.EventsReceived.WithLabelValues(msg.Event, "ignored").Inc()
		log.Debug().Err(err).Str("conn", connID).Str("event", msg.Event).Msg("event ignored")
	default:
		telemetry.EventsReceived.WithLabelValues(msg.Event, "rejected").Inc()
		h.reject(connID, msg.Event, err)
	}
}

func (h *WSHandler) dispatch(ctx context.Context, connID string, msg inboundMessage) error {
	switch msg.Event {
	case domain.EventCreateSession:
		pin, err := decodePin(msg.Data)
		if err != nil {
			return err
		}
		return h.service.CreateSession(ctx, connID, pin)

	case domain.EventJoinSession:
		in, err := decodeJoin(msg.Data)
		if err != nil {
			return err
		}
		_, _, err = h.service.JoinSession(ctx, connID, in.Pin, in.Name)
		return err

	case domain.EventStartTimer:
		in, err := decodeStartTimer(msg.Data)
		if err != nil {
			return err
		}
		_, err = h.service.StartQuestion(ctx, connID, in.Pin, in.Question)
		return err

	case domain.EventSubmitAnswer:
		in, err := decodeAnswer(msg.Data)
		if err != nil {
			return err
		}
		return h.service.SubmitAnswer(ctx, in.Pin, in.Name, in.Answer)

	case domain.EventTimeUp:
		pin, err := decodePin(msg.Data)
		if err != nil {
			return err
		}
		_, err = h.service.TimeUp(ctx, connID, pin)
		return err

	case domain.EventRequestFinalData:
		pin, err := decodePin(msg.Data)
		if err != nil {
			return err
		}
		_, err = h.service.RequestFinalData(ctx, connID, pin)
		return err

	default:
		return errUnsupportedEvent
	}
}

var errUnsupportedEvent = errors.New("unsupported event")

func (h *WSHandler) reject(connID, event string, err error) {
	log.Debug().Err(err).Str("conn", connID).Str("event", event).Msg("event rejected")
	h.hub.Send(connID, domain.EventError, errorPayload{Message: err.Error()})
}

// writePump drains send until the hub closes it, pinging to keep the
// connection alive.
func writePump(conn *websocket.Conn, send <-chan []byte) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case msg, ok := <-send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				log.Warn().Err(err).Msg("ws write error")
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
