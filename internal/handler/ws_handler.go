package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/assessly/assessly-backend/internal/middleware"
	"github.com/assessly/assessly-backend/internal/model"
	"github.com/assessly/assessly-backend/internal/service"
	ws "github.com/assessly/assessly-backend/internal/websocket"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams the attempt clock over WebSocket.
type WSHandler struct {
	attemptService *service.AttemptService
	log            zerolog.Logger
	upgrader       websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(attemptService *service.AttemptService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		attemptService: attemptService,
		log:            log.With().Str("component", "ws_handler").Logger(),
		upgrader:       buildUpgrader(allowedOrigins),
	}
}

// AttemptClockStream godoc
// WS /ws/v1/attempts/:attempt_id/clock
// Pushes the remaining window time once per second for a live attempt so the
// client clock cannot drift from the server's. The stream is advisory only;
// the authoritative window check still happens at submit.
func (h *WSHandler) AttemptClockStream(c *gin.Context) {
	user := middleware.GetUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	attemptID, err := uuid.Parse(c.Param("attempt_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid attempt ID"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	attempt, err := h.attemptService.Get(c.Request.Context(), user, attemptID)
	if err != nil {
		ws.WriteError(conn, "attempt not accessible")
		return
	}
	if attempt.Status != model.AttemptStatusInProgress {
		ws.WriteTyped(conn, ws.EndedResponse{Event: ws.EventEnded, Reason: string(attempt.Status)})
		return
	}

	remaining, bounded, err := h.attemptService.RemainingSeconds(c.Request.Context(), attempt)
	if err != nil {
		ws.WriteError(conn, "clock unavailable")
		return
	}

	wsLog := h.log.With().
		Int("user_id", user.ID).
		Str("attempt_id", attemptID.String()).
		Logger()
	wsLog.Info().Msg("Clock stream connected")

	if err := ws.WriteTyped(conn, ws.TickResponse{Event: ws.EventTick, RemainingSeconds: remaining, Bounded: bounded}); err != nil {
		return
	}

	// Reader goroutine: notices the client going away and forwards ping
	// requests to the select loop below. It never writes: the connection
	// allows only one concurrent writer, so this goroutine owning reads and
	// the loop owning writes is the whole synchronization story.
	done := make(chan struct{})
	pings := make(chan struct{}, 1)
	go func() {
		defer close(done)
		for {
			var msg ws.RequestEnvelope
			if err := ws.ReadJSON(conn, &msg); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					wsLog.Warn().Err(err).Msg("Unexpected close")
				}
				return
			}
			if msg.Action == ws.ActionPing {
				// Coalesce: a burst of pings still gets one pending pong.
				select {
				case pings <- struct{}{}:
				default:
				}
			}
		}
	}()

	if !bounded {
		// Untimed attempts get no countdown; hold the connection for pings.
		for {
			select {
			case <-done:
				return
			case <-pings:
				if err := ws.WriteTyped(conn, ws.PongResponse{Event: ws.EventPong}); err != nil {
					return
				}
			}
		}
	}

	deadline := time.Now().Add(time.Duration(remaining * float64(time.Second)))
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-pings:
			if err := ws.WriteTyped(conn, ws.PongResponse{Event: ws.EventPong}); err != nil {
				return
			}
		case <-ticker.C:
			left := time.Until(deadline).Seconds()
			if left <= 0 {
				ws.WriteTyped(conn, ws.EndedResponse{Event: ws.EventEnded, Reason: "window_closed"})
				return
			}
			if err := ws.WriteTyped(conn, ws.TickResponse{Event: ws.EventTick, RemainingSeconds: left, Bounded: true}); err != nil {
				return
			}
		}
	}
}
