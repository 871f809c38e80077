package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/praxislearn/assess-backend/internal/middleware"
	"github.com/praxislearn/assess-backend/internal/model"
	"github.com/praxislearn/assess-backend/internal/service"
	"github.com/rs/zerolog"
)

const (
	statePushInterval = 2 * time.Second
	wsWriteTimeout    = 5 * time.Second
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// An empty allowedOrigins slice permits all origins (development mode).
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

// statePush is one frame of the session state stream. The countdown here is
// a convenience projection for the client timer; the server-side deadline
// check is the only enforcement.
type statePush struct {
	Status           model.SessionStatus  `json:"status"`
	RemainingSeconds *int                 `json:"remaining_seconds,omitempty"`
	Palette          []model.PaletteEntry `json:"palette"`
}

// WSHandler streams live session state (remaining time + palette).
type WSHandler struct {
	sessions *service.SessionService
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(sessions *service.SessionService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		sessions: sessions,
		log:      log.With().Str("component", "ws_handler").Logger(),
		upgrader: buildUpgrader(allowedOrigins),
	}
}

// SessionStateStream godoc
// WS /ws/v1/sessions/:session_id/stream
// Pushes the session state every few seconds until the session completes or
// the client disconnects. A disconnect is not a submit; only the deadline
// or an explicit submit terminates the session.
func (h *WSHandler) SessionStateStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session ID"})
		return
	}

	// Ownership check before upgrading; unknown and unowned look identical.
	if _, err := h.sessions.Get(c.Request.Context(), sessionID, claims.LearnerID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	wsLog := h.log.With().
		Int("learner_id", claims.LearnerID).
		Str("session_id", sessionID.String()).
		Logger()
	wsLog.Info().Msg("Learner connected")

	// Read pump: we never expect client frames, but reading is required to
	// notice the close handshake.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(statePushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			wsLog.Debug().Msg("Connection closed")
			return
		case <-ticker.C:
			summary, err := h.sessions.Get(c.Request.Context(), sessionID, claims.LearnerID)
			if err != nil {
				wsLog.Warn().Err(err).Msg("State read failed")
				return
			}

			push := statePush{
				Status:           summary.Status,
				RemainingSeconds: summary.RemainingSeconds,
				Palette:          summary.Palette,
			}
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(push); err != nil {
				wsLog.Debug().Err(err).Msg("Write failed, dropping connection")
				return
			}

			if summary.Status == model.SessionStatusCompleted {
				// Final frame delivered; the client switches to the result view.
				conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session completed"))
				return
			}
		}
	}
}
