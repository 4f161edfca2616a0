package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Baaaki/taskvault/internal/broker"
	"github.com/Baaaki/taskvault/internal/dto"
	apierrors "github.com/Baaaki/taskvault/internal/errors"
	"github.com/Baaaki/taskvault/internal/middleware"
	"github.com/Baaaki/taskvault/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second // Time allowed to write a message to the peer
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10 // 54 seconds
	maxMessageSize = 512
)

const wsTypeSubscribed = "subscribed"

// WSEvent is one frame of the task event stream
type WSEvent struct {
	Type       string            `json:"type"`
	TaskID     string            `json:"task_id,omitempty"`
	Task       *dto.TaskResponse `json:"task,omitempty"`
	OccurredAt *time.Time        `json:"occurred_at,omitempty"`
}

var upgrader = websocket.Upgrader{
	// The stream authenticates with a bearer header, never with cookies
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type EventsHandler struct {
	broker broker.TaskEventBroker
}

func NewEventsHandler(eventBroker broker.TaskEventBroker) *EventsHandler {
	return &EventsHandler{broker: eventBroker}
}

// StreamTasks pushes the caller's own task events over a websocket.
func (h *EventsHandler) StreamTasks(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		apierrors.NotAuthenticated(c)
		return
	}

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	// 1. Subscribe before upgrading so a missing broker is still a plain 503
	sub, err := h.broker.Subscribe(ctx, user.ID)
	if err != nil {
		if errors.Is(err, broker.ErrUnavailable) {
			apierrors.ServiceUnavailable(c, "Task event stream unavailable")
			return
		}
		logger.Log.Error("Failed to subscribe to task events",
			zap.String("user_id", user.ID.String()),
			zap.Error(err),
		)
		apierrors.InternalError(c, "")
		return
	}
	defer sub.Close()

	// 2. Upgrade
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Log.Warn("Failed to upgrade connection", zap.Error(err))
		return
	}
	defer conn.Close()

	connectedAt := time.Now()
	logger.Log.Info("Task stream connected", zap.String("user_id", user.ID.String()))

	// 3. Reader keeps the pong deadline fresh and notices the peer leaving
	go readPump(conn, cancel)

	// 4. Writer owns every write to conn
	if err := writeJSON(conn, WSEvent{Type: wsTypeSubscribed}); err != nil {
		return
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-sub.Events():
			if !ok {
				closeGracefully(conn, "event stream ended")
				return
			}
			if err := writeJSON(conn, toWSEvent(event)); err != nil {
				logger.Log.Debug("Failed to write task event", zap.Error(err))
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-ctx.Done():
			logger.Log.Info("Task stream disconnected",
				zap.String("user_id", user.ID.String()),
				zap.Duration("session_duration", time.Since(connectedAt).Round(time.Second)),
			)
			return
		}
	}
}

// readPump discards client frames. Control frames are handled by gorilla
// during ReadMessage.
func readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Log.Debug("WebSocket read error", zap.Error(err))
			}
			return
		}
	}
}

func writeJSON(conn *websocket.Conn, v any) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(v)
}

func closeGracefully(conn *websocket.Conn, reason string) {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason),
	); err != nil {
		logger.Log.Debug("Failed to send close frame", zap.Error(err))
	}
}

func toWSEvent(event broker.TaskEvent) WSEvent {
	occurredAt := event.OccurredAt
	out := WSEvent{
		Type:       string(event.Type),
		TaskID:     event.TaskID.String(),
		OccurredAt: &occurredAt,
	}
	if event.Task != nil {
		task := dto.ToTaskResponse(event.Task)
		out.Task = &task
	}
	return out
}
