package server

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"agora/internal/middleware"
	"agora/internal/models"
	"agora/internal/notifications"
	"agora/internal/observability"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

var streamConfig = websocket.Config{
	HandshakeTimeout: 10 * time.Second,
	ReadBufferSize:   1024,
	WriteBufferSize:  4096,
}

// requireUpgrade rejects plain HTTP requests to WebSocket endpoints.
func (s *Server) requireUpgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return models.RespondWithError(c, fiber.StatusUpgradeRequired,
			models.NewValidationError("WebSocket upgrade required"))
	}
	return c.Next()
}

// WebsocketHandler streams engagement events to an authenticated client.
// Clients narrow the stream with {"action":"subscribe","post_ids":[...]};
// until they do, every event is delivered.
func (s *Server) WebsocketHandler() fiber.Handler {
	wsLogger := observability.NewWSLogger(s.hub.Name())
	return websocket.New(func(conn *websocket.Conn) {
		s.serveStream(conn, wsLogger)
	}, streamConfig)
}

func (s *Server) serveStream(conn *websocket.Conn, wsLogger *observability.WSLogger) {
	ctx := context.Background()

	userID, _ := conn.Locals("userID").(uint)
	if userID == 0 {
		closeStream(conn, websocket.ClosePolicyViolation, "unauthorized")
		return
	}

	client, err := s.hub.Register(userID, conn)
	if err != nil {
		code, reason := registrationRejection(err)
		middleware.Logger.Warn("websocket rejected",
			slog.Uint64("user_id", uint64(userID)),
			slog.String("error", err.Error()),
		)
		closeStream(conn, code, reason)
		return
	}
	wsLogger.LogConnect(ctx, userID)

	client.Serve()

	wsLogger.LogDisconnect(ctx, userID, "closed")
}

// registrationRejection maps a Register failure to a close frame. Capacity
// errors are worth retrying later; anything else is not.
func registrationRejection(err error) (int, string) {
	switch {
	case errors.Is(err, notifications.ErrUserConnLimit), errors.Is(err, notifications.ErrServerConnLimit):
		return websocket.CloseTryAgainLater, err.Error()
	default:
		return websocket.CloseInternalServerErr, "registration failed"
	}
}

func closeStream(conn *websocket.Conn, code int, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason),
		time.Now().Add(time.Second))
	_ = conn.Close()
}
