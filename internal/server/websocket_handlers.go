package server

import (
	"errors"
	"log/slog"

	"circle/internal/middleware"
	"circle/internal/notifications"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// requireUpgrade rejects plain HTTP requests to the websocket endpoint.
func (s *Server) requireUpgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// FeedWebsocketHandler streams newThread/updateLike/newReply events to one client.
// The feed is server-to-client; inbound frames are ignored.
func (s *Server) FeedWebsocketHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		userID, _ := conn.Locals("userID").(uint)

		client, err := s.hub.Register(userID, conn)
		if err != nil {
			reason := "server busy"
			if errors.Is(err, notifications.ErrHubShutdown) {
				reason = "shutting down"
			}
			middleware.Logger.Warn("feed websocket rejected",
				slog.Uint64("user_id", uint64(userID)),
				slog.String("error", err.Error()),
			)
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseTryAgainLater, reason))
			_ = conn.Close()
			return
		}

		client.Serve()
	})
}
