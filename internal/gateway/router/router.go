package router

import (
	"context"

	"vehicle_marketplace_chat/internal/gateway/app"
	"vehicle_marketplace_chat/pkg/middlewares"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// RegisterRoutes register the gateway's realtime and REST routes
func RegisterRoutes(r *fiber.App, ws *app.ChatWebsocketHandler, api *app.ChatHTTPHandler) {
	r.Use(middlewares.JWTMiddleware())

	r.Get("/ws", websocket.New(func(c *websocket.Conn) {
		ws.HandleConnection(context.Background(), c)
	}))

	v1 := r.Group("/api/v1")
	v1.Get("/conversations", api.ListConversations)
	v1.Get("/profiles/:id", api.GetProfile)
	v1.Get("/rooms/:room/history", api.GetHistory)
	v1.Post("/rooms/:room/messages", api.PostMessage)
	v1.Get("/rooms/:room/read", api.GetWatermark)
	v1.Post("/rooms/:room/read", api.MarkRead)
}
