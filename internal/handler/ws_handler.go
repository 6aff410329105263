/*
Package handler provides the HTTP handler function for WebSocket connection upgrading and initialization.

This file contains the HandleWebSocket function, which is responsible for rate limiting, validating
the room parameter, upgrading the HTTP connection to WebSocket, and initiating the client lifecycle.
*/
package handler

import (
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"omokhub/internal/app/room"
	"omokhub/internal/pkg/errs"
	"omokhub/internal/pkg/limiter"
	"omokhub/internal/pkg/logx"
	"omokhub/internal/pkg/randx"
	"omokhub/internal/pkg/resp"
)

// HandleWebSocket creates an HTTP HandlerFunc to process WebSocket connection requests.
// The socket carries only transport concerns; joining a seat happens afterwards over
// the join message, so a freshly upgraded connection starts out as an observer.
func HandleWebSocket(upgrader websocket.Upgrader, rateLimiter *limiter.IPRateLimiter, deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = r.RemoteAddr
		}

		if ip == "" {
			ip = "unknown_ip"
		}

		if !rateLimiter.GetLimiter(ip).Allow() {
			logx.Warn("WebSocket connection rejected: Rate limit exceeded.", "ip", ip)
			rateLimitErr := errs.NewError(errs.ErrRateLimitExceeded)
			resp.RespondError(w, r, rateLimitErr)
			return
		}

		roomID := chi.URLParam(r, "roomID")
		if !randx.IsValidRoomID(roomID) {
			logx.Warn("WebSocket request rejected: Invalid room id", "room_id", roomID)
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		if _, customErr := deps.Manager.RoomInfo(roomID); customErr != nil {
			logx.Info("WebSocket connection rejected: Room not found.", "room_id", roomID)
			resp.RespondError(w, r, customErr)
			return
		}

		logx.Info("Attempting to upgrade connection", "room_id", roomID)

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logx.Error(err, "Failed to upgrade connection to WebSocket")
			return
		}

		client := room.NewClient(deps.Manager, conn, roomID)

		if customErr := deps.Manager.Attach(roomID, client); customErr != nil {
			client.Close()
			return
		}

		go client.WritePump()

		logx.Info("WebSocket connection established", "room_id", roomID)

		client.ReadPump()
	}
}
