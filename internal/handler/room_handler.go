/*
Package handler provides HTTP handler functions for room creation and status checks.
*/
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"omokhub/internal/pkg/errs"
	"omokhub/internal/pkg/randx"
	"omokhub/internal/pkg/req"
	"omokhub/internal/pkg/resp"
)

type CreateRoomInput struct {
	// GameType selects the game the room hosts, e.g. "omok".
	GameType string `json:"gameType"`
}

// HandleCreateRoom creates an HTTP HandlerFunc to process room creation requests.
func HandleCreateRoom(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input CreateRoomInput

		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if input.GameType == "" {
			input.GameType = "omok"
		}

		info, createErr := deps.Manager.CreateRoom(input.GameType)
		if createErr != nil {
			resp.RespondError(w, r, createErr)
			return
		}

		data := map[string]any{
			"roomId":   info.RoomID,
			"gameType": info.GameType,
			"joinUrl":  "/room/" + info.RoomID,
		}
		resp.RespondSuccess(w, r, data)
	}
}

// HandleRoomInfo reports whether a room exists and its public status.
// The frontend calls it before opening the WebSocket so a dead link can
// show "room not found" instead of a failed upgrade.
func HandleRoomInfo(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID := chi.URLParam(r, "roomID")

		if !randx.IsValidRoomID(roomID) {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		info, customErr := deps.Manager.RoomInfo(roomID)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		resp.RespondSuccess(w, r, info)
	}
}

// HandleListGames lists the game types the server can host.
func HandleListGames(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data := map[string]any{
			"games": deps.Manager.GameTypes(),
		}
		resp.RespondSuccess(w, r, data)
	}
}

// HandleStats exposes live gauges and lifetime counters for monitoring.
func HandleStats(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp.RespondSuccess(w, r, deps.Manager.Stats())
	}
}
