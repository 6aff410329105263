/*
Package errs provides custom error types and application-level error code constants.

This file defines the map from error codes to the CustomError struct, used to standardize
HTTP responses and internal error handling.
*/
package errs

import "net/http"

// errorMap stores the detailed CustomError struct corresponding to every application error code.
// The key is the error code (int), and the value contains the user message and HTTP status code.
var errorMap = map[int]CustomError{
	// 1xxx: General Request Handling Errors
	ErrInvalidParams:        {Code: ErrInvalidParams, Message: "Invalid request parameters.", Status: http.StatusBadRequest},
	ErrUnsupportedMediaType: {Code: ErrUnsupportedMediaType, Message: "Unsupported request format.", Status: http.StatusUnsupportedMediaType},
	ErrInvalidJSONFormat:    {Code: ErrInvalidJSONFormat, Message: "Unsupported request format.", Status: http.StatusBadRequest},
	ErrExtraContentInBody:   {Code: ErrExtraContentInBody, Message: "Request contains unexpected data.", Status: http.StatusBadRequest},
	ErrRateLimitExceeded:    {Code: ErrRateLimitExceeded, Message: "Too many requests. Please try again later.", Status: http.StatusTooManyRequests},
	ErrInvalidNickname:      {Code: ErrInvalidNickname, Message: "Nickname must be 1-20 characters without < > & \" or '.", Status: http.StatusBadRequest},
	ErrInvalidCoordinate:    {Code: ErrInvalidCoordinate, Message: "That position is outside the board.", Status: http.StatusBadRequest},

	// 2xxx: Room, Game, and Content Business Logic Errors
	ErrGameTypeInvalid:       {Code: ErrGameTypeInvalid, Message: "Unknown game type.", Status: http.StatusBadRequest},
	ErrRoomIDExists:          {Code: ErrRoomIDExists, Message: "Room already exists.", Status: http.StatusConflict},
	ErrRoomNotFound:          {Code: ErrRoomNotFound, Message: "Room not found.", Status: http.StatusNotFound},
	ErrRoomIsFull:            {Code: ErrRoomIsFull, Message: "This room is full.", Status: http.StatusConflict},
	ErrPlayerNotFound:        {Code: ErrPlayerNotFound, Message: "You are not a player in this room.", Status: http.StatusNotFound},
	ErrRoomNotReady:          {Code: ErrRoomNotReady, Message: "The room is missing a player.", Status: http.StatusConflict},
	ErrMessageContentTooLong: {Code: ErrMessageContentTooLong, Message: "Message is too long.", Status: http.StatusBadRequest},
	ErrMessageContentEmpty:   {Code: ErrMessageContentEmpty, Message: "Message is empty.", Status: http.StatusBadRequest},
	ErrGameNotStarted:        {Code: ErrGameNotStarted, Message: "The game has not started yet.", Status: http.StatusConflict},
	ErrGameAlreadyEnded:      {Code: ErrGameAlreadyEnded, Message: "The game is already over.", Status: http.StatusConflict},
	ErrNotYourTurn:           {Code: ErrNotYourTurn, Message: "It is not your turn.", Status: http.StatusConflict},
	ErrCellOccupied:          {Code: ErrCellOccupied, Message: "That cell is already taken.", Status: http.StatusConflict},
	ErrNoMovesToUndo:         {Code: ErrNoMovesToUndo, Message: "There is no move to undo.", Status: http.StatusConflict},
	ErrPendingRequestExists:  {Code: ErrPendingRequestExists, Message: "Another request is already waiting for an answer.", Status: http.StatusConflict},
	ErrNoPendingRequest:      {Code: ErrNoPendingRequest, Message: "There is no request to answer.", Status: http.StatusConflict},
	ErrOwnRequestAnswer:      {Code: ErrOwnRequestAnswer, Message: "You cannot answer your own request.", Status: http.StatusConflict},

	// 3xxx: Session and Security Errors
	ErrSessionInvalid:      {Code: ErrSessionInvalid, Message: "Invalid session.", Status: http.StatusBadRequest},
	ErrSessionExpired:      {Code: ErrSessionExpired, Message: "Your session expired. Please rejoin.", Status: http.StatusUnauthorized},
	ErrSessionRoomMismatch: {Code: ErrSessionRoomMismatch, Message: "This session belongs to a different room.", Status: http.StatusBadRequest},
	ErrSessionKicked:       {Code: ErrSessionKicked, Message: "You were connected from another tab or device.", Status: http.StatusConflict},
	ErrNotJoined:           {Code: ErrNotJoined, Message: "Join the room first.", Status: http.StatusBadRequest},

	// 5xxx: Internal System Errors
	ErrUnknown: {Code: ErrUnknown, Message: "Something went wrong. Please try again.", Status: http.StatusInternalServerError},
}
