/*
Package errs provides custom error types and application-level error code constants.

These error codes are used to clearly identify specific business or system errors
both internally within the server and in communication with clients.
*/
package errs

// 1xxx: General Request Handling Errors
const (
	// ErrInvalidParams indicates that request parameter validation failed.
	ErrInvalidParams = 1001

	// ErrUnsupportedMediaType indicates that the request header Content-Type is not supported.
	ErrUnsupportedMediaType = 1002

	// ErrInvalidJSONFormat indicates that the request body JSON format is incorrect (e.g., syntax error).
	ErrInvalidJSONFormat = 1003

	// ErrExtraContentInBody indicates that the request body contained extra content after valid JSON data.
	ErrExtraContentInBody = 1004

	// ErrRateLimitExceeded indicates that the request rate has exceeded the set limit.
	ErrRateLimitExceeded = 1005

	// ErrInvalidNickname indicates that a nickname is empty, too long, or contains forbidden characters.
	ErrInvalidNickname = 1006

	// ErrInvalidCoordinate indicates that a move coordinate is outside the board.
	ErrInvalidCoordinate = 1007
)

// 2xxx: Room, Game, and Content Business Logic Errors
const (
	// ErrGameTypeInvalid indicates that an unknown game type was requested during room creation.
	ErrGameTypeInvalid = 2101

	// ErrRoomIDExists indicates that the attempted room identifier for creation already exists.
	ErrRoomIDExists = 2102

	// ErrRoomNotFound indicates that the room targeted by the operation does not exist.
	ErrRoomNotFound = 2103

	// ErrRoomIsFull indicates that the room being joined has reached its maximum player capacity.
	ErrRoomIsFull = 2104

	// ErrPlayerNotFound indicates that no player with the given session exists in the room.
	ErrPlayerNotFound = 2105

	// ErrRoomNotReady indicates that the operation needs every seat filled (e.g., answering a restart).
	ErrRoomNotReady = 2106

	// ErrMessageContentTooLong indicates that a chat message exceeded the maximum length limit.
	ErrMessageContentTooLong = 2201

	// ErrMessageContentEmpty indicates that a chat message contained no text.
	ErrMessageContentEmpty = 2202

	// ErrGameNotStarted indicates a game action arrived while the room is still waiting for players.
	ErrGameNotStarted = 2301

	// ErrGameAlreadyEnded indicates a game action arrived after the game finished.
	ErrGameAlreadyEnded = 2302

	// ErrNotYourTurn indicates that the acting player does not hold the current turn.
	ErrNotYourTurn = 2303

	// ErrCellOccupied indicates that the targeted board cell already holds a stone.
	ErrCellOccupied = 2304

	// ErrNoMovesToUndo indicates an undo request with an empty move history.
	ErrNoMovesToUndo = 2305

	// ErrPendingRequestExists indicates that another restart/undo request is already awaiting an answer.
	ErrPendingRequestExists = 2306

	// ErrNoPendingRequest indicates an answer arrived with no request pending.
	ErrNoPendingRequest = 2307

	// ErrOwnRequestAnswer indicates that a player tried to answer their own restart/undo request.
	ErrOwnRequestAnswer = 2308
)

// 3xxx: Session and Security Errors
const (
	// ErrSessionInvalid indicates that a client-supplied session identifier is malformed.
	ErrSessionInvalid = 3001

	// ErrSessionExpired indicates that the session passed its idle TTL and was removed.
	ErrSessionExpired = 3002

	// ErrSessionRoomMismatch indicates that the session belongs to a different room than requested.
	ErrSessionRoomMismatch = 3003

	// ErrSessionKicked indicates that the current client connection has been terminated
	// because the same session opened a newer connection.
	ErrSessionKicked = 3004

	// ErrNotJoined indicates a game message arriving on a connection that has not completed a join.
	ErrNotJoined = 3005
)

// 5xxx: Internal System Errors
const (
	// ErrUnknown represents an unclassified, general server internal error.
	ErrUnknown = 5000
)
