package room

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"omokhub/internal/pkg/errs"
	"omokhub/internal/pkg/logx"
)

const (
	// timeout duration for writing to the WebSocket connection.
	writeWait = 10 * time.Second

	// maximum time allowed for the server to wait for a Pong message from the client.
	pongWait = 60 * time.Second

	// frequency at which the server sends a Ping message.
	pingPeriod = (pongWait * 9) / 10

	// maximum allowed size (in bytes) of a message sent by the client.
	maxMessageSize = 8192

	// WsCloseCodeSessionKicked is a custom WebSocket Close Code (4000-4999 range)
	// used to signal the client that the session was replaced by a new connection.
	WsCloseCodeSessionKicked = 4001
)

// Client to server message types.
const (
	inJoin            = "join"
	inMove            = "move"
	inChat            = "chat"
	inRestartRequest  = "restart_request"
	inRestartResponse = "restart_response"
	inUndoRequest     = "undo_request"
	inUndoResponse    = "undo_response"
	inLeave           = "leave"
	inPing            = "ping"
)

type inboundEnvelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type joinPayload struct {
	Nickname  string `json:"nickname"`
	SessionID string `json:"sessionId,omitempty"`
}

type movePayload struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type chatPayload struct {
	Message string `json:"message"`
}

type answerPayload struct {
	Accepted bool `json:"accepted"`
}

// Client represents one active WebSocket connection. It feeds inbound
// messages into the Manager and implements Conn for the outbound fan-out.
type Client struct {
	// manager handles every parsed inbound message.
	manager *Manager

	// underlying WebSocket connection object.
	conn *websocket.Conn

	// roomID is fixed at upgrade time from the URL.
	roomID string

	// sessionID and joined are owned by the ReadPump goroutine and set once
	// the join on this connection completed.
	sessionID string
	joined    bool

	// a buffered channel used to queue messages waiting to be sent to the client.
	send chan []byte

	// mu guards closed, so concurrent Send and Close never race the channel.
	mu     sync.Mutex
	closed bool

	// structured logger with client and room context.
	logger zerolog.Logger
}

// NewClient constructs a Client for an upgraded connection.
func NewClient(manager *Manager, wsConn *websocket.Conn, roomID string) *Client {
	clientLogger := logx.Logger().With().
		Str("room_id", roomID).
		Str("remote_addr", wsConn.RemoteAddr().String()).
		Logger()

	return &Client{
		manager: manager,
		conn:    wsConn,
		roomID:  roomID,
		send:    make(chan []byte, 256),
		logger:  clientLogger,
	}
}

// Send queues one outbound frame. It returns false when the connection is
// closed or its buffer is full; it never blocks a broadcast.
func (c *Client) Send(message []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}

	select {
	case c.send <- message:
		return true
	default:
		return false
	}
}

// Kick closes the connection with close code 4001 so the client can tell a
// replacement apart from a network failure.
func (c *Client) Kick(reason string) {
	c.logger.Warn().
		Int("close_code", WsCloseCodeSessionKicked).
		Str("reason", reason).
		Msg("Sending WS Kick message and closing connection")

	closeMessage := websocket.FormatCloseMessage(WsCloseCodeSessionKicked, reason)

	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(websocket.CloseMessage, closeMessage); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to send WS 4001 Close Message")
	}

	c.closeSend()
}

// Close tears the connection down.
func (c *Client) Close() {
	c.closeSend()

	if err := c.conn.Close(); err != nil {
		c.logger.Debug().Err(err).Msg("Client connection close error")
	}
}

// closeSend closes the send channel exactly once. The WritePump drains and
// finishes the close handshake.
func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// ReadPump handles reading messages from the WebSocket connection.
// It handles heartbeats (Pong), message parsing, and performs cleanup upon
// connection closure.
func (c *Client) ReadPump() {
	defer c.cleanupOnDisconnect()

	c.conn.SetReadLimit(maxMessageSize)

	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set read deadline")
		return
	}

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, messageBytes, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Info().Err(err).Msg("Error reading message (Client close/going away)")
			}
			break
		}

		if !c.processInboundMessage(messageBytes) {
			break
		}
	}
}

// cleanupOnDisconnect handles the necessary cleanup steps when the client's
// ReadPump terminates.
func (c *Client) cleanupOnDisconnect() {
	c.logger.Debug().Msg("Client connection cleanup starting")

	c.manager.Disconnect(c)
	c.closeSend()

	if err := c.conn.Close(); err != nil {
		c.logger.Debug().Err(err).Msg("Client connection close error")
	}
}

// processInboundMessage handles one raw frame from the client. It returns
// false when the ReadPump should stop reading.
func (c *Client) processInboundMessage(messageBytes []byte) bool {
	var inbound inboundEnvelope
	if err := json.Unmarshal(messageBytes, &inbound); err != nil {
		c.logger.Warn().Err(err).
			Bytes("message_bytes", messageBytes).
			Msg("Client sent invalid JSON")
		c.SendError(errs.NewError(errs.ErrInvalidJSONFormat))
		return true
	}

	switch inbound.Type {
	case inJoin:
		c.handleJoin(inbound.Payload)

	case inMove:
		c.handleMove(inbound.Payload)

	case inChat:
		c.handleChat(inbound.Payload)

	case inRestartRequest:
		if c.requireJoined() {
			c.replyOnError(c.manager.RequestRestart(c.roomID, c.sessionID))
		}

	case inRestartResponse:
		c.handleAnswer(inbound.Payload, c.manager.AnswerRestart)

	case inUndoRequest:
		if c.requireJoined() {
			c.replyOnError(c.manager.RequestUndo(c.roomID, c.sessionID))
		}

	case inUndoResponse:
		c.handleAnswer(inbound.Payload, c.manager.AnswerUndo)

	case inLeave:
		return c.handleLeave()

	case inPing:
		c.sendEnvelope(msgPong, nil)

	default:
		c.logger.Warn().Str("msg_type", inbound.Type).Msg("Client sent unsupported message type")
		c.SendError(errs.NewError(errs.ErrInvalidParams))
	}

	return true
}

// handleJoin admits or readmits this connection. A join repeated on an
// already joined connection replays the current state.
func (c *Client) handleJoin(payloadBytes json.RawMessage) {
	var payload joinPayload
	if len(payloadBytes) > 0 {
		if err := json.Unmarshal(payloadBytes, &payload); err != nil {
			c.logger.Warn().Err(err).Msg("Client sent invalid join payload")
			c.SendError(errs.NewError(errs.ErrInvalidParams))
			return
		}
	}

	sessionID := payload.SessionID
	if c.joined {
		sessionID = c.sessionID
	}

	res, cerr := c.manager.Join(c.roomID, payload.Nickname, sessionID, c)
	if cerr != nil {
		c.SendError(cerr)
		return
	}

	c.sessionID = res.SessionID
	c.joined = true

	c.sendEnvelope(msgJoined, joinedPayload{
		SessionID: res.SessionID,
		Player:    res.Player,
		State:     res.State,
		Rejoined:  res.Rejoined,
	})
}

func (c *Client) handleMove(payloadBytes json.RawMessage) {
	if !c.requireJoined() {
		return
	}

	var payload movePayload
	if err := json.Unmarshal(payloadBytes, &payload); err != nil {
		c.logger.Warn().Err(err).Msg("Client sent invalid move payload")
		c.SendError(errs.NewError(errs.ErrInvalidParams))
		return
	}

	c.replyOnError(c.manager.Move(c.roomID, c.sessionID, payload.X, payload.Y))
}

func (c *Client) handleChat(payloadBytes json.RawMessage) {
	if !c.requireJoined() {
		return
	}

	var payload chatPayload
	if err := json.Unmarshal(payloadBytes, &payload); err != nil {
		c.logger.Warn().Err(err).Msg("Client sent invalid chat payload")
		c.SendError(errs.NewError(errs.ErrInvalidParams))
		return
	}

	c.replyOnError(c.manager.Chat(c.roomID, c.sessionID, payload.Message))
}

// handleAnswer parses an accepted flag and feeds it to the given
// restart/undo resolver.
func (c *Client) handleAnswer(payloadBytes json.RawMessage, resolve func(roomID, sessionID string, accepted bool) *errs.CustomError) {
	if !c.requireJoined() {
		return
	}

	var payload answerPayload
	if err := json.Unmarshal(payloadBytes, &payload); err != nil {
		c.logger.Warn().Err(err).Msg("Client sent invalid answer payload")
		c.SendError(errs.NewError(errs.ErrInvalidParams))
		return
	}

	c.replyOnError(resolve(c.roomID, c.sessionID, payload.Accepted))
}

// handleLeave gives up the seat and stops the ReadPump.
func (c *Client) handleLeave() bool {
	if !c.requireJoined() {
		return true
	}

	c.replyOnError(c.manager.Leave(c.roomID, c.sessionID))
	c.joined = false
	return false
}

// requireJoined rejects game messages arriving before a completed join.
func (c *Client) requireJoined() bool {
	if !c.joined {
		c.SendError(errs.NewError(errs.ErrNotJoined))
		return false
	}
	return true
}

// replyOnError sends the personal error reply for a failed operation.
func (c *Client) replyOnError(cerr *errs.CustomError) {
	if cerr != nil {
		c.SendError(cerr)
	}
}

// sendEnvelope wraps a payload for this client's room and queues it.
func (c *Client) sendEnvelope(msgType string, payload any) {
	data, ok := marshalEnvelope(msgType, c.roomID, payload)
	if !ok {
		return
	}
	if !c.Send(data) {
		c.logger.Warn().Str("type", msgType).Msg("Client send channel full, dropping message")
	}
}

// SendError constructs and sends an error message to the client.
func (c *Client) SendError(err error) {
	var code int
	var message string

	var customErr *errs.CustomError
	if errors.As(err, &customErr) {
		code = customErr.Code
		message = customErr.Message
	} else {
		code = errs.ErrUnknown
		message = fmt.Sprintf("Internal server error: %v", err)
	}

	c.sendEnvelope(msgError, errorPayload{
		Code:    code,
		Message: message,
	})
}

// WritePump handles writing messages from the Client.send channel to the
// WebSocket connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()

		// ensure the connection is closed on exit
		if err := c.conn.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("Client connection close error in WritePump")
		}
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !c.writeQueuedMessage(message, ok) {
				return
			}

		case <-ticker.C:
			if !c.writePingMessage() {
				return
			}
		}
	}
}

// writeQueuedMessage handles messages pulled from the send channel, writing them to the WebSocket.
// Returns true if the WritePump loop should continue, false if it should terminate.
func (c *Client) writeQueuedMessage(message []byte, ok bool) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline")
		return false
	}

	if !ok {
		if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
			c.logger.Debug().Err(err).Msg("Error writing close message")
		}
		return false
	}

	if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
		c.logger.Error().Err(err).Msg("Error writing message")
		return false
	}

	return true
}

// writePingMessage sends a periodic WebSocket Ping message to maintain the connection heartbeat.
// Returns false if the WritePump loop should terminate due to write failure.
func (c *Client) writePingMessage() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline on ping")
		return false
	}

	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		c.logger.Debug().Err(err).Msg("Error writing ping")
		return false
	}

	return true
}
