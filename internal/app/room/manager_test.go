package room

import (
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"omokhub/internal/app/session"
	"omokhub/internal/configs"
	"omokhub/internal/pkg/errs"
	"omokhub/internal/pkg/randx"
)

// unknownSessionID is well-formed but never issued by any store.
const unknownSessionID = "3b241101-e2bb-4255-8caf-4136c566a962"

func testManagerConfig() *configs.AppConfig {
	return &configs.AppConfig{
		Environment:       "development",
		SessionTTL:        time.Hour,
		RoomGracePeriod:   time.Hour,
		RoomSweepInterval: time.Hour,
		RoomMaxIdle:       time.Hour,
	}
}

func newTestManager(t *testing.T, game GameManager) *Manager {
	t.Helper()
	return newTestManagerCfg(t, testManagerConfig(), game)
}

func newTestManagerCfg(t *testing.T, cfg *configs.AppConfig, game GameManager) *Manager {
	t.Helper()
	games := NewGameRegistry()
	games.Register(game)
	m := NewManager(cfg, games)
	t.Cleanup(m.Shutdown)
	return m
}

func createRoom(t *testing.T, m *Manager) string {
	t.Helper()
	info, cerr := m.CreateRoom("stub")
	require.Nil(t, cerr)
	return info.RoomID
}

func join(t *testing.T, m *Manager, roomID, nickname, sessionID string) (*JoinResult, *fakeConn) {
	t.Helper()
	c := &fakeConn{}
	res, cerr := m.Join(roomID, nickname, sessionID, c)
	require.Nil(t, cerr)
	return res, c
}

// wireFrame mirrors the outbound envelope with the payload left raw so each
// test decodes only the part it asserts on.
type wireFrame struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	RoomID  string          `json:"roomId"`
	Payload json.RawMessage `json:"payload"`
}

func decodeFrames(t *testing.T, c *fakeConn) []wireFrame {
	t.Helper()
	var frames []wireFrame
	for _, raw := range c.messages() {
		var f wireFrame
		require.NoError(t, json.Unmarshal(raw, &f))
		frames = append(frames, f)
	}
	return frames
}

func frameTypes(t *testing.T, c *fakeConn) []string {
	t.Helper()
	var types []string
	for _, f := range decodeFrames(t, c) {
		types = append(types, f.Type)
	}
	return types
}

// requireFrame returns the most recent frame of the type received by c.
func requireFrame(t *testing.T, c *fakeConn, msgType string) wireFrame {
	t.Helper()
	frames := decodeFrames(t, c)
	for i := len(frames) - 1; i >= 0; i-- {
		if frames[i].Type == msgType {
			return frames[i]
		}
	}
	t.Fatalf("no %q frame among %d received frames", msgType, len(frames))
	return wireFrame{}
}

func decodePayload(t *testing.T, f wireFrame, into any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(f.Payload, into))
}

func TestManagerCreateRoomAndInfo(t *testing.T) {
	m := newTestManager(t, newStubGame())

	info, cerr := m.CreateRoom("stub")
	require.Nil(t, cerr)
	assert.True(t, randx.IsValidRoomID(info.RoomID))
	assert.Equal(t, "stub", info.GameType)
	assert.Equal(t, StatusWaiting, info.Status)
	assert.Zero(t, info.PlayerCount)
	assert.Equal(t, 2, info.MaxPlayers)
	assert.Zero(t, info.GamesPlayed)

	got, cerr := m.RoomInfo(info.RoomID)
	require.Nil(t, cerr)
	assert.Equal(t, info, got)

	_, cerr = m.RoomInfo("A1b2C3d4")
	require.NotNil(t, cerr)
	assert.Equal(t, errs.ErrRoomNotFound, cerr.Code)

	_, cerr = m.CreateRoom("chess")
	require.NotNil(t, cerr)
	assert.Equal(t, errs.ErrGameTypeInvalid, cerr.Code)

	assert.EqualValues(t, 1, m.Stats().RoomsCreated)
}

func TestManagerJoinSeatsPlayersAndStartsGame(t *testing.T) {
	m := newTestManager(t, newStubGame())
	roomID := createRoom(t, m)

	res1, c1 := join(t, m, roomID, "", "")
	assert.True(t, session.Validate(res1.SessionID))
	assert.Equal(t, 1, res1.Player.PlayerNumber)
	assert.True(t, strings.HasPrefix(res1.Player.Nickname, "Guest_"))
	assert.False(t, res1.Rejoined)
	assert.Equal(t, StatusWaiting, res1.State.Status)
	assert.Equal(t, []string{msgPlayerJoined}, frameTypes(t, c1))

	res2, c2 := join(t, m, roomID, "bob", "")
	assert.Equal(t, 2, res2.Player.PlayerNumber)
	assert.Equal(t, "bob", res2.Player.Nickname)
	assert.Equal(t, StatusPlaying, res2.State.Status)
	assert.NotEqual(t, res1.SessionID, res2.SessionID)

	assert.Equal(t, []string{msgPlayerJoined, msgPlayerJoined, msgGameStarted}, frameTypes(t, c1))
	assert.Equal(t, []string{msgPlayerJoined, msgGameStarted}, frameTypes(t, c2))

	var pj playerJoinedPayload
	decodePayload(t, requireFrame(t, c2, msgPlayerJoined), &pj)
	assert.Equal(t, 2, pj.Player.PlayerNumber)
	require.NotNil(t, pj.State)
	assert.Len(t, pj.State.Players, 2)

	var started statePayload
	decodePayload(t, requireFrame(t, c2, msgGameStarted), &started)
	require.NotNil(t, started.State)
	assert.Equal(t, StatusPlaying, started.State.Status)
	assert.Equal(t, float64(1), started.State.Players[0].Attrs[stubAttrMark])
	assert.Equal(t, float64(2), started.State.Players[1].Attrs[stubAttrMark])

	assert.EqualValues(t, 1, m.Stats().GamesStarted)

	_, cerr := m.Join("A1b2C3d4", "late", "", &fakeConn{})
	require.NotNil(t, cerr)
	assert.Equal(t, errs.ErrRoomNotFound, cerr.Code)
}

func TestManagerJoinFullRoom(t *testing.T) {
	m := newTestManager(t, newStubGame())
	roomID := createRoom(t, m)
	join(t, m, roomID, "alice", "")
	join(t, m, roomID, "bob", "")

	_, cerr := m.Join(roomID, "late", "", &fakeConn{})
	require.NotNil(t, cerr)
	assert.Equal(t, errs.ErrRoomIsFull, cerr.Code)
}

func TestManagerJoinInvalidNickname(t *testing.T) {
	m := newTestManager(t, newStubGame())
	roomID := createRoom(t, m)

	_, cerr := m.Join(roomID, strings.Repeat("x", NicknameMaxRunes+1), "", &fakeConn{})
	require.NotNil(t, cerr)
	assert.Equal(t, errs.ErrInvalidNickname, cerr.Code)
}

func TestManagerRejoinSameSessionEvictsPriorConn(t *testing.T) {
	m := newTestManager(t, newStubGame())
	roomID := createRoom(t, m)

	res1, c1 := join(t, m, roomID, "alice", "")
	res2, c2 := join(t, m, roomID, "ignored", res1.SessionID)

	assert.True(t, res2.Rejoined)
	assert.Equal(t, res1.SessionID, res2.SessionID)
	assert.Equal(t, 1, res2.Player.PlayerNumber)
	assert.Equal(t, "alice", res2.Player.Nickname, "first join's nickname sticks")

	info, cerr := m.RoomInfo(roomID)
	require.Nil(t, cerr)
	assert.Equal(t, 1, info.PlayerCount)

	assert.Equal(t, []string{"session connected elsewhere"}, c1.kicked())
	assert.True(t, c1.isClosed())
	assert.Equal(t, 1, m.registry.ConnectionCount(roomID))

	var rc playerReconnectedPayload
	decodePayload(t, requireFrame(t, c2, msgPlayerReconnected), &rc)
	assert.Equal(t, 1, rc.PlayerNumber)
	require.NotNil(t, rc.State)
	assert.Len(t, rc.State.Players, 1)
}

func TestManagerJoinUnresolvableSessionStartsFresh(t *testing.T) {
	tests := []struct {
		name      string
		presented string
	}{
		{name: "malformed id", presented: "not-a-session"},
		{name: "unknown id", presented: unknownSessionID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestManager(t, newStubGame())
			roomID := createRoom(t, m)

			res, _ := join(t, m, roomID, "alice", tt.presented)
			assert.NotEqual(t, tt.presented, res.SessionID)
			assert.True(t, session.Validate(res.SessionID))
			assert.False(t, res.Rejoined)
			assert.Equal(t, 1, res.Player.PlayerNumber)
		})
	}
}

func TestManagerJoinWhileBoundToLiveRoom(t *testing.T) {
	m := newTestManager(t, newStubGame())
	roomA := createRoom(t, m)
	roomB := createRoom(t, m)

	resA, _ := join(t, m, roomA, "alice", "")

	_, cerr := m.Join(roomB, "", resA.SessionID, &fakeConn{})
	require.NotNil(t, cerr)
	assert.Equal(t, errs.ErrSessionRoomMismatch, cerr.Code)
}

func TestManagerJoinRepairsStaleRoomBinding(t *testing.T) {
	m := newTestManager(t, newStubGame())
	roomA := createRoom(t, m)
	roomB := createRoom(t, m)

	resA, _ := join(t, m, roomA, "alice", "")

	// Remove the room from under the binding so the session stays pointed at
	// a room that no longer exists.
	require.True(t, m.lifecycle.Delete(roomA))

	res, _ := join(t, m, roomB, "alice", resA.SessionID)
	assert.Equal(t, resA.SessionID, res.SessionID, "session survives the stale binding")
	assert.False(t, res.Rejoined)
	assert.Equal(t, 1, res.Player.PlayerNumber)
}

func TestManagerDisconnectSchedulesCleanup(t *testing.T) {
	cfg := testManagerConfig()
	cfg.RoomGracePeriod = 100 * time.Millisecond
	m := newTestManagerCfg(t, cfg, newStubGame())
	roomID := createRoom(t, m)

	_, c1 := join(t, m, roomID, "alice", "")
	_, c2 := join(t, m, roomID, "bob", "")

	m.Disconnect(c2)
	assert.False(t, m.timer.Pending(roomID), "a live connection keeps the room safe")

	var pd playerDisconnectedPayload
	decodePayload(t, requireFrame(t, c1, msgPlayerDisconnected), &pd)
	assert.Equal(t, 2, pd.PlayerNumber)
	assert.Equal(t, "bob", pd.Nickname)

	info, cerr := m.RoomInfo(roomID)
	require.Nil(t, cerr)
	assert.Equal(t, 2, info.PlayerCount, "the seat outlives the connection")

	m.Disconnect(c2) // already detached, must be a no-op

	m.Disconnect(c1)
	assert.True(t, m.timer.Pending(roomID))

	require.Eventually(t, func() bool {
		_, cerr := m.RoomInfo(roomID)
		return cerr != nil && cerr.Code == errs.ErrRoomNotFound
	}, 2*time.Second, 5*time.Millisecond, "room must be deleted once the grace period elapses")

	assert.EqualValues(t, 1, m.Stats().RoomsDeleted)
}

func TestManagerReconnectWithinGraceCancelsCleanup(t *testing.T) {
	cfg := testManagerConfig()
	cfg.RoomGracePeriod = 150 * time.Millisecond
	m := newTestManagerCfg(t, cfg, newStubGame())
	roomID := createRoom(t, m)

	res1, c1 := join(t, m, roomID, "alice", "")

	m.Disconnect(c1)
	require.True(t, m.timer.Pending(roomID))

	res2, c2 := join(t, m, roomID, "", res1.SessionID)
	assert.True(t, res2.Rejoined)
	assert.True(t, res2.Player.Connected)
	assert.False(t, m.timer.Pending(roomID), "reconnection cancels the armed cleanup")

	time.Sleep(3 * cfg.RoomGracePeriod)
	_, cerr := m.RoomInfo(roomID)
	require.Nil(t, cerr, "room must survive past the grace period after a reconnect")

	var rc playerReconnectedPayload
	decodePayload(t, requireFrame(t, c2, msgPlayerReconnected), &rc)
	assert.Equal(t, 1, rc.PlayerNumber)
	assert.GreaterOrEqual(t, rc.DowntimeSeconds, 0.0)
}

func TestManagerReconnectErrors(t *testing.T) {
	m := newTestManager(t, newStubGame())
	roomA := createRoom(t, m)
	roomB := createRoom(t, m)

	_, cerr := m.Reconnect("A1b2C3d4", unknownSessionID, &fakeConn{})
	require.NotNil(t, cerr)
	assert.Equal(t, errs.ErrRoomNotFound, cerr.Code)

	_, cerr = m.Reconnect(roomA, unknownSessionID, &fakeConn{})
	require.NotNil(t, cerr)
	assert.Equal(t, errs.ErrSessionExpired, cerr.Code)

	resA, _ := join(t, m, roomA, "alice", "")
	_, cerr = m.Reconnect(roomB, resA.SessionID, &fakeConn{})
	require.NotNil(t, cerr)
	assert.Equal(t, errs.ErrSessionRoomMismatch, cerr.Code)

	// A session that exists but never took a seat in the room.
	sess := m.store.Create()
	_, cerr = m.Reconnect(roomA, sess.ID, &fakeConn{})
	require.NotNil(t, cerr)
	assert.Equal(t, errs.ErrPlayerNotFound, cerr.Code)
}

func TestManagerLeave(t *testing.T) {
	m := newTestManager(t, newStubGame())
	roomID := createRoom(t, m)

	res1, c1 := join(t, m, roomID, "alice", "")
	res2, c2 := join(t, m, roomID, "bob", "")

	require.Nil(t, m.Leave(roomID, res2.SessionID))

	var pl playerLeftPayload
	decodePayload(t, requireFrame(t, c1, msgPlayerLeft), &pl)
	assert.Equal(t, 2, pl.PlayerNumber)
	assert.Equal(t, "bob", pl.Nickname)
	require.NotNil(t, pl.State)
	assert.Equal(t, StatusWaiting, pl.State.Status, "short-handed game falls back to waiting")
	assert.Len(t, pl.State.Players, 1)

	// The leaver's connection stays attached as a watcher.
	requireFrame(t, c2, msgPlayerLeft)

	info, cerr := m.RoomInfo(roomID)
	require.Nil(t, cerr)
	assert.Equal(t, 1, info.PlayerCount)

	cerr = m.Leave(roomID, res2.SessionID)
	require.NotNil(t, cerr)
	assert.Equal(t, errs.ErrPlayerNotFound, cerr.Code)

	require.Nil(t, m.Leave(roomID, res1.SessionID))

	var rd roomDeletedPayload
	decodePayload(t, requireFrame(t, c1, msgRoomDeleted), &rd)
	assert.Equal(t, ReasonEmpty, rd.Reason)
	assert.True(t, c1.isClosed())
	assert.True(t, c2.isClosed())

	_, cerr = m.RoomInfo(roomID)
	require.NotNil(t, cerr)
	assert.Equal(t, errs.ErrRoomNotFound, cerr.Code)

	cerr = m.Leave(roomID, res1.SessionID)
	require.NotNil(t, cerr)
	assert.Equal(t, errs.ErrRoomNotFound, cerr.Code)
	assert.EqualValues(t, 1, m.Stats().RoomsDeleted)
}

func TestManagerMoveWinFlow(t *testing.T) {
	game := newStubGame()
	game.winOn = func(x, y int) bool { return x == 9 }
	m := newTestManager(t, game)
	roomID := createRoom(t, m)

	res1, c1 := join(t, m, roomID, "alice", "")
	res2, c2 := join(t, m, roomID, "bob", "")

	// Seat order decides the marks: alice moves first.
	cerr := m.Move(roomID, res2.SessionID, 0, 0)
	require.NotNil(t, cerr)
	assert.Equal(t, errs.ErrNotYourTurn, cerr.Code)

	require.Nil(t, m.Move(roomID, res1.SessionID, 3, 4))

	var mm moveMadePayload
	decodePayload(t, requireFrame(t, c2, msgMoveMade), &mm)
	assert.Equal(t, 3, mm.X)
	assert.Equal(t, 4, mm.Y)
	assert.Equal(t, 1, mm.Stone)
	assert.Equal(t, 1, mm.PlayerNumber)
	assert.Equal(t, 2, mm.NextTurn)

	require.Nil(t, m.Move(roomID, res2.SessionID, 5, 5))
	require.Nil(t, m.Move(roomID, res1.SessionID, 9, 0))

	var last moveMadePayload
	decodePayload(t, requireFrame(t, c1, msgMoveMade), &last)
	assert.Equal(t, 9, last.X)
	assert.Zero(t, last.NextTurn, "an ending move has no next turn")

	var ge gameEndedPayload
	decodePayload(t, requireFrame(t, c1, msgGameEnded), &ge)
	assert.Equal(t, 1, ge.Winner)
	assert.Equal(t, "win", ge.Reason)
	assert.GreaterOrEqual(t, ge.DurationSeconds, 0.0)

	info, cerr := m.RoomInfo(roomID)
	require.Nil(t, cerr)
	assert.Equal(t, StatusEnded, info.Status)

	snap, cerr := m.Snapshot(roomID)
	require.Nil(t, cerr)
	assert.Equal(t, 1, snap.LastWinner)
	assert.Len(t, snap.MoveHistory, 3)

	st := m.Stats()
	assert.EqualValues(t, 3, st.MovesPlayed)
	assert.EqualValues(t, 1, st.GamesCompleted)

	cerr = m.Move(roomID, res2.SessionID, 1, 1)
	require.NotNil(t, cerr)
	assert.Equal(t, errs.ErrGameAlreadyEnded, cerr.Code)

	cerr = m.Move(roomID, unknownSessionID, 1, 1)
	require.NotNil(t, cerr)
	assert.Equal(t, errs.ErrPlayerNotFound, cerr.Code)
}

func TestManagerMoveDraw(t *testing.T) {
	game := newStubGame()
	game.drawOn = func(x, y int) bool { return x == 7 }
	m := newTestManager(t, game)
	roomID := createRoom(t, m)

	res1, c1 := join(t, m, roomID, "alice", "")
	join(t, m, roomID, "bob", "")

	require.Nil(t, m.Move(roomID, res1.SessionID, 7, 0))

	var ge gameEndedPayload
	decodePayload(t, requireFrame(t, c1, msgGameEnded), &ge)
	assert.Zero(t, ge.Winner)
	assert.Equal(t, "draw", ge.Reason)

	snap, cerr := m.Snapshot(roomID)
	require.Nil(t, cerr)
	assert.Equal(t, StatusEnded, snap.Status)
	assert.Zero(t, snap.LastWinner, "a draw names no winner")
}

func TestManagerMoveClearsPendingUndo(t *testing.T) {
	m := newTestManager(t, newStubGame())
	roomID := createRoom(t, m)

	res1, _ := join(t, m, roomID, "alice", "")
	res2, _ := join(t, m, roomID, "bob", "")

	require.Nil(t, m.Move(roomID, res1.SessionID, 0, 0))
	require.Nil(t, m.RequestUndo(roomID, res1.SessionID))

	require.Nil(t, m.Move(roomID, res2.SessionID, 1, 1))

	r, ok := m.lifecycle.Get(roomID)
	require.True(t, ok)
	r.mu.Lock()
	pending := r.pendingUndo
	r.mu.Unlock()
	assert.Zero(t, pending, "a new move invalidates the open undo request")

	cerr := m.AnswerUndo(roomID, res2.SessionID, true)
	require.NotNil(t, cerr)
	assert.Equal(t, errs.ErrNoPendingRequest, cerr.Code)
}

func TestManagerChat(t *testing.T) {
	m := newTestManager(t, newStubGame())
	roomID := createRoom(t, m)

	res1, c1 := join(t, m, roomID, "alice", "")

	require.Nil(t, m.Chat(roomID, res1.SessionID, "  hello  "))

	var cm ChatMessage
	decodePayload(t, requireFrame(t, c1, msgChat), &cm)
	assert.Equal(t, "hello", cm.Message, "surrounding whitespace is trimmed")
	assert.Equal(t, 1, cm.Number)
	assert.Equal(t, "alice", cm.Nickname)
	assert.False(t, cm.At.IsZero())

	cerr := m.Chat(roomID, res1.SessionID, "   ")
	require.NotNil(t, cerr)
	assert.Equal(t, errs.ErrMessageContentEmpty, cerr.Code)

	cerr = m.Chat(roomID, res1.SessionID, strings.Repeat("x", ChatMessageMaxRunes+1))
	require.NotNil(t, cerr)
	assert.Equal(t, errs.ErrMessageContentTooLong, cerr.Code)

	require.Nil(t, m.Chat(roomID, res1.SessionID, strings.Repeat("한", ChatMessageMaxRunes)),
		"the length limit counts runes, not bytes")

	cerr = m.Chat(roomID, unknownSessionID, "hi")
	require.NotNil(t, cerr)
	assert.Equal(t, errs.ErrPlayerNotFound, cerr.Code)

	snap, cerr2 := m.Snapshot(roomID)
	require.Nil(t, cerr2)
	assert.Len(t, snap.ChatHistory, 2)
}

func TestManagerRestartProtocol(t *testing.T) {
	m := newTestManager(t, newStubGame())
	roomID := createRoom(t, m)

	res1, c1 := join(t, m, roomID, "alice", "")

	cerr := m.RequestRestart(roomID, res1.SessionID)
	require.NotNil(t, cerr)
	assert.Equal(t, errs.ErrGameNotStarted, cerr.Code)

	res2, c2 := join(t, m, roomID, "bob", "")
	require.Nil(t, m.Move(roomID, res1.SessionID, 0, 0))

	cerr = m.AnswerRestart(roomID, res1.SessionID, true)
	require.NotNil(t, cerr)
	assert.Equal(t, errs.ErrNoPendingRequest, cerr.Code)

	require.Nil(t, m.RequestRestart(roomID, res1.SessionID))

	var rq requestPayload
	decodePayload(t, requireFrame(t, c2, msgRestartRequested), &rq)
	assert.Equal(t, 1, rq.Requester)

	cerr = m.RequestRestart(roomID, res2.SessionID)
	require.NotNil(t, cerr)
	assert.Equal(t, errs.ErrPendingRequestExists, cerr.Code)

	cerr = m.AnswerRestart(roomID, res1.SessionID, true)
	require.NotNil(t, cerr)
	assert.Equal(t, errs.ErrOwnRequestAnswer, cerr.Code)

	require.Nil(t, m.AnswerRestart(roomID, res2.SessionID, false))

	var rp responsePayload
	decodePayload(t, requireFrame(t, c1, msgRestartRejected), &rp)
	assert.Equal(t, 2, rp.Responder)

	// Rejection frees the slot for a new request, this time from bob.
	require.Nil(t, m.RequestRestart(roomID, res2.SessionID))
	require.Nil(t, m.AnswerRestart(roomID, res1.SessionID, true))

	requireFrame(t, c2, msgRestartAccepted)

	var gr statePayload
	decodePayload(t, requireFrame(t, c1, msgGameReset), &gr)
	require.NotNil(t, gr.State)
	assert.Equal(t, StatusPlaying, gr.State.Status)
	assert.Empty(t, gr.State.MoveHistory)
	assert.Equal(t, 1, gr.State.GamesPlayed)

	assert.EqualValues(t, 2, m.Stats().GamesStarted, "a reset counts as a started game")
}

func TestManagerUndoProtocol(t *testing.T) {
	m := newTestManager(t, newStubGame())
	roomID := createRoom(t, m)

	res1, c1 := join(t, m, roomID, "alice", "")

	cerr := m.RequestUndo(roomID, res1.SessionID)
	require.NotNil(t, cerr)
	assert.Equal(t, errs.ErrGameNotStarted, cerr.Code)

	res2, c2 := join(t, m, roomID, "bob", "")

	cerr = m.RequestUndo(roomID, res1.SessionID)
	require.NotNil(t, cerr)
	assert.Equal(t, errs.ErrNoMovesToUndo, cerr.Code)

	require.Nil(t, m.Move(roomID, res1.SessionID, 2, 3))
	require.Nil(t, m.RequestUndo(roomID, res1.SessionID))

	var rq requestPayload
	decodePayload(t, requireFrame(t, c2, msgUndoRequested), &rq)
	assert.Equal(t, 1, rq.Requester)

	cerr = m.RequestUndo(roomID, res2.SessionID)
	require.NotNil(t, cerr)
	assert.Equal(t, errs.ErrPendingRequestExists, cerr.Code)

	cerr = m.AnswerUndo(roomID, res1.SessionID, false)
	require.NotNil(t, cerr)
	assert.Equal(t, errs.ErrOwnRequestAnswer, cerr.Code)

	require.Nil(t, m.AnswerUndo(roomID, res2.SessionID, false))
	requireFrame(t, c1, msgUndoRejected)

	snap, cerr2 := m.Snapshot(roomID)
	require.Nil(t, cerr2)
	assert.Len(t, snap.MoveHistory, 1, "a rejected undo keeps the move")

	require.Nil(t, m.RequestUndo(roomID, res1.SessionID))
	require.Nil(t, m.AnswerUndo(roomID, res2.SessionID, true))

	var ua statePayload
	decodePayload(t, requireFrame(t, c1, msgUndoAccepted), &ua)
	require.NotNil(t, ua.State)
	assert.Empty(t, ua.State.MoveHistory)

	snap, cerr2 = m.Snapshot(roomID)
	require.Nil(t, cerr2)
	assert.Empty(t, snap.MoveHistory)
	assert.Equal(t, 1, snap.GameState.(*stubState).Turn, "the turn goes back to the undone mover")

	// A request answered after the game ended under it cannot rewind the board.
	require.Nil(t, m.Move(roomID, res1.SessionID, 4, 4))
	require.Nil(t, m.RequestUndo(roomID, res2.SessionID))

	r, ok := m.lifecycle.Get(roomID)
	require.True(t, ok)
	r.mu.Lock()
	r.Status = StatusEnded
	r.mu.Unlock()

	cerr = m.AnswerUndo(roomID, res1.SessionID, true)
	require.NotNil(t, cerr)
	assert.Equal(t, errs.ErrGameAlreadyEnded, cerr.Code)

	cerr = m.RequestUndo(roomID, res1.SessionID)
	require.NotNil(t, cerr)
	assert.Equal(t, errs.ErrGameAlreadyEnded, cerr.Code)
}

func TestManagerObserverConnections(t *testing.T) {
	m := newTestManager(t, newStubGame())
	roomID := createRoom(t, m)

	obs := &fakeConn{}
	require.Nil(t, m.Attach(roomID, obs))

	_, c1 := join(t, m, roomID, "alice", "")
	requireFrame(t, obs, msgPlayerJoined)

	m.Disconnect(c1)
	requireFrame(t, obs, msgPlayerDisconnected)
	assert.False(t, m.timer.Pending(roomID), "an attached observer keeps the room alive")

	m.Disconnect(obs)
	assert.True(t, m.timer.Pending(roomID))

	cerr := m.Attach("A1b2C3d4", &fakeConn{})
	require.NotNil(t, cerr)
	assert.Equal(t, errs.ErrRoomNotFound, cerr.Code)
}

func TestManagerSnapshotIsolation(t *testing.T) {
	m := newTestManager(t, newStubGame())
	roomID := createRoom(t, m)

	res1, _ := join(t, m, roomID, "alice", "")
	join(t, m, roomID, "bob", "")
	require.Nil(t, m.Move(roomID, res1.SessionID, 1, 2))
	require.Nil(t, m.Chat(roomID, res1.SessionID, "hi"))

	snap1, cerr := m.Snapshot(roomID)
	require.Nil(t, cerr)

	snap1.Players[0].Attrs[stubAttrMark] = 99
	snap1.MoveHistory[0].X = 99
	snap1.ChatHistory[0].Message = "mutated"
	snap1.GameState.(*stubState).Turn = 42

	snap2, cerr := m.Snapshot(roomID)
	require.Nil(t, cerr)
	assert.Equal(t, 1, snap2.Players[0].Attrs[stubAttrMark])
	assert.Equal(t, 1, snap2.MoveHistory[0].X)
	assert.Equal(t, "hi", snap2.ChatHistory[0].Message)
	assert.Equal(t, 2, snap2.GameState.(*stubState).Turn)
}

func TestManagerStatsGauges(t *testing.T) {
	m := newTestManager(t, newStubGame())
	roomA := createRoom(t, m)
	createRoom(t, m)

	join(t, m, roomA, "alice", "")
	join(t, m, roomA, "bob", "")

	st := m.Stats()
	assert.Equal(t, 2, st.Rooms)
	assert.Equal(t, 2, st.Sessions)
	assert.Equal(t, 2, st.Connections)
	assert.EqualValues(t, 2, st.RoomsCreated)
	assert.EqualValues(t, 1, st.GamesStarted)
	assert.EqualValues(t, 0, st.RoomsDeleted)
}

func TestManagerShutdownDeletesRooms(t *testing.T) {
	games := NewGameRegistry()
	games.Register(newStubGame())
	m := NewManager(testManagerConfig(), games)

	roomID := createRoom(t, m)
	_, c1 := join(t, m, roomID, "alice", "")

	m.Shutdown()

	var rd roomDeletedPayload
	decodePayload(t, requireFrame(t, c1, msgRoomDeleted), &rd)
	assert.Equal(t, ReasonShutdown, rd.Reason)
	assert.True(t, c1.isClosed())
	assert.Equal(t, 0, m.Stats().Rooms)
}

func TestManagerIdleSweep(t *testing.T) {
	cfg := testManagerConfig()
	cfg.RoomMaxIdle = 0
	m := newTestManagerCfg(t, cfg, newStubGame())

	idleRoom := createRoom(t, m)

	activeRoom := createRoom(t, m)
	res1, c1 := join(t, m, activeRoom, "alice", "")
	_, c2 := join(t, m, activeRoom, "bob", "")
	require.Nil(t, m.Move(activeRoom, res1.SessionID, 0, 0))
	m.Disconnect(c1)
	m.Disconnect(c2)

	watchedRoom := createRoom(t, m)
	require.Nil(t, m.Attach(watchedRoom, &fakeConn{}))

	time.Sleep(5 * time.Millisecond)
	m.sweepIdleRooms()

	_, cerr := m.RoomInfo(idleRoom)
	require.NotNil(t, cerr)
	assert.Equal(t, errs.ErrRoomNotFound, cerr.Code)

	_, cerr = m.RoomInfo(activeRoom)
	require.Nil(t, cerr, "a game in progress is left to the grace timer")

	_, cerr = m.RoomInfo(watchedRoom)
	require.Nil(t, cerr, "an attached connection exempts the room from the sweep")
}

func TestManagerConcurrentJoinsRespectCapacity(t *testing.T) {
	m := newTestManager(t, newStubGame())
	roomID := createRoom(t, m)

	var wg sync.WaitGroup
	var mu sync.Mutex
	var seats []int
	fullErrs := 0

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, cerr := m.Join(roomID, "", "", &fakeConn{})
			mu.Lock()
			defer mu.Unlock()
			if cerr != nil {
				if cerr.Code == errs.ErrRoomIsFull {
					fullErrs++
				}
				return
			}
			seats = append(seats, res.Player.PlayerNumber)
		}()
	}
	wg.Wait()

	require.Len(t, seats, 2)
	assert.ElementsMatch(t, []int{1, 2}, seats)
	assert.Equal(t, 8, fullErrs)

	info, cerr := m.RoomInfo(roomID)
	require.Nil(t, cerr)
	assert.Equal(t, 2, info.PlayerCount)
	assert.Equal(t, StatusPlaying, info.Status)
}

func TestManagerConcurrentReconnectsKeepOneConn(t *testing.T) {
	m := newTestManager(t, newStubGame())
	roomID := createRoom(t, m)

	res, c0 := join(t, m, roomID, "alice", "")

	conns := []*fakeConn{c0}
	var wg sync.WaitGroup
	var mu sync.Mutex
	var joinErrs []*errs.CustomError

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := &fakeConn{}
			mu.Lock()
			conns = append(conns, c)
			mu.Unlock()
			if _, cerr := m.Join(roomID, "", res.SessionID, c); cerr != nil {
				mu.Lock()
				joinErrs = append(joinErrs, cerr)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Empty(t, joinErrs)
	assert.Equal(t, 1, m.registry.ConnectionCount(roomID))

	kicked := 0
	for _, c := range conns {
		if len(c.kicked()) > 0 {
			kicked++
		}
	}
	assert.Equal(t, 20, kicked, "every superseded connection is kicked exactly once")

	info, cerr := m.RoomInfo(roomID)
	require.Nil(t, cerr)
	assert.Equal(t, 1, info.PlayerCount)
}
