package room

import (
	"context"
	"errors"
	"time"

	"github.com/flickfooty/backend/internal/logger"
	"github.com/flickfooty/backend/internal/protocol"
	"github.com/google/uuid"
)

var (
	ErrRoomFull     = errors.New("room is full")
	ErrRoomClosed   = errors.New("room is closed")
	ErrInvalidToken = errors.New("invalid resume token")
)

// Transport delivers frames to live sessions. Handles are resolved by
// session ID; the coordinator never holds a socket.
type Transport interface {
	Send(sessionID string, data []byte)
	Close(sessionID string, code int, reason string)
}

type Options struct {
	IdleGrace          time.Duration
	WriteTimeout       time.Duration
	WriteQueueSize     int
	Tokens             TokenIssuer
	RequireResumeToken bool
}

func (o Options) withDefaults() Options {
	if o.IdleGrace <= 0 {
		o.IdleGrace = 180 * time.Second
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 5 * time.Second
	}
	if o.WriteQueueSize <= 0 {
		o.WriteQueueSize = 64
	}
	return o
}

type JoinRequest struct {
	SessionID   string
	UserID      string
	Nickname    string
	Avatar      string
	ResumeToken string
}

type JoinResult struct {
	Player    protocol.PlayerView
	Reconnect bool
}

// Coordinator is the single owner of one Room. Every read and write of the
// room, its registry and its timer happens on the run goroutine; other
// goroutines talk to it by handing closures through the unbuffered inbox.
type Coordinator struct {
	id        string
	room      *Room
	sessions  *Registry
	transport Transport
	store     Store
	history   History
	opts      Options
	writer    *writer

	inbox   chan func()
	done    chan struct{}
	stopped bool

	destroyTimer *time.Timer
	destroyGen   uint64

	onStop func(*Coordinator)
	now    func() time.Time
}

func newCoordinator(r *Room, transport Transport, store Store, history History, opts Options) *Coordinator {
	opts = opts.withDefaults()
	if history == nil {
		history = NopHistory{}
	}
	c := &Coordinator{
		id:        r.ID,
		room:      r,
		sessions:  NewRegistry(),
		transport: transport,
		store:     store,
		history:   history,
		opts:      opts,
		writer:    newWriter(r.ID, opts.WriteQueueSize, opts.WriteTimeout),
		inbox:     make(chan func()),
		done:      make(chan struct{}),
		now:       time.Now,
	}
	go c.run()
	return c
}

func (c *Coordinator) ID() string { return c.id }

// Done is closed once the room has been destroyed or shut down.
func (c *Coordinator) Done() <-chan struct{} { return c.done }

func (c *Coordinator) run() {
	for fn := range c.inbox {
		fn()
		if c.stopped {
			return
		}
	}
}

// exec hands fn to the room goroutine. Because the inbox is unbuffered, an
// accepted fn is guaranteed to run.
func (c *Coordinator) exec(fn func()) error {
	select {
	case c.inbox <- fn:
		return nil
	case <-c.done:
		return ErrRoomClosed
	}
}

func (c *Coordinator) call(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	if err := c.exec(func() {
		defer close(finished)
		fn()
	}); err != nil {
		return err
	}
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Join attaches a session and adds or restores the user's roster entry.
func (c *Coordinator) Join(ctx context.Context, req JoinRequest) (JoinResult, error) {
	var (
		res JoinResult
		err error
	)
	if cerr := c.call(ctx, func() { res, err = c.join(req) }); cerr != nil {
		if errors.Is(cerr, context.Canceled) || errors.Is(cerr, context.DeadlineExceeded) {
			// The join was queued and will still attach the session; the
			// caller never learns about it, so detach it right after.
			go c.Disconnect(req.SessionID)
		}
		return JoinResult{}, cerr
	}
	return res, err
}

// Submit queues a decoded client message from sessionID.
func (c *Coordinator) Submit(sessionID string, msg protocol.Message) error {
	return c.exec(func() { c.handleMessage(sessionID, msg) })
}

// Disconnect reports that the session's transport closed or failed.
func (c *Coordinator) Disconnect(sessionID string) error {
	return c.exec(func() { c.disconnect(sessionID) })
}

// Snapshot returns a copy of the current room state.
func (c *Coordinator) Snapshot(ctx context.Context) (*Room, error) {
	var r *Room
	if err := c.call(ctx, func() { r = c.room.Clone() }); err != nil {
		return nil, err
	}
	return r, nil
}

// Clear wipes the persisted room, closes every session and stops the actor.
func (c *Coordinator) Clear(ctx context.Context) error {
	return c.call(ctx, c.clear)
}

// Shutdown stops the actor without touching storage, flushing pending writes.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	return c.call(ctx, c.stop)
}

func (c *Coordinator) join(req JoinRequest) (JoinResult, error) {
	p := c.room.Player(req.UserID)
	reconnect := p != nil

	if !reconnect && c.room.Full() {
		logger.Infof("[ROOM] %s rejected %s: room full", c.id, req.UserID)
		c.reject(req.SessionID, "Room is full", protocol.CloseRoomFull)
		return JoinResult{}, ErrRoomFull
	}

	if reconnect && c.opts.RequireResumeToken && c.opts.Tokens != nil {
		if err := c.opts.Tokens.Verify(req.ResumeToken, c.id, req.UserID); err != nil {
			logger.Warnf("[ROOM] %s rejected reconnect of %s: %v", c.id, req.UserID, err)
			c.reject(req.SessionID, "Invalid resume token", protocol.CloseInvalidToken)
			return JoinResult{}, ErrInvalidToken
		}
	}

	if reconnect {
		if req.Nickname != "" {
			p.Nickname = req.Nickname
		}
		if req.Avatar != "" {
			p.Avatar = req.Avatar
		}
	} else {
		p = &Player{
			ID:       req.UserID,
			Nickname: req.Nickname,
			Avatar:   req.Avatar,
			TeamID:   c.room.freeTeam(),
		}
		c.room.Players = append(c.room.Players, p)
	}

	// A user has at most one live socket; the newest one wins.
	for _, old := range c.sessions.SessionsOf(req.UserID) {
		c.sessions.Detach(old.ID)
		c.transport.Close(old.ID, protocol.CloseNormal, "replaced by new connection")
		logger.Infof("[ROOM] %s replaced session %s of %s", c.id, old.ID, req.UserID)
	}

	c.sessions.Attach(req.SessionID, req.UserID)
	c.cancelDestruction()
	c.persist()

	if c.opts.Tokens != nil {
		token, err := c.opts.Tokens.Issue(c.id, req.UserID)
		if err != nil {
			logger.Errorf("[ROOM] %s failed to issue resume token for %s: %v", c.id, req.UserID, err)
		} else {
			c.send(req.SessionID, protocol.Session{SessionID: req.SessionID, ResumeToken: token})
		}
	}

	reason := "join"
	if reconnect {
		reason = "reconnect"
	}
	team := p.TeamID
	c.broadcast(protocol.PlayerJoined{
		Players: c.views(),
		Status:  string(c.room.Status),
		TeamID:  &team,
		Reason:  reason,
	})

	if reconnect && c.room.Status == StatusPlaying {
		c.send(req.SessionID, c.resumePayload())
	}

	logger.Infof("[ROOM] %s %s: user=%s team=%d sessions=%d", c.id, reason, req.UserID, p.TeamID, c.sessions.Len())
	return JoinResult{Player: c.view(p), Reconnect: reconnect}, nil
}

func (c *Coordinator) reject(sessionID, msg string, code int) {
	c.send(sessionID, protocol.Error{Msg: msg})
	c.transport.Close(sessionID, code, msg)
	// A room rehydrated only to reject someone must still expire.
	if c.sessions.IsEmpty() && c.destroyTimer == nil {
		c.scheduleDestruction()
	}
}

func (c *Coordinator) disconnect(sessionID string) {
	s, ok := c.sessions.Detach(sessionID)
	if !ok {
		return
	}

	if p := c.room.Player(s.UserID); p != nil && !c.sessions.Online(s.UserID) {
		c.broadcast(protocol.PlayerOffline{TeamID: p.TeamID, Reason: "disconnected"})
	}
	logger.Infof("[ROOM] %s session %s of %s detached (remaining=%d)", c.id, sessionID, s.UserID, c.sessions.Len())

	if c.sessions.IsEmpty() {
		c.scheduleDestruction()
	}
}

func (c *Coordinator) handleMessage(sessionID string, msg protocol.Message) {
	userID, ok := c.sessions.UserOf(sessionID)
	if !ok {
		logger.Debugf("[ROOM] %s dropping %s from unknown session %s", c.id, msg.MessageType(), sessionID)
		return
	}

	switch m := msg.(type) {
	case protocol.Ready:
		c.setReady(userID, m)
	case protocol.Move:
		c.relayMove(userID, m)
	case protocol.Goal:
		c.recordGoal(sessionID, userID, m)
	case protocol.TurnSync:
		c.recordTurnSync(sessionID, m)
	case protocol.Leave:
		c.leave(userID)
	default:
		if protocol.IsRelayed(msg.MessageType()) {
			c.broadcastExcept(sessionID, msg)
			return
		}
		logger.Debugf("[ROOM] %s ignoring %s from %s", c.id, msg.MessageType(), userID)
	}
}

func (c *Coordinator) setReady(userID string, m protocol.Ready) {
	p := c.room.Player(userID)
	if p == nil {
		return
	}
	p.Ready = m.Ready
	if m.FormationID != "" {
		p.FormationID = m.FormationID
	}

	c.broadcast(protocol.PlayerJoined{
		Players: c.views(),
		Status:  string(c.room.Status),
		Reason:  "ready",
	})

	if c.room.Status == StatusWaiting && c.room.AllReady() {
		c.start()
	}
	c.persist()
}

func (c *Coordinator) start() {
	c.room.Status = StatusPlaying
	c.room.Scores = protocol.Scores{0: 0, 1: 0}
	c.room.CurrentTurn = 0
	c.room.LastPositions = nil
	c.room.MatchID = uuid.NewString()

	c.broadcast(protocol.Start{CurrentTurn: c.room.CurrentTurn, Players: c.views()})
	logger.Infof("[ROOM] %s match %s started", c.id, c.room.MatchID)

	matchID, players := c.room.MatchID, make([]Player, len(c.room.Players))
	for i, p := range c.room.Players {
		players[i] = *p
	}
	c.writer.enqueue("history.match_started", func(ctx context.Context) error {
		return c.history.MatchStarted(ctx, matchID, c.id, players)
	})
}

func (c *Coordinator) relayMove(userID string, m protocol.Move) {
	p := c.room.Player(userID)
	if c.room.Status != StatusPlaying || p == nil || p.TeamID != c.room.CurrentTurn {
		logger.Debugf("[ROOM] %s dropped out-of-turn MOVE from %s (turn=%d)", c.id, userID, c.room.CurrentTurn)
		return
	}

	out, err := m.WithNextTurn(otherTeam(c.room.CurrentTurn))
	if err != nil {
		logger.Warnf("[ROOM] %s dropped MOVE from %s: %v", c.id, userID, err)
		return
	}
	c.room.CurrentTurn = otherTeam(c.room.CurrentTurn)

	c.broadcast(out)
	c.persist()
}

func (c *Coordinator) recordGoal(sessionID, userID string, m protocol.Goal) {
	if m.NewScore != nil {
		c.room.Scores = m.NewScore.Clone()
	}
	c.broadcastExcept(sessionID, m)
	c.persist()

	if c.room.MatchID == "" {
		return
	}
	matchID, scores := c.room.MatchID, c.room.Scores.Clone()
	c.writer.enqueue("history.goal_recorded", func(ctx context.Context) error {
		return c.history.GoalRecorded(ctx, matchID, m.ScoreTeam, scores, userID)
	})
}

func (c *Coordinator) recordTurnSync(sessionID string, m protocol.TurnSync) {
	positions := m.Positions
	positions.Strikers = append([]protocol.StrikerPos(nil), m.Strikers...)
	c.room.LastPositions = &positions

	c.broadcastExcept(sessionID, m)
	c.persist()
}

func (c *Coordinator) leave(userID string) {
	p := c.room.Player(userID)
	if p == nil {
		return
	}
	c.broadcast(protocol.PlayerLeftGame{TeamID: p.TeamID})
	logger.Infof("[ROOM] %s user %s left the game", c.id, userID)
}

func (c *Coordinator) resumePayload() protocol.GameResume {
	var positions *protocol.Positions
	if c.room.LastPositions != nil {
		lp := *c.room.LastPositions
		positions = &lp
	}
	return protocol.GameResume{
		Status:      string(c.room.Status),
		CurrentTurn: c.room.CurrentTurn,
		Scores:      c.room.Scores.Clone(),
		Positions:   positions,
		Players:     c.views(),
	}
}

func (c *Coordinator) scheduleDestruction() {
	if c.destroyTimer != nil {
		c.destroyTimer.Stop()
	}
	c.destroyGen++
	gen := c.destroyGen
	deadline := c.now().Add(c.opts.IdleGrace)

	c.destroyTimer = time.AfterFunc(c.opts.IdleGrace, func() {
		_ = c.exec(func() { c.destroy(gen) })
	})
	c.writer.enqueue("schedule_expiry", func(ctx context.Context) error {
		return c.store.ScheduleExpiry(ctx, c.id, deadline)
	})
	logger.Infof("[ROOM] %s empty, destruction scheduled at %s", c.id, deadline.Format(time.RFC3339))
}

func (c *Coordinator) cancelDestruction() {
	if c.destroyTimer == nil {
		return
	}
	c.destroyTimer.Stop()
	c.destroyTimer = nil
	c.destroyGen++
	c.writer.enqueue("cancel_expiry", func(ctx context.Context) error {
		return c.store.CancelExpiry(ctx, c.id)
	})
	logger.Infof("[ROOM] %s pending destruction cancelled", c.id)
}

// destroy runs when the idle timer fires. A stale generation means an
// attach cancelled this timer after it had already fired.
func (c *Coordinator) destroy(gen uint64) {
	if gen != c.destroyGen || !c.sessions.IsEmpty() {
		return
	}
	logger.Infof("[ROOM] %s destroyed after %s idle", c.id, c.opts.IdleGrace)
	c.writer.enqueue("delete", func(ctx context.Context) error {
		return c.store.Delete(ctx, c.id)
	})
	c.stop()
}

func (c *Coordinator) clear() {
	for _, id := range c.sessions.IDs() {
		c.send(id, protocol.Error{Msg: "Room closed"})
		c.transport.Close(id, protocol.CloseRoomCleared, "room cleared")
		c.sessions.Detach(id)
	}
	logger.Infof("[ROOM] %s storage cleared", c.id)
	c.writer.enqueue("delete", func(ctx context.Context) error {
		return c.store.Delete(ctx, c.id)
	})
	c.stop()
}

func (c *Coordinator) stop() {
	if c.stopped {
		return
	}
	c.stopped = true
	if c.destroyTimer != nil {
		c.destroyTimer.Stop()
		c.destroyTimer = nil
	}
	close(c.done)
	c.writer.close()
	if c.onStop != nil {
		c.onStop(c)
	}
}

func (c *Coordinator) persist() {
	c.room.UpdatedAt = c.now()
	snap := c.room.Clone()
	c.writer.enqueue("save", func(ctx context.Context) error {
		return c.store.Save(ctx, snap)
	})
}

func (c *Coordinator) view(p *Player) protocol.PlayerView {
	return protocol.PlayerView{
		ID:          p.ID,
		Nickname:    p.Nickname,
		Avatar:      p.Avatar,
		TeamID:      p.TeamID,
		Ready:       p.Ready,
		FormationID: p.FormationID,
		Online:      c.sessions.Online(p.ID),
	}
}

func (c *Coordinator) views() []protocol.PlayerView {
	out := make([]protocol.PlayerView, len(c.room.Players))
	for i, p := range c.room.Players {
		out[i] = c.view(p)
	}
	return out
}

func (c *Coordinator) send(sessionID string, msg protocol.Message) {
	data, err := protocol.Encode(msg)
	if err != nil {
		logger.Errorf("[ROOM] %s encode %s: %v", c.id, msg.MessageType(), err)
		return
	}
	c.transport.Send(sessionID, data)
}

func (c *Coordinator) broadcast(msg protocol.Message) {
	c.broadcastExcept("", msg)
}

// broadcastExcept sends msg to every session but skip; relayed client
// messages are not echoed back to their sender.
func (c *Coordinator) broadcastExcept(skip string, msg protocol.Message) {
	data, err := protocol.Encode(msg)
	if err != nil {
		logger.Errorf("[ROOM] %s encode %s: %v", c.id, msg.MessageType(), err)
		return
	}
	for _, id := range c.sessions.IDs() {
		if id == skip {
			continue
		}
		c.transport.Send(id, data)
	}
}
