package client

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/flickfooty/backend/internal/logger"
	"github.com/flickfooty/backend/internal/physics"
	"github.com/flickfooty/backend/internal/protocol"
	"github.com/flickfooty/backend/internal/trajectory"
)

var (
	ErrNotPlaying     = errors.New("match not in progress")
	ErrPaused         = errors.New("match paused")
	ErrNotYourTurn    = errors.New("not your turn")
	ErrTurnInProgress = errors.New("turn still in progress")
	ErrNotYourStriker = errors.New("striker belongs to the other team")
)

const (
	// Slower contacts make no sound.
	minSoundSpeed      = 30.0
	defaultInboxLength = 256
)

// Simulator is the local physics world driven by the match.
type Simulator interface {
	trajectory.Target
	Step(dt float64) []physics.Event
	ApplyForce(id string, force protocol.Vec) error
	BodyStates() map[string]protocol.BodyState
	Snapshot() protocol.Positions
	Settled() bool
	ResetKickoff(formation0, formation1 string)
}

type Config struct {
	UserID       string
	Recorder     trajectory.RecorderConfig
	Replayer     trajectory.ReplayerConfig
	GoalInterval time.Duration
	InboxSize    int
}

// Match is the client side of one room. Network code hands messages to
// Deliver; everything else runs on the caller's tick goroutine, so the
// methods other than Deliver must not be called concurrently.
type Match struct {
	transport Transport
	sim       Simulator
	bus       *Bus
	cfg       Config

	recorder *trajectory.Recorder
	replayer *trajectory.Replayer
	guard    *trajectory.GoalGuard
	inbox    chan protocol.Message

	status      string
	teamID      int
	currentTurn int
	scores      protocol.Scores
	players     []protocol.PlayerView
	shooting    bool
	paused      bool
	session     protocol.Session
}

func NewMatch(transport Transport, sim Simulator, bus *Bus, cfg Config) *Match {
	if cfg.InboxSize <= 0 {
		cfg.InboxSize = defaultInboxLength
	}
	m := &Match{
		transport: transport,
		sim:       sim,
		bus:       bus,
		cfg:       cfg,
		recorder:  trajectory.NewRecorder(transport, cfg.Recorder),
		guard:     trajectory.NewGoalGuard(cfg.GoalInterval),
		inbox:     make(chan protocol.Message, cfg.InboxSize),
		status:    protocol.StatusWaiting,
		teamID:    -1,
		scores:    protocol.Scores{0: 0, 1: 0},
	}
	m.replayer = trajectory.NewReplayer(sim, trajectory.Handlers{
		OnGoal:     m.remoteGoal,
		OnSound:    func(name string) { Publish(m.bus, SoundPlayed{Name: name}) },
		OnTurnSync: m.remoteTurnEnded,
	}, cfg.Replayer)
	return m
}

// Deliver queues an inbound message for the next Tick. It blocks when the
// inbox is full.
func (m *Match) Deliver(msg protocol.Message) {
	m.inbox <- msg
}

// Pump delivers every message from msgs until the channel is closed.
func (m *Match) Pump(msgs <-chan protocol.Message) {
	for msg := range msgs {
		m.Deliver(msg)
	}
}

func (m *Match) Status() string          { return m.status }
func (m *Match) TeamID() int             { return m.teamID }
func (m *Match) CurrentTurn() int        { return m.currentTurn }
func (m *Match) Scores() protocol.Scores { return m.scores.Clone() }
func (m *Match) Paused() bool            { return m.paused }
func (m *Match) Shooting() bool          { return m.shooting }
func (m *Match) Session() protocol.Session {
	return m.session
}
func (m *Match) ReplayState() trajectory.State { return m.replayer.State() }

// MyTurn reports whether the local player may shoot now.
func (m *Match) MyTurn() bool {
	return m.status == protocol.StatusPlaying && !m.paused && m.teamID >= 0 &&
		m.currentTurn == m.teamID && !m.shooting && m.replayer.State() == trajectory.StateIdle
}

// Tick handles queued messages, then advances either the local shot or the
// opponent replay by dt seconds.
func (m *Match) Tick(dt float64) {
	m.drain()
	if m.paused {
		return
	}
	if m.shooting {
		m.stepShot(dt)
		return
	}
	m.replayer.Tick(dt)
}

func (m *Match) drain() {
	for {
		select {
		case msg := <-m.inbox:
			m.handle(msg)
		default:
			return
		}
	}
}

// Shoot flicks one of the local team's strikers and starts streaming the
// resulting trajectory.
func (m *Match) Shoot(strikerID string, force protocol.Vec) error {
	switch {
	case m.status != protocol.StatusPlaying:
		return ErrNotPlaying
	case m.paused:
		return ErrPaused
	case m.teamID < 0 || m.currentTurn != m.teamID:
		return ErrNotYourTurn
	case m.shooting || m.replayer.State() != trajectory.StateIdle:
		return ErrTurnInProgress
	case !strings.HasPrefix(strikerID, fmt.Sprintf("t%d-", m.teamID)):
		return ErrNotYourStriker
	}

	if err := m.transport.Send(protocol.Move{ID: strikerID, Force: force}); err != nil {
		return fmt.Errorf("send move: %w", err)
	}
	if err := m.sim.ApplyForce(strikerID, force); err != nil {
		return err
	}
	m.recorder.Start()
	m.shooting = true
	return nil
}

func (m *Match) stepShot(dt float64) {
	events := m.sim.Step(dt)
	if err := m.recorder.Capture(dt, m.sim.BodyStates()); err != nil {
		logger.Warnf("[CLIENT] %v", err)
	}
	for _, ev := range events {
		switch ev.Kind {
		case physics.EventGoal:
			m.localGoal(ev.ScoreTeam)
		case physics.EventCollision, physics.EventWall:
			if ev.Speed >= minSoundSpeed {
				m.PlaySound(soundFor(ev))
			}
		}
	}

	if m.sim.Settled() {
		m.shooting = false
		positions := m.sim.Snapshot()
		if err := m.recorder.Finish(positions); err != nil {
			logger.Warnf("[CLIENT] %v", err)
		}
		Publish(m.bus, TurnEnded{Positions: positions, Local: true})
	}
}

func soundFor(ev physics.Event) string {
	switch {
	case ev.Kind == physics.EventWall:
		return "wall"
	case ev.A == physics.BallID || ev.B == physics.BallID:
		return "kick"
	default:
		return "clack"
	}
}

// PlaySound plays a sound locally and, during the local turn, streams it
// to the opponent.
func (m *Match) PlaySound(name string) {
	m.recorder.Sound(name)
	Publish(m.bus, SoundPlayed{Name: name})
}

func (m *Match) localGoal(team int) {
	if !m.guard.Allow() {
		logger.Debugf("[CLIENT] duplicate goal for team %d ignored", team)
		return
	}
	m.scores = m.scores.Clone()
	m.scores[team]++
	g := protocol.Goal{NewScore: m.scores.Clone(), ScoreTeam: team}
	if err := m.recorder.Goal(g); err != nil {
		logger.Warnf("[CLIENT] %v", err)
	}
	Publish(m.bus, GoalScored{ScoreTeam: team, Scores: m.scores.Clone(), Local: true})
}

func (m *Match) remoteGoal(g protocol.Goal) {
	if !m.guard.Allow() {
		logger.Debugf("[CLIENT] duplicate goal for team %d ignored", g.ScoreTeam)
		return
	}
	m.scores = g.NewScore.Clone()
	Publish(m.bus, GoalScored{ScoreTeam: g.ScoreTeam, Scores: m.scores.Clone()})
}

func (m *Match) remoteTurnEnded(p protocol.Positions) {
	Publish(m.bus, TurnEnded{Positions: p})
}

// AimStart, AimUpdate and AimEnd relay the aiming gesture to the opponent.
func (m *Match) AimStart(pos protocol.Vec) error {
	return m.transport.Send(protocol.AimStart{StartPos: pos})
}

func (m *Match) AimUpdate(v protocol.Vec) error {
	return m.transport.Send(protocol.AimUpdate{Vector: v})
}

func (m *Match) AimEnd() error {
	return m.transport.Send(protocol.AimEnd{})
}

func (m *Match) Ready(formationID string) error {
	return m.transport.Send(protocol.Ready{Ready: true, FormationID: formationID})
}

func (m *Match) Leave() error {
	return m.transport.Send(protocol.Leave{})
}

func (m *Match) handle(msg protocol.Message) {
	switch v := msg.(type) {
	case protocol.PlayerJoined:
		m.status = v.Status
		m.setPlayers(v.Players)
		Publish(m.bus, RosterChanged{Players: v.Players, Reason: v.Reason})

	case protocol.Start:
		m.status = protocol.StatusPlaying
		m.currentTurn = v.CurrentTurn
		m.scores = protocol.Scores{0: 0, 1: 0}
		m.shooting = false
		m.guard.Reset()
		m.replayer.Reset()
		if len(v.Players) > 0 {
			m.setPlayers(v.Players)
		}
		m.sim.ResetKickoff(m.formationOf(0), m.formationOf(1))
		Publish(m.bus, MatchStarted{TeamID: m.teamID, CurrentTurn: v.CurrentTurn})

	case protocol.Move:
		if v.NextTurn == nil {
			return
		}
		m.currentTurn = *v.NextTurn
		if m.currentTurn == m.teamID && !m.shooting {
			m.replayer.Begin()
		}
		Publish(m.bus, TurnChanged{CurrentTurn: m.currentTurn, Mine: m.currentTurn == m.teamID})

	case protocol.TrajectoryBatch:
		m.replayer.PushBatch(v)

	case protocol.Goal:
		m.replayer.PushGoal(v)

	case protocol.TurnSync:
		m.replayer.PushTurnSync(v.Positions)

	case protocol.PlayerOffline:
		m.paused = true
		for i := range m.players {
			if m.players[i].TeamID == v.TeamID {
				m.players[i].Online = false
			}
		}
		Publish(m.bus, Paused{TeamID: v.TeamID, Reason: v.Reason})

	case protocol.PlayerLeftGame:
		Publish(m.bus, OpponentLeft{TeamID: v.TeamID})

	case protocol.GameResume:
		m.status = v.Status
		m.currentTurn = v.CurrentTurn
		if v.Scores != nil {
			m.scores = v.Scores.Clone()
		}
		m.shooting = false
		m.replayer.Reset()
		if v.Positions != nil {
			m.sim.ApplySnapshot(*v.Positions)
		}
		m.sim.ZeroVelocities()
		m.setPlayers(v.Players)
		Publish(m.bus, TurnChanged{CurrentTurn: m.currentTurn, Mine: m.currentTurn == m.teamID})

	case protocol.Session:
		m.session = v
		Publish(m.bus, SessionIssued{SessionID: v.SessionID, ResumeToken: v.ResumeToken})

	case protocol.Error:
		Publish(m.bus, RoomError{Msg: v.Msg})

	case protocol.AimStart:
		Publish(m.bus, v)
	case protocol.AimUpdate:
		Publish(m.bus, v)
	case protocol.AimEnd:
		Publish(m.bus, v)
	case protocol.Skill:
		Publish(m.bus, v)
	case protocol.FairPlayMove:
		Publish(m.bus, v)

	default:
		logger.Debugf("[CLIENT] ignoring %s", msg.MessageType())
	}
}

// setPlayers replaces the roster, learns the local team and pauses while
// anyone is offline.
func (m *Match) setPlayers(players []protocol.PlayerView) {
	m.players = append([]protocol.PlayerView(nil), players...)
	offline := false
	for _, p := range players {
		if p.ID == m.cfg.UserID {
			m.teamID = p.TeamID
		}
		if !p.Online {
			offline = true
		}
	}
	wasPaused := m.paused
	m.paused = offline
	if wasPaused && !offline {
		Publish(m.bus, Resumed{})
	}
}

func (m *Match) formationOf(team int) string {
	for _, p := range m.players {
		if p.TeamID == team {
			return p.FormationID
		}
	}
	return ""
}
