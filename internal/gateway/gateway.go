// Package gateway binds websocket connections to rooms and players. It decodes
// client commands, applies them through the room registry and the buzzer
// arbiter, and fans the resulting notifications out to the room.
//
// Every state change on a room, together with the caller's ack and the
// room broadcasts it causes, happens inside that room's Exec. Subscribers
// therefore see notifications in the order the room committed them.
package gateway

import (
	"encoding/json"
	"time"

	"quizbuzzer/internal/db"
	"quizbuzzer/internal/events"
	"quizbuzzer/internal/game"
	"quizbuzzer/internal/gameerr"
	"quizbuzzer/internal/metrics"
	"quizbuzzer/internal/rooms"
	"quizbuzzer/internal/wshub"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// Binding is the (player, room) pair a connection acts as.
type Binding struct {
	PlayerID string
	RoomID   string
}

// Session is the per-connection state. It is owned by the connection's read
// loop; Handle and Disconnect for one Session must not run concurrently.
type Session struct {
	client  *wshub.Client
	binding *Binding
}

func (s *Session) Binding() (Binding, bool) {
	if s.binding == nil {
		return Binding{}, false
	}
	return *s.binding, true
}

func (s *Session) Client() *wshub.Client {
	return s.client
}

type command struct {
	acked bool
	run   func(*Session, wshub.ClientMessage) error
}

type Gateway struct {
	rooms    *rooms.Store
	hub      *wshub.Hub
	arbiter  *game.Arbiter
	validate *validator.Validate
	commands map[string]command

	log     *zap.Logger
	bus     *events.Bus
	metrics *metrics.Collector
	archive chan<- db.RoomEvent
	now     func() time.Time
}

type Option func(*Gateway)

func WithLogger(l *zap.Logger) Option {
	return func(g *Gateway) { g.log = l }
}

// WithEvents publishes room lifecycle changes and alerts on bus.
func WithEvents(bus *events.Bus) Option {
	return func(g *Gateway) { g.bus = bus }
}

func WithMetrics(m *metrics.Collector) Option {
	return func(g *Gateway) { g.metrics = m }
}

// WithArchive offers every committed change to ch without blocking.
func WithArchive(ch chan<- db.RoomEvent) Option {
	return func(g *Gateway) { g.archive = ch }
}

func New(store *rooms.Store, hub *wshub.Hub, opts ...Option) *Gateway {
	g := &Gateway{
		rooms:    store,
		hub:      hub,
		arbiter:  game.NewArbiter(),
		validate: newValidator(),
		log:      zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	g.commands = map[string]command{
		CmdCreateRoom:  {acked: true, run: g.createRoom},
		CmdJoinRoom:    {acked: true, run: g.joinRoom},
		CmdBuzz:        {acked: true, run: g.buzz},
		CmdResetBuzzer: {run: g.resetBuzzer},
		CmdUpdateScore: {run: g.updateScore},
		CmdLeaveRoom:   {run: g.leaveRoom},
	}
	store.OnDelete(g.roomDeleted)
	return g
}

// Connect registers a new connection and returns its empty session.
func (g *Gateway) Connect(c *wshub.Client) *Session {
	g.hub.Register(c)
	g.log.Debug("connection opened", zap.String("conn", c.ID))
	return &Session{client: c}
}

// Disconnect runs the leave path for the session and forgets the connection.
func (g *Gateway) Disconnect(s *Session) {
	g.leave(s)
	g.hub.Unregister(s.client)
	g.log.Debug("connection closed", zap.String("conn", s.client.ID))
}

// Handle processes one raw client frame.
func (g *Gateway) Handle(s *Session, raw []byte) {
	var msg wshub.ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		g.notifyError(s, invalid("event", "malformed message"))
		g.observe(s, "malformed", err)
		return
	}

	cmd, ok := g.commands[msg.Event]
	if !ok {
		err := invalid("event", "unknown event "+msg.Event)
		if msg.ID != nil {
			g.ackError(s, msg, err)
		} else {
			g.notifyError(s, err)
		}
		g.observe(s, "unknown", err)
		return
	}

	err := cmd.run(s, msg)
	if err != nil {
		if cmd.acked {
			g.ackError(s, msg, err)
		} else {
			g.notifyError(s, err)
		}
	}
	g.observe(s, msg.Event, err)
}

func (g *Gateway) createRoom(s *Session, msg wshub.ClientMessage) error {
	var p createRoomPayload
	if err := g.decode(msg.Data, &p); err != nil {
		return err
	}

	room, host, err := g.rooms.Create(p.Username, rooms.CapacityOf(p.MaxPlayers))
	if err != nil {
		if gameerr.Is(err, gameerr.CodeGenerationExhausted) {
			g.metrics.IncCodeExhausted()
			g.publish(events.RoomEvent{Kind: events.CodeExhausted, Detail: err.Error()})
		}
		return err
	}
	g.publish(events.RoomEvent{Kind: events.RoomCreated, RoomID: room.ID, Code: room.Code})
	g.leave(s)

	return room.Exec(func() error {
		g.record(db.RoomEvent{RoomID: room.ID, Kind: db.EventRoomCreated, Code: room.Code, MaxPlayers: p.MaxPlayers})
		g.record(db.RoomEvent{RoomID: room.ID, Kind: db.EventPlayerJoined, PlayerID: host.ID, Username: host.Name})

		g.bind(s, room, host.ID)
		g.ack(s, msg, Ack{Success: true, RoomID: room.ID, RoomCode: room.Code, PlayerID: host.ID})
		g.hub.Broadcast(room.ID, playerList(room))
		return nil
	})
}

func (g *Gateway) joinRoom(s *Session, msg wshub.ClientMessage) error {
	var p joinRoomPayload
	if err := g.decode(msg.Data, &p); err != nil {
		return err
	}

	room, ok := g.rooms.GetByCode(p.RoomCode)
	if !ok {
		return gameerr.Newf(gameerr.RoomNotFound, "Room with code %s not found", p.RoomCode)
	}
	if b, bound := s.Binding(); bound && b.RoomID == room.ID {
		return g.rejoin(s, msg, room, b)
	}
	g.leave(s)

	return room.Exec(func() error {
		if !g.rooms.CanJoin(room) {
			return gameerr.New(gameerr.RoomFull, "Room is full")
		}
		player := room.Players.Add(p.Username)
		g.record(db.RoomEvent{RoomID: room.ID, Kind: db.EventPlayerJoined, PlayerID: player.ID, Username: player.Name})

		g.bind(s, room, player.ID)
		g.ack(s, msg, Ack{Success: true, RoomID: room.ID, RoomCode: room.Code, PlayerID: player.ID})
		g.hub.BroadcastExcept(room.ID, s.client.ID, wshub.ServerMessage{
			Event: EvtPlayerJoined,
			Data:  PlayerJoined{Player: player.Public()},
		})
		g.hub.Broadcast(room.ID, playerList(room))
		return nil
	})
}

// rejoin answers a join for the room the session already belongs to with its
// current membership.
func (g *Gateway) rejoin(s *Session, msg wshub.ClientMessage, room *rooms.Room, b Binding) error {
	return room.Exec(func() error {
		if room.Players.Get(b.PlayerID) == nil {
			return gameerr.New(gameerr.PlayerNotFound, "Player not found")
		}
		g.ack(s, msg, Ack{Success: true, RoomID: room.ID, RoomCode: room.Code, PlayerID: b.PlayerID})
		g.hub.Send(s.client, playerList(room))
		return nil
	})
}

func (g *Gateway) buzz(s *Session, msg wshub.ClientMessage) error {
	b, room, err := g.boundRoom(s)
	if err != nil {
		return err
	}

	err = room.Exec(func() error {
		ev, err := g.arbiter.Buzz(room, b.PlayerID)
		if err != nil {
			return err
		}
		g.record(db.RoomEvent{RoomID: room.ID, Kind: db.EventBuzz, PlayerID: ev.PlayerID, OccurredAt: ev.Timestamp})

		g.ack(s, msg, Ack{Success: true})
		g.hub.Broadcast(room.ID, wshub.ServerMessage{
			Event: EvtPlayerBuzzed,
			Data: PlayerBuzzed{
				PlayerID:  ev.PlayerID,
				Username:  ev.Username,
				Timestamp: formatTimestamp(ev.Timestamp),
			},
		})
		return nil
	})
	if gameerr.Is(err, gameerr.BuzzerLocked) {
		g.metrics.IncBuzzConflict()
	}
	return err
}

func (g *Gateway) resetBuzzer(s *Session, _ wshub.ClientMessage) error {
	b, room, err := g.boundRoom(s)
	if err != nil {
		return err
	}

	return room.Exec(func() error {
		if err := g.arbiter.Reset(room, b.PlayerID); err != nil {
			return err
		}
		g.record(db.RoomEvent{RoomID: room.ID, Kind: db.EventBuzzerReset, PlayerID: b.PlayerID})
		g.hub.Broadcast(room.ID, wshub.ServerMessage{Event: EvtBuzzerReset})
		return nil
	})
}

func (g *Gateway) updateScore(s *Session, msg wshub.ClientMessage) error {
	b, room, err := g.boundRoom(s)
	if err != nil {
		return err
	}
	var p updateScorePayload
	if err := g.decode(msg.Data, &p); err != nil {
		return err
	}

	return room.Exec(func() error {
		target, err := g.arbiter.UpdateScore(room, b.PlayerID, *p.PlayerID, *p.Points)
		if err != nil {
			return err
		}
		g.record(db.RoomEvent{RoomID: room.ID, Kind: db.EventScore, PlayerID: target.ID, Points: *p.Points, Score: target.Score})

		g.hub.Broadcast(room.ID, wshub.ServerMessage{
			Event: EvtScoreUpdated,
			Data:  ScoreUpdated{PlayerID: target.ID, NewScore: target.Score},
		})
		g.hub.Broadcast(room.ID, playerList(room))
		return nil
	})
}

func (g *Gateway) leaveRoom(s *Session, _ wshub.ClientMessage) error {
	g.leave(s)
	return nil
}

// leave removes the session's player from its room, if any. An emptied room
// is deleted; a departing host hands over to the earliest-joined member.
func (g *Gateway) leave(s *Session) {
	b, ok := s.Binding()
	if !ok {
		return
	}
	s.binding = nil
	g.hub.Unsubscribe(b.RoomID, s.client.ID)

	room, ok := g.rooms.GetByID(b.RoomID)
	if !ok {
		return
	}
	_ = room.Exec(func() error {
		leaver := room.Players.Get(b.PlayerID)
		if leaver == nil || !room.Players.Remove(b.PlayerID) {
			return nil
		}
		g.record(db.RoomEvent{RoomID: room.ID, Kind: db.EventPlayerLeft, PlayerID: leaver.ID, Score: leaver.Score})
		g.log.Info("player left",
			zap.String("room", room.ID),
			zap.String("player", leaver.ID))

		if room.Players.Count() == 0 {
			g.rooms.Delete(room.ID)
			return nil
		}
		if room.HostID == leaver.ID {
			next, _ := room.Players.Oldest()
			room.HostID = next.ID
			g.log.Info("host reassigned",
				zap.String("room", room.ID),
				zap.String("player", next.ID))
		}

		g.hub.Broadcast(room.ID, wshub.ServerMessage{
			Event: EvtPlayerLeft,
			Data:  PlayerLeft{PlayerID: leaver.ID},
		})
		g.hub.Broadcast(room.ID, playerList(room))
		return nil
	})
}

// roomDeleted runs for every deletion, including sweeps.
func (g *Gateway) roomDeleted(r *rooms.Room) {
	g.record(db.RoomEvent{RoomID: r.ID, Kind: db.EventRoomClosed})
	g.publish(events.RoomEvent{Kind: events.RoomDeleted, RoomID: r.ID, Code: r.Code})
}

func (g *Gateway) boundRoom(s *Session) (Binding, *rooms.Room, error) {
	b, ok := s.Binding()
	if !ok {
		return Binding{}, nil, gameerr.New(gameerr.NotInRoom, "Not in a room")
	}
	room, ok := g.rooms.GetByID(b.RoomID)
	if !ok {
		return Binding{}, nil, gameerr.New(gameerr.RoomNotFound, "Room not found")
	}
	return b, room, nil
}

func (g *Gateway) bind(s *Session, room *rooms.Room, playerID string) {
	s.binding = &Binding{PlayerID: playerID, RoomID: room.ID}
	g.hub.Subscribe(room.ID, s.client)
}

func playerList(room *rooms.Room) wshub.ServerMessage {
	return wshub.ServerMessage{
		Event: EvtPlayerListUpdated,
		Data:  PlayerList{Players: room.Players.Public(), HostID: room.HostID},
	}
}

func (g *Gateway) ack(s *Session, msg wshub.ClientMessage, a Ack) {
	g.hub.Send(s.client, wshub.ServerMessage{Event: EvtAck, ID: msg.ID, Data: a})
}

func (g *Gateway) ackError(s *Session, msg wshub.ClientMessage, err error) {
	code, message, field := gameerr.Public(err)
	g.ack(s, msg, Ack{Success: false, Error: message, Code: code, Field: field})
}

func (g *Gateway) notifyError(s *Session, err error) {
	code, message, field := gameerr.Public(err)
	g.hub.Send(s.client, wshub.ServerMessage{
		Event: EvtError,
		Data:  ErrorNotice{Message: message, Code: code, Field: field},
	})
}

func (g *Gateway) observe(s *Session, event string, err error) {
	fields := []zap.Field{zap.String("command", event), zap.String("conn", s.client.ID)}
	if b, ok := s.Binding(); ok {
		fields = append(fields, zap.String("room", b.RoomID), zap.String("player", b.PlayerID))
	}

	if err == nil {
		g.metrics.ObserveCommand(event, "ok")
		g.log.Info("command handled", fields...)
		return
	}

	code := gameerr.CodeOf(err)
	g.metrics.ObserveCommand(event, string(code))
	fields = append(fields, zap.String("code", string(code)), zap.Error(err))
	switch code {
	case gameerr.CodeGenerationExhausted, gameerr.Internal:
		g.log.Error("command failed", fields...)
	default:
		g.log.Debug("command rejected", fields...)
	}
}

func (g *Gateway) publish(ev events.RoomEvent) {
	if g.bus != nil && !g.bus.Publish(ev) {
		g.log.Warn("event bus full", zap.String("kind", string(ev.Kind)))
	}
}

func (g *Gateway) record(ev db.RoomEvent) {
	if g.archive == nil {
		return
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = g.now()
	}
	select {
	case g.archive <- ev:
	default:
		g.metrics.IncArchiveDropped()
	}
}
