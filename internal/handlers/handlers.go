// Package handlers routes decoded wire messages into the reconciliation
// engine. Transport callbacks run on the websocket read goroutine, so every
// server-push kind is registered buffered and the read loop only ever pays
// for a channel send.
package handlers

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/matchdesk/console/internal/cache"
	"github.com/matchdesk/console/internal/dispatcher"
	"github.com/matchdesk/console/internal/engine"
	"github.com/matchdesk/console/internal/match"
	"github.com/matchdesk/console/internal/model"
	"github.com/matchdesk/console/internal/queue"
	"github.com/matchdesk/console/internal/transport"
	"github.com/matchdesk/console/internal/util"
)

// Dependencies holds everything the handlers need.
type Dependencies struct {
	Engine        *engine.Engine
	Match         *match.Context
	Roster        *cache.RosterCache
	Logger        *slog.Logger
	Notifications *queue.Queue[string]

	// RequestRefresh asks the session layer for a fresh snapshot fetch.
	RequestRefresh func()
}

// rejectPayload carries a server rejection through the dispatcher.
type rejectPayload struct {
	ClientID uuid.UUID
	Reason   string
	Fields   map[string]string
}

// Service processes wire messages for one console session.
type Service struct {
	deps Dependencies
}

// NewService creates a new handler service.
func NewService(deps Dependencies) *Service {
	return &Service{deps: deps}
}

// RegisterHandlers wires every wire-message kind into the dispatcher.
func (s *Service) RegisterHandlers(d *dispatcher.Dispatcher) {
	d.Register(transport.TypeAck, s.handleAck, dispatcher.Buffered(256))
	d.Register(transport.TypeReject, s.handleReject, dispatcher.Buffered(64), dispatcher.Logged())
	d.Register(transport.TypeDeleteAck, s.handleDeleteAck, dispatcher.Buffered(64))
	d.Register(transport.TypeEventCreated, s.handleEventCreated, dispatcher.Buffered(256))
	d.Register(transport.TypeEventDeleted, s.handleEventDeleted, dispatcher.Buffered(64))
	d.Register(transport.TypeRefreshRequested, s.handleRefresh, dispatcher.Buffered(8), dispatcher.Logged())
	d.Register("connection", s.handleConnection, dispatcher.Buffered(8), dispatcher.Logged())
}

// Callbacks returns the transport callbacks that feed the dispatcher.
func (s *Service) Callbacks(d *dispatcher.Dispatcher) transport.Callbacks {
	return Callbacks(d, s.deps.Logger)
}

// Callbacks builds the transport callbacks that feed the dispatcher. Each
// callback only packs the payload and dispatches; a dropped message is
// logged and its state surfaces again on the next snapshot fetch. The
// callbacks touch nothing but the dispatcher, so the channel can be built
// before the engine and handlers exist.
func Callbacks(d *dispatcher.Dispatcher, logger *slog.Logger) transport.Callbacks {
	dispatch := func(kind string, payload any) {
		if _, err := d.Dispatch(dispatcher.Event{
			Kind:      kind,
			Payload:   payload,
			Timestamp: time.Now(),
		}); err != nil {
			logger.Warn("Failed to dispatch wire message", "kind", kind, "error", err)
		}
	}

	return transport.Callbacks{
		OnAck: func(ack model.Ack) {
			dispatch(transport.TypeAck, ack)
		},
		OnReject: func(clientID uuid.UUID, reason string, fields map[string]string) {
			dispatch(transport.TypeReject, rejectPayload{ClientID: clientID, Reason: reason, Fields: fields})
		},
		OnDeleteAck: func(clientID uuid.UUID) {
			dispatch(transport.TypeDeleteAck, clientID)
		},
		OnEventCreated: func(ev model.MatchEvent) {
			dispatch(transport.TypeEventCreated, ev)
		},
		OnEventDeleted: func(serverID string) {
			dispatch(transport.TypeEventDeleted, serverID)
		},
		OnRefreshRequested: func() {
			dispatch(transport.TypeRefreshRequested, nil)
		},
		OnConnectionChange: func(connected bool) {
			dispatch("connection", connected)
		},
	}
}

func (s *Service) handleAck(e dispatcher.Event) (any, error) {
	ack, ok := e.Payload.(model.Ack)
	if !ok {
		return nil, fmt.Errorf("ack payload has type %T", e.Payload)
	}
	s.deps.Engine.MergeAck(ack)
	return nil, nil
}

func (s *Service) handleReject(e dispatcher.Event) (any, error) {
	p, ok := e.Payload.(rejectPayload)
	if !ok {
		return nil, fmt.Errorf("reject payload has type %T", e.Payload)
	}
	s.deps.Engine.Reject(p.ClientID, p.Reason, p.Fields)
	s.notify(fmt.Sprintf("event rejected: %s", p.Reason))
	return nil, nil
}

func (s *Service) handleDeleteAck(e dispatcher.Event) (any, error) {
	clientID, ok := e.Payload.(uuid.UUID)
	if !ok {
		return nil, fmt.Errorf("delete_ack payload has type %T", e.Payload)
	}
	s.deps.Engine.HandleDeleteAck(clientID)
	return nil, nil
}

func (s *Service) handleEventCreated(e dispatcher.Event) (any, error) {
	ev, ok := e.Payload.(model.MatchEvent)
	if !ok {
		return nil, fmt.Errorf("event_created payload has type %T", e.Payload)
	}
	s.deps.Engine.HandleEventCreated(ev)
	s.notify(s.eventLabel(ev))
	return nil, nil
}

func (s *Service) handleEventDeleted(e dispatcher.Event) (any, error) {
	serverID, ok := e.Payload.(string)
	if !ok {
		return nil, fmt.Errorf("event_deleted payload has type %T", e.Payload)
	}
	s.deps.Engine.HandleEventDeleted(serverID)
	return nil, nil
}

func (s *Service) handleRefresh(dispatcher.Event) (any, error) {
	if s.deps.RequestRefresh != nil {
		s.deps.RequestRefresh()
	}
	return nil, nil
}

// handleConnection replays the offline journal and refreshes the timeline
// every time the channel comes back. The server deduplicates by client id,
// so replaying after every reconnect is safe.
func (s *Service) handleConnection(e dispatcher.Event) (any, error) {
	connected, ok := e.Payload.(bool)
	if !ok {
		return nil, fmt.Errorf("connection payload has type %T", e.Payload)
	}

	if !connected {
		s.deps.Logger.Warn("Channel disconnected, queueing events locally",
			"matchId", s.deps.Match.MatchID())
		s.notify("connection lost")
		return nil, nil
	}

	replayed := s.deps.Engine.ReplayJournal()
	s.deps.Logger.Info("Channel connected",
		"matchId", s.deps.Match.MatchID(), "replayed", replayed)
	if s.deps.RequestRefresh != nil {
		s.deps.RequestRefresh()
	}
	return nil, nil
}

// eventLabel renders a feed line for a server-pushed event, resolving the
// player name through the roster when we hold one.
func (s *Service) eventLabel(ev model.MatchEvent) string {
	subject := ev.PlayerID
	if p, ok := s.deps.Roster.GetPlayer(ev.PlayerID); ok {
		subject = p.Name
	}
	return util.FormatEventLabel(ev.Period, ev.MatchClock.String(), string(ev.Type), subject)
}

func (s *Service) notify(msg string) {
	if s.deps.Notifications != nil {
		s.deps.Notifications.Push(msg)
	}
}
