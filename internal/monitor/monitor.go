// Package monitor runs the console status service: a once-a-second
// snapshot of connection state, delivery counters and the local clock,
// written to a status file for the operator HUD and shipped to telemetry.
package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/matchdesk/console/internal/clock"
	"github.com/matchdesk/console/internal/engine"
	"github.com/matchdesk/console/internal/queue"
	"github.com/matchdesk/console/internal/telemetry"
)

// Dependencies holds all dependencies for the monitor service.
type Dependencies struct {
	Engine        *engine.Engine
	Clock         *clock.Engine
	Telemetry     *telemetry.Manager
	Notifications *queue.Queue[string]
	Logger        *slog.Logger
	MatchID       string
	StatusPath    string
	Connected     func() bool
	Period        func() int
}

// Status is the point-in-time console state the monitor publishes.
type Status struct {
	Time         time.Time `json:"time"`
	MatchID      string    `json:"matchId"`
	Connected    bool      `json:"connected"`
	PendingAcks  int       `json:"pendingAcks"`
	UnsentEvents int       `json:"unsentEvents"`
	Period       int       `json:"period"`
	PeriodClock  string    `json:"periodClock"`
	VarActive    bool      `json:"varActive"`
	NextNotice   string    `json:"nextNotice,omitempty"`
}

// Service manages status monitoring.
type Service struct {
	deps      Dependencies
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
}

// NewService creates a new monitor service.
func NewService(deps Dependencies) *Service {
	return &Service{
		deps:     deps,
		stopChan: make(chan struct{}),
	}
}

// IsRunning returns whether the status monitor is running.
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Snapshot returns the current console status. The head of the operator
// feed is previewed without consuming it; the run loop drains the queue.
func (s *Service) Snapshot() Status {
	reading := s.deps.Clock.Read()
	st := Status{
		Time:         time.Now(),
		MatchID:      s.deps.MatchID,
		Connected:    s.deps.Connected(),
		PendingAcks:  s.deps.Engine.PendingCount(),
		UnsentEvents: s.deps.Engine.UnsentCount(),
		Period:       s.deps.Period(),
		PeriodClock:  reading.PeriodClock.String(),
		VarActive:    reading.VarActive,
	}
	if s.deps.Notifications != nil {
		if msg, ok := s.deps.Notifications.Peek(); ok {
			st.NextNotice = msg
		}
	}
	return st
}

// Start starts the status monitor goroutine.
func (s *Service) Start() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			s.isRunning = false
			s.mu.Unlock()
		}()

		s.deps.Logger.Debug("Starting status monitor goroutine")

		statusFile, err := os.Create(s.deps.StatusPath)
		if err != nil {
			s.deps.Logger.Error("Error creating status file", "error", err)
		}
		defer func() {
			if statusFile != nil {
				statusFile.Close()
			}
		}()

		for {
			select {
			case <-s.stopChan:
				return
			default:
				time.Sleep(1000 * time.Millisecond)

				status := s.Snapshot()

				if statusFile != nil {
					raw, err := json.MarshalIndent(status, "", "  ")
					if err != nil {
						raw = []byte(fmt.Sprintf(`{"error": "%s"}`, err))
					}
					statusFile.Truncate(0)
					statusFile.Seek(0, 0)
					statusFile.Write(raw)
					statusFile.WriteString("\n")
				}

				if s.deps.Telemetry != nil {
					err := s.deps.Telemetry.RecordDelivery(context.Background(),
						status.MatchID, status.PendingAcks, status.UnsentEvents, status.Connected)
					if err != nil {
						s.deps.Logger.Warn("Error shipping delivery sample", "error", err)
					}
				}
			}
		}
	}()

	return nil
}

// Stop stops the status monitor.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		close(s.stopChan)
	}
}
