// Package monitor exposes the task-facing monitoring API: session
// lifecycle calls, the event ingest pipeline, and the scheduled activity
// check loop.
package monitor

import (
	"context"
	"sync"

	"monitoring-service/internal/alerting"
	"monitoring-service/internal/config"
	"monitoring-service/internal/logging"
	"monitoring-service/internal/models"
	"monitoring-service/internal/store"
)

// TaskEvent is one ingested lifecycle event for a task execution. Events
// arrive over Kafka or the HTTP API and are processed by the worker pool.
type TaskEvent struct {
	Event     string               `json:"event"` // started | progress | finished
	SessionID string               `json:"session_id,omitempty"`
	TaskID    string               `json:"task_id,omitempty"`
	TaskType  string               `json:"task_type,omitempty"`
	Status    models.SessionStatus `json:"status,omitempty"`
	Progress  models.Progress      `json:"progress,omitempty"`
	Metadata  map[string]string    `json:"metadata,omitempty"`
	Results   map[string]string    `json:"results,omitempty"`
}

// Service drives session lifecycle persistence and hands every transition
// to the alert orchestrator. Monitoring is best-effort: persistence
// failures on the update path are logged, never propagated to the task.
type Service struct {
	sessions     store.Sessions
	orchestrator *alerting.Orchestrator
	logger       *logging.Logger
	events       chan TaskEvent
	ctx          context.Context
	cancel       context.CancelFunc
	wg           *sync.WaitGroup
	workers      int
}

func New(st store.Store, orchestrator *alerting.Orchestrator, logger *logging.Logger, cfg config.Config) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		sessions:     st.Sessions(),
		orchestrator: orchestrator,
		logger:       logger,
		events:       make(chan TaskEvent, cfg.Monitor.QueueSize),
		ctx:          ctx,
		cancel:       cancel,
		workers:      cfg.Monitor.MaxWorkers,
	}
}

// Logger exposes the Service's logger to the Kafka consumer.
func (s *Service) Logger() *logging.Logger {
	return s.logger
}

// Start launches the ingest worker pool.
func (s *Service) Start(wg *sync.WaitGroup) {
	s.wg = wg
	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}
}

// Stop cancels the workers; Start's WaitGroup observes completion.
func (s *Service) Stop() {
	s.cancel()
}

// QueueEvent enqueues an ingested event for processing.
func (s *Service) QueueEvent(ev TaskEvent) {
	select {
	case s.events <- ev:
		s.logger.Debugf("Queued %s event for task %s", ev.Event, ev.TaskID)
	default:
		s.logger.Errorf("Queue full, dropping %s event for task %s", ev.Event, ev.TaskID)
	}
}

func (s *Service) worker(id int) {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			s.logger.Infof("Worker %d stopped", id)
			return
		case ev := <-s.events:
			s.handleEvent(ev)
		}
	}
}

func (s *Service) handleEvent(ev TaskEvent) {
	switch ev.Event {
	case "started":
		if _, err := s.StartSession(s.ctx, ev.TaskID, ev.TaskType, ev.Metadata); err != nil {
			s.logger.Errorf("Failed to start session for task %s: %v", ev.TaskID, err)
		}
	case "progress":
		s.UpdateProgress(s.ctx, ev.SessionID, ev.Progress)
	case "finished":
		if err := s.Finish(s.ctx, ev.SessionID, ev.Status, ev.Results); err != nil {
			s.logger.Errorf("Failed to finish session %s: %v", ev.SessionID, err)
		}
	default:
		s.logger.Errorf("Unknown event type %q for task %s", ev.Event, ev.TaskID)
	}
}

// StartSession creates a running session. A persistence failure is surfaced
// to the caller, who decides whether to proceed unmonitored.
func (s *Service) StartSession(ctx context.Context, taskID, taskType string, metadata map[string]string) (string, error) {
	sessionID, err := s.sessions.Start(ctx, taskID, taskType, metadata)
	if err != nil {
		return "", err
	}
	s.logger.Infof("Started monitoring session %s for task %s (%s)", sessionID, taskID, taskType)
	return sessionID, nil
}

// UpdateProgress persists a progress update and runs the slow-task check.
// Everything here is best-effort: errors are logged and swallowed so the
// reporting task is never held up.
func (s *Service) UpdateProgress(ctx context.Context, sessionID string, p models.Progress) {
	if err := s.sessions.UpdateProgress(ctx, sessionID, p); err != nil {
		s.logger.Errorf("Failed to persist progress for session %s: %v", sessionID, err)
		return
	}

	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		s.logger.Errorf("Failed to reload session %s: %v", sessionID, err)
		return
	}
	s.orchestrator.OnProgress(ctx, sess)
}

// Finish closes a session and runs the error-burst check. The terminal
// transition itself is surfaced (callers care about AlreadyFinished); the
// alerting that follows is best-effort.
func (s *Service) Finish(ctx context.Context, sessionID string, status models.SessionStatus, results map[string]string) error {
	if err := s.sessions.Finish(ctx, sessionID, status, results); err != nil {
		return err
	}
	s.logger.Infof("Finished session %s with status %s", sessionID, status)

	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		s.logger.Errorf("Failed to reload session %s after finish: %v", sessionID, err)
		return nil
	}
	s.orchestrator.OnFinish(ctx, sess)
	return nil
}
