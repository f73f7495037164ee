package service

import (
	"context"
	"errors"
	"fmt"
	"golang-backtest/config"
	"golang-backtest/internal/dto"
	"golang-backtest/internal/replay"
	"golang-backtest/pkg/cache"
	"golang-backtest/pkg/logger"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrSessionNotFound    = errors.New("replay session not found")
	ErrTooManySessions    = errors.New("too many replay sessions")
	ErrResultNotAvailable = errors.New("run result is not available for replay")
)

// ReplaySession is the public view of one viewing session.
type ReplaySession struct {
	ID        string       `json:"id"`
	RunID     string       `json:"run_id"`
	CreatedAt time.Time    `json:"created_at"`
	State     replay.State `json:"state"`
}

// ReplayService owns one replay.Controller per session. Closing a session
// stops its playback before CloseSession returns.
type ReplayService interface {
	CreateSession(ctx context.Context, req dto.CreateReplaySessionRequest) (*ReplaySession, error)
	GetSession(ctx context.Context, id string) (*ReplaySession, error)
	ListSessions(ctx context.Context) []ReplaySession
	Command(ctx context.Context, id string, cmd replay.Command) (*ReplaySession, error)
	Subscribe(id string, listener replay.Listener) (unsubscribe func(), err error)
	CloseSession(ctx context.Context, id string) error
	Shutdown()
}

type replaySession struct {
	id         string
	runID      string
	createdAt  time.Time
	controller *replay.Controller
}

func (s *replaySession) view() *ReplaySession {
	return &ReplaySession{ID: s.id, RunID: s.runID, CreatedAt: s.createdAt, State: s.controller.State()}
}

type replayService struct {
	cfg             config.Replay
	log             *logger.Logger
	backtestService BacktestService

	// mu orders touches against deletes so a closed session is never re-added.
	mu       sync.Mutex
	sessions cache.Cache
	idleTTL  time.Duration
}

// NewReplayService keeps sessions in a go-cache registry. A session idle for
// cfg.SessionIdleTTL is evicted and its controller closed.
func NewReplayService(cfg config.Replay, log *logger.Logger, backtestService BacktestService) ReplayService {
	idleTTL, cleanup := cache.NoExpiration, time.Duration(0)
	if cfg.SessionIdleTTL > 0 {
		idleTTL = cfg.SessionIdleTTL
		cleanup = max(cfg.SessionIdleTTL/2, time.Millisecond)
	}
	s := &replayService{
		cfg:             cfg,
		log:             log,
		backtestService: backtestService,
		sessions:        cache.NewCache(idleTTL, cleanup),
		idleTTL:         idleTTL,
	}
	s.sessions.OnEvicted(s.evicted)
	return s
}

func (s *replayService) evicted(id string, value interface{}) {
	session, ok := value.(*replaySession)
	if !ok {
		return
	}
	session.controller.Close()
	s.log.Info("Replay session closed", logger.StringField("session_id", id))
}

func (s *replayService) CreateSession(ctx context.Context, req dto.CreateReplaySessionRequest) (*ReplaySession, error) {
	result, ok := s.backtestService.GetResult(ctx, req.RunID)
	if !ok || !result.Success {
		return nil, fmt.Errorf("%w: %s", ErrResultNotAvailable, req.RunID)
	}

	opts := []replay.Option{replay.WithBaseInterval(s.cfg.BaseInterval)}
	windowSize := req.WindowSize
	if windowSize <= 0 {
		windowSize = s.cfg.DefaultWindowSize
	}
	opts = append(opts, replay.WithWindowSize(windowSize))
	if req.Follow != nil {
		opts = append(opts, replay.WithFollow(*req.Follow))
	}

	session := &replaySession{
		id:         uuid.NewString(),
		runID:      req.RunID,
		createdAt:  time.Now().UTC(),
		controller: replay.NewController(replay.DataFromResult(result), opts...),
	}
	if req.Speed != nil {
		session.controller.SetSpeed(*req.Speed)
	}

	s.mu.Lock()
	if s.cfg.MaxSessions > 0 && len(s.sessions.Items()) >= s.cfg.MaxSessions {
		s.mu.Unlock()
		session.controller.Close()
		return nil, ErrTooManySessions
	}
	s.sessions.Set(session.id, session, s.idleTTL)
	s.mu.Unlock()

	s.log.InfoContext(ctx, "Replay session created",
		logger.StringField("session_id", session.id),
		logger.StringField("run_id", req.RunID))
	return session.view(), nil
}

// session looks up id and restarts its idle timer.
func (s *replayService) session(id string) (*replaySession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := cache.GetFromCache[*replaySession](s.sessions, id)
	if !ok {
		return nil, ErrSessionNotFound
	}
	s.sessions.Set(id, session, s.idleTTL)
	return session, nil
}

func (s *replayService) GetSession(ctx context.Context, id string) (*ReplaySession, error) {
	session, err := s.session(id)
	if err != nil {
		return nil, err
	}
	return session.view(), nil
}

func (s *replayService) ListSessions(ctx context.Context) []ReplaySession {
	items := s.sessions.Items()
	out := make([]ReplaySession, 0, len(items))
	for _, item := range items {
		if session, ok := item.(*replaySession); ok {
			out = append(out, *session.view())
		}
	}
	return out
}

func (s *replayService) Command(ctx context.Context, id string, cmd replay.Command) (*ReplaySession, error) {
	session, err := s.session(id)
	if err != nil {
		return nil, err
	}
	if err := session.controller.Apply(cmd); err != nil {
		return nil, err
	}
	return session.view(), nil
}

func (s *replayService) Subscribe(id string, listener replay.Listener) (func(), error) {
	session, err := s.session(id)
	if err != nil {
		return nil, err
	}
	return session.controller.Subscribe(listener), nil
}

// CloseSession evicts the session; eviction closes its controller.
func (s *replayService) CloseSession(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions.Get(id); !ok {
		return ErrSessionNotFound
	}
	s.sessions.Delete(id)
	return nil
}

// Shutdown closes every session.
func (s *replayService) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := s.sessions.Items()
	for id := range items {
		s.sessions.Delete(id)
	}
	if len(items) > 0 {
		s.log.Info("Replay sessions shut down", logger.IntField("count", len(items)))
	}
}
