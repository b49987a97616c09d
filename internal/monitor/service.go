package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"stream-router/internal/platform/metrics"
	"stream-router/internal/routing"

	"golang.org/x/sync/errgroup"
)

// DefaultFetchTimeout bounds one report's queries against the proxy.
const DefaultFetchTimeout = 5 * time.Second

// SessionSource is the external stream proxy's session registry.
type SessionSource interface {
	ActiveSessions(ctx context.Context) ([]Session, error)
	ActiveClients(ctx context.Context) ([]ClientConnection, error)
	// StopSession terminates a session. A false result with a nil error
	// means the registry declined, e.g. the session no longer exists.
	StopSession(ctx context.Context, sessionID string) (bool, error)
}

// Service builds operator reports from the stream proxy.
type Service struct {
	source  SessionSource
	lookup  MetadataLookup
	timeout time.Duration
	log     *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewService returns a Service. lookup may be nil; if timeout <= 0,
// DefaultFetchTimeout is used.
func NewService(source SessionSource, lookup MetadataLookup, timeout time.Duration, log *slog.Logger, m *metrics.Metrics) *Service {
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		source:  source,
		lookup:  lookup,
		timeout: timeout,
		log:     log,
		metrics: m,
		now:     time.Now,
	}
}

// Report queries sessions and clients and joins them. If either query fails
// the report carries a connection error and no streams, and the monitored
// sessions gauge drops to 0.
func (s *Service) Report(ctx context.Context) Report {
	sessions, clients, err := s.fetch(ctx)
	now := s.now()
	if err != nil {
		s.metrics.IncMonitorConnectionErrors()
		s.metrics.SetMonitoredSessions(0)
		s.log.Warn("stream proxy unreachable", slog.String("error", err.Error()))
		return Report{
			Streams:         []StreamView{},
			Global:          globalStats(nil),
			GeneratedAt:     now,
			ConnectionError: err.Error(),
		}
	}

	r := BuildReport(ctx, sessions, clients, now, s.lookup)
	s.metrics.SetMonitoredSessions(len(r.Streams))
	return r
}

func (s *Service) fetch(ctx context.Context) ([]Session, []ClientConnection, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var (
		sessions []Session
		clients  []ClientConnection
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		sessions, err = s.source.ActiveSessions(gctx)
		if err != nil {
			return fmt.Errorf("%w: fetch sessions: %w", routing.ErrUpstreamUnreachable, err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		clients, err = s.source.ActiveClients(gctx)
		if err != nil {
			return fmt.Errorf("%w: fetch clients: %w", routing.ErrUpstreamUnreachable, err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return sessions, clients, nil
}

// StopSession asks the proxy to stop a session, then builds a fresh report.
// The refresh always runs after the stop command has returned.
func (s *Service) StopSession(ctx context.Context, sessionID string) (StopResult, Report) {
	res := s.stop(ctx, sessionID)
	s.metrics.IncStopCommands(res.Stopped)
	return res, s.Report(ctx)
}

func (s *Service) stop(ctx context.Context, sessionID string) StopResult {
	res := StopResult{SessionID: sessionID}

	stopCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	ok, err := s.source.StopSession(stopCtx, sessionID)
	switch {
	case err != nil:
		if !errors.Is(err, routing.ErrCommandFailed) {
			err = fmt.Errorf("%w: %w", routing.ErrCommandFailed, err)
		}
		s.log.Warn("stop session failed", slog.String("session_id", sessionID), slog.String("error", err.Error()))
		res.Message = err.Error()
	case !ok:
		res.Message = fmt.Sprintf("failed to stop stream %s", sessionID)
	default:
		res.Stopped = true
		res.Message = fmt.Sprintf("stream %s stopped", sessionID)
		s.log.Info("session stopped", slog.String("session_id", sessionID))
	}
	return res
}
