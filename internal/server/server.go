// Copyright (c) 2022. Alvin Baena.
// SPDX-License-Identifier: MIT

// Package server accepts credcheck protocol connections and answers their queries
// against a read-only credential set.
//
// Every connection is served by its own session on a bounded worker pool. The only
// state shared between sessions is the credential set, which is never written after
// it is loaded.
package server

import (
	"context"
	"github.com/alvinbaena/credcheck/internal/match"
	"github.com/alvinbaena/credcheck/internal/protocol"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/thinhdanggroup/executor"
	"golang.org/x/net/netutil"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

const (
	DefaultMaxConns     = 128
	DefaultIdleTimeout  = 5 * time.Minute
	DefaultWriteTimeout = 10 * time.Second
	DefaultGrace        = 5 * time.Second

	// How often Shutdown looks for sessions waiting on a request.
	shutdownPollInterval = 20 * time.Millisecond
)

// ErrServerClosed is returned by Serve once Shutdown has been called.
var ErrServerClosed = errors.New("server closed")

// Config tunes a Server. Zero values select the defaults, except IdleTimeout and
// StatsInterval where a negative value disables the feature.
type Config struct {
	// MaxConns is the maximum number of connections served at the same time. Further
	// connections wait in the listen backlog.
	MaxConns int
	// IdleTimeout closes sessions that do not send a request for this long.
	IdleTimeout time.Duration
	// WriteTimeout bounds the time spent writing a single response.
	WriteTimeout time.Duration
	// Grace is how long Run waits for open sessions on shutdown before closing them.
	Grace time.Duration
	// StatsInterval is how often the counters are logged.
	StatsInterval time.Duration
	// Strict only accepts full lowercase SHA-256 hex digests in queries.
	Strict bool
}

func (c Config) withDefaults() Config {
	if c.MaxConns <= 0 {
		c.MaxConns = DefaultMaxConns
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = DefaultIdleTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
	if c.Grace <= 0 {
		c.Grace = DefaultGrace
	}
	return c
}

// Server serves the credcheck line protocol.
type Server struct {
	cfg    Config
	engine *match.Engine
	parser protocol.Parser
	stat   *status

	// Session worker pool.
	publish   func(job func()) error
	drainPool func()
	drainOnce sync.Once

	mu         sync.Mutex
	listener   net.Listener
	sessions   map[*session]struct{}
	handlers   sync.WaitGroup
	inShutdown atomic.Bool
}

// New creates a Server answering queries against set.
func New(set match.Membership, cfg Config) (*Server, error) {
	cfg = cfg.withDefaults()

	// Bounded pool, one worker per allowed connection.
	pool, err := executor.New(executor.Config{
		ReqPerSeconds: 0,
		QueueSize:     cfg.MaxConns,
		NumWorkers:    cfg.MaxConns,
	})
	if err != nil {
		return nil, errors.Wrap(err, "creating session pool")
	}

	return &Server{
		cfg:    cfg,
		engine: match.NewEngine(set),
		parser: protocol.Parser{Strict: cfg.Strict},
		stat:   newStatus(),
		publish: func(job func()) error {
			return pool.Publish(job)
		},
		drainPool: func() {
			pool.Wait()
			pool.Close()
		},
		sessions: make(map[*session]struct{}),
	}, nil
}

// Stats returns a copy of the current counters.
func (s *Server) Stats() Snapshot {
	return s.stat.Snapshot()
}

// Engine exposes the match engine the sessions use.
func (s *Server) Engine() *match.Engine {
	return s.engine
}

// ListenAndServe listens on the TCP address addr and calls Run.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "listening on %s", addr)
	}

	return s.Run(ctx, l)
}

// Run serves l until ctx is cancelled, then shuts the server down, giving open
// sessions Config.Grace to finish.
func (s *Server) Run(ctx context.Context, l net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.Serve(l)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Grace)
	defer cancel()

	err := s.Shutdown(shutdownCtx)
	if serveErr := <-errCh; serveErr != nil && !errors.Is(serveErr, ErrServerClosed) {
		log.Warn().Err(serveErr).Msg("accept loop stopped with an error")
	}

	log.Info().Msg("server exiting...")
	return err
}

// Serve accepts connections on l and hands each one to a session. It always returns
// a non-nil error, ErrServerClosed after Shutdown.
func (s *Server) Serve(l net.Listener) error {
	l = netutil.LimitListener(l, s.cfg.MaxConns)

	s.mu.Lock()
	if s.inShutdown.Load() {
		s.mu.Unlock()
		_ = l.Close()
		return ErrServerClosed
	}
	s.listener = l
	s.mu.Unlock()

	log.Info().Msgf("listening on %s, up to %d concurrent connections", l.Addr(), s.cfg.MaxConns)
	s.stat.BeginProgress(s.cfg.StatsInterval)

	var tempDelay time.Duration
	for {
		conn, err := l.Accept()
		if err != nil {
			if s.inShutdown.Load() {
				return ErrServerClosed
			}

			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				if tempDelay == 0 {
					tempDelay = 5 * time.Millisecond
				} else if tempDelay *= 2; tempDelay > time.Second {
					tempDelay = time.Second
				}
				log.Warn().Err(err).Msgf("accept error, retrying in %v", tempDelay)
				time.Sleep(tempDelay)
				continue
			}

			return errors.Wrap(err, "accepting connection")
		}
		tempDelay = 0

		sess := newSession(s, conn)
		if !s.track(sess) {
			_ = conn.Close()
			continue
		}

		if err = s.publish(func() { s.runSession(sess) }); err != nil {
			log.Error().Err(err).Msg("could not schedule session")
			s.untrack(sess)
			sess.close()
		}
	}
}

func (s *Server) runSession(sess *session) {
	defer s.untrack(sess)
	defer func() {
		if r := recover(); r != nil {
			sess.log.Error().Msgf("session panic: %v", r)
			sess.close()
		}
	}()

	sess.serve()
}

func (s *Server) track(sess *session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.inShutdown.Load() {
		return false
	}

	s.sessions[sess] = struct{}{}
	s.handlers.Add(1)
	s.stat.ConnectionOpened()
	return true
}

func (s *Server) untrack(sess *session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sess]; !ok {
		return
	}

	delete(s.sessions, sess)
	s.handlers.Done()
	s.stat.ConnectionClosed()
}

// Shutdown stops accepting connections and ends every session. Sessions waiting for a
// request are closed right away, sessions answering a query finish that answer first.
// When ctx expires before all sessions are done the remaining connections are closed
// and ctx's error is returned.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.inShutdown.Store(true)
	var lErr error
	if s.listener != nil {
		lErr = s.listener.Close()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.handlers.Wait()
		close(done)
	}()

	ticker := time.NewTicker(shutdownPollInterval)
	defer ticker.Stop()

	for {
		s.closeIdle()

		select {
		case <-done:
			s.drainOnce.Do(s.drainPool)
			s.stat.Done()
			if lErr != nil && !errors.Is(lErr, net.ErrClosed) {
				return errors.Wrap(lErr, "closing listener")
			}
			return nil
		case <-ctx.Done():
			log.Warn().Msg("grace period expired, closing remaining connections")
			s.closeAll()
			// Sessions still evaluating a query leave on their own once they try to write.
			go func() {
				<-done
				s.drainOnce.Do(s.drainPool)
			}()
			s.stat.Done()
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Server) snapshotSessions() []*session {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := make([]*session, 0, len(s.sessions))
	for sess := range s.sessions {
		list = append(list, sess)
	}
	return list
}

func (s *Server) closeIdle() {
	for _, sess := range s.snapshotSessions() {
		sess.closeIfIdle()
	}
}

func (s *Server) closeAll() {
	for _, sess := range s.snapshotSessions() {
		sess.close()
	}
}
