// Copyright (c) 2022. Alvin Baena.
// SPDX-License-Identifier: MIT

package server

import (
	"github.com/alvinbaena/credcheck/internal/protocol"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"io"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// Session states, stateClosed is terminal.
const (
	stateAwaiting int32 = iota
	stateDispatching
	stateClosed
)

type session struct {
	srv    *Server
	conn   net.Conn
	reader *protocol.LineReader
	log    zerolog.Logger

	state     atomic.Int32
	closeOnce sync.Once
}

func newSession(srv *Server, conn net.Conn) *session {
	return &session{
		srv:    srv,
		conn:   conn,
		reader: protocol.NewLineReader(conn),
		log: log.With().
			Str("session", uuid.NewString()).
			Str("remote", conn.RemoteAddr().String()).
			Logger(),
	}
}

// serve reads request lines and writes one response line for each of them until the
// client leaves, the session idles out or the server shuts down.
func (c *session) serve() {
	defer c.close()
	c.log.Debug().Msg("session opened")

	for {
		if c.srv.inShutdown.Load() {
			c.log.Debug().Msg("server shutting down, closing session")
			return
		}

		if c.srv.cfg.IdleTimeout > 0 {
			_ = c.conn.SetReadDeadline(time.Now().Add(c.srv.cfg.IdleTimeout))
		}

		line, err := c.reader.ReadLine()
		if err != nil {
			c.readFailed(err)
			return
		}

		// Lost against Shutdown, the line is dropped unanswered.
		if !c.state.CompareAndSwap(stateAwaiting, stateDispatching) {
			return
		}

		if !c.dispatch(line) {
			return
		}

		if !c.state.CompareAndSwap(stateDispatching, stateAwaiting) {
			return
		}
	}
}

// dispatch answers a single request line. It returns false when the session must end.
func (c *session) dispatch(line string) bool {
	q, err := c.srv.parser.Parse(line)
	if errors.Is(err, protocol.ErrExit) {
		c.log.Debug().Msg("client requested exit")
		return false
	}

	if err != nil {
		c.srv.stat.ParseError()
		c.log.Debug().Err(err).Msg("rejected request")
		return c.write(protocol.ErrorResponse(err))
	}

	verdict := c.srv.engine.Evaluate(q)
	c.srv.stat.Verdict(verdict)
	c.log.Trace().Msgf("%s -> %s", q.Kind, verdict)

	return c.write(verdict.String())
}

func (c *session) write(msg string) bool {
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.srv.cfg.WriteTimeout))
	if err := protocol.WriteLine(c.conn, msg); err != nil {
		if c.state.Load() != stateClosed {
			c.srv.stat.IOError()
			c.log.Debug().Err(err).Msg("error writing response")
		}
		return false
	}

	return true
}

func (c *session) readFailed(err error) {
	switch {
	case c.state.Load() == stateClosed:
		c.log.Debug().Msg("session closed by server")
	case errors.Is(err, io.EOF):
		c.log.Debug().Msg("client disconnected")
	case errors.Is(err, protocol.ErrLineTooLong):
		c.srv.stat.ParseError()
		c.log.Debug().Msgf("request longer than %d bytes, closing session", protocol.MaxLineLength)
		c.write(protocol.ErrorResponse(err))
	case errors.Is(err, os.ErrDeadlineExceeded):
		c.srv.stat.IdleTimeout()
		c.log.Debug().Msgf("no request in %v, closing session", c.srv.cfg.IdleTimeout)
	default:
		c.srv.stat.IOError()
		c.log.Debug().Err(err).Msg("error reading request")
	}
}

// closeIfIdle closes the session only while it waits for a request.
func (c *session) closeIfIdle() {
	if c.state.CompareAndSwap(stateAwaiting, stateClosed) {
		c.closeConn()
	}
}

func (c *session) close() {
	c.state.Store(stateClosed)
	c.closeConn()
}

func (c *session) closeConn() {
	c.closeOnce.Do(func() {
		if err := c.conn.Close(); err != nil {
			c.log.Debug().Err(err).Msg("error closing connection")
		}
		c.log.Debug().Msg("session closed")
	})
}
