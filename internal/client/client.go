// Copyright (c) 2022. Alvin Baena.
// SPDX-License-Identifier: MIT

// Package client talks to a credcheck server over the line protocol.
package client

import (
	"context"
	"github.com/alvinbaena/credcheck/internal/protocol"
	"github.com/alvinbaena/credcheck/pkg/digest"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"net"
	"sync"
	"time"
)

const (
	DialTimeout = 10 * time.Second
	// Used by Check when ctx has no deadline.
	DefaultQueryTimeout = 30 * time.Second
)

// Result is the answer to a single query.
type Result struct {
	Verdict protocol.Verdict
	// Latency is the time between sending the query and reading the response.
	Latency time.Duration
}

// Client is a single connection to a credcheck server. It is safe for concurrent use,
// queries are sent one at a time.
type Client struct {
	mu     sync.Mutex
	conn   net.Conn
	reader *protocol.LineReader
	closed bool
}

// Dial connects to the server at addr.
func Dial(ctx context.Context, addr string) (*Client, error) {
	d := net.Dialer{Timeout: DialTimeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "connecting to %s", addr)
	}

	log.Debug().Msgf("connected to %s", conn.RemoteAddr())
	return &Client{conn: conn, reader: protocol.NewLineReader(conn)}, nil
}

// HashInput returns the hex digest sent to the server for a plaintext username,
// email or password.
func HashInput(plain string) string {
	return digest.SumString(plain).Hex()
}

// Check sends q and waits for its verdict. Error responses from the server are
// returned as a *protocol.ServerError and keep the connection open. Any other failure,
// ctx expiry included, closes the connection.
func (c *Client) Check(ctx context.Context, q protocol.Query) (Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return Result{}, net.ErrClosed
	}

	deadline, hasDeadline := ctx.Deadline()
	if !hasDeadline {
		deadline = time.Now().Add(DefaultQueryTimeout)
	}
	if err := c.conn.SetDeadline(deadline); err != nil {
		c.abort()
		return Result{}, errors.WithStack(err)
	}

	// Unblocks the pending read when ctx is cancelled.
	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetDeadline(time.Now())
	})
	defer stop()

	start := time.Now()
	if err := protocol.WriteLine(c.conn, q.String()); err != nil {
		c.abort()
		return Result{}, errors.Wrap(err, "sending query")
	}

	line, err := c.reader.ReadLine()
	latency := time.Since(start)
	if err != nil {
		// A late answer would be read as the response to the next query.
		c.abort()
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		// The socket deadline can fire just before ctx's own timer.
		if hasDeadline && !time.Now().Before(deadline) {
			return Result{}, context.DeadlineExceeded
		}
		return Result{}, errors.Wrap(err, "reading response")
	}

	v, err := protocol.ParseResponse(line)
	if err != nil {
		return Result{Latency: latency}, err
	}

	return Result{Verdict: v, Latency: latency}, nil
}

// CheckUsername hashes a plaintext username or email and checks it.
func (c *Client) CheckUsername(ctx context.Context, username string) (Result, error) {
	return c.Check(ctx, protocol.UsernameQuery(HashInput(username)))
}

// CheckPassword hashes a plaintext password and checks it.
func (c *Client) CheckPassword(ctx context.Context, password string) (Result, error) {
	return c.Check(ctx, protocol.PasswordQuery(HashInput(password)))
}

// CheckBoth hashes a plaintext username and password and checks them together.
func (c *Client) CheckBoth(ctx context.Context, username, password string) (Result, error) {
	return c.Check(ctx, protocol.BothQuery(HashInput(username), HashInput(password)))
}

// abort drops a connection whose request/response pairing can no longer be trusted.
// Later calls return net.ErrClosed. c.mu must be held.
func (c *Client) abort() {
	c.closed = true
	if err := c.conn.Close(); err != nil {
		log.Debug().Err(err).Msg("error closing connection")
	}
}

// Close ends the session with the exit command and closes the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	_ = c.conn.SetWriteDeadline(time.Now().Add(time.Second))
	if err := protocol.WriteLine(c.conn, protocol.CmdExit); err != nil {
		log.Debug().Err(err).Msg("could not send exit")
	}

	return c.conn.Close()
}
