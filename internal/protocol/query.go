// Copyright (c) 2022. Alvin Baena.
// SPDX-License-Identifier: MIT

// Package protocol implements the line protocol spoken between credcheck clients and
// servers: request parsing, verdicts and newline framing.
package protocol

import (
	"fmt"
	"github.com/alvinbaena/credcheck/pkg/digest"
	"github.com/pkg/errors"
	"strings"
)

const (
	// Delimiter separates a command from its hashes.
	Delimiter = ":"

	CmdExit          = "exit"
	CmdCheckUsername = "check_username"
	CmdCheckPassword = "check_password"
	CmdCheckBoth     = "check_both"
)

// ErrExit is returned by Parse when the client asks to end the session.
var ErrExit = errors.New("exit requested")

// Kind is the shape of a Query.
type Kind int

const (
	CheckUsername Kind = iota + 1
	CheckPassword
	CheckBoth
)

func (k Kind) String() string {
	switch k {
	case CheckUsername:
		return CmdCheckUsername
	case CheckPassword:
		return CmdCheckPassword
	case CheckBoth:
		return CmdCheckBoth
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Query is one parsed request. Username is set for CheckUsername and CheckBoth,
// Password for CheckPassword and CheckBoth.
type Query struct {
	Kind     Kind
	Username string
	Password string
}

// UsernameQuery builds a CheckUsername query.
func UsernameQuery(hash string) Query {
	return Query{Kind: CheckUsername, Username: hash}
}

// PasswordQuery builds a CheckPassword query.
func PasswordQuery(hash string) Query {
	return Query{Kind: CheckPassword, Password: hash}
}

// BothQuery builds a CheckBoth query.
func BothQuery(usernameHash, passwordHash string) Query {
	return Query{Kind: CheckBoth, Username: usernameHash, Password: passwordHash}
}

// String renders the query in its wire form, without the line terminator.
func (q Query) String() string {
	switch q.Kind {
	case CheckUsername:
		return CmdCheckUsername + Delimiter + q.Username
	case CheckPassword:
		return CmdCheckPassword + Delimiter + q.Password
	case CheckBoth:
		return CmdCheckBoth + Delimiter + q.Username + Delimiter + q.Password
	default:
		return ""
	}
}

// ParseError describes a request line that is not a valid query.
type ParseError struct {
	Line   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid request %q: %s", truncate(e.Line, 80), e.Reason)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// Parser turns request lines into queries.
type Parser struct {
	// Strict requires every hash to be exactly a lowercase SHA-256 hex digest.
	// Otherwise any non-empty hexadecimal string is accepted as the lookup key.
	Strict bool
}

// Parse parses line with a non strict Parser.
func Parse(line string) (Query, error) {
	return Parser{}.Parse(line)
}

// Parse returns the Query held by line. It returns ErrExit for the exit command and a
// *ParseError for anything it does not understand.
func (p Parser) Parse(line string) (Query, error) {
	// Only a stray "\r" is tolerated, surrounding whitespace is part of the request.
	trimmed := strings.TrimSuffix(line, "\r")
	if trimmed == CmdExit {
		return Query{}, ErrExit
	}

	cmd, payload, found := strings.Cut(trimmed, Delimiter)
	if !found && (cmd == CmdCheckUsername || cmd == CmdCheckPassword || cmd == CmdCheckBoth) {
		return Query{}, p.fail(line, "missing hash")
	}

	var fields []string
	var q Query
	switch cmd {
	case CmdCheckUsername:
		fields = strings.Split(payload, Delimiter)
		if len(fields) != 1 {
			return Query{}, p.fail(line, fmt.Sprintf("expected 1 hash, got %d", len(fields)))
		}
		q = UsernameQuery(fields[0])
	case CmdCheckPassword:
		fields = strings.Split(payload, Delimiter)
		if len(fields) != 1 {
			return Query{}, p.fail(line, fmt.Sprintf("expected 1 hash, got %d", len(fields)))
		}
		q = PasswordQuery(fields[0])
	case CmdCheckBoth:
		fields = strings.Split(payload, Delimiter)
		if len(fields) != 2 {
			return Query{}, p.fail(line, fmt.Sprintf("expected 2 hashes, got %d", len(fields)))
		}
		q = BothQuery(fields[0], fields[1])
	default:
		return Query{}, p.fail(line, fmt.Sprintf("unknown command %q", truncate(cmd, 32)))
	}

	for _, f := range fields {
		if err := p.validate(f); err != "" {
			return Query{}, p.fail(line, err)
		}
	}

	return q, nil
}

// Validate checks a single hash the same way Parse does.
func (p Parser) Validate(hash string) error {
	if reason := p.validate(hash); reason != "" {
		return &ParseError{Line: hash, Reason: reason}
	}
	return nil
}

func (p Parser) validate(hash string) string {
	switch {
	case hash == "":
		return "empty hash"
	case !digest.IsHex(hash):
		return "hash is not hexadecimal"
	case p.Strict && !digest.IsDigestHex(hash):
		return fmt.Sprintf("hash is not a %d char lowercase SHA-256 digest", digest.HexSize)
	}
	return ""
}

func (p Parser) fail(line, reason string) *ParseError {
	return &ParseError{Line: line, Reason: reason}
}
