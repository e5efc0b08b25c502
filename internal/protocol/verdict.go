// Copyright (c) 2022. Alvin Baena.
// SPDX-License-Identifier: MIT

package protocol

import (
	"fmt"
	"github.com/pkg/errors"
	"strings"
)

// Verdict is the answer of the server to a Query.
type Verdict int

const (
	// Found is the positive answer to a single hash query.
	Found Verdict = iota + 1
	// NotFound is the negative answer to a single hash query.
	NotFound
	FoundBoth
	FoundUsernameOnly
	FoundPasswordOnly
	// NotFoundBoth is the negative answer to a CheckBoth query. It is spelled
	// differently on the wire than NotFound.
	NotFoundBoth
)

var verdictText = map[Verdict]string{
	Found:             "Found",
	NotFound:          "Not Found",
	FoundBoth:         "FoundBoth",
	FoundUsernameOnly: "FoundUsernameOnly",
	FoundPasswordOnly: "FoundPasswordOnly",
	NotFoundBoth:      "NotFound",
}

// Verdicts lists every verdict, in declaration order.
var Verdicts = []Verdict{Found, NotFound, FoundBoth, FoundUsernameOnly, FoundPasswordOnly, NotFoundBoth}

// String returns the wire literal of the verdict.
func (v Verdict) String() string {
	if s, ok := verdictText[v]; ok {
		return s
	}
	return fmt.Sprintf("Verdict(%d)", int(v))
}

// Positive reports whether at least one hash of the query was found.
func (v Verdict) Positive() bool {
	switch v {
	case Found, FoundBoth, FoundUsernameOnly, FoundPasswordOnly:
		return true
	default:
		return false
	}
}

// ErrorPrefix starts every error response line.
const ErrorPrefix = "Error: "

// ServerError is an error response sent by the server instead of a verdict.
type ServerError struct {
	Message string
}

func (e *ServerError) Error() string {
	return "server error: " + e.Message
}

// ErrorResponse renders err as a single response line.
func ErrorResponse(err error) string {
	msg := strings.NewReplacer("\r", " ", "\n", " ").Replace(err.Error())
	return ErrorPrefix + msg
}

// ParseResponse decodes a response line into a Verdict. Error responses are returned
// as a *ServerError.
func ParseResponse(line string) (Verdict, error) {
	if strings.HasPrefix(line, ErrorPrefix) {
		return 0, &ServerError{Message: strings.TrimPrefix(line, ErrorPrefix)}
	}

	for v, s := range verdictText {
		if s == line {
			return v, nil
		}
	}

	return 0, errors.Errorf("unknown response %q", truncate(line, 80))
}
