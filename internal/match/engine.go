// Copyright (c) 2022. Alvin Baena.
// SPDX-License-Identifier: MIT

package match

import (
	"github.com/alvinbaena/credcheck/internal/protocol"
)

// Membership is a read-only set of credential hashes.
type Membership interface {
	Contains(token string) bool
}

// Evaluate runs the membership tests implied by q against set. A query with an unknown
// kind yields the zero Verdict.
func Evaluate(q protocol.Query, set Membership) protocol.Verdict {
	switch q.Kind {
	case protocol.CheckUsername:
		return single(set.Contains(q.Username))
	case protocol.CheckPassword:
		return single(set.Contains(q.Password))
	case protocol.CheckBoth:
		return both(set.Contains(q.Username), set.Contains(q.Password))
	default:
		return 0
	}
}

func single(found bool) protocol.Verdict {
	if found {
		return protocol.Found
	}
	return protocol.NotFound
}

func both(username, password bool) protocol.Verdict {
	switch {
	case username && password:
		return protocol.FoundBoth
	case username:
		return protocol.FoundUsernameOnly
	case password:
		return protocol.FoundPasswordOnly
	default:
		return protocol.NotFoundBoth
	}
}

// Engine binds a Membership so callers only deal with queries.
type Engine struct {
	set Membership
}

func NewEngine(set Membership) *Engine {
	return &Engine{set: set}
}

func (e *Engine) Evaluate(q protocol.Query) protocol.Verdict {
	return Evaluate(q, e.set)
}
