// Copyright (c) 2022. Alvin Baena.
// SPDX-License-Identifier: MIT

package server

import (
	"github.com/alvinbaena/credcheck/internal/protocol"
	"github.com/alvinbaena/credcheck/internal/util"
	"github.com/rs/zerolog/log"
	"sync"
	"sync/atomic"
	"time"
)

type status struct {
	accepted     uint64
	active       int64
	queries      uint64
	parseErrors  uint64
	idleTimeouts uint64
	ioErrors     uint64
	verdicts     [len(verdictSlots)]uint64
	start        time.Time
	progress     chan bool
	stopOnce     sync.Once
}

// Index into status.verdicts.
var verdictSlots = [...]protocol.Verdict{
	protocol.Found,
	protocol.NotFound,
	protocol.FoundBoth,
	protocol.FoundUsernameOnly,
	protocol.FoundPasswordOnly,
	protocol.NotFoundBoth,
}

func newStatus() *status {
	return &status{
		start:    time.Now(),
		progress: make(chan bool),
	}
}

// BeginProgress logs the counters every interval until Done is called.
func (s *status) BeginProgress(interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-s.progress:
				return
			case <-ticker.C:
				snap := s.Snapshot()
				log.Info().Msgf("%s active connections, %s queries (%.1f/s), %s parse errors",
					util.Count(snap.ActiveConnections), util.Count(snap.Queries), snap.QueriesPerSecond,
					util.Count(snap.ParseErrors))
			}
		}
	}()
}

func (s *status) ConnectionOpened() {
	atomic.AddUint64(&s.accepted, 1)
	atomic.AddInt64(&s.active, 1)
}

func (s *status) ConnectionClosed() {
	atomic.AddInt64(&s.active, -1)
}

func (s *status) Verdict(v protocol.Verdict) {
	atomic.AddUint64(&s.queries, 1)
	for i, slot := range verdictSlots {
		if slot == v {
			atomic.AddUint64(&s.verdicts[i], 1)
			return
		}
	}
}

func (s *status) ParseError() {
	atomic.AddUint64(&s.parseErrors, 1)
}

func (s *status) IdleTimeout() {
	atomic.AddUint64(&s.idleTimeouts, 1)
}

func (s *status) IOError() {
	atomic.AddUint64(&s.ioErrors, 1)
}

// Snapshot is a point in time copy of the server counters.
type Snapshot struct {
	Uptime            time.Duration     `json:"uptime"`
	AcceptedTotal     uint64            `json:"acceptedConnections"`
	ActiveConnections int64             `json:"activeConnections"`
	Queries           uint64            `json:"queries"`
	QueriesPerSecond  float64           `json:"queriesPerSecond"`
	ParseErrors       uint64            `json:"parseErrors"`
	IdleTimeouts      uint64            `json:"idleTimeouts"`
	IOErrors          uint64            `json:"ioErrors"`
	Verdicts          map[string]uint64 `json:"verdicts"`
}

func (s *status) Snapshot() Snapshot {
	elapsed := time.Since(s.start)
	snap := Snapshot{
		Uptime:            elapsed,
		AcceptedTotal:     atomic.LoadUint64(&s.accepted),
		ActiveConnections: atomic.LoadInt64(&s.active),
		Queries:           atomic.LoadUint64(&s.queries),
		ParseErrors:       atomic.LoadUint64(&s.parseErrors),
		IdleTimeouts:      atomic.LoadUint64(&s.idleTimeouts),
		IOErrors:          atomic.LoadUint64(&s.ioErrors),
		Verdicts:          make(map[string]uint64, len(verdictSlots)),
	}

	for i, v := range verdictSlots {
		snap.Verdicts[v.String()] = atomic.LoadUint64(&s.verdicts[i])
	}

	if elapsed.Seconds() > 0 {
		snap.QueriesPerSecond = float64(snap.Queries) / elapsed.Seconds()
	}

	return snap
}

// Done stops the progress reports and logs the totals.
func (s *status) Done() {
	s.stopOnce.Do(func() {
		close(s.progress)
		snap := s.Snapshot()
		log.Info().Msgf("served %s connections and %s queries in %v",
			util.Count(snap.AcceptedTotal), util.Count(snap.Queries), snap.Uptime.Round(time.Millisecond))
		log.Debug().Msgf("parse errors: %s, idle timeouts: %s, i/o errors: %s",
			util.Count(snap.ParseErrors), util.Count(snap.IdleTimeouts), util.Count(snap.IOErrors))
	})
}
