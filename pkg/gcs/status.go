// Copyright (c) 2022. Alvin Baena.
// SPDX-License-Identifier: MIT

package gcs

import (
	"github.com/alvinbaena/credcheck/internal/util"
	"github.com/rs/zerolog/log"
	"sync/atomic"
	"time"
)

// status reports the progress of a build through its stages.
type status struct {
	stageName  string
	workCount  uint64
	doneCount  uint64
	step       uint64
	start      time.Time
	stageStart time.Time
}

func newStatus() *status {
	return &status{start: time.Now()}
}

func (s *status) Stage(stage string) {
	s.FinishStage()

	s.stageName = stage
	log.Info().Msgf("%s starting...", stage)

	s.stageStart = time.Now()
	atomic.StoreUint64(&s.doneCount, 0)
}

// StageWork starts a stage that reports progress every 5% of work items.
func (s *status) StageWork(name string, work uint64) {
	s.Stage(name)
	s.workCount = work
	s.step = work / 20
}

func (s *status) printStatus(done uint64) {
	elapsed := time.Since(s.stageStart)
	pct := float64(100)
	if s.workCount > 0 {
		pct = float64(done) / float64(s.workCount) * 100
	}

	log.Info().Msgf("%s: %s of %s, %.2f%%, %.0f/s",
		s.stageName, util.Count(done), util.Count(s.workCount), pct, float64(done)/elapsed.Seconds())
}

func (s *status) Incr() {
	done := atomic.AddUint64(&s.doneCount, 1)
	if s.step > 0 && done%s.step == 0 {
		s.printStatus(done)
	}
}

func (s *status) FinishStage() {
	if s.stageName != "" {
		log.Info().Msgf("%s complete in %v", s.stageName, time.Since(s.stageStart))
	}
	s.stageName = ""
}

func (s *status) Done() {
	s.FinishStage()
	log.Info().Msgf("complete in %v", time.Since(s.start))
}
