package stats

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/relloyd/co2pipe/logger"
)

// RunWatcher tracks the pipeline stages of one run. Stages execute
// sequentially; each records its row count and duration on completion so the
// run can be inspected while in flight and summarised at the end.
type RunWatcher struct {
	log    logger.Logger
	runId  string
	mu     sync.Mutex
	order  []string
	stages map[string]*stageWatch
}

type stageWatch struct {
	startTime time.Time
	endTime   time.Time
	rows      int64
	running   bool
	failed    bool
}

// Stats describes one stage at the point in time it is rendered.
type Stats struct {
	StageName          string `json:"stageName"`
	StatusText         string `json:"statusText"`
	StatusEmoji        string `json:"statusEmoji"`
	ElapsedTimeSec     int    `json:"elapsedTimeSec"`
	TotalRowsProcessed int    `json:"totalRowsProcessed"`
	RowsPerSecondAvg   int    `json:"rowsPerSecondAvg"`
}

func NewRunWatcher(log logger.Logger, runId string) *RunWatcher {
	return &RunWatcher{log: log, runId: runId, stages: make(map[string]*stageWatch)}
}

// StartStage marks the named stage as running. Restarting a stage resets its
// clock and row count.
func (w *RunWatcher) StartStage(name string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.stages[name]; !ok {
		w.order = append(w.order, name)
	}
	w.stages[name] = &stageWatch{startTime: time.Now(), running: true}
	w.log.Debug("STATS: run ", w.runId, " stage ", name, " started")
}

// CompleteStage records the stage's final row count and logs its throughput.
func (w *RunWatcher) CompleteStage(name string, rows int64) {
	w.mu.Lock()
	s, ok := w.stages[name]
	if !ok { // if the stage was never started...
		s = &stageWatch{startTime: time.Now()}
		w.order = append(w.order, name)
		w.stages[name] = s
	}
	s.endTime = time.Now()
	s.rows = rows
	s.running = false
	w.mu.Unlock()
	w.log.Info(w.renderStage(name).String())
}

// FailStage marks the stage as finished unsuccessfully. The row count stays
// at zero; a failed stage reports no progress.
func (w *RunWatcher) FailStage(name string) {
	w.mu.Lock()
	s, ok := w.stages[name]
	if !ok { // if the stage was never started...
		s = &stageWatch{startTime: time.Now()}
		w.order = append(w.order, name)
		w.stages[name] = s
	}
	s.endTime = time.Now()
	s.running = false
	s.failed = true
	w.mu.Unlock()
	w.log.Info(w.renderStage(name).String())
}

// RenderStats returns a snapshot per stage in execution order.
func (w *RunWatcher) RenderStats() []Stats {
	w.mu.Lock()
	names := make([]string, len(w.order))
	copy(names, w.order)
	w.mu.Unlock()
	out := make([]Stats, 0, len(names))
	for _, name := range names {
		out = append(out, w.renderStage(name))
	}
	return out
}

func (w *RunWatcher) renderStage(name string) Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	s, ok := w.stages[name]
	if !ok {
		return Stats{StageName: name}
	}
	var statusText, statusEmoji string
	var elapsed time.Duration
	if s.running {
		statusText = "running"
		statusEmoji = "\U0000231B" // hour glass
		elapsed = time.Since(s.startTime)
	} else if s.failed {
		statusText = "failed"
		statusEmoji = "\U0000274C" // red cross
		elapsed = s.endTime.Sub(s.startTime)
	} else {
		statusText = "complete"
		statusEmoji = "\U00002705" // green tick
		elapsed = s.endTime.Sub(s.startTime)
	}
	return Stats{
		StageName:          name,
		StatusText:         statusText,
		StatusEmoji:        statusEmoji,
		ElapsedTimeSec:     int(elapsed.Seconds()),
		TotalRowsProcessed: int(s.rows),
		RowsPerSecondAvg:   int(s.rows / secondsOrOne(elapsed)),
	}
}

// SortedStageNames is used by tests and status rendering that want a stable
// order independent of execution order.
func (w *RunWatcher) SortedStageNames() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	names := make([]string, len(w.order))
	copy(names, w.order)
	sort.Strings(names)
	return names
}

// String formats the stats for general logging.
func (s Stats) String() string {
	return fmt.Sprintf(
		"Stats for %v %v %v "+
			"elapsedTimeSec=%v "+
			"totalRowsProcessed=%v "+
			"rowsPerSecondAvg=%v",
		s.StageName, s.StatusText, s.StatusEmoji,
		s.ElapsedTimeSec,
		s.TotalRowsProcessed,
		s.RowsPerSecondAvg,
	)
}

func secondsOrOne(d time.Duration) (seconds int64) {
	seconds = int64(d.Seconds())
	if seconds < 1 {
		seconds = 1
	}
	return
}
