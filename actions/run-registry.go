package actions

import (
	"sync"
	"time"

	"github.com/relloyd/co2pipe/stats"
)

type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// RunInfo describes one launched action, live or finished.
type RunInfo struct {
	RunId     string
	Action    string
	Status    RunStatus
	Message   string // the action's status line on success, the error text on failure.
	StartedAt time.Time
	Watcher   *stats.RunWatcher
}

// SafeMapRunInfo is a mutex-protected registry of runs launched via the web
// server, keyed by run id. Callers must take the lock before ranging over
// Internal directly.
type SafeMapRunInfo struct {
	sync.RWMutex
	Internal map[string]*RunInfo
}

func NewSafeMapRunInfo() *SafeMapRunInfo {
	return &SafeMapRunInfo{Internal: make(map[string]*RunInfo)}
}

// Load returns a copy of the run's info so callers can read fields without
// holding the lock. The Watcher pointer is shared; it has its own mutex.
func (m *SafeMapRunInfo) Load(runId string) (RunInfo, bool) {
	m.RLock()
	defer m.RUnlock()
	r, ok := m.Internal[runId]
	if !ok {
		return RunInfo{}, false
	}
	return *r, true
}

func (m *SafeMapRunInfo) Store(runId string, r *RunInfo) {
	m.Lock()
	defer m.Unlock()
	m.Internal[runId] = r
}

// SetOutcome records the terminal state of a run.
func (m *SafeMapRunInfo) SetOutcome(runId string, status RunStatus, message string) {
	m.Lock()
	defer m.Unlock()
	if r, ok := m.Internal[runId]; ok {
		r.Status = status
		r.Message = message
	}
}
