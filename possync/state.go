package possync

import (
	"fmt"
	"sync"

	"bitbucket.org/mmdatafocus/pos_terminal/utils"
)

// SyncPhase tags which sync operation currently holds the store. Modeling
// the phase explicitly (instead of a shared boolean) lets callers report
// what is running and keeps the mutual exclusion in one place.
type SyncPhase string

const (
	PhaseIdle          SyncPhase = "Idle"
	PhaseBootstrapping SyncPhase = "Bootstrapping"
	PhasePushing       SyncPhase = "Pushing"
	PhaseMerging       SyncPhase = "Merging"
)

// StateManager enforces at-most-one-active-sync-operation against the local
// store. Bootstrap, push, and merge all acquire it; a second start while one
// is active declines with ErrSyncInProgress.
type StateManager struct {
	mu    sync.Mutex
	phase SyncPhase
}

func NewStateManager() *StateManager {
	return &StateManager{phase: PhaseIdle}
}

// Begin moves the manager out of Idle into phase. The returned release func
// is idempotent.
func (m *StateManager) Begin(phase SyncPhase) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase != PhaseIdle {
		return nil, fmt.Errorf("%w: %s", utils.ErrSyncInProgress, m.phase)
	}
	m.phase = phase

	var once sync.Once
	release := func() {
		once.Do(func() {
			m.mu.Lock()
			m.phase = PhaseIdle
			m.mu.Unlock()
		})
	}
	return release, nil
}

func (m *StateManager) Phase() SyncPhase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}
