package possync

import (
	"context"
	"sync"
	"time"

	"bitbucket.org/mmdatafocus/pos_terminal/utils"
	"github.com/sirupsen/logrus"
)

// Pinger is the connectivity probe. Satisfied by *ServerClient.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NetworkMonitor probes the server on a fixed interval and emits exactly one
// event per online/offline transition. Flips are debounced: the flag only
// changes after DebounceProbes consecutive probes disagree with it.
type NetworkMonitor struct {
	Pinger         Pinger
	Logger         *logrus.Logger
	ProbeInterval  time.Duration
	ProbeTimeout   time.Duration
	DebounceProbes int

	mu          sync.Mutex
	online      bool
	streak      int
	transitions chan bool
}

func NewNetworkMonitor(pinger Pinger, logger *logrus.Logger) *NetworkMonitor {
	return &NetworkMonitor{
		Pinger:         pinger,
		Logger:         logger,
		ProbeInterval:  time.Duration(utils.EnvInt("NETWORK_PROBE_INTERVAL_SECONDS", 10)) * time.Second,
		ProbeTimeout:   time.Duration(utils.EnvInt("NETWORK_PROBE_TIMEOUT_SECONDS", 5)) * time.Second,
		DebounceProbes: utils.EnvInt("NETWORK_DEBOUNCE_PROBES", 2),
		transitions:    make(chan bool, 8),
	}
}

func (m *NetworkMonitor) Run(ctx context.Context) {
	if m == nil || m.Pinger == nil {
		return
	}
	m.ProbeOnce(ctx)
	ticker := time.NewTicker(m.ProbeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.ProbeOnce(ctx)
		}
	}
}

// ProbeOnce runs one probe and applies the debounce rule. Exported so tests
// and the worker can drive the monitor without the ticker.
func (m *NetworkMonitor) ProbeOnce(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, m.ProbeTimeout)
	defer cancel()
	reachable := m.Pinger.Ping(probeCtx) == nil

	m.mu.Lock()
	defer m.mu.Unlock()

	if reachable == m.online {
		m.streak = 0
		return
	}
	m.streak++
	if m.streak < m.DebounceProbes {
		return
	}
	m.online = reachable
	m.streak = 0

	select {
	case m.transitions <- reachable:
	default:
		// A slow consumer must not stall probing; the current flag is
		// still readable via Online().
	}
	if m.Logger != nil {
		m.Logger.WithFields(logrus.Fields{
			"module": "NetworkMonitor",
			"online": reachable,
		}).Info("connectivity transition")
	}
}

func (m *NetworkMonitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Transitions emits true for offline->online and false for online->offline,
// once per flip.
func (m *NetworkMonitor) Transitions() <-chan bool {
	return m.transitions
}
