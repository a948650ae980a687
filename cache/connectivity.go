package cache

import (
	"net/http"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
)

// Connectivity reports whether the origin is currently reachable. The
// freshness evaluator relaxes the TTL ceiling only when this reports
// offline; a single failed fetch on the request path is not enough.
type Connectivity interface {
	Online() bool
}

// NewMonitor returns a monitor that probes originURL on the given interval.
// Any HTTP response counts as online; only transport errors count as
// offline. Until the first probe completes the monitor reports online.
func NewMonitor(originURL string, interval time.Duration) *Monitor {
	m := &Monitor{
		originURL: originURL,
		interval:  interval,
		http:      &http.Client{Timeout: interval},
		quit:      make(chan struct{}),
	}
	m.online.Store(true)

	return m
}

// Monitor is a Connectivity implementation backed by a periodic origin probe
type Monitor struct {
	originURL string
	interval  time.Duration
	http      *http.Client
	online    atomic.Bool
	quit      chan struct{}
}

// Online returns the result of the most recent probe
func (m *Monitor) Online() bool {
	return m.online.Load()
}

// Start begins probing until Stop is called
func (m *Monitor) Start() {
	go func() {
		m.probe()
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.probe()
			case <-m.quit:
				return
			}
		}
	}()
}

// Stop ends probing
func (m *Monitor) Stop() {
	close(m.quit)
}

func (m *Monitor) probe() {
	resp, err := m.http.Head(m.originURL)
	if err != nil {
		if m.online.CompareAndSwap(true, false) {
			log.Warnf("origin unreachable, entering offline mode: %s", err)
		}
		return
	}
	resp.Body.Close()
	if m.online.CompareAndSwap(false, true) {
		log.Info("origin reachable again, leaving offline mode")
	}
}
