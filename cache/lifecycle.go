package cache

import (
	"fmt"
	"io"
	"net/http"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// State represents the lifecycle state of the engine
type State string

const (
	// StateInstalling represents an engine that has not precached yet
	StateInstalling State = "installing"
	// StateWaiting represents an installed engine whose previous-generation
	// stores have not been retired yet
	StateWaiting State = "waiting"
	// StateActive represents a fully activated engine
	StateActive State = "active"
)

// State returns the current lifecycle state
func (e *Engine) State() State {
	return e.state
}

// Generation returns the active generation tag
func (e *Engine) Generation() string {
	return e.c.Generation
}

// staticStoreName and runtimeStoreName embed the generation tag, so a
// generation bump retires both stores by name on the next activation
func (e *Engine) staticStoreName() string {
	return fmt.Sprintf("static-%s", e.c.Generation)
}

func (e *Engine) runtimeStoreName() string {
	return fmt.Sprintf("runtime-%s", e.c.Generation)
}

// Install opens the generation-tagged stores and precaches the configured
// asset list from the origin in one batch. The batch is all-or-nothing: if
// any asset fails to fetch, nothing is committed and install fails. On
// success the engine either activates immediately (SkipWaiting) or parks in
// the waiting state until SkipWaiting is called.
func (e *Engine) Install() error {
	static, err := e.storage.Open(e.staticStoreName())
	if err != nil {
		return errors.Wrap(err, "failed to open static store")
	}
	runtime, err := e.storage.Open(e.runtimeStoreName())
	if err != nil {
		return errors.Wrap(err, "failed to open runtime store")
	}
	e.static = static
	e.runtime = runtime

	entries, err := e.fetchPrecache()
	if err != nil {
		return errors.Wrap(err, "install failed")
	}
	for _, entry := range entries {
		if err := e.static.Put(entry); err != nil {
			return errors.Wrap(err, "failed to commit precached asset")
		}
	}
	log.Infof("installed generation %s, precached %d assets", e.c.Generation, len(entries))

	e.state = StateWaiting
	if e.c.SkipWaiting {
		return e.Activate()
	}

	return nil
}

// fetchPrecache fetches every precache asset, committing nothing on failure
func (e *Engine) fetchPrecache() ([]*Entry, error) {
	entries := make([]*Entry, 0, len(e.c.Precache))
	for _, asset := range e.c.Precache {
		req, err := http.NewRequest(http.MethodGet, asset, nil)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid precache asset %s", asset)
		}
		upstream, err := e.fetch(req)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to precache %s", asset)
		}
		body, err := io.ReadAll(upstream.Body)
		upstream.Body.Close()
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read precache body for %s", asset)
		}
		if !isSuccess(upstream.StatusCode) {
			return nil, errors.Errorf("precache of %s returned status %d", asset, upstream.StatusCode)
		}
		entries = append(entries, newEntry(req, upstream.StatusCode, upstream.Header, body))
	}

	return entries, nil
}

// Activate retires every store in the storage directory that does not match
// the current generation pair, then marks the engine active. Exactly one
// static and one runtime store survive an activation.
func (e *Engine) Activate() error {
	names, err := e.storage.Names()
	if err != nil {
		return errors.Wrap(err, "failed to enumerate stores")
	}
	current := map[string]bool{
		e.staticStoreName():  true,
		e.runtimeStoreName(): true,
	}
	for _, name := range names {
		if current[name] {
			continue
		}
		log.Infof("deleting stale cache store %s", name)
		if err := e.storage.Remove(name); err != nil {
			return err
		}
	}

	e.state = StateActive
	log.Infof("generation %s active", e.c.Generation)

	return nil
}

// SkipWaiting activates a waiting engine; the manual update trigger.
// Calling it in any other state is a no-op.
func (e *Engine) SkipWaiting() error {
	if e.state != StateWaiting {
		return nil
	}

	return e.Activate()
}

// Stats describes the current stores for operational visibility
type Stats struct {
	State        State  `json:"state"`
	Generation   string `json:"generation"`
	StaticStore  string `json:"static_store"`
	RuntimeStore string `json:"runtime_store"`
	StaticCount  int    `json:"static_entries"`
	RuntimeCount int    `json:"runtime_entries"`
	RuntimeBytes int64  `json:"runtime_bytes"`
	Online       bool   `json:"online"`
}

// Stats reports lifecycle state and store usage
func (e *Engine) Stats() Stats {
	s := Stats{
		State:        e.state,
		Generation:   e.c.Generation,
		StaticStore:  e.staticStoreName(),
		RuntimeStore: e.runtimeStoreName(),
		Online:       e.connectivity.Online(),
	}
	if e.static != nil {
		s.StaticCount = e.static.Len()
	}
	if e.runtime != nil {
		s.RuntimeCount = e.runtime.Len()
		for _, entry := range e.runtime.Entries() {
			s.RuntimeBytes += int64(entry.Size())
		}
	}

	return s
}
