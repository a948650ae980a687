package cache

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"path"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Config represents a cache engine config
type Config struct {
	// StorageDir is the directory holding the store files
	StorageDir string
	// Generation is the version tag embedded in both store names; bumping
	// it retires every store of the previous generation on activation
	Generation string
	// OriginURL is the base URL of the origin server being fronted
	OriginURL string
	// APIRoot is the path prefix below which requests are treated as API
	// traffic (network-first reads, invalidating writes)
	APIRoot string
	// Budget is the runtime store byte budget (0 disables eviction)
	Budget int64
	// TTL resolves per-endpoint freshness durations
	TTL *TTLRegistry
	// Precache lists the asset paths installed into the static store
	Precache []string
	// SkipWaiting activates the engine immediately after install
	SkipWaiting bool
	// Connectivity reports origin reachability; when nil a periodic
	// monitor against OriginURL is used
	Connectivity Connectivity
}

// New returns a new cache engine instance.
// The engine serves nothing until Install has run.
func New(c *Config) (*Engine, error) {
	if c.OriginURL == "" {
		return nil, errors.New("no origin URL provided")
	}
	origin, err := url.Parse(c.OriginURL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse origin URL")
	}
	if c.Generation == "" {
		return nil, errors.New("no cache generation provided")
	}
	if c.TTL == nil {
		return nil, errors.New("no TTL registry provided")
	}
	apiRoot := c.APIRoot
	if apiRoot == "" {
		apiRoot = "/api"
	}
	storage, err := NewStorage(c.StorageDir)
	if err != nil {
		return nil, err
	}
	connectivity := c.Connectivity
	if connectivity == nil {
		m := NewMonitor(c.OriginURL, 30*time.Second)
		m.Start()
		connectivity = m
	}

	return &Engine{
		c:            c,
		origin:       origin,
		apiRoot:      apiRoot,
		budget:       c.Budget,
		storage:      storage,
		connectivity: connectivity,
		http:         &http.Client{},
		state:        StateInstalling,
		now:          time.Now,
	}, nil
}

// Engine implements the caching disciplines over the two stores: cache-first
// for static assets, network-first with a TTL ceiling for API reads, and
// invalidating pass-through for API writes
type Engine struct {
	c            *Config
	origin       *url.URL
	apiRoot      string
	budget       int64
	storage      *Storage
	static       *Store
	runtime      *Store
	connectivity Connectivity
	http         *http.Client
	state        State
	now          func() time.Time
}

// APIRoot returns the path prefix below which requests are API traffic
func (e *Engine) APIRoot() string {
	return e.apiRoot
}

// ServeAsset serves a same-origin static asset cache-first: a cached entry
// is returned immediately, otherwise the asset is fetched and, when the
// response is successful, stored in the static store before being relayed.
func (e *Engine) ServeAsset(res http.ResponseWriter, req *http.Request) error {
	if entry, ok := e.static.Get(RequestKey(req)); ok {
		log.Debugf("static cache hit %s", entry.Key())
		writeEntry(res, entry)
		return nil
	}

	upstream, err := e.fetch(req)
	if err != nil {
		log.Debugf("static fetch failed for %s: %s", req.URL.Path, err)
		writeOfflineText(res)
		return nil
	}
	defer upstream.Body.Close()

	body, err := io.ReadAll(upstream.Body)
	if err != nil {
		writeOfflineText(res)
		return nil
	}
	if req.Method == http.MethodGet && isSuccess(upstream.StatusCode) {
		entry := newEntry(req, upstream.StatusCode, upstream.Header, body)
		if err := e.static.Put(entry); err != nil {
			log.Warnf("failed to cache asset %s: %s", entry.Key(), err)
		}
	}
	relay(res, upstream.StatusCode, upstream.Header, body)

	return nil
}

// ServeRead serves an API GET network-first with a TTL ceiling: live
// responses win and successful ones are stamped and stored; on a transport
// error a cached entry is served only while fresh, of unknown age, or when
// the origin is confirmed offline.
func (e *Engine) ServeRead(res http.ResponseWriter, req *http.Request) error {
	upstream, err := e.fetch(req)
	if err != nil {
		log.Debugf("network fetch failed for %s: %s", req.URL.Path, err)
		return e.serveFallback(res, req)
	}
	defer upstream.Body.Close()

	body, err := io.ReadAll(upstream.Body)
	if err != nil {
		return e.serveFallback(res, req)
	}
	if req.Method == http.MethodGet && isSuccess(upstream.StatusCode) {
		entry := newEntry(req, upstream.StatusCode, upstream.Header, body)
		entry.Stamp(e.now())
		if err := e.runtime.Put(entry); err != nil {
			log.Warnf("failed to cache %s: %s", entry.Key(), err)
		} else {
			go func() {
				if err := e.enforceBudget(); err != nil {
					log.Warnf("eviction pass failed: %s", err)
				}
			}()
		}
	}
	// the live response is relayed unstamped; only the stored clone
	// carries the cached-at header
	relay(res, upstream.StatusCode, upstream.Header, body)

	return nil
}

// serveFallback consults the runtime store after a failed fetch
func (e *Engine) serveFallback(res http.ResponseWriter, req *http.Request) error {
	entry, ok := e.runtime.Get(RequestKey(req))
	if !ok {
		writeOfflineJSON(res)
		return nil
	}

	ttl := e.c.TTL.Lookup(req.URL.Path)
	verdict := evaluate(entry, ttl, e.now(), e.connectivity.Online())
	if !verdict.Usable() {
		log.Debugf("cached %s is %s, refusing to serve", entry.Key(), verdict)
		writeOfflineJSON(res)
		return nil
	}
	log.Debugf("serving cached %s (%s)", entry.Key(), verdict)
	writeEntry(res, entry)

	return nil
}

// ServeWrite relays an API mutation to the origin unchanged and, once a
// response is obtained, purges related runtime entries as a side effect.
// Invalidation never delays or fails the mutation response.
func (e *Engine) ServeWrite(res http.ResponseWriter, req *http.Request) error {
	upstream, err := e.fetch(req)
	if err != nil {
		log.Debugf("mutation fetch failed for %s: %s", req.URL.Path, err)
		writeOfflineJSON(res)
		return nil
	}
	defer upstream.Body.Close()

	go func(p string) {
		if err := e.invalidateRelated(p); err != nil {
			log.Warnf("invalidation after mutation of %s failed: %s", p, err)
		}
	}(req.URL.Path)

	copyHeader(res.Header(), upstream.Header)
	res.WriteHeader(upstream.StatusCode)
	if _, err := io.Copy(res, upstream.Body); err != nil {
		return errors.Wrap(err, "failed to relay mutation response")
	}

	return nil
}

// ServePassthrough relays a foreign-host request untouched, no caching
func (e *Engine) ServePassthrough(res http.ResponseWriter, req *http.Request) error {
	out, err := http.NewRequest(req.Method, req.URL.String(), req.Body)
	if err != nil {
		return errors.Wrap(err, "failed to build passthrough request")
	}
	copyHeader(out.Header, req.Header)
	upstream, err := e.http.Do(out)
	if err != nil {
		writeOfflineText(res)
		return nil
	}
	defer upstream.Body.Close()

	copyHeader(res.Header(), upstream.Header)
	res.WriteHeader(upstream.StatusCode)
	if _, err := io.Copy(res, upstream.Body); err != nil {
		return errors.Wrap(err, "failed to relay passthrough response")
	}

	return nil
}

// fetch performs the origin round trip for an intercepted request
func (e *Engine) fetch(req *http.Request) (*http.Response, error) {
	target := *e.origin
	target.Path = path.Join(e.origin.Path, req.URL.Path)
	target.RawQuery = req.URL.RawQuery

	out, err := http.NewRequest(req.Method, target.String(), req.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build origin request")
	}
	copyHeader(out.Header, req.Header)

	resp, err := e.http.Do(out)
	if err != nil {
		return nil, errors.Wrap(err, "origin request failed")
	}

	return resp, nil
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

func copyHeader(dst, src http.Header) {
	for name, values := range src {
		for _, v := range values {
			dst.Add(name, v)
		}
	}
}

// writeEntry writes a stored entry to the response writer, stamp included
func writeEntry(res http.ResponseWriter, e *Entry) {
	relay(res, e.Status, e.Header, e.Body)
}

func relay(res http.ResponseWriter, status int, header http.Header, body []byte) {
	copyHeader(res.Header(), header)
	res.WriteHeader(status)
	if _, err := res.Write(body); err != nil {
		log.Debugf("failed to write response body: %s", err)
	}
}

type offlineError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// writeOfflineJSON synthesizes the JSON error returned when neither the
// network nor a usable cached entry can answer an API request
func writeOfflineJSON(res http.ResponseWriter) {
	res.Header().Set("Content-Type", "application/json")
	res.WriteHeader(http.StatusServiceUnavailable)
	body := offlineError{
		Error:   "Offline",
		Message: "Unable to fetch data and no cached version is available",
	}
	if err := json.NewEncoder(res).Encode(body); err != nil {
		log.Debugf("failed to write offline response: %s", err)
	}
}

func writeOfflineText(res http.ResponseWriter) {
	res.Header().Set("Content-Type", "text/plain")
	res.WriteHeader(http.StatusServiceUnavailable)
	if _, err := res.Write([]byte("Offline")); err != nil {
		log.Debugf("failed to write offline response: %s", err)
	}
}
