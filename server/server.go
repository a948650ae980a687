package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/offlinegate/offlinegate/cache"
)

// New creates a new server instance. The cache engine is installed and,
// unless waiting is configured, activated before the server is returned; a
// failed precache batch fails server construction.
func New(c *Config) (*Server, error) {
	if c.Origin == "" {
		return nil, errors.New("no origin provided")
	}
	if c.Verbose {
		log.SetLevel(log.DebugLevel)
	}

	engine, err := cache.New(&cache.Config{
		StorageDir:  c.StorageDir,
		Generation:  c.Generation,
		OriginURL:   c.Origin,
		APIRoot:     c.APIRoot,
		Budget:      c.CacheBudget,
		TTL:         cache.NewTTLRegistry(c.TTLRules, c.DefaultTTL),
		Precache:    c.Precache,
		SkipWaiting: c.SkipWaiting,
	})
	if err != nil {
		return nil, err
	}
	if err := engine.Install(); err != nil {
		return nil, err
	}

	return &Server{
		c:      c,
		engine: engine,
	}, nil
}

// Server represents a server instance
type Server struct {
	c      *Config
	engine *cache.Engine
}

// Router builds the strategy route table. Classification is purely on
// method, host and path, so every request is dispatched before any
// asynchronous work begins.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	h := newHandlers(s.engine)

	// foreign-host requests bypass every cache
	r.MatcherFunc(func(req *http.Request, _ *mux.RouteMatch) bool {
		return req.URL.IsAbs()
	}).HandlerFunc(h.PassthroughHandler)

	r.HandleFunc("/-/message", h.MessageHandler).Methods("POST")
	r.HandleFunc("/-/status", h.StatusHandler).Methods("GET")

	apiRoot := s.engine.APIRoot()
	r.PathPrefix(apiRoot).HandlerFunc(h.ReadHandler).Methods("GET")
	r.PathPrefix(apiRoot).HandlerFunc(h.WriteHandler)
	r.PathPrefix("/").HandlerFunc(h.AssetHandler)

	return r
}

// ListenAndServe listens for new requests and serves them
func (s *Server) ListenAndServe() error {
	r := s.Router()

	var g errgroup.Group
	tlsEnabled := s.c.TLS != nil && s.c.TLS.CertFile != "" && s.c.TLS.KeyFile != ""
	if s.c.TLSOnly && !tlsEnabled {
		return errors.New("TLS only requested but no TLS key/cert provided")
	}
	if !s.c.TLSOnly {
		g.Go(func() error {
			addrStr := getAddrString(s.c.ListenAddr)
			log.Infof("http server listening on: http://%s", addrStr)
			return http.ListenAndServe(s.c.ListenAddr, r)
		})
	}

	if tlsEnabled {
		g.Go(func() error {
			addrStr := getAddrString(s.c.TLSListenAddr)
			log.Infof("https server listening on: https://%s", addrStr)
			return http.ListenAndServeTLS(s.c.TLSListenAddr, s.c.TLS.CertFile, s.c.TLS.KeyFile, r)
		})
	}

	return g.Wait()
}

func getAddrString(addr string) string {
	if strings.HasPrefix(addr, ":") {
		addr = fmt.Sprintf("0.0.0.0%s", addr)
	}
	return addr
}
