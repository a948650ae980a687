package server

import (
	"encoding/json"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/offlinegate/offlinegate/cache"
)

func newHandlers(engine *cache.Engine) *handlers {
	return &handlers{
		engine: engine,
	}
}

type handlers struct {
	engine *cache.Engine
}

// ReadHandler serves API GETs network-first with the TTL ceiling
func (h *handlers) ReadHandler(res http.ResponseWriter, req *http.Request) {
	if err := h.engine.ServeRead(res, req); err != nil {
		log.Errorf("read %s failed: %s", req.URL.Path, err)
	}
}

// WriteHandler relays API mutations and invalidates related cached reads
func (h *handlers) WriteHandler(res http.ResponseWriter, req *http.Request) {
	if err := h.engine.ServeWrite(res, req); err != nil {
		log.Errorf("mutation %s %s failed: %s", req.Method, req.URL.Path, err)
	}
}

// AssetHandler serves same-origin static assets cache-first
func (h *handlers) AssetHandler(res http.ResponseWriter, req *http.Request) {
	if err := h.engine.ServeAsset(res, req); err != nil {
		log.Errorf("asset %s failed: %s", req.URL.Path, err)
	}
}

// PassthroughHandler relays foreign-host requests untouched
func (h *handlers) PassthroughHandler(res http.ResponseWriter, req *http.Request) {
	if err := h.engine.ServePassthrough(res, req); err != nil {
		log.Errorf("passthrough %s failed: %s", req.URL.String(), err)
	}
}

type controlMessage struct {
	Type string `json:"type"`
}

// MessageHandler accepts control messages from the host application.
// SKIP_WAITING activates a waiting engine; other types are acknowledged
// and ignored.
func (h *handlers) MessageHandler(res http.ResponseWriter, req *http.Request) {
	var msg controlMessage
	if err := json.NewDecoder(req.Body).Decode(&msg); err != nil {
		http.Error(res, "invalid control message", http.StatusBadRequest)
		return
	}
	if msg.Type == "SKIP_WAITING" {
		if err := h.engine.SkipWaiting(); err != nil {
			log.Errorf("skip waiting failed: %s", err)
			http.Error(res, "activation failed", http.StatusInternalServerError)
			return
		}
	}
	res.WriteHeader(http.StatusAccepted)
}

// StatusHandler reports lifecycle state and store usage
func (h *handlers) StatusHandler(res http.ResponseWriter, req *http.Request) {
	res.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(res).Encode(h.engine.Stats()); err != nil {
		log.Errorf("failed to write status: %s", err)
	}
}
