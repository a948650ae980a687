package main

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/offlinegate/offlinegate/server"
)

func main() {
	// flag defaults may come from the environment or a .env file
	godotenv.Load()

	listAddr := pflag.StringP("listenaddr", "l", ":8080", "http listen address")
	tlsListAddr := pflag.StringP("tlsaddr", "t", ":8443", "https listen address")
	tlsKey := pflag.StringP("tlskey", "k", "", "TLS private key file path")
	tlsCert := pflag.StringP("tlscert", "c", "", "TLS certificate file path")
	tlsOnly := pflag.BoolP("tlsonly", "s", false, "Only serve TLS")
	origin := pflag.StringP("origin", "o", envOr("ORIGIN_URL", "http://localhost:3000"), "origin server base URL")
	apiRoot := pflag.String("apiroot", "/api", "path prefix of API traffic")
	generation := pflag.StringP("generation", "g", envOr("CACHE_GENERATION", "v1"), "cache generation tag, bump on deploy")
	storageDir := pflag.String("cachedir", envOr("CACHE_DIR", "./cachestore"), "directory for cache store files")
	budget := pflag.Int64("cachebudget", 50*1024*1024, "runtime cache byte budget")
	defaultTTL := pflag.Duration("defaultttl", 5*time.Minute, "freshness window for API paths without a TTL rule")
	ttlRules := pflag.StringArray("ttl", nil, "per-endpoint TTL as prefix=duration, first match wins (repeatable)")
	precache := pflag.StringSlice("precache", []string{"/", "/index.html"}, "asset paths precached on install")
	waiting := pflag.Bool("waiting", false, "park after install until a SKIP_WAITING control message")
	verbose := pflag.BoolP("verbose", "v", false, "Verbose output")
	pflag.Parse()

	rules, err := server.ParseTTLRules(*ttlRules)
	if err != nil {
		log.Fatal(err)
	}

	c := &server.Config{
		ListenAddr:    *listAddr,
		TLSListenAddr: *tlsListAddr,
		TLSOnly:       *tlsOnly,
		TLS: &server.TLSConfig{
			KeyFile:  *tlsKey,
			CertFile: *tlsCert,
		},
		Verbose:     *verbose,
		Origin:      *origin,
		APIRoot:     *apiRoot,
		Generation:  *generation,
		StorageDir:  *storageDir,
		CacheBudget: *budget,
		DefaultTTL:  *defaultTTL,
		TTLRules:    rules,
		Precache:    *precache,
		SkipWaiting: !*waiting,
	}

	s, err := server.New(c)
	if err != nil {
		log.Fatal(err)
	}

	log.Fatal(s.ListenAndServe())
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
