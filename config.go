package main

import (
	"crypto/tls"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"tasktrack-api/api"
)

type authConfig struct {
	domain       string
	audience     string
	sharedSecret string
	jwksCacheTTL time.Duration
}

type config struct {
	debug        bool
	databasePath string
	listenAddr   string
	corsOrigins  []string

	auth authConfig

	redisConn  string
	cacheTTL   time.Duration
	deduperTTL time.Duration

	storageConn string
	eventsQueue string
	dispatcher  api.DispatcherConfig
}

// loadConfig reads the process environment. lookup is os.LookupEnv outside tests.
func loadConfig(lookup func(string) (string, bool)) (config, error) {
	env := envReader{lookup: lookup}
	cfg := config{
		debug:        env.bool("DEBUG", false),
		databasePath: env.string("DATABASE_PATH", "tasktrack.db"),
		listenAddr:   ":8080",
		corsOrigins:  env.list("CORS_ORIGINS", []string{"*"}),
		redisConn:    env.string("REDIS_CONNECTION_STRING", ""),
		cacheTTL:     env.dur("CACHE_TTL", 5*time.Minute),
		deduperTTL:   env.dur("DEDUPER_TTL", 24*time.Hour),
		storageConn:  env.string("STORAGE_CONNECTION_STRING", ""),
		eventsQueue:  env.string("TASK_EVENTS_QUEUE", ""),
		dispatcher: api.DispatcherConfig{
			Workers:        env.int("PUBLISH_WORKERS", 0),
			Buffer:         env.int("PUBLISH_BUFFER", 0),
			Timeout:        env.dur("PUBLISH_TIMEOUT", 60*time.Second),
			HandoffTimeout: env.dur("PUBLISH_HANDOFF_TIMEOUT", 15*time.Millisecond),
		},
	}
	if val, ok := lookup("FUNCTIONS_CUSTOMHANDLER_PORT"); ok && val != "" {
		cfg.listenAddr = ":" + val
	}
	cfg.listenAddr = env.string("LISTEN_ADDR", cfg.listenAddr)

	cfg.auth.jwksCacheTTL = env.dur("JWKS_CACHE_TTL", api.DefaultJWKSCacheTTL)
	switch {
	case env.bool("AUTH0_TEST_MODE", false):
		cfg.auth.sharedSecret = env.string("TEST_JWT_SECRET", "")
		if cfg.auth.sharedSecret == "" {
			env.fail("TEST_JWT_SECRET", errors.New("required when AUTH0_TEST_MODE is set"))
		}
	case env.bool("LOCAL_AUTH_MODE", false):
		cfg.auth.sharedSecret = env.string("LOCAL_AUTH_SHARED_SECRET", "")
		cfg.auth.audience = env.string("AUTH0_AUDIENCE", "")
		if cfg.auth.sharedSecret == "" {
			env.fail("LOCAL_AUTH_SHARED_SECRET", errors.New("required when LOCAL_AUTH_MODE is set"))
		}
	default:
		cfg.auth.domain = env.string("AUTH0_DOMAIN", "")
		cfg.auth.audience = env.string("AUTH0_AUDIENCE", "")
		if cfg.auth.domain == "" || cfg.auth.audience == "" {
			env.fail("AUTH0_DOMAIN", errors.New("missing Auth0 config"))
		}
	}

	if (cfg.storageConn == "") != (cfg.eventsQueue == "") {
		env.fail("TASK_EVENTS_QUEUE", errors.New("STORAGE_CONNECTION_STRING and TASK_EVENTS_QUEUE must be set together"))
	}
	if cfg.databasePath == "" {
		env.fail("DATABASE_PATH", errors.New("must not be empty"))
	}
	return cfg, env.err
}

type envReader struct {
	lookup func(string) (string, bool)
	err    error
}

func (r *envReader) fail(key string, err error) {
	if r.err == nil {
		r.err = fmt.Errorf("invalid %s: %w", key, err)
	}
}

func (r *envReader) string(key, def string) string {
	if v, ok := r.lookup(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func (r *envReader) int(key string, def int) int {
	v := r.string(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.fail(key, err)
		return def
	}
	if n < 0 {
		r.fail(key, errors.New("must not be negative"))
		return def
	}
	return n
}

func (r *envReader) dur(key string, def time.Duration) time.Duration {
	v := r.string(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.fail(key, err)
		return def
	}
	if d <= 0 {
		r.fail(key, errors.New("must be greater than zero"))
		return def
	}
	return d
}

func (r *envReader) bool(key string, def bool) bool {
	v := r.string(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.fail(key, err)
		return def
	}
	return b
}

func (r *envReader) list(key string, def []string) []string {
	v := r.string(key, "")
	if v == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}

// parseRedisOptions accepts a redis:// URL or an Azure-style
// "host:port,password=...,ssl=True" connection string.
func parseRedisOptions(conn string) *redis.Options {
	if opts, err := redis.ParseURL(conn); err == nil {
		return opts
	}
	parts := strings.Split(conn, ",")
	opts := &redis.Options{Addr: strings.TrimSpace(parts[0])}
	for _, p := range parts[1:] {
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(kv[0])) {
		case "password":
			opts.Password = kv[1]
		case "ssl":
			if strings.EqualFold(strings.TrimSpace(kv[1]), "true") {
				opts.TLSConfig = &tls.Config{}
			}
		}
	}
	return opts
}
