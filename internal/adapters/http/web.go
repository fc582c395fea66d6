package web

import (
	"crypto/rand"
	"encoding/hex"
	"log"
	"net/http"
	"os"
	"time"

	"fitclub/internal/adapters/http/middleware"
	"fitclub/internal/adapters/http/perf"
	"fitclub/internal/adapters/realtime"
	accountStore "fitclub/internal/adapters/storage/account"
	announcementStore "fitclub/internal/adapters/storage/announcement"
	lobbyStore "fitclub/internal/adapters/storage/lobby"
	notificationStore "fitclub/internal/adapters/storage/notification"
	sessionStore "fitclub/internal/adapters/storage/session"
	"fitclub/internal/application/dedup"
)

// Stores holds all storage dependencies.
type Stores struct {
	AccountStore      accountStore.Store
	SessionStore      sessionStore.Store
	LobbyStore        lobbyStore.Store
	RequestStore      lobbyStore.RequestStore
	NotificationStore notificationStore.Store
	AnnouncementStore announcementStore.Store
}

// loadCSRFKey reads the CSRF secret from FITCLUB_CSRF_KEY (hex-encoded, 32 bytes).
// In production, the key MUST be set. In development, a random key is generated
// per startup.
func loadCSRFKey() []byte {
	if keyHex := os.Getenv("FITCLUB_CSRF_KEY"); keyHex != "" {
		key, err := hex.DecodeString(keyHex)
		if err != nil || len(key) != 32 {
			log.Fatal("FITCLUB_CSRF_KEY must be 64 hex characters (32 bytes)")
		}
		return key
	}
	if os.Getenv("FITCLUB_ENV") == "production" {
		log.Fatal("FITCLUB_CSRF_KEY is required in production")
	}
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		log.Fatalf("failed to generate CSRF key: %v", err)
	}
	log.Println("WARNING: using random CSRF key (sessions won't survive restart). Set FITCLUB_CSRF_KEY for production.")
	return key
}

// Global stores instance (set by NewMux)
var stores *Stores

// Global session store instance
var sessions *middleware.SessionStore

// RateLimitPerSecond controls the per-IP rate limit. Tests can increase this.
var RateLimitPerSecond = 10

// Global perf collector (set by NewMux)
var perfCollector *perf.Collector

// Global dedup cache (set by NewMux)
var dedupCache *dedup.Cache

// Global websocket hub (set by NewMux)
var hub *realtime.Hub

// NewMux wires HTTP handlers for the app.
func NewMux(s *Stores, collector *perf.Collector, cache *dedup.Cache, h *realtime.Hub) http.Handler {
	stores = s
	perfCollector = collector
	dedupCache = cache
	hub = h
	sessions = middleware.NewSessionStore()

	mux := http.NewServeMux()
	registerRoutes(mux)

	// CSRF key: 32-byte hex-encoded secret from env var
	csrfKey := loadCSRFKey()

	// Rate limiter: configurable requests per second per IP (OWASP A04)
	limiter := middleware.NewRateLimiter(RateLimitPerSecond, time.Second)

	// Apply middleware: Timing -> Auth -> CSRF -> SecurityHeaders -> RateLimit -> Mux
	return middleware.Chain(mux,
		middleware.SecurityHeaders,
		middleware.CSRF(csrfKey),
		middleware.Auth(sessions),
		middleware.RateLimit(limiter),
		middleware.Timing(collector),
	)
}
