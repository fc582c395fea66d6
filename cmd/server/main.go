package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "modernc.org/sqlite"

	emailPkg "fitclub/internal/adapters/email"
	web "fitclub/internal/adapters/http"
	"fitclub/internal/adapters/http/perf"
	"fitclub/internal/adapters/realtime"
	"fitclub/internal/adapters/storage"
	accountStore "fitclub/internal/adapters/storage/account"
	announcementStore "fitclub/internal/adapters/storage/announcement"
	lobbyStore "fitclub/internal/adapters/storage/lobby"
	notificationStore "fitclub/internal/adapters/storage/notification"
	sessionStore "fitclub/internal/adapters/storage/session"
	"fitclub/internal/application/dedup"
	"fitclub/internal/application/orchestrators"
	"fitclub/internal/domain/event"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	// Initialize database with WAL mode, foreign keys, and busy timeout
	dbPath := envOrDefault("FITCLUB_DB", "fitclub.db")
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	// Connection pool settings for WAL mode
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)

	if err := db.Ping(); err != nil {
		log.Fatalf("database unreachable: %v", err)
	}
	if err := storage.InitDB(db); err != nil {
		log.Fatalf("failed to initialize database: %v", err)
	}

	// Performance instrumentation: wrap DB with timing, create collector
	collector := perf.NewCollector(perf.DefaultRingSize)
	timedDB := storage.NewTimedDB(db, collector)

	lobbies := lobbyStore.NewSQLiteStore(timedDB)
	stores := &web.Stores{
		AccountStore:      accountStore.NewSQLiteStore(timedDB),
		SessionStore:      sessionStore.NewSQLiteStore(timedDB),
		LobbyStore:        lobbies,
		RequestStore:      lobbies,
		NotificationStore: notificationStore.NewSQLiteStore(timedDB),
		AnnouncementStore: announcementStore.NewSQLiteStore(timedDB),
	}

	// Duplicate suppression for the realtime channel
	cache := dedup.New()
	cache.Start()
	defer cache.Stop()

	// Realtime fan-out: processed events go through the bus; subscribers push
	// them to every connection in the lobby's room.
	bus := realtime.NewBus()

	var hub *realtime.Hub
	processDeps := orchestrators.ProcessEventDeps{
		Dedup:     cache,
		Publisher: bus,
		Handlers: map[string]orchestrators.EventHandler{
			// Chat has no server-side state; dedup plus fan-out is the whole job.
			event.TypeChatMessage: func(ctx context.Context, evt event.Event) error {
				return nil
			},
			event.TypeJoinRequest: func(ctx context.Context, evt event.Event) error {
				_, err := orchestrators.ExecuteRequestJoin(ctx,
					orchestrators.RequestJoinInput{LobbyID: evt.LobbyID, AccountID: evt.SenderID},
					orchestrators.RequestJoinDeps{LobbyStore: lobbies, RequestStore: lobbies})
				return err
			},
		},
	}
	hub = realtime.NewHub(func(ctx context.Context, evt event.Event) error {
		return orchestrators.ExecuteProcessEvent(ctx, evt, processDeps)
	})

	for _, t := range []string{event.TypeChatMessage, event.TypeJoinRequest, event.TypeMemberJoined} {
		eventType := t
		if err := bus.Subscribe(eventType, func(evt event.Event) {
			hub.Broadcast(evt.LobbyID, evt)
		}); err != nil {
			log.Fatalf("failed to subscribe %s: %v", eventType, err)
		}
	}

	// Reclaim lobbies left open by an unclean shutdown
	cleanupDeps := orchestrators.CleanupLobbyDeps{
		LobbyStore:   lobbies,
		RequestStore: lobbies,
		Broadcaster:  hub,
		RoomCloser:   hub,
		Dedup:        cache,
	}
	recovered, err := orchestrators.ExecuteRecoverLobbies(context.Background(),
		orchestrators.RecoverLobbiesDeps{CleanupDeps: cleanupDeps})
	if err != nil {
		log.Printf("lobby recovery finished with errors: %v", err)
	}
	if recovered > 0 {
		log.Printf("Recovered %d stale lobbies", recovered)
	}

	// Configure email sender for workout reminders
	var sender emailPkg.Sender
	resendKey := os.Getenv("FITCLUB_RESEND_KEY")
	emailFrom := envOrDefault("FITCLUB_RESEND_FROM", "FitClub <noreply@fitclub.app>")
	if resendKey != "" {
		sender = emailPkg.NewResendSender(resendKey, emailFrom)
		log.Println("Email sender configured (Resend)")
	} else {
		sender = emailPkg.NewNoopSender()
		if os.Getenv("FITCLUB_ENV") == "production" {
			log.Println("WARNING: FITCLUB_RESEND_KEY is not set — reminder delivery is DISABLED in production")
		} else {
			log.Println("Email sender configured (noop — set FITCLUB_RESEND_KEY for real delivery)")
		}
	}

	// Background worker delivering due workout reminders
	reminderStopCh := make(chan struct{})
	processor := orchestrators.NewReminderProcessor(stores.NotificationStore, stores.AccountStore, sender)
	processor.Start(30*time.Second, reminderStopCh)
	defer close(reminderStopCh)

	// Create HTTP handler with middleware (pass collector for timing + stats)
	mux := web.NewMux(stores, collector, cache, hub)

	addr := envOrDefault("FITCLUB_ADDR", ":8080")
	log.Printf("FitClub %s starting on %s (env=%s)", version, addr, envOrDefault("FITCLUB_ENV", "development"))

	// Serve until interrupted; a signal drains in-flight requests and then
	// lets the deferred stops (dedup sweeper, reminder worker) run.
	srv := &http.Server{Addr: addr, Handler: mux}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		log.Fatalf("Server failed: %v", err)
	case sig := <-sigCh:
		log.Printf("Received %s, shutting down", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("Shutdown incomplete: %v", err)
		}
	}
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
