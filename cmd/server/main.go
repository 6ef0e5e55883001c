package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	_ "modernc.org/sqlite"

	emailPkg "academy/internal/adapters/email"
	web "academy/internal/adapters/http"
	"academy/internal/adapters/http/perf"
	"academy/internal/adapters/storage"
	accountStore "academy/internal/adapters/storage/account"
	attendanceStore "academy/internal/adapters/storage/attendance"
	compConfigStore "academy/internal/adapters/storage/compconfig"
	termStore "academy/internal/adapters/storage/enrollmentterm"
	holidayStore "academy/internal/adapters/storage/holiday"
	outboxStorePkg "academy/internal/adapters/storage/outbox"
	sessionPeriodStore "academy/internal/adapters/storage/sessionperiod"
	settlementStore "academy/internal/adapters/storage/settlement"
	studentStore "academy/internal/adapters/storage/student"
	"academy/internal/application/orchestrators"
	"academy/internal/domain/outbox"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	// Local overrides from .env; missing file is fine.
	_ = godotenv.Load()

	// Initialize database with WAL mode, foreign keys, and busy timeout
	dbPath := envOrDefault("ACADEMY_DB_PATH", "academy.db")
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	// Connection pool settings for WAL mode
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)

	// Health check
	if err := db.Ping(); err != nil {
		log.Fatalf("database unreachable: %v", err)
	}

	// Run database migrations
	if err := storage.MigrateDB(db, dbPath); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	log.Println("Database initialized successfully!")

	// Performance instrumentation: wrap DB with timing, create collector
	collector := perf.NewCollector(perf.DefaultRingSize)
	timedDB := storage.NewTimedDB(db, collector)

	// Create store instances (using timed DB for query instrumentation)
	acctStore := accountStore.NewSQLiteStore(timedDB)
	attStore := attendanceStore.NewSQLiteStore(timedDB)
	stores := &web.Stores{
		AccountStore:       acctStore,
		StudentStore:       studentStore.NewSQLiteStore(timedDB),
		AttendanceStore:    attStore,
		ConfigStore:        compConfigStore.NewSQLiteStore(timedDB),
		SettlementStore:    settlementStore.NewSQLiteStore(timedDB),
		TermStore:          termStore.NewSQLiteStore(timedDB),
		HolidayStore:       holidayStore.NewSQLiteStore(timedDB),
		SessionPeriodStore: sessionPeriodStore.NewSQLiteStore(timedDB),
		OutboxStore:        outboxStorePkg.NewSQLiteStore(timedDB),
	}

	// Seed default director account if no accounts exist
	directorEmail := envOrDefault("ACADEMY_DIRECTOR_EMAIL", "director@academy.example")
	directorPassword := envOrDefault("ACADEMY_DIRECTOR_PASSWORD", "change me before class")
	seedDeps := orchestrators.CreateAccountDeps{AccountStore: acctStore}
	if err := orchestrators.ExecuteSeedDirector(context.Background(), seedDeps, directorEmail, directorPassword); err != nil {
		log.Fatalf("failed to seed director: %v", err)
	}

	// Optional synthetic demo data for development environments
	if os.Getenv("ACADEMY_SEED_SYNTHETIC") == "1" {
		err := orchestrators.ExecuteSeedSynthetic(context.Background(), orchestrators.SyntheticSeedDeps{
			AccountStore: acctStore,
			StudentStore: stores.StudentStore,
			CellStore:    attStore,
			ConfigStore:  stores.ConfigStore,
			HolidayStore: stores.HolidayStore,
		})
		if err != nil {
			log.Fatalf("failed to seed synthetic data: %v", err)
		}
	}

	// Configure email sender
	resendKey := os.Getenv("ACADEMY_RESEND_KEY")
	emailFrom := envOrDefault("ACADEMY_RESEND_FROM", "Academy Office <noreply@academy.example>")
	emailReply := envOrDefault("ACADEMY_REPLY_TO", "office@academy.example")
	var sender emailPkg.Sender
	if resendKey != "" {
		sender = emailPkg.NewResendSender(resendKey, emailFrom)
		log.Println("Email sender configured (Resend)")
	} else {
		sender = emailPkg.NewNoopSender()
		if os.Getenv("ACADEMY_ENV") == "production" {
			log.Println("WARNING: ACADEMY_RESEND_KEY is not set — email delivery is DISABLED in production")
		} else {
			log.Println("Email sender configured (noop — set ACADEMY_RESEND_KEY for real delivery)")
		}
	}
	web.SetEmailSender(sender, emailFrom, emailReply)

	// Start outbox background worker: roster mirror replays and
	// settlement notification emails, with retry backoff
	outboxStopCh := make(chan struct{})
	notifier := emailPkg.NewNotifier(sender, emailFrom)
	notifier.ReplyTo = emailReply
	executors := map[string]orchestrators.ActionExecutor{
		outbox.ActionTypeRosterMirror: &orchestrators.RosterMirrorExecutor{Sink: attStore},
		outbox.ActionTypeEmail:        &orchestrators.EmailExecutor{Sender: notifier},
	}
	outboxProcessor := orchestrators.NewOutboxProcessor(stores.OutboxStore, executors)
	orchestrators.StartBackgroundWorker(outboxProcessor, 1*time.Minute, outboxStopCh)
	defer close(outboxStopCh)

	// Create HTTP handler with middleware (pass collector for timing + dashboard)
	mux := web.NewMux("static", stores, collector)

	// Start server
	addr := envOrDefault("ACADEMY_ADDR", ":8080")
	log.Printf("Academy %s starting on %s (env=%s, schema=%d)", version, addr, envOrDefault("ACADEMY_ENV", "development"), storage.LatestSchemaVersion())

	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
