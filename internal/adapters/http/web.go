package web

import (
	"crypto/rand"
	"encoding/hex"
	"log"
	"net/http"
	"os"
	"time"

	"academy/internal/adapters/email"
	"academy/internal/adapters/http/middleware"
	"academy/internal/adapters/http/perf"
	accountStore "academy/internal/adapters/storage/account"
	attendanceStore "academy/internal/adapters/storage/attendance"
	compConfigStore "academy/internal/adapters/storage/compconfig"
	termStore "academy/internal/adapters/storage/enrollmentterm"
	holidayStore "academy/internal/adapters/storage/holiday"
	outboxStore "academy/internal/adapters/storage/outbox"
	sessionPeriodStore "academy/internal/adapters/storage/sessionperiod"
	settlementStore "academy/internal/adapters/storage/settlement"
	studentStore "academy/internal/adapters/storage/student"
	"academy/internal/application/orchestrators"
	"academy/internal/application/overlay"
	"academy/internal/domain/outbox"
)

// Stores holds all storage dependencies.
type Stores struct {
	AccountStore       accountStore.Store
	StudentStore       studentStore.Store
	AttendanceStore    attendanceStore.Store
	ConfigStore        compConfigStore.Store
	SettlementStore    settlementStore.Store
	TermStore          termStore.Store
	HolidayStore       holidayStore.Store
	SessionPeriodStore sessionPeriodStore.Store
	OutboxStore        outboxStore.Store
}

// loadCSRFKey reads the CSRF secret from ACADEMY_CSRF_KEY (hex-encoded, 32 bytes).
// In production, the key MUST be set. In development, a random key is generated per startup.
func loadCSRFKey() []byte {
	if keyHex := os.Getenv("ACADEMY_CSRF_KEY"); keyHex != "" {
		key, err := hex.DecodeString(keyHex)
		if err != nil || len(key) != 32 {
			log.Fatal("ACADEMY_CSRF_KEY must be 64 hex characters (32 bytes)")
		}
		return key
	}
	if os.Getenv("ACADEMY_ENV") == "production" {
		log.Fatal("ACADEMY_CSRF_KEY is required in production")
	}
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		log.Fatalf("failed to generate CSRF key: %v", err)
	}
	log.Println("WARNING: using random CSRF key (sessions won't survive restart). Set ACADEMY_CSRF_KEY for production.")
	return key
}

// Global stores instance (set by NewMux)
var stores *Stores

// Global session store instance
var sessions *middleware.SessionStore

// Global optimistic-update coordinator for grid edits (set by NewMux)
var gridOverlay *overlay.Coordinator

// RateLimitPerSecond controls the per-IP rate limit. Tests can increase this.
var RateLimitPerSecond = 10

// Global perf collector (set by NewMux)
var perfCollector *perf.Collector

// Global email sender instance (set by SetEmailSender)
var emailSender email.Sender

// Email configuration
var emailFromAddress string
var emailReplyTo string

// SetEmailSender sets the global email sender for the application.
func SetEmailSender(sender email.Sender, from, replyTo string) {
	emailSender = sender
	emailFromAddress = from
	emailReplyTo = replyTo
}

// outboxExecutors builds the executor set admin retries run with; it must
// match the background worker's wiring.
func outboxExecutors() map[string]orchestrators.ActionExecutor {
	executors := map[string]orchestrators.ActionExecutor{
		outbox.ActionTypeRosterMirror: &orchestrators.RosterMirrorExecutor{Sink: stores.AttendanceStore},
	}
	if emailSender != nil {
		notifier := email.NewNotifier(emailSender, emailFromAddress)
		notifier.ReplyTo = emailReplyTo
		executors[outbox.ActionTypeEmail] = &orchestrators.EmailExecutor{Sender: notifier}
	}
	return executors
}

// NewMux wires HTTP handlers for the app.
func NewMux(staticDir string, s *Stores, collector *perf.Collector) http.Handler {
	stores = s
	perfCollector = collector
	sessions = middleware.NewSessionStore()
	gridOverlay = overlay.New()
	middleware.SecureCookies = os.Getenv("ACADEMY_ENV") == "production"

	mux := http.NewServeMux()
	mux.Handle("/", http.FileServer(http.Dir(staticDir)))
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
