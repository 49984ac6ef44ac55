// Command mock-endpoints runs a local webhook receiver for manual testing.
package main

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/Priya8975/webhook-notifier/internal/envelope"
	"github.com/Priya8975/webhook-notifier/internal/signing"
)

const largeBodyChars = 8000

type receiver struct {
	secret   string
	slow     time.Duration
	requests atomic.Int64
	verified atomic.Int64
	rejected atomic.Int64
	logger   *slog.Logger
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	port := "9090"
	if p := os.Getenv("PORT"); p != "" {
		port = p
	}

	rc := &receiver{
		secret: os.Getenv("MOCK_WEBHOOK_SECRET"),
		slow:   3 * time.Second,
		logger: logger,
	}

	logger.Info("mock endpoint server starting",
		"port", port,
		"routes", []string{
			"POST /webhook/success -> 200",
			"POST /webhook/slow -> 200 after 3s",
			"POST /webhook/fail -> 500",
			"POST /webhook/large -> 200 with an 8000 char body",
			"POST /webhook/verify -> 200 when signed with MOCK_WEBHOOK_SECRET, else 401",
			"GET /stats",
		},
	)

	if err := http.ListenAndServe(":"+port, rc.routes()); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

func (rc *receiver) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /webhook/success", func(w http.ResponseWriter, r *http.Request) {
		rc.logRequest(r, http.StatusOK)
		writeJSON(w, http.StatusOK, map[string]string{"status": "received"})
	})

	mux.HandleFunc("POST /webhook/slow", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(rc.slow):
		case <-r.Context().Done():
			return
		}
		rc.logRequest(r, http.StatusOK)
		writeJSON(w, http.StatusOK, map[string]string{"status": "received (slow)"})
	})

	mux.HandleFunc("POST /webhook/fail", func(w http.ResponseWriter, r *http.Request) {
		rc.logRequest(r, http.StatusInternalServerError)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	})

	mux.HandleFunc("POST /webhook/large", func(w http.ResponseWriter, r *http.Request) {
		rc.logRequest(r, http.StatusOK)
		w.Header().Set("Content-Type", "text/plain")
		io.WriteString(w, strings.Repeat("x", largeBodyChars))
	})

	mux.HandleFunc("POST /webhook/verify", rc.verify)

	mux.HandleFunc("GET /stats", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]int64{
			"total_requests": rc.requests.Load(),
			"verified":       rc.verified.Load(),
			"rejected":       rc.rejected.Load(),
		})
	})

	return mux
}

// verify accepts the delivery only when its signature matches the shared
// secret. No secret configured means nothing verifies.
func (rc *receiver) verify(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unreadable body"})
		return
	}

	if err := signing.CheckHeader(rc.secret, body, r.Header.Get(envelope.HeaderSignature)); err != nil {
		rc.rejected.Add(1)
		rc.logRequest(r, http.StatusUnauthorized)
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": err.Error()})
		return
	}

	rc.verified.Add(1)
	rc.logRequest(r, http.StatusOK)
	writeJSON(w, http.StatusOK, map[string]string{"status": "verified"})
}

func (rc *receiver) logRequest(r *http.Request, status int) {
	count := rc.requests.Add(1)
	rc.logger.Info("webhook received",
		"request", count,
		"path", r.URL.Path,
		"status_code", status,
		"event", r.Header.Get(envelope.HeaderEvent),
		"idempotency_key", r.Header.Get(envelope.HeaderIdempotencyKey),
		"signature", truncate(r.Header.Get(envelope.HeaderSignature), 16),
	)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}
