package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"github.com/Legit-prep/live-quiz-socket/internal/app"
	"github.com/Legit-prep/live-quiz-socket/internal/domain"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
)

// NewRouter builds the HTTP surface: the WebSocket endpoint plus health,
// metrics and report export, wrapped in CORS for the allowed origins.
func NewRouter(service *app.QuizService, hub *Hub, allowedOrigins []string) http.Handler {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	wsHandler := NewWSHandler(service, hub, originChecker(allowedOrigins))

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /reports/{pin}", reportHandler(service))

	c := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
	})
	return c.Handler(mux)
}

func reportHandler(service *app.QuizService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report, err := service.Report(r.Context(), r.PathValue("pin"))
		if errors.Is(err, domain.ErrReportNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		if err != nil {
			log.Error().Err(err).Str("pin", r.PathValue("pin")).Msg("load report failed")
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(report)
	}
}

// originChecker mirrors the CORS policy for WebSocket upgrades. Requests
// without an Origin header (non-browser clients) are allowed.
func originChecker(allowed []string) func(r *http.Request) bool {
	hosts := make(map[string]bool, len(allowed))
	for _, origin := range allowed {
		if origin == "*" {
			return func(r *http.Request) bool { return true }
		}
		hosts[origin] = true
		if parsed, err := url.Parse(origin); err == nil && parsed.Host != "" {
			hosts[parsed.Scheme+"://"+parsed.Host] = true
		}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || hosts[origin]
	}
}
