package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/skeesen8/blackjack/internal/auth"
	"github.com/skeesen8/blackjack/internal/engine"
	"github.com/skeesen8/blackjack/internal/history"
	"github.com/skeesen8/blackjack/internal/hub"
	"github.com/skeesen8/blackjack/internal/ws"
)

type Deps struct {
	Hub      *hub.Hub
	Rules    engine.Rules   // base for POST /tables
	History  history.Lister // nil disables the history endpoint
	Verifier *auth.Verifier
	WS       ws.Deps
	Log      *zap.Logger
}

func SetupRoutes(d Deps) http.Handler {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if d.Rules == (engine.Rules{}) {
		d.Rules = engine.DefaultRules()
	}
	if d.WS.Hub == nil {
		d.WS.Hub = d.Hub
	}
	if d.Verifier == nil {
		d.Verifier = auth.NewVerifier("")
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	// Sockets stay outside the request logger.
	r.Get("/ws/{tableID}", ws.Handler(d.WS))
	r.Get("/ws/chat/{tableID}", ws.ChatHandler(d.WS))

	r.Group(func(r chi.Router) {
		r.Use(requestLogger(d.Log))

		r.Get("/healthz", Healthz(d))

		r.Route("/tables", func(r chi.Router) {
			r.Post("/", CreateTable(d))
			r.Get("/", ListTables(d))
			r.Get("/stats", TableStats(d))
			r.Get("/{tableID}", GetTable(d))
			r.Get("/{tableID}/history", TableHistory(d))

			r.With(auth.Middleware(d.Verifier)).Post("/{tableID}/commands", Command(d))
		})
	})
	return r
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.Debug("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("elapsed", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}
