// Package statusserver exposes the bot's state over HTTP: health, the current
// observation, the trade journal, Prometheus metrics and a websocket stream of
// observations.
package statusserver

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/originbots/tradebot/journal"
	"github.com/originbots/tradebot/obsstore"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// JournalReader is the read side of the trade journal.
type JournalReader interface {
	Summary(ctx context.Context) (map[string]int, error)
	Recent(ctx context.Context, n int) ([]journal.Entry, error)
}

// Options configures the handler. Journal is optional.
type Options struct {
	Store   obsstore.Reader
	Journal JournalReader
	// StreamInterval is how often the websocket stream polls the store.
	StreamInterval time.Duration
	// OriginPatterns restricts websocket origins; empty allows same-origin only.
	OriginPatterns []string
}

type server struct {
	opts Options
}

// New builds the router.
func New(opts Options) http.Handler {
	if opts.StreamInterval <= 0 {
		opts.StreamInterval = time.Second
	}
	s := &server{opts: opts}

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(requestLogger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))

	r.Get("/observation", s.observation)
	r.Get("/journal", s.journal)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/ws/observations", s.stream)
	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("elapsed", time.Since(start)).
			Str("request_id", chiMiddleware.GetReqID(r.Context())).
			Msg("[StatusServer] request")
	})
}

func (s *server) observation(w http.ResponseWriter, r *http.Request) {
	obs, err := s.opts.Store.Load(r.Context())
	if errors.Is(err, obsstore.ErrNoObservation) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, obs)
}

type journalEntry struct {
	ID         string    `json:"id"`
	Proposal   string    `json:"proposal"`
	Outcome    string    `json:"outcome"`
	State      string    `json:"state"`
	Reason     string    `json:"reason,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

type journalResponse struct {
	TradesCompleted int            `json:"trades_completed"`
	Outcomes        map[string]int `json:"outcomes"`
	Recent          []journalEntry `json:"recent"`
}

func (s *server) journal(w http.ResponseWriter, r *http.Request) {
	if s.opts.Journal == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "journal disabled"})
		return
	}
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 500 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be 1..500"})
			return
		}
		limit = n
	}

	sum, err := s.opts.Journal.Summary(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	recent, err := s.opts.Journal.Recent(r.Context(), limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	resp := journalResponse{TradesCompleted: sum["completed"], Outcomes: sum, Recent: make([]journalEntry, 0, len(recent))}
	for _, e := range recent {
		resp.Recent = append(resp.Recent, journalEntry{
			ID:         e.ID.String(),
			Proposal:   strconv.Itoa(e.OfferedQty) + " " + e.Offered + " for " + strconv.Itoa(e.WantedQty) + " " + e.Wanted,
			Outcome:    e.Outcome,
			State:      e.State,
			Reason:     e.Reason,
			StartedAt:  e.StartedAt.UTC(),
			FinishedAt: e.FinishedAt.UTC(),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *server) stream(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: s.opts.OriginPatterns})
	if err != nil {
		log.Warn().Err(err).Msg("[StatusServer] websocket accept failed")
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "stream ended"); closeErr != nil {
			log.Debug().Err(closeErr).Msg("[StatusServer] websocket close")
		}
	}()

	// CloseRead cancels ctx when the client goes away.
	ctx := ws.CloseRead(r.Context())
	for obs := range obsstore.Subscribe(ctx, s.opts.Store, s.opts.StreamInterval) {
		data, err := sonic.Marshal(obs)
		if err != nil {
			log.Warn().Err(err).Msg("[StatusServer] encode observation")
			return
		}
		wctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = ws.Write(wctx, websocket.MessageText, data)
		cancel()
		if err != nil {
			log.Debug().Err(err).Msg("[StatusServer] websocket write failed")
			return
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := sonic.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// Serve runs an http.Server on addr until ctx ends, then shuts it down.
func Serve(ctx context.Context, addr string, h http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("[StatusServer] listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}
