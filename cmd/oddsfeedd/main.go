// oddsfeedd aggregates sports match predictions from multiple public
// sources, serves the merged consensus view over HTTP and WebSocket, and
// keeps a durable log of predictions and their eventual accuracy.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/magajico/oddsfeed/pkg/cache"
	"github.com/magajico/oddsfeed/pkg/classifier"
	"github.com/magajico/oddsfeed/pkg/config"
	"github.com/magajico/oddsfeed/pkg/consensus"
	"github.com/magajico/oddsfeed/pkg/docstore"
	"github.com/magajico/oddsfeed/pkg/feed"
	"github.com/magajico/oddsfeed/pkg/logging"
	"github.com/magajico/oddsfeed/pkg/metrics"
	"github.com/magajico/oddsfeed/pkg/resultslog"
	"github.com/magajico/oddsfeed/pkg/source"
	"github.com/magajico/oddsfeed/pkg/stream"
)

var (
	configPath = flag.String("config", "", "Path to YAML config (or ODDSFEED_CONFIG env)")
	listenAddr = flag.String("http", "", "HTTP listen address (overrides config)")
	env        = flag.String("env", "local", "Environment name: local, dev, prod")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		os.Stderr.WriteString("oddsfeedd: " + err.Error() + "\n")
		os.Exit(1)
	}
	if *listenAddr != "" {
		cfg.Server.ListenAddr = *listenAddr
	}

	logger, err := logging.New("oddsfeedd", *env)
	if err != nil {
		os.Stderr.WriteString("oddsfeedd: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc, err := newService(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("startup failed", zap.Error(err))
	}

	stop := make(chan struct{})
	go svc.hub.Run(stop)

	server := &http.Server{
		Addr:         cfg.Server.ListenAddr,
		Handler:      svc.routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.Server.ListenAddr))
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", zap.Error(err))
			cancel()
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown incomplete", zap.Error(err))
	}
	close(stop)
}

type service struct {
	cfg        config.Config
	logger     *zap.Logger
	metrics    *metrics.Set
	store      *cache.Store
	aggregator *consensus.Aggregator
	adapters   []source.Adapter
	results    *resultslog.Log
	hub        *stream.Hub
}

func newService(ctx context.Context, cfg config.Config, logger *zap.Logger) (*service, error) {
	m := metrics.New()
	store := cache.New()

	svc := &service{
		cfg:     cfg,
		logger:  logger,
		metrics: m,
		store:   store,
		aggregator: consensus.New(store,
			consensus.WithLogger(logger),
			consensus.WithMetrics(m)),
		hub: stream.NewHub(logger),
	}
	svc.adapters = buildAdapters(cfg.Adapters)
	if len(svc.adapters) == 0 {
		logger.Warn("no source adapters enabled")
	}

	logOpts := []resultslog.Option{
		resultslog.WithLogger(logger),
		resultslog.WithMetrics(m),
	}
	var secondary docstore.Store
	if addr := cfg.ResultsLog.RedisAddr; addr != "" {
		redis, err := docstore.NewRedis(ctx, addr)
		if err != nil {
			// Secondary store is a convenience; run without it.
			logger.Warn("secondary store unreachable, continuing without it",
				zap.String("addr", addr), zap.Error(err))
		} else {
			secondary = redis
			logOpts = append(logOpts, resultslog.WithSecondary(redis))
		}
	}

	results, err := resultslog.Open(cfg.ResultsLog.Path, logOpts...)
	if err != nil {
		return nil, err
	}
	svc.results = results

	if secondary != nil {
		if err := results.SyncSecondary(ctx); err != nil {
			logger.Warn("secondary store sync incomplete", zap.Error(err))
		}
	}
	return svc, nil
}

func buildAdapters(cfg config.AdaptersConfig) []source.Adapter {
	var clientOpts []source.ClientOption
	if cfg.RateLimit > 0 {
		clientOpts = append(clientOpts, source.WithRateLimit(cfg.RateLimit, 2))
	}
	client := source.NewClient(clientOpts...)

	var adapters []source.Adapter
	if cfg.MyBets.Enabled {
		opts := []source.MyBetsOption{}
		if cfg.MyBets.BaseURL != "" {
			opts = append(opts, source.WithMyBetsBaseURL(cfg.MyBets.BaseURL))
		}
		if cfg.MyBets.MinConfidence > 0 {
			opts = append(opts, source.WithMyBetsMinConfidence(cfg.MyBets.MinConfidence))
		}
		adapters = append(adapters, source.NewMyBets(client, opts...))
	}
	if cfg.Statarea.Enabled {
		adapters = append(adapters, source.NewStatarea(client, cfg.Statarea.BaseURL))
	}
	if cfg.ESPN.Enabled {
		adapters = append(adapters, source.NewESPN(client, cfg.ESPN.BaseURL, classifier.Baseline{}))
	}

	for i, a := range adapters {
		adapters[i] = source.WithTimeout(a, cfg.FetchTimeout)
	}
	return adapters
}

func (s *service) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	mux.HandleFunc("/api/predictions", s.handlePredictions)
	mux.HandleFunc("/api/predictions/summary", s.handleSummary)
	mux.HandleFunc("/api/accuracy/stats", s.handleAccuracyStats)
	mux.HandleFunc("/api/accuracy/results", s.handleLogResult)
	mux.HandleFunc("/api/training/data", s.handleTrainingData)
	mux.HandleFunc("/api/logs/recent", s.handleRecentLogs)

	mux.Handle("/metrics", s.metrics.Handler())
	mux.HandleFunc("/ws", s.hub.ServeWS)

	return mux
}

// aggregate runs one pass for the request's query and filter.
func (s *service) aggregate(r *http.Request) (*consensus.Result, error) {
	q := feed.Query{
		Sport:  r.URL.Query().Get("sport"),
		Date:   r.URL.Query().Get("date"),
		League: r.URL.Query().Get("league"),
	}
	if q.Sport == "" {
		q.Sport = "soccer"
	}

	f := consensus.Filter{
		Prediction: r.URL.Query().Get("prediction"),
		League:     r.URL.Query().Get("league"),
	}
	if v := r.URL.Query().Get("min_confidence"); v != "" {
		f.MinConfidence, _ = strconv.Atoi(v)
	}
	if v := r.URL.Query().Get("max_odds"); v != "" {
		f.MaxOdds, _ = strconv.ParseFloat(v, 64)
	}

	return s.aggregator.Aggregate(r.Context(), s.adapters, q, f)
}

func (s *service) handlePredictions(w http.ResponseWriter, r *http.Request) {
	result, err := s.aggregate(r)
	if err != nil {
		status := http.StatusBadGateway
		var allFailed *consensus.AllSourcesFailedError
		if !errors.As(err, &allFailed) {
			status = http.StatusBadRequest
		}
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}

	s.hub.BroadcastConsensus(result)
	s.logConsensus(r.Context(), result)
	writeJSON(w, http.StatusOK, result)
}

func (s *service) handleSummary(w http.ResponseWriter, r *http.Request) {
	result, err := s.aggregate(r)
	if err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, consensus.Summarize(result.Matches))
}

func (s *service) handleAccuracyStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.results.GetAccuracyStats())
}

// handleLogResult records the actual outcome of a logged prediction.
func (s *service) handleLogResult(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "POST required"})
		return
	}

	var req struct {
		PredictionID string `json:"prediction_id"`
		Actual       string `json:"actual"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.PredictionID == "" || req.Actual == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "prediction_id and actual are required"})
		return
	}

	record, err := s.results.LogResult(r.Context(), req.PredictionID, req.Actual)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}

	s.hub.BroadcastAccuracy(record)
	writeJSON(w, http.StatusOK, record)
}

func (s *service) handleTrainingData(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.results.GetTrainingData())
}

func (s *service) handleRecentLogs(w http.ResponseWriter, r *http.Request) {
	count := 50
	if v := r.URL.Query().Get("count"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			count = n
		}
	}
	typ := resultslog.EntryType(r.URL.Query().Get("type"))
	writeJSON(w, http.StatusOK, s.results.GetRecent(count, typ))
}

// logConsensus persists each merged match's consensus as one prediction
// observation.
func (s *service) logConsensus(ctx context.Context, result *consensus.Result) {
	for _, m := range result.Matches {
		rec := feed.Record{
			League:     m.League,
			HomeTeam:   m.HomeTeam,
			AwayTeam:   m.AwayTeam,
			GameTime:   m.GameTime,
			Prediction: m.Consensus.Prediction,
			Confidence: int(m.Consensus.AvgConfidence),
			Source:     "consensus",
		}
		rec.DeriveMissing()
		if _, err := s.results.LogPrediction(ctx, rec); err != nil {
			s.logger.Warn("failed to log prediction",
				zap.String("match", m.HomeTeam+" vs "+m.AwayTeam),
				zap.Error(err))
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
