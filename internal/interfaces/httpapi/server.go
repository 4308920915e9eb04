package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"time"

	"confirmtx/internal/application"
	"confirmtx/internal/config"
	"confirmtx/internal/domain"
)

type StateStore interface {
	application.PendingStateSource
	Ping(ctx context.Context) error
}

type RPCStatus interface {
	LatestBlockNumber(ctx context.Context) (uint64, error)
}

type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

type Server struct {
	cfg       config.Config
	store     StateStore
	rpc       RPCStatus
	metrics   *Metrics
	buildInfo BuildInfo
}

func NewServer(cfg config.Config, store StateStore, rpc RPCStatus, metrics *Metrics, buildInfo BuildInfo) (*Server, error) {
	if store == nil || rpc == nil {
		return nil, errors.New("http server dependencies must not be nil")
	}
	if metrics == nil {
		metrics = NewMetrics()
	}
	return &Server{cfg: cfg, store: store, rpc: rpc, metrics: metrics, buildInfo: buildInfo}, nil
}

func (s *Server) MetricsObserver() *Metrics {
	return s.metrics
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /confirm", s.handleConfirm)
	mux.HandleFunc("GET /queue", s.handleQueue)
	mux.HandleFunc("GET /affordability/{id}", s.handleAffordability)
	mux.HandleFunc("GET /state", s.handleState)
	mux.HandleFunc("GET /metrics", s.handleMetrics)
	mux.HandleFunc("GET /version", s.handleVersion)
	return mux
}

func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.store.Ping(ctx); err != nil {
		respondError(w, http.StatusServiceUnavailable, "db not ready")
		return
	}
	if _, err := s.rpc.LatestBlockNumber(ctx); err != nil {
		respondError(w, http.StatusServiceUnavailable, "rpc not ready")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleConfirm renders the confirmation screen for one queue position.
// Out-of-range and negative indexes clamp to the first item.
func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	input, err := s.parseViewInput(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	state, err := s.store.PendingState(r.Context())
	if err != nil {
		slog.Error("load pending state", "err", err)
		respondError(w, http.StatusInternalServerError, "state read failed")
		return
	}
	view, ok, err := application.BuildView(state, input)
	if err != nil {
		slog.Error("build confirm view", "network", input.Network, "err", err)
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !ok {
		s.metrics.OnEmptyQueue()
		w.WriteHeader(http.StatusNoContent)
		return
	}
	s.metrics.OnViewServed(view)
	respondJSON(w, http.StatusOK, view)
}

func (s *Server) handleQueue(w http.ResponseWriter, r *http.Request) {
	network := s.networkParam(r)
	state, err := s.store.PendingState(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "state read failed")
		return
	}
	queue := application.BuildQueue(state.Transactions, state.Messages, network)
	respondJSON(w, http.StatusOK, map[string]any{
		"network": network,
		"total":   queue.Len(),
		"items":   application.SummarizeQueue(queue),
	})
}

func (s *Server) handleAffordability(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	state, err := s.store.PendingState(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "state read failed")
		return
	}
	tx, ok := application.FindTransaction(state, id)
	if !ok {
		respondError(w, http.StatusNotFound, fmt.Sprintf("transaction %s not found", id))
		return
	}
	selected := s.selectedParam(r)
	shortfall, err := application.Shortfall(tx, state.AccountsFor(tx.Network), selected)
	if err != nil {
		if errors.Is(err, application.ErrMalformedHex) {
			respondError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"id":           tx.ID,
		"network":      tx.Network,
		"address":      application.PayingAddress(tx, selected),
		"unaffordable": shortfall.Sign() > 0,
		"shortfall":    application.FormatEther(shortfall),
	})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	state, err := s.store.PendingState(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "state read failed")
		return
	}
	perNetwork := make(map[domain.NetworkID]int)
	for _, tx := range state.Transactions {
		perNetwork[tx.Network]++
	}
	for _, msg := range state.Messages {
		perNetwork[msg.Network]++
	}
	accounts := 0
	for _, byAddress := range state.Accounts {
		accounts += len(byAddress)
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"transactions": len(state.Transactions),
		"messages":     len(state.Messages),
		"accounts":     accounts,
		"per_network":  perNetwork,
		"config": map[string]any{
			"network":          s.cfg.Network,
			"networks":         s.cfg.Networks,
			"db_driver":        s.cfg.DBDriver,
			"http_addr":        s.cfg.HTTPAddr,
			"selected_address": s.cfg.SelectedAddress,
			"poll_interval":    s.cfg.PollInterval.String(),
		},
	})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	snap := s.metrics.Snapshot()

	fmt.Fprintf(w, "confirmtx_uptime_seconds %.0f\n", time.Since(snap.StartTime).Seconds())
	fmt.Fprintf(w, "confirmtx_kafka_messages_total %d\n", snap.KafkaMessages)
	fmt.Fprintf(w, "confirmtx_kafka_decode_errors_total %d\n", snap.KafkaDecodeErrs)
	fmt.Fprintf(w, "confirmtx_kafka_apply_errors_total %d\n", snap.KafkaApplyErrs)
	fmt.Fprintf(w, "confirmtx_kafka_fetch_errors_total %d\n", snap.KafkaFetchErrs)
	fmt.Fprintf(w, "confirmtx_kafka_last_offset %d\n", snap.KafkaLastOffset)
	fmt.Fprintf(w, "confirmtx_kafka_last_lag_seconds %.3f\n", snap.KafkaLastLag.Seconds())
	fmt.Fprintf(w, "confirmtx_kafka_max_lag_seconds %.3f\n", snap.KafkaMaxLag.Seconds())
	topics := make([]string, 0, len(snap.KafkaTopicCount))
	for topic := range snap.KafkaTopicCount {
		topics = append(topics, topic)
	}
	sort.Strings(topics)
	for _, topic := range topics {
		fmt.Fprintf(w, "confirmtx_kafka_topic_messages_total{topic=%q} %d\n", topic, snap.KafkaTopicCount[topic])
	}
	fmt.Fprintf(w, "confirmtx_batches_flushed_total %d\n", snap.BatchesFlushed)
	fmt.Fprintf(w, "confirmtx_last_batch_size %d\n", snap.LastBatchSize)
	fmt.Fprintf(w, "confirmtx_views_served_total %d\n", snap.ViewsServed)
	fmt.Fprintf(w, "confirmtx_views_insufficient_total %d\n", snap.ViewsInsufficient)
	fmt.Fprintf(w, "confirmtx_views_unknown_total %d\n", snap.ViewsUnknown)
	fmt.Fprintf(w, "confirmtx_queue_length %d\n", snap.LastQueueLength)
	fmt.Fprintf(w, "confirmtx_refreshes_total %d\n", snap.Refreshes)
	fmt.Fprintf(w, "confirmtx_balances_checked_total %d\n", snap.BalancesChecked)
	fmt.Fprintf(w, "confirmtx_balances_changed_total %d\n", snap.BalancesChanged)
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.buildInfo)
}

func (s *Server) parseViewInput(r *http.Request) (application.ViewInput, error) {
	input := application.ViewInput{
		Network:         s.networkParam(r),
		SelectedAddress: s.selectedParam(r),
		Warning:         r.URL.Query().Get("warning"),
	}
	if raw := r.URL.Query().Get("index"); raw != "" {
		index, err := strconv.Atoi(raw)
		if err != nil {
			return application.ViewInput{}, errors.New("invalid index")
		}
		input.Index = &index
	}
	return input, nil
}

func (s *Server) networkParam(r *http.Request) domain.NetworkID {
	if raw := r.URL.Query().Get("network"); raw != "" {
		return domain.NetworkID(raw)
	}
	return domain.NetworkID(s.cfg.Network)
}

func (s *Server) selectedParam(r *http.Request) string {
	if raw := r.URL.Query().Get("selected"); raw != "" {
		return raw
	}
	return s.cfg.SelectedAddress
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
