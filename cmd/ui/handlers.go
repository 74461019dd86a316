package main

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"cryptocom-momo-bot-go/internal/config"
	"cryptocom-momo-bot-go/internal/database"
	"cryptocom-momo-bot-go/internal/journal"
	"cryptocom-momo-bot-go/internal/models"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

const (
	defaultTradeLimit = 100
	maxTradeLimit     = 1000
)

// TradeReader is the read side of the trade store.
type TradeReader interface {
	Trades(ctx context.Context, limit int) ([]models.TradeRecord, error)
	Statistics(ctx context.Context, now time.Time) (database.Statistics, error)
}

// APIHandler holds dependencies for the API endpoints.
type APIHandler struct {
	log        *zap.Logger
	store      TradeReader
	files      config.Files
	configPath string
	now        func() time.Time
}

// NewAPIHandler creates a new APIHandler.
func NewAPIHandler(log *zap.Logger, store TradeReader, files config.Files, configPath string) *APIHandler {
	return &APIHandler{log: log, store: store, files: files, configPath: configPath, now: time.Now}
}

// Routes registers the dashboard API.
func (h *APIHandler) Routes(r *mux.Router) {
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/trades", h.TradesHandler).Methods(http.MethodGet)
	api.HandleFunc("/statistics", h.StatisticsHandler).Methods(http.MethodGet)
	api.HandleFunc("/live", h.LiveHandler).Methods(http.MethodGet)
	api.HandleFunc("/sentiment", h.SentimentHandler).Methods(http.MethodGet)
	api.HandleFunc("/config", h.GetConfigHandler).Methods(http.MethodGet)
	api.HandleFunc("/config", h.PutConfigHandler).Methods(http.MethodPut)
}

// TradesHandler returns the most recent trades, newest first.
func (h *APIHandler) TradesHandler(w http.ResponseWriter, r *http.Request) {
	limit := defaultTradeLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = min(n, maxTradeLimit)
	}

	trades, err := h.store.Trades(r.Context(), limit)
	if err != nil {
		h.log.Error("Failed to get trades from database", zap.Error(err))
		http.Error(w, "Failed to get trades", http.StatusInternalServerError)
		return
	}
	if trades == nil {
		trades = []models.TradeRecord{}
	}
	h.writeJSON(w, trades)
}

// StatisticsHandler returns win rate and realized pnl, all time and for the last 24 hours.
func (h *APIHandler) StatisticsHandler(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.Statistics(r.Context(), h.now())
	if err != nil {
		h.log.Error("Failed to calculate statistics", zap.Error(err))
		http.Error(w, "Failed to calculate statistics", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, stats)
}

// LiveHandler returns the live price snapshot written by the bot.
func (h *APIHandler) LiveHandler(w http.ResponseWriter, r *http.Request) {
	live := journal.LiveData{Prices: []float64{}}
	if !h.readFile(w, h.files.LiveData, &live) {
		return
	}
	h.writeJSON(w, live)
}

// SentimentHandler returns the last sentiment status written by the bot.
func (h *APIHandler) SentimentHandler(w http.ResponseWriter, r *http.Request) {
	status := models.SentimentSnapshot{Label: models.SentimentNeutral, Headlines: []string{}}
	if !h.readFile(w, h.files.AIStatus, &status) {
		return
	}
	h.writeJSON(w, status)
}

// GetConfigHandler returns the dashboard-editable settings.
func (h *APIHandler) GetConfigHandler(w http.ResponseWriter, r *http.Request) {
	cfg, err := config.LoadConfig(h.configPath)
	if err != nil {
		h.log.Error("Failed to load config", zap.Error(err))
		http.Error(w, "Failed to load config", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, cfg.Overrides())
}

// PutConfigHandler validates and persists dashboard-editable settings. They apply on the next bot start.
func (h *APIHandler) PutConfigHandler(w http.ResponseWriter, r *http.Request) {
	var overrides map[string]any
	if err := json.NewDecoder(r.Body).Decode(&overrides); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if len(overrides) == 0 {
		http.Error(w, "no settings given", http.StatusBadRequest)
		return
	}

	cfg, err := h.dryRun(overrides)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := config.SaveOverrides(h.configPath, overrides); err != nil {
		h.log.Error("Failed to save config", zap.Error(err))
		http.Error(w, "Failed to save config", http.StatusInternalServerError)
		return
	}
	h.log.Info("Config overrides saved", zap.Any("overrides", overrides))
	h.writeJSON(w, cfg.Overrides())
}

// dryRun applies overrides to a scratch copy of the config file and validates the result.
func (h *APIHandler) dryRun(overrides map[string]any) (*config.Config, error) {
	dir, err := os.MkdirTemp("", "momo-config-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	scratch := filepath.Join(dir, "config.json")
	if data, err := os.ReadFile(h.configPath); err == nil {
		if err := os.WriteFile(scratch, data, 0o600); err != nil {
			return nil, err
		}
	}
	if err := config.SaveOverrides(scratch, overrides); err != nil {
		return nil, err
	}
	return config.LoadConfig(scratch)
}

// readFile decodes path into v, leaving v untouched when the file does not exist yet.
func (h *APIHandler) readFile(w http.ResponseWriter, path string, v any) bool {
	err := journal.ReadJSON(path, v)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return true
	}
	h.log.Error("Failed to read status file", zap.String("path", path), zap.Error(err))
	http.Error(w, "Failed to read status file", http.StatusInternalServerError)
	return false
}

func (h *APIHandler) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("Failed to write response", zap.Error(err))
	}
}
