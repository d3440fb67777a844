package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/XavierBriggs/fortuna/services/livescore/internal/engine"
	"github.com/XavierBriggs/fortuna/services/livescore/internal/hub"
	"github.com/XavierBriggs/fortuna/services/livescore/internal/logging"
	"github.com/XavierBriggs/fortuna/services/livescore/pkg/models"
	"github.com/sirupsen/logrus"
)

// Maximum accepted admin request body
const maxBodyBytes = 1 << 20

// Error codes produced by the HTTP layer itself
const (
	errCodeReadOnly = "READ_ONLY_REPLICA"
	errCodeInternal = "INTERNAL"
)

// Reader serves full state snapshots
type Reader interface {
	Snapshot() *models.State
}

// Writer is the engine surface behind the admin routes
type Writer interface {
	CreateMatch(ctx context.Context, teamAID, teamBID string, overs int) (*models.Match, error)
	StartInnings(ctx context.Context, battingTeamID string) (*models.Match, error)
	RecordBall(ctx context.Context, in engine.BallInput) (*models.Match, *models.BallEvent, error)
	ResetMatch(ctx context.Context) (*models.Match, error)
	AddTeam(ctx context.Context, in engine.TeamInput) (models.Team, error)
	AddPlayer(ctx context.Context, in engine.PlayerInput) (models.Player, error)
}

// MetricsFunc reports one component's counters
type MetricsFunc func() map[string]interface{}

// Handler manages HTTP endpoints
type Handler struct {
	reader Reader
	writer Writer // nil on relay replicas
	hub    *hub.Hub

	// Lifetime of long-lived stream connections
	ctx context.Context

	metricsMu sync.RWMutex
	metrics   map[string]MetricsFunc

	log *logrus.Entry
}

// NewHandler creates a new handler instance. A nil writer makes every admin
// route answer 503.
func NewHandler(ctx context.Context, reader Reader, writer Writer, h *hub.Hub) *Handler {
	return &Handler{
		reader:  reader,
		writer:  writer,
		hub:     h,
		ctx:     ctx,
		metrics: make(map[string]MetricsFunc),
		log:     logging.NewLogger("http"),
	}
}

// RegisterMetrics adds a component's counters to the /metrics output
func (h *Handler) RegisterMetrics(name string, fn MetricsFunc) {
	h.metricsMu.Lock()
	defer h.metricsMu.Unlock()
	h.metrics[name] = fn
}

type createMatchRequest struct {
	TeamAID string   `json:"teamAId"`
	TeamBID string   `json:"teamBId"`
	Overs   looseInt `json:"overs"`
}

type startInningsRequest struct {
	BattingTeam string `json:"battingTeam"`
}

type addBallRequest struct {
	Runs     looseInt         `json:"runs"`
	IsWicket looseBool        `json:"isWicket"`
	Extra    models.ExtraType `json:"extra"`
}

// looseInt accepts a JSON number or a numeric string, as sent by form-style
// scorer clients. null and "" decode to zero.
type looseInt int

func (n *looseInt) UnmarshalJSON(data []byte) error {
	var i int
	if err := json.Unmarshal(data, &i); err == nil {
		*n = looseInt(i)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("expected a number, got %s", data)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		*n = 0
		return nil
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("expected a number, got %q", s)
	}
	*n = looseInt(i)
	return nil
}

// looseBool accepts a JSON boolean or a boolean string ("true", "1", ...).
// null and "" decode to false.
type looseBool bool

func (b *looseBool) UnmarshalJSON(data []byte) error {
	var v bool
	if err := json.Unmarshal(data, &v); err == nil {
		*b = looseBool(v)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("expected a boolean, got %s", data)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		*b = false
		return nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return fmt.Errorf("expected a boolean, got %q", s)
	}
	*b = looseBool(v)
	return nil
}

type addTeamRequest struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Short string `json:"short"`
	Logo  string `json:"logo"`
}

type addPlayerRequest struct {
	ID     string             `json:"id"`
	Name   string             `json:"name"`
	Role   string             `json:"role"`
	Jersey string             `json:"jersey"`
	TeamID string             `json:"teamId"`
	Photo  string             `json:"photo"`
	Stats  models.PlayerStats `json:"stats"`
}

// GetPublic returns the full state
func (h *Handler) GetPublic(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.reader.Snapshot())
}

// CreateMatch handles POST /api/admin/createMatch
func (h *Handler) CreateMatch(w http.ResponseWriter, r *http.Request) {
	var req createMatchRequest
	if !h.decode(w, r, &req) {
		return
	}

	match, err := h.writer.CreateMatch(r.Context(), req.TeamAID, req.TeamBID, int(req.Overs))
	if err != nil {
		h.respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "match": match})
}

// StartInnings handles POST /api/admin/startInnings
func (h *Handler) StartInnings(w http.ResponseWriter, r *http.Request) {
	var req startInningsRequest
	if !h.decode(w, r, &req) {
		return
	}

	match, err := h.writer.StartInnings(r.Context(), req.BattingTeam)
	if err != nil {
		h.respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "match": match})
}

// AddBall handles POST /api/admin/addBall
func (h *Handler) AddBall(w http.ResponseWriter, r *http.Request) {
	var req addBallRequest
	if !h.decode(w, r, &req) {
		return
	}

	match, ball, err := h.writer.RecordBall(r.Context(), engine.BallInput{
		Runs:     int(req.Runs),
		IsWicket: bool(req.IsWicket),
		Extra:    req.Extra,
	})
	if err != nil {
		h.respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "match": match, "lastBall": ball})
}

// ResetMatch handles POST /api/admin/resetMatch
func (h *Handler) ResetMatch(w http.ResponseWriter, r *http.Request) {
	match, err := h.writer.ResetMatch(r.Context())
	if err != nil {
		h.respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "match": match})
}

// AddTeam handles POST /api/admin/addTeam
func (h *Handler) AddTeam(w http.ResponseWriter, r *http.Request) {
	var req addTeamRequest
	if !h.decode(w, r, &req) {
		return
	}

	team, err := h.writer.AddTeam(r.Context(), engine.TeamInput{
		ID:    req.ID,
		Name:  req.Name,
		Short: req.Short,
		Logo:  req.Logo,
	})
	if err != nil {
		h.respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "team": team})
}

// AddPlayer handles POST /api/admin/addPlayer
func (h *Handler) AddPlayer(w http.ResponseWriter, r *http.Request) {
	var req addPlayerRequest
	if !h.decode(w, r, &req) {
		return
	}

	player, err := h.writer.AddPlayer(r.Context(), engine.PlayerInput{
		ID:     req.ID,
		Name:   req.Name,
		Role:   req.Role,
		Jersey: req.Jersey,
		TeamID: req.TeamID,
		Photo:  req.Photo,
		Stats:  req.Stats,
	})
	if err != nil {
		h.respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "player": player})
}

// HandleHealth returns service health
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	mode := "primary"
	if h.writer == nil {
		mode = "relay"
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":             "healthy",
		"service":            "livescore",
		"mode":               mode,
		"active_subscribers": h.hub.GetSubscriberCount(),
	})
}

// HandleMetrics returns hub metrics plus any registered component counters
func (h *Handler) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	metrics := h.hub.GetMetrics()

	h.metricsMu.RLock()
	for name, fn := range h.metrics {
		metrics[name] = fn()
	}
	h.metricsMu.RUnlock()

	respondJSON(w, http.StatusOK, metrics)
}

// requireWriter rejects admin requests on relay replicas
func (h *Handler) requireWriter(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.writer == nil {
			respondError(w, http.StatusServiceUnavailable, errCodeReadOnly, "this instance is a read-only relay")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// decode reads a JSON body into dst. An empty body leaves dst zeroed.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if r.Body == nil {
		return true
	}

	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}

	respondError(w, http.StatusBadRequest, string(engine.ErrCodeInvalidInput), "invalid request body: "+err.Error())
	return false
}

// respondEngineError maps engine errors onto HTTP status codes
func (h *Handler) respondEngineError(w http.ResponseWriter, err error) {
	var engineErr *engine.Error
	if errors.As(err, &engineErr) {
		respondError(w, http.StatusBadRequest, string(engineErr.Code), engineErr.Message)
		return
	}

	h.log.WithError(err).Error("request failed")
	respondError(w, http.StatusInternalServerError, errCodeInternal, "internal error")
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		logging.NewLogger("http").WithError(err).Warn("error encoding response")
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, models.ErrorMessage{
		Code:    code,
		Message: message,
	})
}
