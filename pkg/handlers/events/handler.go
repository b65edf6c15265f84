package events

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/de-tools/compliance-engine/pkg/adapters"
	"github.com/de-tools/compliance-engine/pkg/models/api"
	"github.com/de-tools/compliance-engine/pkg/models/store"
)

const defaultLimit = 100

type EventQuery interface {
	List(ctx context.Context, filter store.RecordFilter) ([]store.ComplianceRecord, error)
	Stats(ctx context.Context, filter store.RecordFilter) (*store.RecordStats, error)
}

type AuditQuery interface {
	ListRuns(ctx context.Context, accounts []string, limit int) ([]store.AuditRun, error)
}

type Handler struct {
	events EventQuery
	audits AuditQuery
}

func NewHandler(events EventQuery, audits AuditQuery) *Handler {
	return &Handler{events: events, audits: audits}
}

// ListEvents serves the locally recorded stream records. Supported query
// parameters: rule, account, compliance_type, since (RFC 3339) and limit.
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := zerolog.Ctx(ctx)

	filter, err := parseFilter(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	records, err := h.events.List(ctx, filter)
	if err != nil {
		logger.Error().Err(err).Msg("failed to list compliance events")
		http.Error(w, "failed to list compliance events", http.StatusInternalServerError)
		return
	}
	response := make([]api.ComplianceEvent, 0, len(records))
	for _, rec := range records {
		response = append(response, adapters.MapStoreRecordToApi(rec))
	}
	writeJSON(w, logger, response)
}

func (h *Handler) EventStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := zerolog.Ctx(ctx)

	filter, err := parseFilter(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	stats, err := h.events.Stats(ctx, filter)
	if err != nil {
		logger.Error().Err(err).Msg("failed to compute compliance event stats")
		http.Error(w, "failed to compute compliance event stats", http.StatusInternalServerError)
		return
	}
	writeJSON(w, logger, adapters.MapRecordStatsStoreToApi(*stats))
}

// ListAudits serves recorded drift audit runs, optionally narrowed with a
// comma separated account list.
func (h *Handler) ListAudits(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := zerolog.Ctx(ctx)

	limit, err := parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var accounts []string
	if raw := r.URL.Query().Get("accounts"); raw != "" {
		accounts = strings.Split(raw, ",")
	}

	runs, err := h.audits.ListRuns(ctx, accounts, limit)
	if err != nil {
		logger.Error().Err(err).Msg("failed to list audit runs")
		http.Error(w, "failed to list audit runs", http.StatusInternalServerError)
		return
	}
	response := make([]api.AuditRun, 0, len(runs))
	for _, run := range runs {
		response = append(response, adapters.MapAuditRunDomainToApi(adapters.MapStoreAuditRunToDomain(run)))
	}
	writeJSON(w, logger, response)
}

func parseFilter(r *http.Request) (store.RecordFilter, error) {
	q := r.URL.Query()
	limit, err := parseLimit(q.Get("limit"))
	if err != nil {
		return store.RecordFilter{}, err
	}
	filter := store.RecordFilter{
		RuleName:       q.Get("rule"),
		AccountID:      q.Get("account"),
		ComplianceType: q.Get("compliance_type"),
		Limit:          limit,
	}
	if since := q.Get("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			return store.RecordFilter{}, err
		}
		filter.Since = &t
	}
	return filter, nil
}

func parseLimit(raw string) (int, error) {
	if raw == "" {
		return defaultLimit, nil
	}
	return strconv.Atoi(raw)
}

func writeJSON(w http.ResponseWriter, logger *zerolog.Logger, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error().Err(err).Msg("failed to encode response")
	}
}
