package rules

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/de-tools/compliance-engine/pkg/adapters"
	"github.com/de-tools/compliance-engine/pkg/models/api"
	"github.com/de-tools/compliance-engine/pkg/models/domain"
	"github.com/de-tools/compliance-engine/pkg/services/evaluation"
)

// maxEventSize bounds a trigger event body.
const maxEventSize = 1 << 20

type Invoker interface {
	Invoke(ctx context.Context, ruleName string, event domain.TriggerEvent) (*evaluation.Response, error)
	Rules() []string
}

type Handler struct {
	invoker Invoker
}

func NewHandler(invoker Invoker) *Handler {
	return &Handler{invoker: invoker}
}

func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	logger := zerolog.Ctx(r.Context())

	names := h.invoker.Rules()
	response := make([]api.Rule, 0, len(names))
	for _, name := range names {
		response = append(response, api.Rule{Name: name})
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		logger.Error().Err(err).Msg("failed to encode rules")
	}
}

// Invoke evaluates the trigger event in the request body. Customer errors are
// answered with 422 and internal ones with 503, both carrying the error
// response.
func (h *Handler) Invoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := zerolog.Ctx(ctx)
	rule := chi.URLParam(r, "rule")

	var event domain.TriggerEvent
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxEventSize)).Decode(&event); err != nil {
		logger.Warn().Err(err).Str("rule", rule).Msg("failed to decode trigger event")
		http.Error(w, "invalid trigger event", http.StatusBadRequest)
		return
	}

	resp, err := h.invoker.Invoke(ctx, rule, event)
	if err != nil {
		if errors.Is(err, domain.ErrRuleNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		logger.Error().Err(err).Str("rule", rule).Msg("invocation failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	status := http.StatusOK
	if resp.Error != nil {
		status = http.StatusUnprocessableEntity
		if resp.Error.Retryable() {
			status = http.StatusServiceUnavailable
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	err = json.NewEncoder(w).Encode(api.InvocationResponse{
		InvocationId: resp.InvocationID,
		Evaluations:  adapters.MapVerdictsDomainToApi(resp.Verdicts),
		Retired:      resp.Retirements,
		Dropped:      resp.Dropped,
		TestMode:     resp.TestMode,
		Error:        adapters.MapErrorResponseDomainToApi(resp.Error),
	})
	if err != nil {
		logger.Error().Err(err).Str("rule", rule).Msg("failed to encode invocation response")
	}
}
