package mirrors

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/de-tools/compliance-engine/pkg/adapters"
	"github.com/de-tools/compliance-engine/pkg/models/api"
	"github.com/de-tools/compliance-engine/pkg/models/domain"
	"github.com/de-tools/compliance-engine/pkg/services/mirror"
)

type Handler struct {
	controller mirror.Controller
}

func NewHandler(controller mirror.Controller) *Handler {
	return &Handler{controller: controller}
}

func (h *Handler) ListMirrors(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := zerolog.Ctx(ctx)

	mirrors, err := h.controller.List(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("failed to list mirrors")
		http.Error(w, "failed to list mirrors", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(adapters.MapMirrorsStoreToApi(mirrors)); err != nil {
		logger.Error().Err(err).Msg("failed to encode mirrors")
	}
}

// PutMirror starts mirroring the account in the path, replacing any running
// mirror of the same account.
func (h *Handler) PutMirror(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := zerolog.Ctx(ctx)

	var req api.MirrorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	target := mirror.Target{
		AccountID: chi.URLParam(r, "account"),
		RoleARN:   req.RoleArn,
		Region:    req.Region,
	}

	err := h.controller.Start(ctx, target)
	switch {
	case errors.Is(err, domain.ErrInvalidParameter):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case err != nil:
		logger.Error().Err(err).Str("account", target.AccountID).Msg("failed to start mirror")
		http.Error(w, "failed to start mirror", http.StatusInternalServerError)
	default:
		w.WriteHeader(http.StatusAccepted)
	}
}

func (h *Handler) DeleteMirror(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := zerolog.Ctx(ctx)
	account := chi.URLParam(r, "account")

	err := h.controller.Cancel(ctx, account)
	switch {
	case errors.Is(err, mirror.ErrMirrorNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case err != nil:
		logger.Error().Err(err).Str("account", account).Msg("failed to cancel mirror")
		http.Error(w, "failed to cancel mirror", http.StatusInternalServerError)
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}
