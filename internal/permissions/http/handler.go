package permissionshttp

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/gatehouse-labs/gatehouse/internal/accounts"
	"github.com/gatehouse-labs/gatehouse/internal/identity"
	"github.com/gatehouse-labs/gatehouse/internal/permissions"
	"github.com/gatehouse-labs/gatehouse/internal/platform/httpx"
)

// AccountSource resolves target accounts for permission checks.
type AccountSource interface {
	FindByID(ctx context.Context, id int64) (accounts.Account, error)
}

// WarmupQueue schedules background cache warmups.
type WarmupQueue interface {
	EnqueueWarmup(ctx context.Context, scopes ...string) error
}

// Handler exposes permission calculation over HTTP.
type Handler struct {
	logger   *slog.Logger
	chain    *permissions.Chain
	source   AccountSource
	queue    WarmupQueue
	validate *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, chain *permissions.Chain, source AccountSource, queue WarmupQueue) *Handler {
	return &Handler{
		logger:   logger,
		chain:    chain,
		source:   source,
		queue:    queue,
		validate: validator.New(),
	}
}

// MountRoutes attaches permission routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/{scope}", h.effective)
	r.Post("/check", h.check)
}

// MountAdminRoutes attaches cache administration routes.
func (h *Handler) MountAdminRoutes(r chi.Router) {
	r.Post("/cache/warmup", h.warmup)
}

type itemResponse struct {
	Scope       string   `json:"scope"`
	Identifier  int64    `json:"identifier"`
	Permissions []string `json:"permissions"`
	IsAdmin     bool     `json:"is_admin"`
}

type effectiveResponse struct {
	Scope    string         `json:"scope"`
	Items    []itemResponse `json:"items"`
	CacheTag []string       `json:"cache_tags"`
	MaxAge   int            `json:"max_age"`
}

func (h *Handler) effective(w http.ResponseWriter, r *http.Request) {
	account, ok := identity.AccountFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "no authenticated account")
		return
	}
	scope := chi.URLParam(r, "scope")
	result, err := h.chain.CalculatePermissions(r.Context(), account, scope)
	if err != nil {
		h.respondCalcError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(scope, result))
}

type checkRequest struct {
	AccountID  int64  `json:"account_id" validate:"required,gt=0"`
	Scope      string `json:"scope" validate:"required"`
	Permission string `json:"permission" validate:"required"`
}

type checkResponse struct {
	Allowed bool `json:"allowed"`
}

func (h *Handler) check(w http.ResponseWriter, r *http.Request) {
	var req checkRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	account, err := h.source.FindByID(r.Context(), req.AccountID)
	if err != nil {
		if errors.Is(err, accounts.ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "unknown account")
			return
		}
		h.logger.Error("load account", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}

	result, err := h.chain.CalculatePermissions(r.Context(), account.Identity(), req.Scope)
	if err != nil {
		h.respondCalcError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, checkResponse{Allowed: result.HasPermission(req.Permission)})
}

type warmupRequest struct {
	Scopes []string `json:"scopes" validate:"required,min=1,dive,required"`
}

func (h *Handler) warmup(w http.ResponseWriter, r *http.Request) {
	if h.queue == nil {
		httpx.Problem(w, http.StatusServiceUnavailable, "Unavailable", "no warmup queue configured")
		return
	}
	var req warmupRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.queue.EnqueueWarmup(r.Context(), req.Scopes...); err != nil {
		h.logger.Error("enqueue warmup", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) respondCalcError(w http.ResponseWriter, err error) {
	var violation *permissions.ScopeViolationError
	if errors.As(err, &violation) {
		h.logger.Error("scope violation", slog.String("calculator", violation.Calculator), slog.String("scope", violation.Scope))
	} else {
		h.logger.Error("calculate permissions", slog.Any("error", err))
	}
	httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
}

func toResponse(scope string, result *permissions.CalculatedPermissions) effectiveResponse {
	resp := effectiveResponse{
		Scope:    scope,
		Items:    []itemResponse{},
		CacheTag: result.CacheTags(),
		MaxAge:   result.MaxAge(),
	}
	for _, item := range result.Items() {
		resp.Items = append(resp.Items, itemResponse{
			Scope:       item.Scope(),
			Identifier:  item.Identifier(),
			Permissions: item.Permissions(),
			IsAdmin:     item.IsAdmin(),
		})
	}
	return resp
}
