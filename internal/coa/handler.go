package coa

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/ledgerline/ledgerline/internal/platform/httpx"
)

type Handler struct {
	service  *Service
	logger   *slog.Logger
	validate *validator.Validate
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{service: service, logger: logger, validate: validator.New()}
}

// Routes mounts the chart-of-accounts endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/chart-of-accounts/bootstrap", h.Bootstrap)
	r.Route("/account-groups", func(r chi.Router) {
		r.Get("/", h.ListGroups)
		r.Get("/flat", h.FlattenGroups)
		r.Post("/", h.CreateGroup)
		r.Put("/{id}", h.UpdateGroup)
		r.Put("/{id}/nature", h.ChangeNature)
		r.Delete("/{id}", h.DeleteGroup)
	})
	r.Route("/ledger-accounts", func(r chi.Router) {
		r.Get("/", h.ListAccounts)
		r.Post("/", h.CreateAccount)
		r.Get("/{id}", h.GetAccount)
		r.Put("/{id}", h.UpdateAccount)
		r.Delete("/{id}", h.DeleteAccount)
	})
}

func (h *Handler) Bootstrap(w http.ResponseWriter, r *http.Request) {
	tenant, ok := httpx.Tenant(w, r)
	if !ok {
		return
	}
	if err := h.service.BootstrapDefaults(r.Context(), tenant); err != nil {
		h.fail(w, "bootstrap chart of accounts", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"status": "bootstrapped"})
}

func (h *Handler) ListGroups(w http.ResponseWriter, r *http.Request) {
	tenant, ok := httpx.Tenant(w, r)
	if !ok {
		return
	}
	groups, err := h.service.ListGroups(r.Context(), tenant)
	if err != nil {
		h.fail(w, "list groups", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"account_groups": groups})
}

func (h *Handler) FlattenGroups(w http.ResponseWriter, r *http.Request) {
	tenant, ok := httpx.Tenant(w, r)
	if !ok {
		return
	}
	flat, err := h.service.FlattenHierarchy(r.Context(), tenant)
	if err != nil {
		h.fail(w, "flatten groups", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"account_groups": flat})
}

func (h *Handler) CreateGroup(w http.ResponseWriter, r *http.Request) {
	tenant, ok := httpx.Tenant(w, r)
	if !ok {
		return
	}
	var req GroupRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	group, err := h.service.CreateGroup(r.Context(), tenant, CreateGroupInput{
		ParentID:           req.ParentID,
		Name:               req.Name,
		Nature:             Nature(req.Nature),
		AffectsGrossProfit: req.AffectsGrossProfit,
		Sequence:           req.Sequence,
	})
	if err != nil {
		h.fail(w, "create group", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, group)
}

func (h *Handler) UpdateGroup(w http.ResponseWriter, r *http.Request) {
	tenant, ok := httpx.Tenant(w, r)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	var req GroupRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	group, err := h.service.UpdateGroup(r.Context(), tenant, id, UpdateGroupInput{
		ParentID:           req.ParentID,
		Name:               req.Name,
		AffectsGrossProfit: req.AffectsGrossProfit,
		Sequence:           req.Sequence,
	})
	if err != nil {
		h.fail(w, "update group", err)
		return
	}
	httpx.JSON(w, http.StatusOK, group)
}

func (h *Handler) ChangeNature(w http.ResponseWriter, r *http.Request) {
	tenant, ok := httpx.Tenant(w, r)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	var req NatureRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.service.ChangeNature(r.Context(), tenant, id, Nature(req.Nature)); err != nil {
		h.fail(w, "change nature", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (h *Handler) DeleteGroup(w http.ResponseWriter, r *http.Request) {
	tenant, ok := httpx.Tenant(w, r)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	if err := h.service.DeleteGroup(r.Context(), tenant, id); err != nil {
		h.fail(w, "delete group", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"status": "deleted"})
}

func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	tenant, ok := httpx.Tenant(w, r)
	if !ok {
		return
	}
	accounts, err := h.service.ListAccounts(r.Context(), tenant)
	if err != nil {
		h.fail(w, "list accounts", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"ledger_accounts": accounts})
}

func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	tenant, ok := httpx.Tenant(w, r)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	account, err := h.service.GetAccount(r.Context(), tenant, id)
	if err != nil {
		h.fail(w, "get account", err)
		return
	}
	httpx.JSON(w, http.StatusOK, account)
}

func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	tenant, ok := httpx.Tenant(w, r)
	if !ok {
		return
	}
	var req AccountRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	account, err := h.service.CreateAccount(r.Context(), tenant, CreateAccountInput{
		AccountGroupID:     req.AccountGroupID,
		Code:               req.Code,
		Name:               req.Name,
		OpeningBalance:     req.OpeningBalance,
		OpeningBalanceType: BalanceType(req.OpeningBalanceType),
		IsBankAccount:      req.IsBankAccount,
		IsCashAccount:      req.IsCashAccount,
	})
	if err != nil {
		h.fail(w, "create account", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, account)
}

func (h *Handler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	tenant, ok := httpx.Tenant(w, r)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	var req AccountRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	account, err := h.service.UpdateAccount(r.Context(), tenant, id, UpdateAccountInput{
		AccountGroupID:     req.AccountGroupID,
		Code:               req.Code,
		Name:               req.Name,
		OpeningBalance:     req.OpeningBalance,
		OpeningBalanceType: BalanceType(req.OpeningBalanceType),
		IsBankAccount:      req.IsBankAccount,
		IsCashAccount:      req.IsCashAccount,
		IsActive:           active,
	})
	if err != nil {
		h.fail(w, "update account", err)
		return
	}
	httpx.JSON(w, http.StatusOK, account)
}

func (h *Handler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	tenant, ok := httpx.Tenant(w, r)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	if err := h.service.DeleteAccount(r.Context(), tenant, id); err != nil {
		h.fail(w, "delete account", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"status": "deleted"})
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	h.logger.Error(op, slog.Any("error", err))
	httpx.RespondError(w, err)
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}
