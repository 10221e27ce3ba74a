package voucher

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/ledgerline/ledgerline/internal/platform/httpx"
	"github.com/ledgerline/ledgerline/internal/shared"
)

type Handler struct {
	service  *Service
	logger   *slog.Logger
	validate *validator.Validate
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{service: service, logger: logger, validate: validator.New()}
}

// TypeRequest is the JSON payload for a voucher type.
type TypeRequest struct {
	Name           string `json:"name" validate:"required,max=100"`
	Code           string `json:"code" validate:"required,max=20"`
	Nature         string `json:"nature" validate:"required"`
	Prefix         string `json:"prefix" validate:"max=10"`
	AutoIncrement  bool   `json:"auto_increment"`
	StartingNumber int64  `json:"starting_number" validate:"min=0"`
}

// ItemRequest is one voucher line in a request.
type ItemRequest struct {
	ID              int64           `json:"id"`
	LedgerAccountID int64           `json:"ledger_account_id" validate:"required"`
	CostCenterID    *int64          `json:"cost_center_id"`
	DebitAmount     decimal.Decimal `json:"debit_amount"`
	CreditAmount    decimal.Decimal `json:"credit_amount"`
	Narration       string          `json:"narration"`
}

// Request is the JSON payload for creating or updating a voucher.
type Request struct {
	VoucherTypeID int64         `json:"voucher_type_id" validate:"required"`
	VoucherNumber string        `json:"voucher_number"`
	Date          string        `json:"date" validate:"required,datetime=2006-01-02"`
	PartyID       *int64        `json:"party_id"`
	Narration     string        `json:"narration"`
	Reference     string        `json:"reference"`
	Post          bool          `json:"post"`
	Items         []ItemRequest `json:"items" validate:"required,min=1,dive"`
}

// AttachRequest names the file being attached.
type AttachRequest struct {
	Filename string `json:"filename" validate:"required,max=255"`
}

func (req Request) input() Input {
	date, _ := time.Parse("2006-01-02", req.Date)
	in := Input{
		VoucherTypeID: req.VoucherTypeID,
		VoucherNumber: req.VoucherNumber,
		Date:          date,
		PartyID:       req.PartyID,
		Narration:     req.Narration,
		Reference:     req.Reference,
		Post:          req.Post,
	}
	for _, it := range req.Items {
		in.Items = append(in.Items, ItemInput{
			ID:              it.ID,
			LedgerAccountID: it.LedgerAccountID,
			CostCenterID:    it.CostCenterID,
			DebitAmount:     it.DebitAmount,
			CreditAmount:    it.CreditAmount,
			Narration:       it.Narration,
		})
	}
	return in
}

// Routes mounts the voucher and voucher-type endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/voucher-types", func(r chi.Router) {
		r.Get("/", h.ListTypes)
		r.Post("/", h.CreateType)
		r.Put("/{id}", h.UpdateType)
		r.Delete("/{id}", h.DeleteType)
	})
	r.Route("/vouchers", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Get("/{id}", h.Get)
		r.Put("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)
		r.Post("/{id}/post", h.Post)
		r.Post("/{id}/unpost", h.Unpost)
		r.Post("/{id}/attachment", h.Attach)
	})
}

func (h *Handler) ListTypes(w http.ResponseWriter, r *http.Request) {
	tenant, ok := httpx.Tenant(w, r)
	if !ok {
		return
	}
	types, err := h.service.ListTypes(r.Context(), tenant)
	if err != nil {
		h.fail(w, "list voucher types", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"voucher_types": types})
}

func (h *Handler) CreateType(w http.ResponseWriter, r *http.Request) {
	tenant, ok := httpx.Tenant(w, r)
	if !ok {
		return
	}
	req, ok := h.decodeType(w, r)
	if !ok {
		return
	}
	created, err := h.service.CreateType(r.Context(), tenant, req)
	if err != nil {
		h.fail(w, "create voucher type", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) UpdateType(w http.ResponseWriter, r *http.Request) {
	tenant, ok := httpx.Tenant(w, r)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	req, ok := h.decodeType(w, r)
	if !ok {
		return
	}
	updated, err := h.service.UpdateType(r.Context(), tenant, id, req)
	if err != nil {
		h.fail(w, "update voucher type", err)
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}

func (h *Handler) DeleteType(w http.ResponseWriter, r *http.Request) {
	h.simple(w, r, "delete voucher type", h.service.DeleteType)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	tenant, ok := httpx.Tenant(w, r)
	if !ok {
		return
	}
	filter := ListFilter{
		TypeID:  queryID(r, "type_id"),
		YearID:  queryID(r, "year_id"),
		PartyID: queryID(r, "party_id"),
	}
	if from, ok := queryDate(r, "from"); ok {
		filter.From = &from
	}
	if to, ok := queryDate(r, "to"); ok {
		filter.To = &to
	}
	if posted := r.URL.Query().Get("posted"); posted != "" {
		value := posted == "true"
		filter.Posted = &value
	}
	vouchers, err := h.service.List(r.Context(), tenant, filter)
	if err != nil {
		h.fail(w, "list vouchers", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"vouchers": vouchers})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	tenant, ok := httpx.Tenant(w, r)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	v, err := h.service.Get(r.Context(), tenant, id)
	if err != nil {
		h.fail(w, "get voucher", err)
		return
	}
	httpx.JSON(w, http.StatusOK, v)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	tenant, ok := httpx.Tenant(w, r)
	if !ok {
		return
	}
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	created, err := h.service.Create(r.Context(), tenant, req.input())
	if err != nil {
		h.fail(w, "create voucher", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	tenant, ok := httpx.Tenant(w, r)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	updated, err := h.service.Update(r.Context(), tenant, id, req.input())
	if err != nil {
		h.fail(w, "update voucher", err)
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	h.simple(w, r, "delete voucher", h.service.Delete)
}

func (h *Handler) Post(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "post voucher", h.service.Post)
}

func (h *Handler) Unpost(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "unpost voucher", h.service.Unpost)
}

func (h *Handler) Attach(w http.ResponseWriter, r *http.Request) {
	tenant, ok := httpx.Tenant(w, r)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	var req AttachRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	key, err := h.service.Attach(r.Context(), tenant, id, req.Filename)
	if err != nil {
		h.fail(w, "attach to voucher", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"attachment_key": key})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request) (Request, bool) {
	var req Request
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return Request{}, false
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return Request{}, false
	}
	return req, true
}

func (h *Handler) decodeType(w http.ResponseWriter, r *http.Request) (TypeInput, bool) {
	var req TypeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return TypeInput{}, false
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return TypeInput{}, false
	}
	return TypeInput{
		Name:           req.Name,
		Code:           req.Code,
		Nature:         TypeNature(req.Nature),
		Prefix:         req.Prefix,
		AutoIncrement:  req.AutoIncrement,
		StartingNumber: req.StartingNumber,
	}, true
}

func (h *Handler) simple(w http.ResponseWriter, r *http.Request, op string, fn func(context.Context, shared.Tenant, int64) error) {
	tenant, ok := httpx.Tenant(w, r)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	if err := fn(r.Context(), tenant, id); err != nil {
		h.fail(w, op, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, op string, fn func(context.Context, shared.Tenant, int64) (Voucher, error)) {
	tenant, ok := httpx.Tenant(w, r)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	v, err := fn(r.Context(), tenant, id)
	if err != nil {
		h.fail(w, op, err)
		return
	}
	httpx.JSON(w, http.StatusOK, v)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	h.logger.Error(op, slog.Any("error", err))
	httpx.RespondError(w, err)
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func queryID(r *http.Request, name string) *int64 {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil
	}
	return &id
}

func queryDate(r *http.Request, name string) (time.Time, bool) {
	parsed, err := time.Parse("2006-01-02", r.URL.Query().Get(name))
	if err != nil {
		return time.Time{}, false
	}
	return parsed, true
}
