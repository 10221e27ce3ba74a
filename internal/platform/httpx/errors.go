// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/ledgerline/ledgerline/internal/shared"
)

// Tenant extracts the request tenant or writes a 403 problem response.
func Tenant(w http.ResponseWriter, r *http.Request) (shared.Tenant, bool) {
	tenant, ok := shared.TenantFromContext(r.Context())
	if !ok {
		Problem(w, http.StatusForbidden, "Forbidden", "missing business context")
		return shared.Tenant{}, false
	}
	return tenant, true
}

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrCrossTenant):
		Problem(w, http.StatusForbidden, "Forbidden", err.Error())
	case errors.Is(err, shared.ErrDuplicateVoucherNumber):
		Problem(w, http.StatusConflict, "Duplicate Voucher Number", err.Error())
	case errors.Is(err, shared.ErrAlreadyReconciled):
		Problem(w, http.StatusConflict, "Already Reconciled", err.Error())
	case errors.Is(err, shared.ErrConflict):
		Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, shared.ErrLockedPeriod):
		Problem(w, http.StatusUnprocessableEntity, "Locked Financial Year", err.Error())
	case errors.Is(err, shared.ErrImbalanced):
		Problem(w, http.StatusUnprocessableEntity, "Imbalanced Voucher", err.Error())
	case errors.Is(err, shared.ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
