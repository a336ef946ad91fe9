package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"lendingpool/crypto"
	"lendingpool/native/bank"
	nativecommon "lendingpool/native/common"
	"lendingpool/native/pool"
	"lendingpool/services/poold/service"
)

const maxBodyBytes = 1 << 20

var (
	errBadRequest      = errors.New("bad request")
	errNotFound        = errors.New("not found")
	errTooManyRequests = errors.New("too many requests")
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Default().Error("write response failed", slog.Any("error", err))
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

// statusFor maps engine and ledger failures onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, errBadRequest),
		errors.Is(err, pool.ErrInvalidAmount),
		errors.Is(err, pool.ErrInvalidPercent),
		errors.Is(err, pool.ErrInvalidConfig),
		errors.Is(err, bank.ErrInvalidAmount),
		errors.Is(err, bank.ErrZeroAddress):
		return http.StatusBadRequest
	case errors.Is(err, pool.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, errNotFound), errors.Is(err, service.ErrFaucetDisabled):
		return http.StatusNotFound
	case errors.Is(err, pool.ErrLoanAlreadyFunded),
		errors.Is(err, pool.ErrLoanNotFunded),
		errors.Is(err, pool.ErrLoanClosed),
		errors.Is(err, pool.ErrReentrantCall):
		return http.StatusConflict
	case errors.Is(err, pool.ErrDepositLimit),
		errors.Is(err, pool.ErrInsufficientLiquidity),
		errors.Is(err, pool.ErrInsufficientShares),
		errors.Is(err, pool.ErrNothingToWithdraw),
		errors.Is(err, pool.ErrPoolNotClosable),
		errors.Is(err, bank.ErrInsufficientBalance),
		errors.Is(err, bank.ErrInsufficientAllowance):
		return http.StatusUnprocessableEntity
	case errors.Is(err, pool.ErrPoolPaused),
		errors.Is(err, pool.ErrPoolClosed),
		errors.Is(err, nativecommon.ErrModulePaused):
		return http.StatusLocked
	default:
		return http.StatusInternalServerError
	}
}

func decodeBody(r *http.Request, dst any) error {
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return fmt.Errorf("%w: decode body: %v", errBadRequest, err)
	}
	return nil
}

// parseAmount reads a base-10 integer amount in the asset's smallest unit.
func parseAmount(field, raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: %s required", errBadRequest, field)
	}
	value, ok := new(big.Int).SetString(trimmed, 10)
	if !ok || value.Sign() < 0 {
		return nil, fmt.Errorf("%w: %s must be a non-negative integer", errBadRequest, field)
	}
	return value, nil
}

// parseOptionalAmount treats an empty value as zero.
func parseOptionalAmount(field, raw string) (*big.Int, error) {
	if strings.TrimSpace(raw) == "" {
		return big.NewInt(0), nil
	}
	return parseAmount(field, raw)
}

func parsePercent(field, raw string) (pool.Percent, error) {
	p, err := pool.ParsePercent(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", errBadRequest, field, err)
	}
	return p, nil
}

func parseAddress(field, raw string) (crypto.Address, error) {
	addr, err := crypto.DecodeAddress(raw)
	if err != nil {
		return crypto.Address{}, fmt.Errorf("%w: %s: %v", errBadRequest, field, err)
	}
	return addr, nil
}

func loanIDParam(r *http.Request) (uint64, error) {
	id, err := strconv.ParseUint(chi.URLParam(r, "loanID"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid loan id", errBadRequest)
	}
	return id, nil
}

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
