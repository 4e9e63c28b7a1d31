// Package handler provides the HTTP surface of the settlement engine. Every
// call, reads included, is executed through the sequencer.
package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"stakehub/internal/domain"
	"stakehub/internal/middleware"
	"stakehub/internal/sequencer"
	"stakehub/pkg/errors"
	"stakehub/pkg/logger"
	"stakehub/pkg/validator"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
)

// base carries what every handler needs.
type base struct {
	seq       *sequencer.Sequencer
	validator *validator.Validator
	logger    logger.Logger
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// decode reads a JSON body into dst and validates it. It writes the 400
// itself and reports false on failure.
func (b *base) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if err == io.EOF {
			respondError(w, http.StatusBadRequest, "Request body is required")
			return false
		}
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	if fields := b.validator.ValidateStructured(dst); fields != nil {
		respondJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error":  "validation failed",
			"fields": fields,
		})
		return false
	}
	return true
}

// fail maps an operation error onto a status code by its kind.
func (b *base) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := http.StatusInternalServerError
	kind := errors.KindOf(err)
	switch {
	case errors.Is(err, errors.ErrPoolNotFound), errors.Is(err, errors.ErrRoundNotFound):
		status = http.StatusNotFound
	case kind == errors.KindValidation:
		status = http.StatusBadRequest
	case kind == errors.KindState:
		status = http.StatusConflict
	case kind == errors.KindAuthorization:
		status = http.StatusForbidden
	case kind == errors.KindExternal:
		status = http.StatusBadGateway
	case errors.Is(err, sequencer.ErrStopped):
		status = http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		status = http.StatusGatewayTimeout
	}

	fields := map[string]interface{}{
		"operation":  op,
		"kind":       string(kind),
		"status":     status,
		"error":      err.Error(),
		"request_id": middleware.RequestIDFromContext(r.Context()),
	}
	if status >= http.StatusInternalServerError {
		b.logger.Error("Operation failed", fields)
	} else {
		b.logger.Debug("Operation rejected", fields)
	}

	respondJSON(w, status, map[string]string{
		"error": err.Error(),
		"kind":  string(kind),
	})
}

func callerOf(w http.ResponseWriter, r *http.Request) (domain.Address, bool) {
	caller, ok := middleware.CallerFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
	}
	return caller, ok
}

func poolID(r *http.Request) domain.PoolID {
	return domain.PoolID(mux.Vars(r)["id"])
}

func addressVar(w http.ResponseWriter, r *http.Request, name string) (domain.Address, bool) {
	v := mux.Vars(r)[name]
	if !common.IsHexAddress(v) {
		respondError(w, http.StatusBadRequest, "Invalid account address")
		return domain.Address{}, false
	}
	return common.HexToAddress(v), true
}

func choiceVar(w http.ResponseWriter, r *http.Request, name string) (domain.Choice, bool) {
	n, err := strconv.ParseUint(mux.Vars(r)[name], 10, 8)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid choice")
		return 0, false
	}
	return domain.Choice(n), true
}
