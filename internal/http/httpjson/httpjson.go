// Package httpjson holds the JSON request and response helpers shared by handlers.
package httpjson

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/wolfman30/vetclinic-platform/internal/apperr"
	"github.com/wolfman30/vetclinic-platform/pkg/logging"
)

const maxBodyBytes = 1 << 20

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    apperr.Kind `json:"code"`
	Message string      `json:"message"`
}

// Write encodes payload with the given status.
func Write(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// Error writes err as {"error":{"code","message"}}. Internal errors are
// logged and replaced by a generic message.
func Error(w http.ResponseWriter, logger *logging.Logger, err error) {
	kind := apperr.KindOf(err)
	if kind == apperr.KindInternal && logger != nil {
		logger.Error("request failed", "error", err)
	}
	Write(w, kind.Status(), errorBody{Error: errorDetail{Code: kind, Message: apperr.PublicMessage(err)}})
}

// Decode reads a JSON body into dst, rejecting unknown fields.
func Decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.Validation("request body is required")
		}
		return apperr.Validation("invalid request body: %v", err)
	}
	return nil
}

// QueryInt parses an optional integer query parameter.
func QueryInt(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperr.Validation("%s must be an integer", key)
	}
	return v, nil
}

// QueryBool parses an optional boolean query parameter.
func QueryBool(r *http.Request, key string, def bool) (bool, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, apperr.Validation("%s must be a boolean", key)
	}
	return v, nil
}

// Pagination clamps skip/limit query parameters.
func Pagination(r *http.Request, defLimit, maxLimit int) (skip, limit int, err error) {
	if skip, err = QueryInt(r, "skip", 0); err != nil {
		return 0, 0, err
	}
	if limit, err = QueryInt(r, "limit", defLimit); err != nil {
		return 0, 0, err
	}
	if skip < 0 {
		return 0, 0, apperr.Validation("skip must not be negative")
	}
	if limit < 1 || limit > maxLimit {
		return 0, 0, apperr.Validation("limit must be between 1 and %d", maxLimit)
	}
	return skip, limit, nil
}

// RequireParam returns an error when a path parameter is empty.
func RequireParam(name, value string) error {
	if value == "" {
		return apperr.Validation("%s is required", name)
	}
	return nil
}
