package router

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mohammed-shakir/csv-geocoder/internal/core/observability"
	"github.com/mohammed-shakir/csv-geocoder/internal/csvgeo"
	"github.com/mohammed-shakir/csv-geocoder/internal/limiter"
)

type errorBody struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// classify maps a batch failure to a status, a client message and the
// result label used in metrics.
func classify(err error) (status int, msg, result string) {
	var ce *csvgeo.Error
	var tooBig *http.MaxBytesError
	switch {
	case errors.As(err, &ce):
		if ce.Kind == csvgeo.KindQueryTooLarge {
			return http.StatusRequestEntityTooLarge, ce.Msg, ce.Kind.String()
		}
		return http.StatusBadRequest, ce.Msg, ce.Kind.String()
	case errors.As(err, &tooBig):
		return http.StatusRequestEntityTooLarge, "Upload too large", "upload_too_large"
	case errors.Is(err, limiter.ErrSaturated):
		return http.StatusServiceUnavailable, limiter.ErrSaturated.Error(), "saturated"
	case errors.Is(err, limiter.ErrUnavailable):
		return http.StatusServiceUnavailable, "Batch limiter unavailable", "limiter_error"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "Request cancelled", "cancelled"
	case errors.Is(err, errBadForm):
		return http.StatusBadRequest, "Invalid multipart body", "bad_form"
	default:
		return http.StatusBadGateway, "Geocoder unavailable", "upstream_error"
	}
}

func writeError(w http.ResponseWriter, endpoint string, err error) {
	status, msg, result := classify(err)
	observability.ObserveBatch(endpoint, result)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Title: msg, Description: msg})
}
