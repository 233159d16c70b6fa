package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	payerrors "github.com/mrz1836/paytoken/internal/errors"
)

// DecodeBody reads a JSON request body into v, rejecting unknown fields.
func DecodeBody(r *http.Request, v any) error {
	return decodeBody(r, v)
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxResponseBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid request body: %w", payerrors.ErrEmptyValue, err)
	}
	return nil
}
