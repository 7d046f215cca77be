package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/techview-systems/leadpixel-stack/common/httputil"
)

// decodeJSON reads the body into v and writes the error response itself
// when it returns false. An empty body leaves v untouched when optional.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any, optional bool) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	err := dec.Decode(v)
	if err == nil {
		return true
	}

	var (
		typeErr   *json.UnmarshalTypeError
		syntaxErr *json.SyntaxError
		maxErr    *http.MaxBytesError
	)
	switch {
	case errors.Is(err, io.EOF) && optional:
		return true
	case errors.Is(err, io.EOF):
		httputil.WriteError(w, http.StatusBadRequest, "request body is required")
	case errors.As(err, &maxErr):
		httputil.WriteError(w, http.StatusRequestEntityTooLarge, "request body too large")
	case errors.As(err, &typeErr):
		// Non-string PII is rejected here, before it can reach hashing.
		httputil.WriteError(w, http.StatusBadRequest, fmt.Sprintf("field %q must be a %s", typeErr.Field, typeErr.Type))
	case errors.As(err, &syntaxErr):
		httputil.WriteError(w, http.StatusBadRequest, "malformed JSON")
	default:
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
	}
	return false
}
