package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"ttclub/internal/core"
)

const (
	maxBodyBytes   = 1 << 20
	maxImportBytes = 32 << 20
)

// errBadRequest marks malformed requests that never reached the ledger.
var (
	errBadRequest = errors.New("bad request")
	errEmptyBody  = fmt.Errorf("%w: request body is empty", errBadRequest)
)

// decodeJSON reads a single JSON object into v. Unknown fields are
// rejected. Validation errors raised by field decoders (amounts, dates, fee
// types) keep their kind so they map to 422.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, core.ErrValidation) {
			return err
		}
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return fmt.Errorf("%w: invalid JSON: %v", errBadRequest, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: request body must contain a single JSON object", errBadRequest)
	}
	return nil
}

// readImport returns the raw import document.
func readImport(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxImportBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", errBadRequest, err)
	}
	if len(body) == 0 {
		return nil, errEmptyBody
	}
	return body, nil
}

// pathInt64 parses a positive integer path segment such as {id}.
func pathInt64(r *http.Request, name string) (int64, error) {
	raw := r.PathValue(name)
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: invalid %s %q", errBadRequest, name, raw)
	}
	return n, nil
}

func pathYear(r *http.Request) (int, error) {
	n, err := pathInt64(r, "year")
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// queryInt returns the integer query parameter or def when absent. Invalid
// values are an error rather than silently ignored.
func queryInt(q url.Values, key string, def int) (int, error) {
	v := strings.TrimSpace(q.Get(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: invalid %s %q", errBadRequest, key, v)
	}
	return n, nil
}

func queryBool(q url.Values, key string) bool {
	b, _ := strconv.ParseBool(q.Get(key))
	return b
}

// queryString returns a trimmed, control-character free query value.
func queryString(q url.Values, key string) string {
	return sanitizeInput(q.Get(key))
}

// sanitizeInput removes control characters except tab and newlines.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s)
}
