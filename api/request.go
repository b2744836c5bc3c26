package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

const maxBodyBytes = 1 << 20

var validate = validator.New(validator.WithRequiredStructEnabled())

func init() {
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
}

// ValidationError maps JSON field names to their failed rules.
type ValidationError map[string][]string

func (v ValidationError) Error() string {
	parts := make([]string, 0, len(v))
	for field, rules := range v {
		parts = append(parts, field+": "+strings.Join(rules, ", "))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

var (
	errUnsupportedMediaType = HTTPError{Status: http.StatusUnsupportedMediaType, Code: "unsupported_media_type", Message: "expected application/json"}
	errInvalidJSON          = "invalid_json"
)

// decode reads a single strict JSON object into v and validates it.
func decode(w http.ResponseWriter, r *http.Request, v any) error {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "application/json" {
		return errUnsupportedMediaType
	}

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		msg := err.Error()
		if errors.Is(err, io.EOF) {
			msg = "empty body"
		}
		return HTTPError{Status: http.StatusBadRequest, Code: errInvalidJSON, Message: msg}
	}
	if err := dec.Decode(&json.RawMessage{}); !errors.Is(err, io.EOF) {
		return HTTPError{Status: http.StatusBadRequest, Code: errInvalidJSON, Message: "unexpected data after JSON object"}
	}

	if err := validate.Struct(v); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return fmt.Errorf("validate request: %w", err)
		}
		out := ValidationError{}
		for _, fe := range fieldErrs {
			rule := fe.Tag()
			if fe.Param() != "" {
				rule += "=" + fe.Param()
			}
			out[fe.Field()] = append(out[fe.Field()], rule)
		}
		return out
	}
	return nil
}

func orgIDParam(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "orgID"))
	if err != nil || id == uuid.Nil {
		return uuid.Nil, ErrBadOrgID
	}
	return id, nil
}
