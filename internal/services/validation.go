package services

import (
	"bytes"
	"encoding"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"reflect"
	"sort"
	"strings"

	"github.com/datti/backend/internal/datti"
	"github.com/go-playground/validator/v10"
)

// ErrorResponse represents error response structure
type ErrorResponse struct {
	Error   string              `json:"error"`             // Error message
	Details map[string][]string `json:"details,omitempty"` // Field-keyed validation messages
}

// FieldErrors maps a JSON field path (e.g. "payments[1].amount") to messages.
type FieldErrors map[string][]string

func (fe FieldErrors) Error() string {
	keys := make([]string, 0, len(fe))
	for k := range fe {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+strings.Join(fe[k], ", "))
	}
	return strings.Join(parts, "; ")
}

func (fe FieldErrors) Add(field, message string) {
	fe[field] = append(fe[field], message)
}

// ValidationHelper provides shared validation functionality
type ValidationHelper struct {
	validator *validator.Validate
}

// NewValidationHelper creates a new validation helper. Field names in errors
// are the JSON names so they line up with the form inputs.
func NewValidationHelper() *ValidationHelper {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterStructValidation(validateLendingPayments, LendingRequest{})

	return &ValidationHelper{validator: v}
}

// ValidateStruct validates a struct and returns validation errors
func (vh *ValidationHelper) ValidateStruct(s any) error {
	return vh.validator.Struct(s)
}

// validateLendingPayments rejects debts owed to the payer and duplicate debtors.
// Over-allocation is left to the Datti API.
func validateLendingPayments(sl validator.StructLevel) {
	req := sl.Current().Interface().(LendingRequest)

	seen := make(map[string]bool, len(req.Payments))
	for i, p := range req.Payments {
		field := fmt.Sprintf("payments[%d].paidTo", i)
		if p.PaidTo == "" {
			continue
		}
		if req.PaidBy != "" && p.PaidTo == req.PaidBy {
			sl.ReportError(p.PaidTo, field, "PaidTo", "nepayer", "")
		}
		if seen[p.PaidTo] {
			sl.ReportError(p.PaidTo, field, "PaidTo", "unique_payee", "")
		}
		seen[p.PaidTo] = true
	}
}

func fieldKey(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required"
	case "datetime":
		return "Must be an ISO-8601 datetime"
	case "gt":
		return fmt.Sprintf("Must be greater than %s", fe.Param())
	case "gte":
		return fmt.Sprintf("Must be at least %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("Must be one of: %s", fe.Param())
	case "nefield":
		return "Cannot be the same member as the payer"
	case "nepayer":
		return "Cannot be owed to the payer"
	case "unique_payee":
		return "Member appears more than once"
	default:
		return fmt.Sprintf("Field Validation Failed on '%s' tag", fe.Tag())
	}
}

func toFieldErrors(err error) FieldErrors {
	var fe FieldErrors
	if errors.As(err, &fe) {
		return fe
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		out := FieldErrors{}
		for _, e := range verrs {
			out.Add(fieldKey(e), fieldMessage(e))
		}
		return out
	}
	return nil
}

// SendErrorResponse sends a JSON error response
func SendErrorResponse(w http.ResponseWriter, message string, statusCode int, validationErr error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	errorResp := ErrorResponse{Error: message}
	if validationErr != nil {
		errorResp.Details = toFieldErrors(validationErr)
	}

	json.NewEncoder(w).Encode(errorResp)
}

// SendBackendError passes Datti API failures through with their status code.
// A refused token refresh ends the session; anything else becomes a generic 500.
func SendBackendError(w http.ResponseWriter, err error) {
	if datti.IsSessionRevoked(err) {
		SendErrorResponse(w, "Session expired", http.StatusUnauthorized, nil)
		return
	}
	if apiErr, ok := datti.AsAPIError(err); ok {
		SendErrorResponse(w, apiErr.Status, apiErr.StatusCode, nil)
		return
	}
	log.Printf("[DATTI] unexpected error: %v", err)
	SendErrorResponse(w, "An unknown error occurred", http.StatusInternalServerError, nil)
}

func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

// DecodeRequest reads a single JSON object into dst. Type mismatches are
// reported per field; any other problem is a plain 400.
func DecodeRequest(w http.ResponseWriter, r *http.Request, dst any) bool {
	return decodeBody(w, r, dst, false)
}

// DecodeOptionalRequest is DecodeRequest for endpoints whose body may be
// omitted. An empty body leaves dst untouched, however it was framed.
func DecodeOptionalRequest(w http.ResponseWriter, r *http.Request, dst any) bool {
	return decodeBody(w, r, dst, true)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any, optional bool) bool {
	maxBytes := 1_048_576 // 1 MB
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	data, err := io.ReadAll(r.Body)
	if err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return false
	}
	if optional && len(bytes.TrimSpace(data)) == 0 {
		return true
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			fe := FieldErrors{}
			msg := typeMessage(typeErr.Type)
			paths := typeErrorPaths(data, typeErr.Field, typeErr.Type)
			if len(paths) == 0 {
				paths = []string{typeErr.Field}
			}
			for _, p := range paths {
				fe.Add(p, msg)
			}
			SendErrorResponse(w, "Validation failed", http.StatusBadRequest, fe)
			return false
		}
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return false
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return false
	}
	return true
}

// typeErrorPaths locates the values behind a json type error. The decoder
// names the field without array indexes ("payments.amount"), so the raw
// document is walked to recover them ("payments[1].amount").
func typeErrorPaths(data []byte, field string, t reflect.Type) []string {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil
	}

	var paths []string
	var walk func(v any, segs []string, prefix string)
	walk = func(v any, segs []string, prefix string) {
		if len(segs) == 0 {
			if fitsType(v, t) {
				return
			}
			if arr, ok := v.([]any); ok && !isListKind(t) {
				for i, elem := range arr {
					if !fitsType(elem, t) {
						paths = append(paths, fmt.Sprintf("%s[%d]", prefix, i))
					}
				}
				return
			}
			paths = append(paths, prefix)
			return
		}

		switch node := v.(type) {
		case []any:
			for i, elem := range node {
				walk(elem, segs, fmt.Sprintf("%s[%d]", prefix, i))
			}
		case map[string]any:
			child, ok := node[segs[0]]
			if !ok {
				return
			}
			next := segs[0]
			if prefix != "" {
				next = prefix + "." + segs[0]
			}
			walk(child, segs[1:], next)
		}
	}
	walk(doc, strings.Split(field, "."), "")
	return paths
}

func isListKind(t reflect.Type) bool {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Kind() == reflect.Slice || t.Kind() == reflect.Array
}

// fitsType reports whether a generically decoded JSON value can be decoded
// into t. Types with their own unmarshalers are given the benefit of the doubt.
func fitsType(v any, t reflect.Type) bool {
	if v == nil {
		return true
	}
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	pt := reflect.PointerTo(t)
	if pt.Implements(jsonUnmarshalerType) || pt.Implements(textUnmarshalerType) {
		return true
	}

	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, ok := v.(json.Number)
		if !ok {
			return false
		}
		_, err := n.Int64()
		return err == nil
	case reflect.Float32, reflect.Float64:
		n, ok := v.(json.Number)
		if !ok {
			return false
		}
		_, err := n.Float64()
		return err == nil
	case reflect.String:
		_, ok := v.(string)
		return ok
	case reflect.Bool:
		_, ok := v.(bool)
		return ok
	case reflect.Slice, reflect.Array:
		if _, ok := v.([]any); ok {
			return true
		}
		_, ok := v.(string)
		return ok && t.Elem().Kind() == reflect.Uint8
	case reflect.Map, reflect.Struct:
		_, ok := v.(map[string]any)
		return ok
	default:
		return true
	}
}

var (
	jsonUnmarshalerType = reflect.TypeOf((*json.Unmarshaler)(nil)).Elem()
	textUnmarshalerType = reflect.TypeOf((*encoding.TextUnmarshaler)(nil)).Elem()
)

func typeMessage(t reflect.Type) string {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return "Must be a number"
	case reflect.String:
		return "Must be a string"
	default:
		return "Has the wrong type"
	}
}
