// ABOUTME: Response helpers for the mock API: JSON bodies, FastAPI-style errors and SSE frames
// ABOUTME: Request bodies are decoded strictly and checked with go-playground/validator

package mockapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/uvci/campus-assistant/internal/auth"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// validationIssue mirrors one entry of a 422 detail list
type validationIssue struct {
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
	Type string   `json:"type"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusOK, map[string]string{"message": message})
}

// writeError sends {"detail": "..."}
func writeError(w http.ResponseWriter, status int, detail string) {
	auth.WriteError(w, status, detail)
}

// decodeBody decodes JSON into dst and validates it. On failure it writes
// the response and returns false.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(dst); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"detail": []validationIssue{{Loc: []string{"body"}, Msg: "invalid JSON body", Type: "json_invalid"}},
		})
		return false
	}

	if err := validate.Struct(dst); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"detail": validationIssues(err)})
		return false
	}
	return true
}

func validationIssues(err error) []validationIssue {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []validationIssue{{Loc: []string{"body"}, Msg: err.Error(), Type: "value_error"}}
	}

	issues := make([]validationIssue, 0, len(verrs))
	for _, fe := range verrs {
		field := jsonName(fe.Field())
		var msg string
		switch fe.Tag() {
		case "required":
			msg = "Field required"
		case "email":
			msg = "value is not a valid email address"
		case "min":
			msg = fmt.Sprintf("String should have at least %s characters", fe.Param())
		case "max":
			msg = fmt.Sprintf("String should have at most %s characters", fe.Param())
		case "oneof":
			msg = fmt.Sprintf("Input should be %s", strings.ReplaceAll(fe.Param(), " ", " or "))
		default:
			msg = "Value error"
		}
		issues = append(issues, validationIssue{Loc: []string{"body", field}, Msg: msg, Type: fe.Tag()})
	}
	return issues
}

// jsonName turns a Go field name into its wire spelling (FullName -> full_name).
func jsonName(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}

// sseWriter writes Server-Sent Events and flushes after each one
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// startSSE sets the streaming headers. It fails if w cannot flush.
func startSSE(w http.ResponseWriter) (*sseWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, errors.New("streaming not supported")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	return &sseWriter{w: w, flusher: flusher}, nil
}

// writeEvent writes a single event with a JSON data line.
func (s *sseWriter) writeEvent(event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshalling %s event: %w", event, err)
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, payload); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}
