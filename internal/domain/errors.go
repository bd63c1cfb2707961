package domain

import (
	"fmt"
	"strings"
)

// FieldError locates one invalid input value, e.g. Loc ["query", "limit"].
type FieldError struct {
	Loc   []string `json:"loc"`
	Msg   string   `json:"msg"`
	Type  string   `json:"type"`
	Input any      `json:"input,omitempty"`
}

// ValidationError groups the field errors of one request.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", strings.Join(f.Loc, "."), f.Msg))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Add appends a field error.
func (e *ValidationError) Add(f FieldError) {
	e.Fields = append(e.Fields, f)
}

// OrNil returns nil when no field error was recorded.
func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

// MissingField builds the error reported for an absent required field.
func MissingField(loc ...string) FieldError {
	return FieldError{Loc: loc, Msg: "Field required", Type: "missing"}
}

// MissingPostError reports a comment pointing at a post that does not exist.
type MissingPostError struct {
	PostID int64
}

func (e *MissingPostError) Error() string {
	return fmt.Sprintf("Post %d does not exist", e.PostID)
}
