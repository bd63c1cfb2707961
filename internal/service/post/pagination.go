package post

import (
	"strconv"

	"github.com/Camiloez/postboard/internal/domain"
)

// Pagination defaults.
const (
	DefaultLimit = 10
	MaxLimit     = 100
)

// Page validates skip and limit and caps limit at MaxLimit.
func Page(skip, limit int) (int, int, error) {
	var verr domain.ValidationError
	if skip < 0 {
		verr.Add(NegativeQuery("skip", strconv.Itoa(skip)))
	}
	if limit < 0 {
		verr.Add(NegativeQuery("limit", strconv.Itoa(limit)))
	}
	if err := verr.OrNil(); err != nil {
		return 0, 0, err
	}
	return skip, min(MaxLimit, limit), nil
}

// NegativeQuery reports a query parameter below zero. raw is the value as
// the client sent it.
func NegativeQuery(name, raw string) domain.FieldError {
	return domain.FieldError{
		Loc:   []string{"query", name},
		Msg:   "Input should be greater than or equal to 0",
		Type:  "greater_than_equal",
		Input: raw,
	}
}
