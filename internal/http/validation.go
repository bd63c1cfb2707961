package httpx

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Camiloez/postboard/internal/domain"
	"github.com/Camiloez/postboard/internal/service/post"
)

const maxBodyBytes = 1 << 20

// validationResponse is the 422 payload: the field errors plus the offending body.
type validationResponse struct {
	Detail []domain.FieldError `json:"detail"`
	Body   any                 `json:"body"`
}

// readBody reads the request body up to maxBodyBytes.
func readBody(req *http.Request) ([]byte, error) {
	if req.Body == nil {
		return nil, nil
	}
	return io.ReadAll(io.LimitReader(req.Body, maxBodyBytes))
}

// decodeBody unmarshals raw into dst and converts decoding failures into field errors
// located in the body.
func decodeBody(raw []byte, dst any) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		return &domain.ValidationError{Fields: []domain.FieldError{{
			Loc:  []string{"body"},
			Msg:  "Field required",
			Type: "missing",
		}}}
	}
	err := json.Unmarshal(raw, dst)
	if err == nil {
		return nil
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		loc := []string{"body"}
		if typeErr.Field != "" {
			loc = append(loc, strings.Split(typeErr.Field, ".")...)
		}
		return &domain.ValidationError{Fields: []domain.FieldError{{
			Loc:  loc,
			Msg:  "Input should be a valid " + typeName(typeErr.Type.String()),
			Type: typeName(typeErr.Type.String()) + "_type",
		}}}
	}
	var timeErr *time.ParseError
	if errors.As(err, &timeErr) {
		return &domain.ValidationError{Fields: []domain.FieldError{{
			Loc:   []string{"body", "publication_date"},
			Msg:   "Input should be a valid datetime",
			Type:  "datetime_from_date_parsing",
			Input: timeErr.Value,
		}}}
	}
	return &domain.ValidationError{Fields: []domain.FieldError{{
		Loc:  []string{"body"},
		Msg:  "JSON decode error",
		Type: "json_invalid",
	}}}
}

func typeName(goType string) string {
	goType = strings.TrimPrefix(goType, "*")
	switch {
	case goType == "string":
		return "string"
	case strings.HasPrefix(goType, "int"):
		return "int"
	case goType == "time.Time":
		return "datetime"
	case strings.HasPrefix(goType, "map"), strings.HasPrefix(goType, "struct"), strings.Contains(goType, "."):
		return "dictionary"
	}
	return goType
}

// bodyForResponse echoes the request body in 422 responses, falling back to the raw text.
func bodyForResponse(raw []byte) any {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return string(raw)
	}
	return decoded
}

// queryInt parses an optional integer query parameter.
func queryInt(values url.Values, name string, fallback int, verr *domain.ValidationError) int {
	raw := strings.TrimSpace(values.Get(name))
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		verr.Add(intParsing([]string{"query", name}, raw))
		return fallback
	}
	return n
}

// queryPage parses a pagination parameter that must not be negative.
func queryPage(values url.Values, name string, fallback int, verr *domain.ValidationError) int {
	before := len(verr.Fields)
	n := queryInt(values, name, fallback, verr)
	if len(verr.Fields) == before && n < 0 {
		verr.Add(post.NegativeQuery(name, strings.TrimSpace(values.Get(name))))
		return fallback
	}
	return n
}

// pathID parses the trailing identifier of paths such as /posts/{id}.
func pathID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, &domain.ValidationError{Fields: []domain.FieldError{intParsing([]string{"path", "id"}, raw)}}
	}
	return id, nil
}

func intParsing(loc []string, raw string) domain.FieldError {
	return domain.FieldError{
		Loc:   loc,
		Msg:   "Input should be a valid integer, unable to parse string as an integer",
		Type:  "int_parsing",
		Input: raw,
	}
}
