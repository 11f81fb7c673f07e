package http

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// maxBodyBytes caps request bodies; every payload here is a handful of
// small fields.
const maxBodyBytes = 1 << 16

// requestBody parses a request body once and serves typed field lookups.
// JSON is the primary encoding; form-encoded bodies are accepted too so
// plain HTML clients can post.
type requestBody struct {
	jsonData map[string]any
	formData url.Values
}

func parseRequestBody(r *http.Request) (*requestBody, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}

	p := &requestBody{}
	if len(body) == 0 {
		p.formData = url.Values{}
		return p, nil
	}

	if body[0] == '{' {
		p.jsonData = make(map[string]any)
		if err := json.Unmarshal(body, &p.jsonData); err != nil {
			return nil, err
		}
		return p, nil
	}

	p.formData, err = url.ParseQuery(string(body))
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Get returns the sanitized string value of a field, whatever the body
// encoding. JSON numbers come back in their decimal form.
func (p *requestBody) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return strings.TrimSpace(sanitizeInput(stringValue(val)))
		}
		return ""
	}
	return strings.TrimSpace(sanitizeInput(p.formData.Get(key)))
}

func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// sanitizeInput removes control characters except tab, newline and
// carriage return, and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
