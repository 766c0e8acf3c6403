// Package convert decodes backend envelopes into model types and rejects payloads
// that do not match the expected schema.
package convert

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/and161185/mediadesk/internal/errs"
	"github.com/and161185/mediadesk/internal/model"
)

// FieldError is one entry of a structured validation error list.
type FieldError struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// Envelope is the standard response wrapper.
type Envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Meta    *model.Meta     `json:"meta,omitempty"`
	Errors  []FieldError    `json:"errors,omitempty"`
}

// Validator is implemented by payload types that can check their own shape.
type Validator interface {
	Validate() error
}

// DecodeEnvelope parses the wrapper. A body that is not a JSON object is malformed.
func DecodeEnvelope(body []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: envelope: %v", errs.ErrMalformedResponse, err)
	}
	return env, nil
}

// Data decodes env.Data into T and validates it when T implements Validator.
func Data[T any](env Envelope) (T, error) {
	var out T
	if isEmpty(env.Data) {
		return out, fmt.Errorf("%w: missing data", errs.ErrMalformedResponse)
	}
	if err := json.Unmarshal(env.Data, &out); err != nil {
		return out, fmt.Errorf("%w: data: %v", errs.ErrMalformedResponse, err)
	}
	if v, ok := any(out).(Validator); ok {
		if err := v.Validate(); err != nil {
			return out, fmt.Errorf("%w: %v", errs.ErrMalformedResponse, err)
		}
	}
	return out, nil
}

// List decodes env.Data as a JSON array and validates every element.
func List[T any](env Envelope) ([]T, error) {
	if isEmpty(env.Data) {
		return []T{}, nil
	}
	var out []T
	if err := json.Unmarshal(env.Data, &out); err != nil {
		return nil, fmt.Errorf("%w: list: %v", errs.ErrMalformedResponse, err)
	}
	for i := range out {
		if v, ok := any(out[i]).(Validator); ok {
			if err := v.Validate(); err != nil {
				return nil, fmt.Errorf("%w: item[%d]: %v", errs.ErrMalformedResponse, i, err)
			}
		}
	}
	if out == nil {
		out = []T{}
	}
	return out, nil
}

// Page decodes a paginated list. Without a meta block the page is treated as
// the whole collection.
func Page[T any](env Envelope) (model.Page[T], error) {
	items, err := List[T](env)
	if err != nil {
		return model.Page[T]{}, err
	}
	meta := model.Meta{Page: 1, Limit: len(items), Total: len(items), TotalPages: 1}
	if env.Meta != nil {
		meta = *env.Meta
		if err := checkMeta(meta, len(items)); err != nil {
			return model.Page[T]{}, err
		}
	}
	return model.Page[T]{Items: items, Meta: meta}, nil
}

func checkMeta(m model.Meta, n int) error {
	switch {
	case m.Page < 0 || m.Limit < 0 || m.Total < 0 || m.TotalPages < 0:
		return fmt.Errorf("%w: negative pagination meta %+v", errs.ErrMalformedResponse, m)
	case m.Limit > 0 && n > m.Limit:
		return fmt.Errorf("%w: %d items exceed page limit %d", errs.ErrMalformedResponse, n, m.Limit)
	case n > m.Total:
		return fmt.Errorf("%w: %d items exceed total %d", errs.ErrMalformedResponse, n, m.Total)
	case m.Limit > 0 && m.TotalPages > m.MaxPages():
		return fmt.Errorf("%w: %d pages for total %d at limit %d",
			errs.ErrMalformedResponse, m.TotalPages, m.Total, m.Limit)
	}
	return nil
}

// Content decodes a content page and stamps every item with its kind.
func Content(env Envelope, kind model.Kind) (model.Page[model.ContentItem], error) {
	p, err := Page[model.ContentItem](env)
	if err != nil {
		return p, err
	}
	for i := range p.Items {
		p.Items[i].Kind = kind
	}
	return p, nil
}

// ContentItem decodes a single content item of kind.
func ContentItem(env Envelope, kind model.Kind) (model.ContentItem, error) {
	it, err := Data[model.ContentItem](env)
	if err != nil {
		return it, err
	}
	it.Kind = kind
	return it, nil
}

func isEmpty(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) == 0 || bytes.Equal(t, []byte("null"))
}
