package envelope

import (
	"encoding/json"
	"fmt"
)

type Kind string

const (
	KindSuccess Kind = "success"
	KindPartial Kind = "partial"
	KindError   Kind = "error"
)

// Outcome is the classified form of one provider response.
type Outcome struct {
	Kind    Kind
	Code    string
	Message string
	Content any
}

// Err returns the outcome as an error when the provider reported one.
func (o Outcome) Err() error {
	if o.Kind != KindError {
		return nil
	}
	return &ProviderError{Code: o.Code, Message: o.Message}
}

// ProviderError is an explicit result_type=erreur from the provider.
// It is surfaced verbatim and never retried.
type ProviderError struct {
	Code    string
	Message string
}

func (e *ProviderError) Error() string { return e.Message }

// Classify reads the provider's result_type discriminator.
// Провайдер пишет успех двумя способами ("success" и "succes") — оба валидны.
// Absence of result_type is success with unknown shape: the value passes
// through as content untouched.
func Classify(v any) Outcome {
	m, ok := v.(map[string]any)
	if !ok {
		return Outcome{Kind: KindSuccess, Content: v}
	}

	switch field(m, "result_type", "resultType") {
	case "success", "succes":
		return Outcome{Kind: KindSuccess, Content: contentOf(m)}
	case "partial_success":
		return Outcome{Kind: KindPartial, Content: contentOf(m)}
	case "erreur":
		code := field(m, "result_code", "resultCode")
		content := firstOf(m, "result_content", "resultContent")
		return Outcome{
			Kind:    KindError,
			Code:    code,
			Message: fmt.Sprintf("%s - %s", code, asString(content)),
			Content: content,
		}
	default:
		return Outcome{Kind: KindSuccess, Content: v}
	}
}

func contentOf(m map[string]any) any {
	if c, ok := lookup(m, "result_content", "resultContent"); ok && c != nil {
		return c
	}
	return m
}

func lookup(m map[string]any, keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			return v, true
		}
	}
	return nil, false
}

func firstOf(m map[string]any, keys ...string) any {
	v, _ := lookup(m, keys...)
	return v
}

func field(m map[string]any, keys ...string) string {
	v, _ := lookup(m, keys...)
	s, _ := v.(string)
	return s
}

func asString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%g", t)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(b)
	}
}
