// Package envelope normalizes the provider's response shapes. The SOAP API
// wraps every result differently: bare arrays, <op>Result objects, JSON
// encoded as a string inside JSON (sometimes twice), or a single record with
// no wrapper at all. Everything here is a pure function over decoded JSON;
// unrecognized input is "no records", never an error.
package envelope

import (
	"encoding/json"
	"sort"
	"strconv"

	"github.com/colisdesk/colisdesk/internal/models"
)

// maxUnwrapDepth bounds the string-encoded-JSON unwrap. Two levels cover every
// observed payload; deeper nesting is treated as a terminal string value.
const maxUnwrapDepth = 2

// Unwrap parses string-encoded JSON up to maxUnwrapDepth. A string that does
// not parse as JSON is returned as-is.
func Unwrap(v any) any {
	for i := 0; i < maxUnwrapDepth; i++ {
		s, ok := v.(string)
		if !ok {
			return v
		}
		var parsed any
		if err := json.Unmarshal([]byte(s), &parsed); err != nil {
			return v
		}
		v = parsed
	}
	return v
}

// Wrapper field names the provider is known to use, in priority order.
// Каждая SOAP-операция заворачивает ответ в <op>Result, поэтому дополнительно
// принимается любой ключ с суффиксом "Result".
var wrapperFields = []string{"colis", "return", "result", "data", "items", "list"}

// Resolve digs the provider payload out of whatever wrapper it arrived in
// and classifies it.
func Resolve(raw any) Outcome {
	v := Unwrap(raw)
	m, ok := v.(map[string]any)
	if !ok {
		return Classify(v)
	}
	if inner, ok := wrapperValue(m); ok {
		return Classify(Unwrap(inner))
	}
	return Classify(v)
}

func wrapperValue(m map[string]any) (any, bool) {
	var resultKeys []string
	for k := range m {
		if len(k) > len("Result") && k[len(k)-len("Result"):] == "Result" {
			resultKeys = append(resultKeys, k)
		}
	}
	sort.Strings(resultKeys)
	for _, k := range resultKeys {
		return m[k], true
	}
	for _, k := range wrapperFields {
		if v, ok := m[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

// Parcels extracts the record list from a raw provider response of any of the
// known shapes. An error envelope or an unrecognized shape yields an empty
// slice.
func Parcels(raw any) []models.Parcel {
	out := Resolve(raw)
	if out.Kind == KindError {
		return []models.Parcel{}
	}
	return recordsFrom(out.Content)
}

func recordsFrom(v any) []models.Parcel {
	switch t := Unwrap(v).(type) {
	case []any:
		return decodeList(t)
	case map[string]any:
		// Content object carrying the list under a known field.
		for _, k := range []string{"colis", "data", "items", "list"} {
			if arr, ok := Unwrap(t[k]).([]any); ok {
				return decodeList(arr)
			}
		}
		// Single record without a wrapper.
		if looksLikeParcel(t) {
			if p, ok := decodeParcel(t); ok {
				return []models.Parcel{p}
			}
		}
		// Last resort: first property holding an array, in key order.
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if arr, ok := t[k].([]any); ok {
				return decodeList(arr)
			}
		}
	}
	return []models.Parcel{}
}

// ParcelFrom extracts a single record from a detail response content.
func ParcelFrom(v any) (models.Parcel, bool) {
	switch t := Unwrap(v).(type) {
	case map[string]any:
		if looksLikeParcel(t) {
			return decodeParcel(t)
		}
		for _, k := range []string{"colis", "return", "result", "data"} {
			if sub, ok := Unwrap(t[k]).(map[string]any); ok {
				return decodeParcel(sub)
			}
		}
	}
	return models.Parcel{}, false
}

func looksLikeParcel(m map[string]any) bool {
	for _, k := range []string{"reference", "client", "id"} {
		if _, ok := m[k]; ok {
			return true
		}
	}
	return false
}

func decodeList(items []any) []models.Parcel {
	out := make([]models.Parcel, 0, len(items))
	for _, it := range items {
		m, ok := Unwrap(it).(map[string]any)
		if !ok {
			continue
		}
		if p, ok := decodeParcel(m); ok {
			out = append(out, p)
		}
	}
	return out
}

func decodeParcel(m map[string]any) (models.Parcel, bool) {
	b, err := json.Marshal(m)
	if err != nil {
		return models.Parcel{}, false
	}
	var p models.Parcel
	if err := json.Unmarshal(b, &p); err != nil {
		return models.Parcel{}, false
	}
	// Провайдер не везде кладёт code barre в "code".
	if p.Code == "" {
		if s, ok := m["code_barre"].(string); ok {
			p.Code = s
		}
	}
	return p, true
}

// PageMeta is the pagination metadata the provider reports inside a success
// content object. Values arrive as strings or numbers interchangeably.
type PageMeta struct {
	Pages int
	Count int
}

// MetaFrom reads nbPages / nbColis out of a success content value.
func MetaFrom(content any) PageMeta {
	m, ok := Unwrap(content).(map[string]any)
	if !ok {
		return PageMeta{}
	}
	return PageMeta{
		Pages: asInt(m["nbPages"]),
		Count: asInt(m["nbColis"]),
	}
}

func asInt(v any) int {
	switch t := v.(type) {
	case float64:
		return int(t)
	case string:
		n, err := strconv.Atoi(t)
		if err != nil {
			return 0
		}
		return n
	case json.Number:
		n, err := t.Int64()
		if err != nil {
			return 0
		}
		return int(n)
	default:
		return 0
	}
}
