package store

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// bytesKey wraps []byte values in the JSON encoding so they survive a round
// trip through the store. Plain JSON would silently turn bytes into a base64
// string and lose the type, which the protection layer relies on to tell a
// compressed frame from an encrypted envelope.
const bytesKey = "$bytes"

// encodeDoc serializes a document to JSON, wrapping byte slices.
func encodeDoc(doc Document) ([]byte, error) {
	data, err := json.Marshal(wrapValue(doc))
	if err != nil {
		return nil, fmt.Errorf("store: encode document: %w", err)
	}
	return data, nil
}

// decodeDoc deserializes a document, unwrapping byte slices.
func decodeDoc(data []byte) (Document, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("store: decode document: %w", err)
	}
	doc, _ := unwrapValue(raw).(Document)
	return doc, nil
}

func wrapValue(v any) any {
	switch t := v.(type) {
	case []byte:
		return map[string]any{bytesKey: base64.StdEncoding.EncodeToString(t)}
	case Document:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = wrapValue(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = wrapValue(e)
		}
		return out
	default:
		return v
	}
}

func unwrapValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		if enc, ok := t[bytesKey].(string); ok && len(t) == 1 {
			if raw, err := base64.StdEncoding.DecodeString(enc); err == nil {
				return raw
			}
		}
		out := make(Document, len(t))
		for k, e := range t {
			out[k] = unwrapValue(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = unwrapValue(e)
		}
		return out
	default:
		return v
	}
}
