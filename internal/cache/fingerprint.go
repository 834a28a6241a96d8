package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
)

// Fingerprint computes the stable request_fingerprint for a tool call:
// hash(provider_id, tool_name, canonical_json(args)). Canonicalization sorts
// map keys recursively so argument key order never changes the fingerprint
// (invariant I5/R1).
func Fingerprint(providerID, toolName string, args map[string]any) string {
	canon := canonicalize(args)
	b, _ := json.Marshal(canon)

	h := sha256.New()
	h.Write([]byte(providerID))
	h.Write([]byte{0})
	h.Write([]byte(toolName))
	h.Write([]byte{0})
	h.Write(b)
	return hex.EncodeToString(h.Sum(nil))
}

// canonicalize rewrites a JSON-shaped value so that encoding/json always
// renders map keys in the same order — Go already sorts map[string]any keys
// when marshalling, but nested map[string]interface{} values produced by
// some decoders may not be of that exact type, so this walks explicitly.
func canonicalize(v any) any {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make(orderedMap, 0, len(val))
		for _, k := range keys {
			out = append(out, kv{k, canonicalize(val[k])})
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = canonicalize(e)
		}
		return out
	default:
		return val
	}
}

type kv struct {
	Key   string
	Value any
}

// orderedMap marshals as a JSON object preserving insertion order, which we
// control by iterating sorted keys in canonicalize.
type orderedMap []kv

func (m orderedMap) MarshalJSON() ([]byte, error) {
	b := []byte{'{'}
	for i, pair := range m {
		if i > 0 {
			b = append(b, ',')
		}
		kb, err := json.Marshal(pair.Key)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(pair.Value)
		if err != nil {
			return nil, err
		}
		b = append(b, kb...)
		b = append(b, ':')
		b = append(b, vb...)
	}
	b = append(b, '}')
	return b, nil
}
