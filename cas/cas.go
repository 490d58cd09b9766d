// Package cas provides content digests for history objects: BLAKE3 over a
// canonical JSON encoding, so equal content always hashes equally.
package cas

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"lukechampine.com/blake3"
)

// ShortLen is the length of an abbreviated hex digest.
const ShortLen = 12

// CanonicalJSON encodes v as JSON with object keys sorted at every level.
func CanonicalJSON(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshaling: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("decoding: %w", err)
	}

	var buf bytes.Buffer
	if err := writeCanonical(&buf, generic); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeCanonical(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			key, err := json.Marshal(k)
			if err != nil {
				return err
			}
			buf.Write(key)
			buf.WriteByte(':')
			if err := writeCanonical(buf, val[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	case []any:
		buf.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	default:
		out, err := json.Marshal(val)
		if err != nil {
			return err
		}
		buf.Write(out)
	}
	return nil
}

// Sum returns the 32-byte BLAKE3 hash of data.
func Sum(data []byte) []byte {
	sum := blake3.Sum256(data)
	return sum[:]
}

// SumHex returns the BLAKE3 hash of data as lowercase hex.
func SumHex(data []byte) string {
	return hex.EncodeToString(Sum(data))
}

// Digest returns the hex digest of an object of the given kind:
// blake3(kind + "\n" + canonicalJSON(v)).
func Digest(kind string, v any) (string, error) {
	canonical, err := CanonicalJSON(v)
	if err != nil {
		return "", fmt.Errorf("canonicalizing %s: %w", kind, err)
	}
	return SumHex(append([]byte(kind+"\n"), canonical...)), nil
}

// Short abbreviates a hex digest for display.
func Short(digest string) string {
	if len(digest) <= ShortLen {
		return digest
	}
	return digest[:ShortLen]
}
