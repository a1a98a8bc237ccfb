// Package metadata builds the key/value entries passed to a registration call.
//
// Entry values are raw bytes on the wire. Strings reach them through one of two
// encodings, and the two are easy to confuse: a value produced with one encoding
// and read back with the other decodes without complaint to different content.
// Value keeps the encoding next to the bytes so a mismatched read fails loudly.
package metadata

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Encoding is a string-to-bytes conversion.
type Encoding string

const (
	// UTF8 stores the raw UTF-8 bytes of the string.
	UTF8 Encoding = "utf8"
	// Hex stores the 0x-prefixed hex text of the string's bytes: "compute"
	// goes on chain as the 16 ASCII bytes "0x636f6d70757465", not as the
	// 7 bytes that text spells.
	Hex Encoding = "hex"
)

var (
	ErrEncodingMismatch = errors.New("metadata value decoded with a different encoding than it was encoded with")
	ErrUnknownEncoding  = errors.New("unknown metadata encoding")
	ErrInvalidEntry     = errors.New("invalid metadata entry")
)

// ParseEncoding parses "utf8" (also "utf-8") or "hex".
func ParseEncoding(s string) (Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "utf8", "utf-8":
		return UTF8, nil
	case "hex":
		return Hex, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownEncoding, s)
	}
}

// Entry is one key/value pair of a registration call. Key uniqueness is not enforced.
type Entry struct {
	Key   string
	Value []byte
}

// Value is an encoded string together with the encoding that produced it.
type Value struct {
	Raw      []byte
	Encoding Encoding
}

// Encode converts s to bytes with enc.
func Encode(s string, enc Encoding) (Value, error) {
	switch enc {
	case UTF8:
		return Value{Raw: []byte(s), Encoding: UTF8}, nil
	case Hex:
		return Value{Raw: []byte(hexutil.Encode([]byte(s))), Encoding: Hex}, nil
	default:
		return Value{}, fmt.Errorf("%w: %q", ErrUnknownEncoding, enc)
	}
}

// Decode converts the value back to a string, reading it as enc.
func (v Value) Decode(as Encoding) (string, error) {
	if as != v.Encoding {
		return "", fmt.Errorf("%w: encoded as %s, read as %s (%d raw bytes)", ErrEncodingMismatch, v.Encoding, as, len(v.Raw))
	}
	switch as {
	case UTF8:
		if !utf8.Valid(v.Raw) {
			return "", errors.New("metadata value is not valid UTF-8")
		}
		return string(v.Raw), nil
	case Hex:
		b, err := hexutil.Decode(string(v.Raw))
		if err != nil {
			return "", fmt.Errorf("decoding hex metadata value: %w", err)
		}
		return string(b), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownEncoding, as)
	}
}

// NewEntry encodes value with enc under key.
func NewEntry(key, value string, enc Encoding) (Entry, error) {
	if strings.TrimSpace(key) == "" {
		return Entry{}, fmt.Errorf("%w: empty key", ErrInvalidEntry)
	}
	v, err := Encode(value, enc)
	if err != nil {
		return Entry{}, err
	}
	return Entry{Key: key, Value: v.Raw}, nil
}

// ParseEntries parses "key=value" pairs into entries encoded with enc.
// Only the first '=' separates key from value.
func ParseEntries(pairs []string, enc Encoding) ([]Entry, error) {
	entries := make([]Entry, 0, len(pairs))
	for _, p := range pairs {
		key, value, ok := strings.Cut(p, "=")
		if !ok {
			return nil, fmt.Errorf("%w: %q (want key=value)", ErrInvalidEntry, p)
		}
		e, err := NewEntry(strings.TrimSpace(key), value, enc)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// DuplicateKeys returns keys that occur more than once, in first-seen order.
func DuplicateKeys(entries []Entry) []string {
	seen := make(map[string]int, len(entries))
	var dups []string
	for _, e := range entries {
		seen[e.Key]++
		if seen[e.Key] == 2 {
			dups = append(dups, e.Key)
		}
	}
	return dups
}
