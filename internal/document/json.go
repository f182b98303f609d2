package document

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
)

// Marshal encodes v as JSON, preserving Object field order. It is the only
// place in the package that produces bytes, mirroring how bson2.Encode is
// the single BSON-writing entry point in the teacher package.
func Marshal(v Value) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeJSON(&buf, v); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func writeJSON(buf *bytes.Buffer, v Value) error {
	switch t := v.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		if t {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case int64:
		buf.WriteString(strconv.FormatInt(t, 10))
	case float64:
		b, err := json.Marshal(t)
		if err != nil {
			return err
		}

		buf.Write(b)
	case string:
		b, err := json.Marshal(t)
		if err != nil {
			return err
		}

		buf.Write(b)
	case *Array:
		buf.WriteByte('[')

		for i, e := range t.Values() {
			if i > 0 {
				buf.WriteByte(',')
			}

			if err := writeJSON(buf, e); err != nil {
				return err
			}
		}

		buf.WriteByte(']')
	case *Object:
		buf.WriteByte('{')

		for i, k := range t.Keys() {
			if i > 0 {
				buf.WriteByte(',')
			}

			kb, err := json.Marshal(k)
			if err != nil {
				return err
			}

			buf.Write(kb)
			buf.WriteByte(':')

			val, _ := t.Get(k)
			if err := writeJSON(buf, val); err != nil {
				return err
			}
		}

		buf.WriteByte('}')
	default:
		return fmt.Errorf("document: cannot encode value of type %T", t)
	}

	return nil
}

// Unmarshal decodes a single JSON value from data into a Value, preserving
// object key order via token-by-token decoding (encoding into a plain Go
// map would silently discard it).
func Unmarshal(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	v, err := decodeValue(dec)
	if err != nil {
		return nil, err
	}

	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("document: trailing data after top-level value")
	}

	return v, nil
}

// UnmarshalObject decodes data as a top-level JSON object.
func UnmarshalObject(data []byte) (*Object, error) {
	v, err := Unmarshal(data)
	if err != nil {
		return nil, err
	}

	obj, ok := v.(*Object)
	if !ok {
		return nil, fmt.Errorf("document: expected a JSON object at the top level")
	}

	return obj, nil
}

// UnmarshalArray decodes data as a top-level JSON array.
func UnmarshalArray(data []byte) (*Array, error) {
	v, err := Unmarshal(data)
	if err != nil {
		return nil, err
	}

	arr, ok := v.(*Array)
	if !ok {
		return nil, fmt.Errorf("document: expected a JSON array at the top level")
	}

	return arr, nil
}

func decodeValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}

	return decodeToken(dec, tok)
}

func decodeToken(dec *json.Decoder, tok json.Token) (Value, error) {
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case json.Delim('{'):
			return decodeObject(dec)
		case json.Delim('['):
			return decodeArray(dec)
		default:
			return nil, fmt.Errorf("document: unexpected delimiter %q", t)
		}
	case nil:
		return nil, nil
	case bool:
		return t, nil
	case string:
		return t, nil
	case json.Number:
		return parseNumber(t)
	default:
		return nil, fmt.Errorf("document: unexpected token %T", t)
	}
}

// parseNumber classifies a JSON number literal as Integer or Float: a
// literal with no '.' and no exponent that fits in int64 decodes as
// Integer, everything else as Float. This mirrors how most JSON-to-typed
// decoders in the Go ecosystem (including encoding/json's json.Number)
// leave the choice to the caller.
func parseNumber(n json.Number) (Value, error) {
	s := string(n)
	if !strings.ContainsAny(s, ".eE") {
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i, nil
		}
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("document: invalid number %q: %w", s, err)
	}

	return f, nil
}

func decodeObject(dec *json.Decoder) (*Object, error) {
	obj := NewObject(0)

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}

		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("document: expected object key, got %T", keyTok)
		}

		val, err := decodeValue(dec)
		if err != nil {
			return nil, err
		}

		obj.Set(key, val)
	}

	// consume closing '}'
	if _, err := dec.Token(); err != nil {
		return nil, err
	}

	return obj, nil
}

func decodeArray(dec *json.Decoder) (*Array, error) {
	arr := NewArray()

	for dec.More() {
		val, err := decodeValue(dec)
		if err != nil {
			return nil, err
		}

		arr.Append(val)
	}

	// consume closing ']'
	if _, err := dec.Token(); err != nil {
		return nil, err
	}

	return arr, nil
}
