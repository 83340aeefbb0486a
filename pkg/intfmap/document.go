package intfmap

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Format selects the syntax of a mapping document.
type Format int

const (
	FormatJSON Format = iota
	FormatYAML
)

func (f Format) String() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatYAML:
		return "yaml"
	default:
		return "unknown"
	}
}

// element is one undecoded array item of a mapping document.
type element struct {
	value interface{}
	// repeated is the first key that occurs twice in the item's object.
	repeated string
}

// decodeDocument turns raw bytes into the list of generic entry values.
// Elements are left untyped; shape checks happen per entry.
func decodeDocument(data []byte, format Format) ([]element, error) {
	var doc interface{}
	switch format {
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&doc); err != nil {
			return nil, tableError(ErrParseFailed, err)
		}
		if _, err := dec.Token(); !errors.Is(err, io.EOF) {
			return nil, tableError(ErrParseFailed, errors.New("unexpected data after top-level array"))
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, tableError(ErrParseFailed, err)
		}
	default:
		return nil, tableError(ErrParseFailed, fmt.Errorf("unsupported format %d", format))
	}

	list, ok := doc.([]interface{})
	if !ok {
		return nil, tableError(ErrParseFailed, fmt.Errorf("top-level value must be an array, got %s", kindOf(doc)))
	}
	elems := make([]element, len(list))
	for i, v := range list {
		elems[i].value = v
	}
	// yaml.v3 already fails on repeated mapping keys, encoding/json keeps
	// the last value.
	if format == FormatJSON {
		if err := findRepeatedKeys(data, elems); err != nil {
			return nil, tableError(ErrParseFailed, err)
		}
	}
	return elems, nil
}

// findRepeatedKeys scans the top-level keys of every object in the JSON
// array data and records the first repeated one on elems.
func findRepeatedKeys(data []byte, elems []element) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	if _, err := dec.Token(); err != nil {
		return err
	}
	for i := 0; dec.More() && i < len(elems); i++ {
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		key, err := repeatedKey(raw)
		if err != nil {
			return err
		}
		elems[i].repeated = key
	}
	return nil
}

func repeatedKey(raw json.RawMessage) (string, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return "", err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return "", nil
	}
	seen := map[string]struct{}{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return "", err
		}
		key, ok := tok.(string)
		if !ok {
			return "", fmt.Errorf("unexpected object key %v", tok)
		}
		if _, ok := seen[key]; ok {
			return key, nil
		}
		seen[key] = struct{}{}
		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return "", err
		}
	}
	return "", nil
}

// asObject returns the element as a string-keyed map, or nil when the
// element is not an object.
func asObject(v interface{}) map[string]interface{} {
	switch o := v.(type) {
	case map[string]interface{}:
		return o
	case map[interface{}]interface{}:
		res := make(map[string]interface{}, len(o))
		for k, val := range o {
			res[fmt.Sprint(k)] = val
		}
		return res
	default:
		return nil
	}
}

func asString(v interface{}) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

// asInt accepts only integral values: JSON numbers without fraction or
// exponent and YAML integers.
func asInt(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case json.Number:
		i, err := strconv.ParseInt(string(n), 10, 64)
		if err != nil {
			return 0, false
		}
		return i, true
	case int:
		return int64(n), true
	case int64:
		return n, true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	default:
		return 0, false
	}
}

func kindOf(v interface{}) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case json.Number, int, int64, uint64, float64:
		return "number"
	case []interface{}:
		return "array"
	case map[string]interface{}, map[interface{}]interface{}:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
