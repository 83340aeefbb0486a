package intfmap

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DefaultMaxSize bounds the mapping document size when LoadOptions.MaxSize is 0.
const DefaultMaxSize = 1 << 20

// Document keys of one mapping entry.
const (
	FieldIPToCAN        = "ip-to-can"
	FieldPortToCAN      = "port-to-can"
	FieldCANToIP        = "can-to-ip"
	FieldCANToPort      = "can-to-port"
	FieldCANInterfaceID = "can-interface-id"
	FieldCANProtocolID  = "can-protocol-id"
)

var entryFields = []string{
	FieldIPToCAN,
	FieldPortToCAN,
	FieldCANToIP,
	FieldCANToPort,
	FieldCANInterfaceID,
	FieldCANProtocolID,
}

type LoadOptions struct {
	// MaxSize is the largest accepted document in bytes.
	MaxSize int64
	Format  Format
}

func (o LoadOptions) maxSize() int64 {
	if o.MaxSize <= 0 {
		return DefaultMaxSize
	}
	return o.MaxSize
}

// FormatForPath guesses the document format from the file extension.
func FormatForPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// LoadFile reads and loads the mapping document at path. The format is
// taken from the extension; opts.Format is ignored.
func LoadFile(path string, opts LoadOptions) (Table, error) {
	st, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat mapping file %s: %w", path, err)
	}
	if st.Size() > opts.maxSize() {
		return nil, tableError(ErrTooLarge, fmt.Errorf("%s is %d bytes, limit is %d", path, st.Size(), opts.maxSize()))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read mapping file %s: %w", path, err)
	}
	opts.Format = FormatForPath(path)
	return Load(data, opts)
}

// Load parses a mapping document. Any failure aborts the whole load and no
// table is returned.
func Load(data []byte, opts LoadOptions) (Table, error) {
	if int64(len(data)) > opts.maxSize() {
		return nil, tableError(ErrTooLarge, fmt.Errorf("%d bytes, limit is %d", len(data), opts.maxSize()))
	}

	items, err := decodeDocument(data, opts.Format)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, tableError(ErrEmptyTable, nil)
	}

	table := make(Table, 0, len(items))
	for i, item := range items {
		entry, err := parseEntry(i, item)
		if err != nil {
			return nil, err
		}
		table = append(table, entry)
	}

	if err := checkDuplicates(table); err != nil {
		return nil, err
	}
	return table, nil
}

func parseEntry(index int, item element) (Entry, error) {
	obj := asObject(item.value)
	if !hasAnyField(obj) {
		return Entry{}, entryError(ErrEmptyEntry, index, "", nil)
	}
	if item.repeated != "" {
		return Entry{}, entryError(ErrInvalidField, index, item.repeated, fmt.Errorf("repeated key"))
	}

	var e Entry
	var err error

	if e.ToCAN.IP, err = stringField(obj, index, FieldIPToCAN); err != nil {
		return Entry{}, err
	}
	if e.FromCAN.IP, err = stringField(obj, index, FieldCANToIP); err != nil {
		return Entry{}, err
	}
	if e.ToCAN.Port, err = intField(obj, index, FieldPortToCAN, 0, math.MaxUint16); err != nil {
		return Entry{}, err
	}
	if e.FromCAN.Port, err = intField(obj, index, FieldCANToPort, 0, math.MaxUint16); err != nil {
		return Entry{}, err
	}

	canID, err := stringField(obj, index, FieldCANInterfaceID)
	if err != nil {
		return Entry{}, err
	}
	e.ToCAN.CANInterfaceID = canID
	e.FromCAN.CANInterfaceID = canID

	protoID, err := intField(obj, index, FieldCANProtocolID, math.MinInt32, math.MaxInt32)
	if err != nil {
		return Entry{}, err
	}
	e.ToCAN.CANProtocolID = protoID
	e.FromCAN.CANProtocolID = protoID

	if unknown := unknownFields(obj); len(unknown) > 0 {
		return Entry{}, entryError(ErrInvalidField, index, unknown[0], fmt.Errorf("unknown field (expected only %s)", strings.Join(entryFields, ", ")))
	}
	return e, nil
}

func hasAnyField(obj map[string]interface{}) bool {
	for _, f := range entryFields {
		if _, ok := obj[f]; ok {
			return true
		}
	}
	return false
}

func unknownFields(obj map[string]interface{}) []string {
	known := map[string]struct{}{}
	for _, f := range entryFields {
		known[f] = struct{}{}
	}
	res := []string{}
	for k := range obj {
		if _, ok := known[k]; !ok {
			res = append(res, k)
		}
	}
	sort.Strings(res)
	return res
}

func stringField(obj map[string]interface{}, index int, field string) (string, error) {
	v, ok := obj[field]
	if !ok {
		return "", entryError(ErrInvalidField, index, field, fmt.Errorf("missing"))
	}
	s, ok := asString(v)
	if !ok {
		return "", entryError(ErrInvalidField, index, field, fmt.Errorf("must be a string, got %s", kindOf(v)))
	}
	if s == "" {
		return "", entryError(ErrInvalidField, index, field, fmt.Errorf("must not be empty"))
	}
	return s, nil
}

func intField(obj map[string]interface{}, index int, field string, min, max int64) (int, error) {
	v, ok := obj[field]
	if !ok {
		return 0, entryError(ErrInvalidField, index, field, fmt.Errorf("missing"))
	}
	n, ok := asInt(v)
	if !ok {
		return 0, entryError(ErrInvalidField, index, field, fmt.Errorf("must be an integer, got %s", kindOf(v)))
	}
	if n < min || n > max {
		return 0, entryError(ErrInvalidField, index, field, fmt.Errorf("%d out of range [%d, %d]", n, min, max))
	}
	return int(n), nil
}

// checkDuplicates rejects entries whose configured fields repeat an earlier
// entry. Computed fields are not compared.
func checkDuplicates(t Table) error {
	seen := make(map[Entry]int, len(t))
	for i, e := range t {
		if first, ok := seen[e]; ok {
			return entryError(ErrDuplicateEntry, i, "", fmt.Errorf("same as entry %d", first))
		}
		seen[e] = i
	}
	return nil
}
