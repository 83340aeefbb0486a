package intfmap

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const threeEntries = `
[
   {
      "ip-to-can":"10.0.0.1",
      "port-to-can":1234,
      "can-to-ip":"10.0.0.2",
      "can-to-port":4321,
      "can-interface-id":"can0",
      "can-protocol-id":1
   },
   {
      "ip-to-can":"10.0.0.1",
      "port-to-can":1235,
      "can-to-ip":"10.0.0.3",
      "can-to-port":4321,
      "can-interface-id":"can1",
      "can-protocol-id":2
   },
   {
      "ip-to-can":"192.168.1.20",
      "port-to-can":5000,
      "can-to-ip":"10.0.0.2",
      "can-to-port":4321,
      "can-interface-id":"can0",
      "can-protocol-id":3
   }
]
`

func TestLoad(t *testing.T) {
	table, err := Load([]byte(threeEntries), LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, 3, len(table))

	e := table[0]
	assert.Equal(t, "10.0.0.1", e.ToCAN.IP)
	assert.Equal(t, 1234, e.ToCAN.Port)
	assert.Equal(t, "10.0.0.2", e.FromCAN.IP)
	assert.Equal(t, 4321, e.FromCAN.Port)
	assert.Equal(t, "can0", e.ToCAN.CANInterfaceID)
	assert.Equal(t, "can0", e.FromCAN.CANInterfaceID)
	assert.Equal(t, 1, e.ToCAN.CANProtocolID)
	assert.Equal(t, 1, e.FromCAN.CANProtocolID)

	assert.Equal(t, "can1", table[1].ToCAN.CANInterfaceID)
	assert.Equal(t, "192.168.1.20", table[2].ToCAN.IP)
	assert.Equal(t, []string{"can0", "can1"}, table.InterfaceIDs())
}

func TestLoadYAML(t *testing.T) {
	doc := `
- ip-to-can: "10.0.0.1"
  port-to-can: 1234
  can-to-ip: localhost
  can-to-port: 4321
  can-interface-id: vcan0
  can-protocol-id: 7
`
	table, err := Load([]byte(doc), LoadOptions{Format: FormatYAML})
	require.NoError(t, err)
	require.Equal(t, 1, len(table))
	assert.Equal(t, "localhost", table[0].FromCAN.IP)
	assert.Equal(t, 1234, table[0].ToCAN.Port)
	assert.Equal(t, 7, table[0].FromCAN.CANProtocolID)
}

func TestLoadInvalidField(t *testing.T) {
	valid := map[string]string{
		FieldIPToCAN:        `"10.0.0.1"`,
		FieldPortToCAN:      `1234`,
		FieldCANToIP:        `"10.0.0.2"`,
		FieldCANToPort:      `4321`,
		FieldCANInterfaceID: `"can0"`,
		FieldCANProtocolID:  `1`,
	}
	testCases := []struct {
		name     string
		override map[string]string
		field    string
	}{
		{"string port", map[string]string{FieldPortToCAN: `"1234"`}, FieldPortToCAN},
		{"float port", map[string]string{FieldCANToPort: `12.5`}, FieldCANToPort},
		{"port out of range", map[string]string{FieldPortToCAN: `70000`}, FieldPortToCAN},
		{"negative port", map[string]string{FieldCANToPort: `-1`}, FieldCANToPort},
		{"null ip", map[string]string{FieldIPToCAN: `null`}, FieldIPToCAN},
		{"numeric ip", map[string]string{FieldCANToIP: `10`}, FieldCANToIP},
		{"empty ip", map[string]string{FieldCANToIP: `""`}, FieldCANToIP},
		{"missing ip", map[string]string{FieldIPToCAN: ""}, FieldIPToCAN},
		{"numeric interface", map[string]string{FieldCANInterfaceID: `0`}, FieldCANInterfaceID},
		{"missing protocol", map[string]string{FieldCANProtocolID: ""}, FieldCANProtocolID},
		{"string protocol", map[string]string{FieldCANProtocolID: `"1"`}, FieldCANProtocolID},
		{"protocol overflow", map[string]string{FieldCANProtocolID: `4294967296`}, FieldCANProtocolID},
		{"unknown field", map[string]string{"comment": `"x"`}, "comment"},
		// ip fields are checked before ports
		{"ip before port", map[string]string{FieldCANToIP: `true`, FieldPortToCAN: `"x"`}, FieldCANToIP},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			fields := map[string]string{}
			for k, v := range valid {
				fields[k] = v
			}
			for k, v := range tc.override {
				fields[k] = v
			}
			doc := `[` + entryJSON(valid) + `,` + entryJSON(fields) + `]`

			table, err := Load([]byte(doc), LoadOptions{})
			assert.Nil(t, table)
			assert.True(t, errors.Is(err, ErrInvalidField), "%v", err)

			var cerr *ConfigError
			require.True(t, errors.As(err, &cerr))
			assert.Equal(t, 1, cerr.EntryIndex)
			assert.Equal(t, tc.field, cerr.Field)
		})
	}
}

func TestLoadRepeatedKey(t *testing.T) {
	testCases := []struct {
		name  string
		entry string
		field string
	}{
		{"mistyped then valid", `{"ip-to-can":"a","port-to-can":"oops","port-to-can":1,"can-to-ip":"b","can-to-port":2,"can-interface-id":"can0","can-protocol-id":1}`, FieldPortToCAN},
		{"valid twice", `{"ip-to-can":"a","ip-to-can":"a","port-to-can":1,"can-to-ip":"b","can-to-port":2,"can-interface-id":"can0","can-protocol-id":1}`, FieldIPToCAN},
		{"unknown key twice", `{"ip-to-can":"a","port-to-can":1,"can-to-ip":"b","can-to-port":2,"can-interface-id":"can0","can-protocol-id":1,"x":{"y":1,"y":2},"x":0}`, "x"},
	}
	valid := `{"ip-to-can":"c","port-to-can":3,"can-to-ip":"d","can-to-port":4,"can-interface-id":"can1","can-protocol-id":2}`
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			table, err := Load([]byte(`[`+valid+`,`+tc.entry+`]`), LoadOptions{})
			assert.Nil(t, table)
			assert.True(t, errors.Is(err, ErrInvalidField), "%v", err)

			var cerr *ConfigError
			require.True(t, errors.As(err, &cerr))
			assert.Equal(t, 1, cerr.EntryIndex)
			assert.Equal(t, tc.field, cerr.Field)
		})
	}

	// keys repeated inside nested values are not entry keys
	_, err := Load([]byte(`[`+valid+`,{"ip-to-can":"a","port-to-can":1,"can-to-ip":"b","can-to-port":2,"can-interface-id":"can0","can-protocol-id":1,"x":{"y":1,"y":2}}]`), LoadOptions{})
	var cerr *ConfigError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, "x", cerr.Field)
	assert.Contains(t, err.Error(), "unknown field")

	// YAML rejects the same document while parsing
	_, err = Load([]byte(`[`+testCases[0].entry+`]`), LoadOptions{Format: FormatYAML})
	assert.NotEqual(t, nil, err)
}

func TestLoadStringPortNamesPort(t *testing.T) {
	doc := `[{"ip-to-can":"a","port-to-can":"80","can-to-ip":"b","can-to-port":1,"can-interface-id":"can0","can-protocol-id":1}]`
	_, err := Load([]byte(doc), LoadOptions{})
	var cerr *ConfigError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, ErrInvalidField, cerr.Kind)
	assert.Equal(t, 0, cerr.EntryIndex)
	assert.True(t, strings.Contains(cerr.Field, "port"))
	assert.Contains(t, err.Error(), "entry 0")
}

func TestLoadEmptyEntry(t *testing.T) {
	for _, doc := range []string{`[{}]`, `[{"name":"x"}]`, `[42]`, `[null]`} {
		_, err := Load([]byte(doc), LoadOptions{})
		assert.True(t, errors.Is(err, ErrEmptyEntry), "%s: %v", doc, err)
	}
}

func TestLoadParseFailed(t *testing.T) {
	for _, doc := range []string{``, `[`, `{}`, `"x"`, `null`, `[] []`, `[{"ip-to-can":}]`} {
		table, err := Load([]byte(doc), LoadOptions{})
		assert.Nil(t, table)
		assert.True(t, errors.Is(err, ErrParseFailed), "%q: %v", doc, err)
	}

	_, err := Load([]byte("a: [b"), LoadOptions{Format: FormatYAML})
	assert.True(t, errors.Is(err, ErrParseFailed), "%v", err)
}

func TestLoadEmptyTable(t *testing.T) {
	_, err := Load([]byte(`[]`), LoadOptions{})
	assert.True(t, errors.Is(err, ErrEmptyTable))

	_, err = Load([]byte(`[]`), LoadOptions{Format: FormatYAML})
	assert.True(t, errors.Is(err, ErrEmptyTable))
}

func TestLoadTooLarge(t *testing.T) {
	// Not even valid syntax: the size check must come first.
	doc := []byte(strings.Repeat("{", 65))
	_, err := Load(doc, LoadOptions{MaxSize: 64})
	assert.True(t, errors.Is(err, ErrTooLarge), "%v", err)
	assert.False(t, errors.Is(err, ErrParseFailed))

	_, err = Load([]byte(threeEntries), LoadOptions{MaxSize: int64(len(threeEntries))})
	assert.Equal(t, nil, err)
}

func TestLoadDuplicateEntry(t *testing.T) {
	e := `{"ip-to-can":"a","port-to-can":1,"can-to-ip":"b","can-to-port":2,"can-interface-id":"can0","can-protocol-id":1}`
	doc := `[` + e + `,` + strings.Replace(e, `"can-protocol-id":1`, `"can-protocol-id":2`, 1) + `,` + e + `]`
	_, err := Load([]byte(doc), LoadOptions{})
	assert.True(t, errors.Is(err, ErrDuplicateEntry), "%v", err)

	var cerr *ConfigError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, 2, cerr.EntryIndex)
	assert.Contains(t, err.Error(), "same as entry 0")
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()

	jsonPath := filepath.Join(dir, "interface_map.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(threeEntries), 0o644))
	table, err := LoadFile(jsonPath, LoadOptions{})
	assert.Equal(t, nil, err)
	assert.Equal(t, 3, len(table))

	yamlPath := filepath.Join(dir, "interface_map.yml")
	yamlDoc := `
- {ip-to-can: "10.0.0.1", port-to-can: 1, can-to-ip: "10.0.0.2", can-to-port: 2, can-interface-id: can0, can-protocol-id: 1}
- {ip-to-can: "10.0.0.1", port-to-can: 3, can-to-ip: "10.0.0.2", can-to-port: 4, can-interface-id: can0, can-protocol-id: 1}
`
	require.NoError(t, os.WriteFile(yamlPath, []byte(yamlDoc), 0o644))
	table, err = LoadFile(yamlPath, LoadOptions{})
	assert.Equal(t, nil, err)
	assert.Equal(t, 2, len(table))

	// a JSON reader would reject this document
	_, err = Load([]byte(yamlDoc), LoadOptions{})
	assert.True(t, errors.Is(err, ErrParseFailed))

	_, err = LoadFile(jsonPath, LoadOptions{MaxSize: 10})
	assert.True(t, errors.Is(err, ErrTooLarge))

	_, err = LoadFile(filepath.Join(dir, "missing.json"), LoadOptions{})
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func entryJSON(fields map[string]string) string {
	parts := []string{}
	for _, f := range entryFields {
		if v := fields[f]; v != "" {
			parts = append(parts, `"`+f+`":`+v)
		}
	}
	for k, v := range fields {
		if v == "" || contains(entryFields, k) {
			continue
		}
		parts = append(parts, `"`+k+`":`+v)
	}
	return "{" + strings.Join(parts, ",") + "}"
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
