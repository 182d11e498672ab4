// Package config describes a machine in JSON: its I2C controllers, where
// they are mapped, and the slave devices attached to each.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/cubesatlab/renode-infrastructure/errcode"
	"github.com/cubesatlab/renode-infrastructure/peripherals/i2c"
)

// Number is an unsigned integer written either as a JSON number or as a
// string in any base strconv understands ("0x40", "0b101", "64").
type Number uint64

func (n *Number) UnmarshalJSON(b []byte) error {
	s := string(b)
	if strings.HasPrefix(s, `"`) {
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
	}
	v, err := strconv.ParseUint(strings.TrimSpace(s), 0, 64)
	if err != nil {
		return errcode.Wrap(errcode.InvalidParams, "config.number", err)
	}
	*n = Number(v)
	return nil
}

type Machine struct {
	Name string `json:"name"`
	// AutoSync defaults to true.
	AutoSync *bool `json:"auto_sync,omitempty"`
	I2C      []I2C `json:"i2c"`
}

type I2C struct {
	Name               string  `json:"name"`
	Base               Number  `json:"base"`
	ReleaseSlaveOnIdle bool    `json:"release_slave_on_idle,omitempty"`
	Slaves             []Slave `json:"slaves,omitempty"`
}

// Slave is one device on a controller. Which fields apply depends on Type.
type Slave struct {
	Name    string `json:"name,omitempty"`
	Type    string `json:"type"`
	Address Number `json:"address"`

	// regfile
	Size     int               `json:"size,omitempty"`
	Init     map[string]Number `json:"init,omitempty"`
	ReadOnly []Number          `json:"read_only,omitempty"`

	// aht20, shtc3
	Humidity    float64 `json:"humidity,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
}

// DisplayName is Name, or the type and address when Name is empty.
func (s Slave) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	return fmt.Sprintf("%s@0x%02X", s.Type, uint64(s.Address))
}

// Parse decodes and validates a machine description. Unknown keys are
// rejected.
func Parse(data []byte) (*Machine, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var m Machine
	if err := dec.Decode(&m); err != nil {
		return nil, errcode.Wrap(errcode.InvalidParams, "config.parse", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Load reads a machine description from a file.
func Load(path string) (*Machine, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errcode.Wrap(errcode.InvalidParams, "config.load", err)
	}
	return Parse(b)
}

// Embedded returns a built-in machine description.
func Embedded(name string) (*Machine, error) {
	raw, ok := EmbeddedConfigLookup(name)
	if !ok || len(raw) == 0 {
		return nil, errcode.New(errcode.UnknownDevice, "config.embedded", "no embedded config for "+name)
	}
	return Parse(raw)
}

func (m *Machine) Validate() error {
	const op = "config.validate"
	if m.Name == "" {
		return errcode.New(errcode.InvalidParams, op, "machine name is empty")
	}
	seen := map[string]bool{}
	for i, c := range m.I2C {
		if c.Name == "" {
			return errcode.New(errcode.InvalidParams, op, fmt.Sprintf("i2c[%d] has no name", i))
		}
		if seen[c.Name] {
			return errcode.New(errcode.InvalidParams, op, "duplicate controller "+c.Name)
		}
		seen[c.Name] = true
		addrs := map[Number]bool{}
		for _, s := range c.Slaves {
			if s.Address > i2c.MaxAddress {
				return errcode.New(errcode.InvalidAddress, op,
					fmt.Sprintf("%s: slave %s address 0x%X is not 7-bit", c.Name, s.DisplayName(), uint64(s.Address)))
			}
			if addrs[s.Address] {
				return errcode.New(errcode.DuplicateAddress, op,
					fmt.Sprintf("%s: address 0x%02X used twice", c.Name, uint64(s.Address)))
			}
			addrs[s.Address] = true
			if _, ok := slaveTypes[s.Type]; !ok {
				return errcode.New(errcode.UnknownDevice, op,
					fmt.Sprintf("%s: unknown slave type %q", c.Name, s.Type))
			}
		}
	}
	return nil
}
