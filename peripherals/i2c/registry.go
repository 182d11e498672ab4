package i2c

import (
	"fmt"
	"sort"

	"github.com/cubesatlab/renode-infrastructure/errcode"
)

// MaxAddress is the highest 7-bit address.
const MaxAddress = 0x7F

// Registry maps 7-bit addresses to slave devices.
type Registry struct {
	slaves map[uint8]Peripheral
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry { return &Registry{slaves: make(map[uint8]Peripheral)} }

// Register attaches p at a 7-bit address that is not already taken.
func (r *Registry) Register(addr int, p Peripheral) error {
	const op = "i2c.register"
	switch {
	case p == nil:
		return errcode.New(errcode.InvalidParams, op, "nil peripheral")
	case addr < 0 || addr > MaxAddress:
		return errcode.New(errcode.InvalidAddress, op, fmt.Sprintf("0x%X is not a 7-bit address", addr))
	}
	if _, dup := r.slaves[uint8(addr)]; dup {
		return errcode.New(errcode.DuplicateAddress, op, fmt.Sprintf("0x%02X", addr))
	}
	r.slaves[uint8(addr)] = p
	return nil
}

// Unregister detaches the device at addr.
func (r *Registry) Unregister(addr int) error {
	if addr < 0 || addr > MaxAddress {
		return errcode.New(errcode.InvalidAddress, "i2c.unregister", fmt.Sprintf("0x%X", addr))
	}
	if _, ok := r.slaves[uint8(addr)]; !ok {
		return errcode.New(errcode.UnknownDevice, "i2c.unregister", fmt.Sprintf("0x%02X", addr))
	}
	delete(r.slaves, uint8(addr))
	return nil
}

// Lookup resolves a decoded address. Only the low 7 bits are used.
func (r *Registry) Lookup(addr uint8) (Peripheral, bool) {
	p, ok := r.slaves[addr&MaxAddress]
	return p, ok
}

// Addresses lists registered addresses in ascending order.
func (r *Registry) Addresses() []uint8 {
	out := make([]uint8, 0, len(r.slaves))
	for a := range r.slaves {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Reset resets every registered device.
func (r *Registry) Reset() {
	for _, a := range r.Addresses() {
		r.slaves[a].Reset()
	}
}
