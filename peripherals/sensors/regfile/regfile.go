// Package regfile is a generic I2C slave exposing a byte-wide register
// file behind an auto-incrementing register pointer, the access pattern
// shared by most I2C sensors:
//
//	[reg]            set the pointer for a following read
//	[reg, b0, b1...] write b0 at reg, b1 at reg+1, ...
package regfile

import (
	"fmt"

	"github.com/cubesatlab/renode-infrastructure/core/registers"
	"github.com/cubesatlab/renode-infrastructure/errcode"
	"github.com/cubesatlab/renode-infrastructure/x/logx"
)

type Config struct {
	// Size is the number of registers, 1 to 256. Zero means 256.
	Size int
	// Init holds reset values for individual registers.
	Init map[uint8]byte
	// ReadOnly lists registers that ignore writes.
	ReadOnly []uint8
}

type Device struct {
	name string
	log  *logx.Logger
	regs *registers.Collection[uint8]
	size int
	ptr  uint8
}

func New(name string, cfg Config) (*Device, error) {
	size := cfg.Size
	if size == 0 {
		size = 256
	}
	if size < 0 || size > 256 {
		return nil, errcode.New(errcode.InvalidParams, "regfile "+name, fmt.Sprintf("size %d out of range", size))
	}
	ro := make(map[uint8]bool, len(cfg.ReadOnly))
	for _, a := range cfg.ReadOnly {
		ro[a] = true
	}

	m := make(map[int64]*registers.Register[uint8], size)
	for i := 0; i < size; i++ {
		a := uint8(i)
		mode := registers.ReadWrite
		if ro[a] {
			mode = registers.Read
		}
		r := registers.New[uint8](fmt.Sprintf("0x%02X", a))
		r.DefineValue(0, 8, "value", registers.ValueOpts[uint8]{Mode: mode, Reset: cfg.Init[a]})
		m[int64(a)] = r
	}
	for a := range cfg.Init {
		if int(a) >= size {
			return nil, errcode.New(errcode.InvalidParams, "regfile "+name, fmt.Sprintf("init register 0x%02X beyond size %d", a, size))
		}
	}
	return &Device{name: name, log: logx.New(name), regs: registers.NewCollection(m), size: size}, nil
}

func (d *Device) Name() string { return d.name }

func (d *Device) Size() int { return d.size }

// Pointer is the register the next read or write starts at.
func (d *Device) Pointer() uint8 { return d.ptr }

func (d *Device) Write(data []byte) {
	if len(data) == 0 {
		d.log.Warning("write with no data")
		return
	}
	d.ptr = data[0]
	d.log.Noisy("pointer 0x%02X, %d data byte(s)", d.ptr, len(data)-1)
	for _, b := range data[1:] {
		if !d.regs.Write(int64(d.ptr), b) {
			d.log.Warning("write 0x%02X to unmapped register 0x%02X", b, d.ptr)
		}
		d.ptr++
	}
}

// Read returns count bytes (at least one) starting at the pointer.
func (d *Device) Read(count int) []byte {
	if count < 1 {
		count = 1
	}
	out := make([]byte, count)
	for i := range out {
		v, ok := d.regs.Read(int64(d.ptr))
		if !ok {
			d.log.Warning("read from unmapped register 0x%02X", d.ptr)
		}
		out[i] = v
		d.ptr++
	}
	return out
}

func (d *Device) FinishTransmission() {}

func (d *Device) Reset() {
	d.regs.Reset()
	d.ptr = 0
}

// Peek returns a register without moving the pointer.
func (d *Device) Peek(reg uint8) byte {
	if r := d.regs.Lookup(int64(reg)); r != nil {
		return r.Value()
	}
	return 0
}

// Poke stores a register value, bypassing read-only protection.
func (d *Device) Poke(reg uint8, v byte) {
	if r := d.regs.Lookup(int64(reg)); r != nil {
		r.SetValue(v)
	}
}
