// Package machine assembles memory-mapped peripherals behind a system bus
// and drives the shared virtual clock. Every CPU-side access is followed by
// a synchronisation of the deferred-update queue, which is what firmware
// would observe after each load or store instruction retires.
package machine

import (
	"fmt"
	"sort"
	"sync"

	"github.com/cubesatlab/renode-infrastructure/bus"
	"github.com/cubesatlab/renode-infrastructure/core/timesource"
	"github.com/cubesatlab/renode-infrastructure/errcode"
	"github.com/cubesatlab/renode-infrastructure/x/logx"
)

// Device is a peripheral with 32-bit native registers.
type Device interface {
	ReadDoubleWord(offset int64) uint32
	WriteDoubleWord(offset int64, v uint32)
	Size() int64
	Reset()
}

// ByteDevice is implemented by devices that decode 8-bit accesses
// themselves.
type ByteDevice interface {
	ReadByte(offset int64) byte
	WriteByte(offset int64, v byte)
}

// WordDevice is implemented by devices that decode 16-bit accesses
// themselves.
type WordDevice interface {
	ReadWord(offset int64) uint16
	WriteWord(offset int64, v uint16)
}

// Mapping is a device placed on the system bus.
type Mapping struct {
	Name   string
	Base   uint64
	Device Device
}

func (m Mapping) contains(addr uint64) bool {
	return addr >= m.Base && addr-m.Base < uint64(m.Device.Size())
}

type Machine struct {
	mu       sync.Mutex
	name     string
	ts       *timesource.TimeSource
	bus      *bus.Bus
	log      *logx.Logger
	maps     []Mapping // sorted by Base
	autoSync bool
	unmapped uint64
}

func New(name string) *Machine {
	return &Machine{
		name:     name,
		ts:       timesource.New(),
		bus:      bus.NewBus(64),
		log:      logx.New(name),
		autoSync: true,
	}
}

func (m *Machine) Name() string { return m.name }

// Scheduler is the deferred-update queue devices must use.
func (m *Machine) Scheduler() timesource.Scheduler { return m.ts }

// Bus is the signal bus devices publish lines and faults on.
func (m *Machine) Bus() *bus.Bus { return m.bus }

// SetAutoSync controls whether every access is followed by a sync.
func (m *Machine) SetAutoSync(on bool) {
	m.mu.Lock()
	m.autoSync = on
	m.mu.Unlock()
}

// Map places d at base. Address ranges must not overlap and names must be
// unique.
func (m *Machine) Map(name string, base uint64, d Device) error {
	const op = "machine.map"
	if d == nil || d.Size() <= 0 {
		return errcode.New(errcode.InvalidParams, op, name+": device has no size")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	nm := Mapping{Name: name, Base: base, Device: d}
	end := base + uint64(d.Size())
	for _, o := range m.maps {
		if o.Name == name {
			return errcode.New(errcode.InvalidParams, op, "duplicate device name "+name)
		}
		oend := o.Base + uint64(o.Device.Size())
		if base < oend && o.Base < end {
			return errcode.New(errcode.Overlap, op, fmt.Sprintf("%s [0x%X,0x%X) overlaps %s", name, base, end, o.Name))
		}
	}
	m.maps = append(m.maps, nm)
	sort.Slice(m.maps, func(i, j int) bool { return m.maps[i].Base < m.maps[j].Base })
	m.log.Debug("mapped %s at 0x%08X size 0x%X", name, base, d.Size())
	return nil
}

// Mappings lists mapped devices in address order.
func (m *Machine) Mappings() []Mapping {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Mapping(nil), m.maps...)
}

// Lookup finds a device by name.
func (m *Machine) Lookup(name string) (Mapping, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, mp := range m.maps {
		if mp.Name == name {
			return mp, true
		}
	}
	return Mapping{}, false
}

// Unmapped counts accesses that hit no device.
func (m *Machine) Unmapped() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.unmapped
}

func (m *Machine) find(addr uint64) (Mapping, bool) {
	i := sort.Search(len(m.maps), func(i int) bool { return m.maps[i].Base > addr })
	if i == 0 {
		return Mapping{}, false
	}
	mp := m.maps[i-1]
	return mp, mp.contains(addr)
}

// access runs fn against the device at addr under the machine lock and
// synchronises afterwards.
func (m *Machine) access(addr uint64, what string, fn func(Device, int64)) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	mp, ok := m.find(addr)
	if !ok {
		m.unmapped++
		m.log.Warning("unmapped %s at 0x%08X", what, addr)
		return false
	}
	fn(mp.Device, int64(addr-mp.Base))
	if m.autoSync {
		m.ts.Sync()
	}
	return true
}

func (m *Machine) ReadDoubleWord(addr uint64) (v uint32) {
	m.access(addr, "read", func(d Device, off int64) { v = d.ReadDoubleWord(off) })
	return v
}

func (m *Machine) WriteDoubleWord(addr uint64, v uint32) {
	m.access(addr, "write", func(d Device, off int64) { d.WriteDoubleWord(off, v) })
}

// ReadByte uses the device's own byte decoding when it has one, otherwise
// the containing double word.
func (m *Machine) ReadByte(addr uint64) (v byte) {
	m.access(addr, "byte read", func(d Device, off int64) {
		if bd, ok := d.(ByteDevice); ok {
			v = bd.ReadByte(off)
			return
		}
		v = byte(d.ReadDoubleWord(off&^3) >> (8 * (off & 3)))
	})
	return v
}

func (m *Machine) WriteByte(addr uint64, v byte) {
	m.access(addr, "byte write", func(d Device, off int64) {
		if bd, ok := d.(ByteDevice); ok {
			bd.WriteByte(off, v)
			return
		}
		m.log.Warning("byte write to 0x%08X: %T has no byte access", addr, d)
	})
}

func (m *Machine) ReadWord(addr uint64) (v uint16) {
	m.access(addr, "word read", func(d Device, off int64) {
		if wd, ok := d.(WordDevice); ok {
			v = wd.ReadWord(off)
			return
		}
		v = uint16(d.ReadDoubleWord(off&^3) >> (8 * (off & 2)))
	})
	return v
}

func (m *Machine) WriteWord(addr uint64, v uint16) {
	m.access(addr, "word write", func(d Device, off int64) {
		if wd, ok := d.(WordDevice); ok {
			wd.WriteWord(off, v)
			return
		}
		m.log.Warning("word write to 0x%08X: %T has no word access", addr, d)
	})
}

// Do runs fn under the machine lock, so it sees devices between accesses.
// fn must not call back into the machine.
func (m *Machine) Do(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn()
}

// Sync flushes the deferred-update queue.
func (m *Machine) Sync() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ts.Sync()
}

// Advance runs n ticks of virtual time.
func (m *Machine) Advance(n uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ts.Advance(n)
}

// Now is the virtual time in ticks.
func (m *Machine) Now() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ts.Now()
}

// Reset resets every device, and the slaves of devices that have them.
func (m *Machine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, mp := range m.maps {
		mp.Device.Reset()
		if r, ok := mp.Device.(interface{ ResetSlaves() }); ok {
			r.ResetSlaves()
		}
	}
	m.ts.Sync()
	m.log.Info("reset")
}
