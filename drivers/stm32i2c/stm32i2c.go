// Package stm32i2c is a polling I2C master driver for the STM32F4 I2C
// controller, written against a memory-mapped register interface the way
// firmware is. It implements tinygo.org/x/drivers.I2C so sensor drivers
// can run unchanged against an emulated controller.
//
// NOTE: Tx performs the write phase, a repeated START and the read phase
// without releasing the bus when both w and r are provided.
package stm32i2c

import (
	"sync"

	"tinygo.org/x/drivers"

	"github.com/cubesatlab/renode-infrastructure/errcode"
)

// MMIO is the CPU's view of the system bus.
type MMIO interface {
	ReadDoubleWord(addr uint64) uint32
	WriteDoubleWord(addr uint64, v uint32)
}

// Register offsets and bits.
const (
	regCR1   = 0x00
	regCR2   = 0x04
	regDR    = 0x10
	regSR1   = 0x14
	regSR2   = 0x18
	regCCR   = 0x1C
	regTRISE = 0x20

	cr1PE    = 1 << 0
	cr1START = 1 << 8
	cr1STOP  = 1 << 9
	cr1ACK   = 1 << 10

	cr2FreqMask = 0x3F

	sr1SB   = 1 << 0
	sr1ADDR = 1 << 1
	sr1BTF  = 1 << 2
	sr1RxNE = 1 << 6
	sr1TxE  = 1 << 7
	sr1AF   = 1 << 10
)

// Errors returned by Tx.
var (
	ErrNACK    = errcode.New(errcode.AddressNack, "stm32i2c", "address not acknowledged")
	ErrTimeout = errcode.New(errcode.Timeout, "stm32i2c", "flag poll timed out")
	ErrAddress = errcode.New(errcode.InvalidAddress, "stm32i2c", "address is not 7-bit")
)

// Config controls bus setup. All fields are optional.
type Config struct {
	// FreqMHz is the APB clock programmed into CR2.FREQ. Default 16.
	FreqMHz uint32
	// Frequency is the SCL rate in Hz. Default 100 kHz.
	Frequency uint32
	// MaxPolls bounds each flag wait. Default 1000.
	MaxPolls int
	// Idle runs between polls, e.g. to advance simulated time.
	Idle func()
}

// Master serialises Configure and Tx, so several drivers may share one.
type Master struct {
	mu   sync.Mutex
	bus  MMIO
	base uint64
	cfg  Config
}

var _ drivers.I2C = (*Master)(nil)

// New creates a master for the controller at base. Tx applies the default
// Config if Configure has not been called.
func New(bus MMIO, base uint64) *Master {
	return &Master{bus: bus, base: base}
}

func (m *Master) read(off uint64) uint32     { return m.bus.ReadDoubleWord(m.base + off) }
func (m *Master) write(off uint64, v uint32) { m.bus.WriteDoubleWord(m.base+off, v) }

// Config returns the settings applied by the last Configure.
func (m *Master) Config() Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg
}

// Configure programs the clock registers with the peripheral disabled and
// then enables it with acknowledgement on.
func (m *Master) Configure(cfg Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.configure(cfg)
}

func (m *Master) configure(cfg Config) error {
	if cfg.FreqMHz == 0 {
		cfg.FreqMHz = 16
	}
	if cfg.Frequency == 0 {
		cfg.Frequency = 100_000
	}
	if cfg.MaxPolls <= 0 {
		cfg.MaxPolls = 1000
	}
	if cfg.FreqMHz < 2 || cfg.FreqMHz > 50 {
		return errcode.New(errcode.InvalidParams, "stm32i2c.configure", "FreqMHz must be 2..50")
	}
	m.cfg = cfg

	m.write(regCR1, 0)
	m.write(regCR2, cfg.FreqMHz&cr2FreqMask)
	// Standard mode: T_high = T_low = CCR * T_pclk.
	ccr := cfg.FreqMHz * 1_000_000 / (2 * cfg.Frequency)
	if ccr < 4 {
		ccr = 4
	}
	m.write(regCCR, ccr)
	m.write(regTRISE, cfg.FreqMHz+1)
	m.write(regCR1, cr1PE|cr1ACK)
	return nil
}

// Tx performs one transaction with the device at addr.
func (m *Master) Tx(addr uint16, w, r []byte) error {
	if addr > 0x7F {
		return ErrAddress
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cfg.MaxPolls == 0 {
		if err := m.configure(Config{}); err != nil {
			return err
		}
	}
	a := byte(addr << 1)

	if len(w) > 0 || len(r) == 0 {
		if err := m.begin(a); err != nil {
			return m.abort(err)
		}
		for _, b := range w {
			if err := m.wait(sr1TxE); err != nil {
				return m.abort(err)
			}
			m.write(regDR, uint32(b))
		}
		if len(w) > 0 {
			if err := m.wait(sr1BTF); err != nil {
				return m.abort(err)
			}
		}
	}

	if len(r) > 0 {
		if err := m.begin(a | 1); err != nil {
			return m.abort(err)
		}
		for i := range r {
			if err := m.wait(sr1RxNE); err != nil {
				return m.abort(err)
			}
			r[i] = byte(m.read(regDR))
		}
	}

	m.stop()
	return nil
}

// begin issues (repeated) START and the address byte, and clears ADDR.
func (m *Master) begin(a byte) error {
	m.write(regCR1, m.read(regCR1)|cr1START)
	if err := m.wait(sr1SB); err != nil {
		return err
	}
	m.write(regDR, uint32(a))
	for i := 0; ; i++ {
		sr1 := m.read(regSR1)
		if sr1&sr1AF != 0 {
			return ErrNACK
		}
		if sr1&sr1ADDR != 0 {
			break
		}
		if i >= m.cfg.MaxPolls {
			return ErrTimeout
		}
		m.idle()
	}
	m.read(regSR2)
	return nil
}

func (m *Master) stop() { m.write(regCR1, m.read(regCR1)|cr1STOP) }

func (m *Master) abort(err error) error {
	m.stop()
	return err
}

func (m *Master) wait(mask uint32) error {
	for i := 0; i <= m.cfg.MaxPolls; i++ {
		if m.read(regSR1)&mask != 0 {
			return nil
		}
		m.idle()
	}
	return ErrTimeout
}

func (m *Master) idle() {
	if m.cfg.Idle != nil {
		m.cfg.Idle()
	}
}
