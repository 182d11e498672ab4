package i2c

import (
	"fmt"

	"github.com/cubesatlab/renode-infrastructure/bus"
	"github.com/cubesatlab/renode-infrastructure/core/gpio"
	"github.com/cubesatlab/renode-infrastructure/core/registers"
	"github.com/cubesatlab/renode-infrastructure/core/timesource"
	"github.com/cubesatlab/renode-infrastructure/errcode"
	"github.com/cubesatlab/renode-infrastructure/x/fifo"
	"github.com/cubesatlab/renode-infrastructure/x/logx"
)

// Config holds construction options. The zero value is valid.
type Config struct {
	// ReleaseSlaveOnIdle drops the selected slave whenever the controller
	// returns to Idle. By default the last addressed slave stays selected
	// until another address phase replaces it.
	ReleaseSlaveOnIdle bool
	// Logger defaults to logx.New(name).
	Logger *logx.Logger
}

// Controller is an emulated STM32F4 I2C master. All register accesses must
// come from one goroutine at a time; the machine serialises them.
type Controller struct {
	name  string
	cfg   Config
	sched timesource.Scheduler
	log   *logx.Logger

	EventInterrupt *gpio.Line
	ErrorInterrupt *gpio.Line
	DMATransmit    *gpio.Line
	DMAReceive     *gpio.Line

	slaves *Registry
	regs   *registers.Collection[uint32]

	ack, dmaLast, dmaEnable              flag
	bufferIE, eventIE, errorIE           flag
	ackFailed, txEmpty, btf              flag
	addrSent, startBit, tra, masterSlave flag
	freq                                 registers.Value[uint32]

	state    State
	tx       fifo.Bytes
	rx       fifo.Bytes
	selected Peripheral
	selAddr  uint8
	// epoch changes on Reset so deferred flag updates queued before it
	// can tell they are stale.
	epoch uint64

	faults map[errcode.Code]uint64
	conn   *bus.Connection
}

// New builds a controller in its reset state. sched receives the deferred
// interrupt and DMA updates and must be flushed at every quiescent point. A
// nil sched applies deferred updates at once.
func New(name string, sched timesource.Scheduler, cfg Config) *Controller {
	c := &Controller{
		name:           name,
		cfg:            cfg,
		sched:          sched,
		log:            cfg.Logger,
		EventInterrupt: gpio.NewLine(name + ".EventInterrupt"),
		ErrorInterrupt: gpio.NewLine(name + ".ErrorInterrupt"),
		DMATransmit:    gpio.NewLine(name + ".DMATransmit"),
		DMAReceive:     gpio.NewLine(name + ".DMAReceive"),
		slaves:         NewRegistry(),
		faults:         make(map[errcode.Code]uint64),
	}
	if c.log == nil {
		c.log = logx.New(name)
	}
	if c.sched == nil {
		c.sched = timesource.Immediate{}
	}
	c.defineRegisters()
	c.Reset()
	return c
}

func (c *Controller) Name() string { return c.name }

func (c *Controller) Size() int64 { return Size }

// Attach publishes the output lines and fault events on conn under
// <name>/irq/{event,error}, <name>/dma/{tx,rx} and <name>/fault/<code>.
func (c *Controller) Attach(conn *bus.Connection) {
	c.conn = conn
	c.EventInterrupt.Attach(conn, bus.T(c.name, "irq", "event"))
	c.ErrorInterrupt.Attach(conn, bus.T(c.name, "irq", "error"))
	c.DMATransmit.Attach(conn, bus.T(c.name, "dma", "tx"))
	c.DMAReceive.Attach(conn, bus.T(c.name, "dma", "rx"))
}

// Register attaches a slave device at a 7-bit address.
func (c *Controller) Register(addr int, p Peripheral) error { return c.slaves.Register(addr, p) }

// Unregister detaches the slave at addr.
func (c *Controller) Unregister(addr int) error { return c.slaves.Unregister(addr) }

// Slaves is the controller's address registry.
func (c *Controller) Slaves() *Registry { return c.slaves }

// Reset restores the power-on state. Attached slaves are not reset.
func (c *Controller) Reset() {
	c.epoch++
	c.state = Idle
	c.EventInterrupt.Unset()
	c.ErrorInterrupt.Unset()
	c.DMATransmit.Unset()
	c.DMAReceive.Unset()
	c.regs.Reset()
	c.tx.Reset()
	c.rx.Reset()
	c.selected = nil
}

// ResetSlaves resets every attached slave device.
func (c *Controller) ResetSlaves() { c.slaves.Reset() }

func (c *Controller) ReadDoubleWord(offset int64) uint32 {
	v, ok := c.regs.Read(offset)
	if !ok {
		c.fault(errcode.UnmappedAccess, "read from offset 0x%X", offset)
		return 0
	}
	c.log.Noisy("read %s (0x%02X) = 0x%X", c.RegisterName(offset), offset, v)
	return v
}

func (c *Controller) WriteDoubleWord(offset int64, v uint32) {
	c.log.Noisy("write %s (0x%02X) = 0x%X", c.RegisterName(offset), offset, v)
	if !c.regs.Write(offset, v) {
		c.fault(errcode.UnmappedAccess, "write 0x%X to offset 0x%X", v, offset)
	}
}

// ReadByte is only honoured for the data register.
func (c *Controller) ReadByte(offset int64) byte {
	if offset != Data {
		c.fault(errcode.UnmappedAccess, "byte read from offset 0x%X", offset)
		return 0
	}
	return byte(c.ReadDoubleWord(Data))
}

// WriteByte is only honoured for the data register.
func (c *Controller) WriteByte(offset int64, v byte) {
	if offset != Data {
		c.fault(errcode.UnmappedAccess, "byte write 0x%X to offset 0x%X", v, offset)
		return
	}
	c.WriteDoubleWord(Data, uint32(v))
}

// ReadWord maps an aligned 16-bit access onto the low half of the
// register. No field lives in the upper half, so offset+2 is unhandled.
func (c *Controller) ReadWord(offset int64) uint16 {
	if offset%4 != 0 {
		c.fault(errcode.UnmappedAccess, "word read from offset 0x%X", offset)
		return 0
	}
	return uint16(c.ReadDoubleWord(offset))
}

func (c *Controller) WriteWord(offset int64, v uint16) {
	if offset%4 != 0 {
		c.fault(errcode.UnmappedAccess, "word write 0x%X to offset 0x%X", v, offset)
		return
	}
	c.WriteDoubleWord(offset, uint32(v))
}

// State returns the current transaction state.
func (c *Controller) State() State { return c.state }

// SelectedAddress reports the slave chosen by the last successful address
// phase, if it is still selected.
func (c *Controller) SelectedAddress() (uint8, bool) {
	if c.selected == nil {
		return 0, false
	}
	return c.selAddr, true
}

// Outgoing returns a copy of the bytes buffered for the selected slave.
func (c *Controller) Outgoing() []byte { return c.tx.Peek() }

// Incoming is the number of bytes waiting in the receive queue.
func (c *Controller) Incoming() int { return c.rx.Len() }

// DMALastTransfer exposes CR2.LAST for a DMA controller's end-of-transfer
// handling. The controller itself does not interpret it.
func (c *Controller) DMALastTransfer() bool { return c.dmaLast.Value() }

// Frequency is the CR2.FREQ peripheral clock setting in MHz.
func (c *Controller) Frequency() uint32 { return c.freq.Value() }

// Faults returns a snapshot of the protocol fault counters.
func (c *Controller) Faults() map[errcode.Code]uint64 {
	out := make(map[errcode.Code]uint64, len(c.faults))
	for k, v := range c.faults {
		out[k] = v
	}
	return out
}

func (c *Controller) fault(code errcode.Code, format string, args ...any) {
	c.faults[code]++
	c.log.Warning("%s: %s", code, fmt.Sprintf(format, args...))
	if c.conn != nil {
		c.conn.Publish(c.conn.NewMessage(bus.T(c.name, "fault", string(code)), c.faults[code], false))
	}
}
