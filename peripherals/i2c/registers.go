package i2c

import "github.com/cubesatlab/renode-infrastructure/core/registers"

// Register offsets.
const (
	Control1     int64 = 0x00
	Control2     int64 = 0x04
	OwnAddress1  int64 = 0x08
	OwnAddress2  int64 = 0x0C
	Data         int64 = 0x10
	Status1      int64 = 0x14
	Status2      int64 = 0x18
	ClockControl int64 = 0x1C
	RiseTime     int64 = 0x20
	NoiseFilter  int64 = 0x24
)

// Size is the length of the controller's MMIO window.
const Size = 0x400

type flag = registers.Flag[uint32]

func (c *Controller) defineRegisters() {
	cr1 := registers.New[uint32]("CR1").
		WithFlag(15, "SWRST", registers.FlagOpts{OnWrite: c.softwareResetWrite}).
		WithFlag(9, "STOP", registers.FlagOpts{Mode: registers.Read, OnWrite: c.stopWrite}).
		WithFlag(8, "START", registers.FlagOpts{Mode: registers.Read, OnWrite: c.startWrite}).
		WithFlag(0, "PE", registers.FlagOpts{OnWrite: c.peripheralEnableWrite})
	c.ack = cr1.DefineFlag(10, "ACK", registers.FlagOpts{})

	cr2 := registers.New[uint32]("CR2")
	c.freq = cr2.DefineValue(0, 6, "FREQ", registers.ValueOpts[uint32]{})
	c.dmaLast = cr2.DefineFlag(12, "LAST", registers.FlagOpts{})
	c.dmaEnable = cr2.DefineFlag(11, "DMAEN", registers.FlagOpts{OnChange: c.dmaEnableChange})
	c.bufferIE = cr2.DefineFlag(10, "ITBUFEN", registers.FlagOpts{OnChange: c.interruptEnableChange})
	c.eventIE = cr2.DefineFlag(9, "ITEVTEN", registers.FlagOpts{OnChange: c.interruptEnableChange})
	c.errorIE = cr2.DefineFlag(8, "ITERREN", registers.FlagOpts{OnChange: c.interruptEnableChange})

	dr := registers.New[uint32]("DR").
		WithValue(0, 8, "DR", registers.ValueOpts[uint32]{
			Provider: func(uint32) uint32 { return uint32(c.dispatch(evDataRead, 0)) },
			OnWrite:  func(_, v uint32) { c.dataWrite(byte(v)) },
		})

	sr1 := registers.New[uint32]("SR1")
	c.ackFailed = sr1.DefineFlag(10, "AF", registers.FlagOpts{
		Mode:     registers.ReadToClear | registers.WriteZeroToClear,
		OnChange: func(_, _ bool) { c.update() },
	})
	c.txEmpty = sr1.DefineFlag(7, "TxE", registers.FlagOpts{Mode: registers.Read})
	sr1.DefineFlag(6, "RxNE", registers.FlagOpts{
		Mode:     registers.Read,
		Provider: func(bool) bool { return c.rxNotEmpty() },
	})
	c.btf = sr1.DefineFlag(2, "BTF", registers.FlagOpts{Mode: registers.Read})
	c.addrSent = sr1.DefineFlag(1, "ADDR", registers.FlagOpts{Mode: registers.Read})
	c.startBit = sr1.DefineFlag(0, "SB", registers.FlagOpts{Mode: registers.Read})

	sr2 := registers.New[uint32]("SR2")
	c.tra = sr2.DefineFlag(2, "TRA", registers.FlagOpts{Mode: registers.Read})
	c.masterSlave = sr2.DefineFlag(0, "MSL", registers.FlagOpts{
		Mode: registers.Read,
		// ADDR is cleared by any SR2 read; hardware additionally requires
		// the preceding access to be an SR1 read.
		OnRead: func(_, _ bool) {
			c.addrSent.SetValue(false)
			c.update()
		},
	})

	c.regs = registers.NewCollection(map[int64]*registers.Register[uint32]{
		Control1:     cr1,
		Control2:     cr2,
		OwnAddress1:  registers.NewRW[uint32]("OAR1", 0),
		OwnAddress2:  registers.NewRW[uint32]("OAR2", 0),
		Data:         dr,
		Status1:      sr1,
		Status2:      sr2,
		ClockControl: registers.NewRW[uint32]("CCR", 0),
		RiseTime:     registers.NewRW[uint32]("TRISE", 0x2),
		NoiseFilter:  registers.NewRW[uint32]("FLTR", 0),
	})
}

// RegisterName returns the mnemonic of the register at offset, or "".
func (c *Controller) RegisterName(offset int64) string {
	if r := c.regs.Lookup(offset); r != nil {
		return r.Name()
	}
	return ""
}

// Offsets lists the defined register offsets.
func (c *Controller) Offsets() []int64 { return c.regs.Offsets() }
