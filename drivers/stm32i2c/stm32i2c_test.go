package stm32i2c

import (
	"bytes"
	"errors"
	"testing"

	"github.com/cubesatlab/renode-infrastructure/errcode"
	"github.com/cubesatlab/renode-infrastructure/machine"
	"github.com/cubesatlab/renode-infrastructure/peripherals/i2c"
	"github.com/cubesatlab/renode-infrastructure/peripherals/sensors/regfile"
)

const base = 0x40005400

type silent struct{}

func (silent) Read(int) []byte     { return nil }
func (silent) Write([]byte)        {}
func (silent) FinishTransmission() {}
func (silent) Reset()              {}

// counter answers every Read with a single, incrementing byte.
type counter struct{ next byte }

func (c *counter) Read(int) []byte {
	c.next++
	return []byte{c.next}
}
func (*counter) Write([]byte)        {}
func (*counter) FinishTransmission() {}
func (c *counter) Reset()            { c.next = 0 }

func setup(t *testing.T) (*machine.Machine, *i2c.Controller, *regfile.Device, *Master) {
	t.Helper()
	m := machine.New("t")
	c := i2c.New("i2c1", m.Scheduler(), i2c.Config{})
	if err := m.Map("i2c1", base, c); err != nil {
		t.Fatal(err)
	}
	rf, err := regfile.New("eeprom", regfile.Config{Size: 64, Init: map[uint8]byte{0x00: 0x50}})
	if err != nil {
		t.Fatal(err)
	}
	c.Register(0x50, rf)
	c.Register(0x11, silent{})
	return m, c, rf, New(m, base)
}

func TestConfigure(t *testing.T) {
	m, c, _, master := setup(t)
	if err := master.Configure(Config{FreqMHz: 42, Frequency: 400_000}); err != nil {
		t.Fatal(err)
	}
	if c.Frequency() != 42 {
		t.Fatalf("FREQ = %d", c.Frequency())
	}
	if got := m.ReadDoubleWord(base + regCCR); got != 52 {
		t.Fatalf("CCR = %d, want 52", got)
	}
	if got := m.ReadDoubleWord(base + regTRISE); got != 43 {
		t.Fatalf("TRISE = %d", got)
	}
	if got := m.ReadDoubleWord(base + regCR1); got != cr1PE|cr1ACK {
		t.Fatalf("CR1 = %#x", got)
	}
	if err := master.Configure(Config{FreqMHz: 60}); errcode.Of(err) != errcode.InvalidParams {
		t.Fatalf("FreqMHz 60: %v", err)
	}
}

func TestWriteThenRead(t *testing.T) {
	_, c, rf, master := setup(t)
	master.Configure(Config{})

	if err := master.Tx(0x50, []byte{0x10, 0xDE, 0xAD, 0xBE, 0xEF}, nil); err != nil {
		t.Fatal(err)
	}
	if rf.Peek(0x10) != 0xDE || rf.Peek(0x13) != 0xEF {
		t.Fatal("write did not reach the register file")
	}
	if c.State() != i2c.Idle {
		t.Fatalf("controller left in %s", c.State())
	}

	buf := make([]byte, 4)
	if err := master.Tx(0x50, []byte{0x10}, buf); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(buf, []byte{0xDE, 0xAD, 0xBE, 0xEF}) {
		t.Fatalf("read back % X", buf)
	}

	id := []byte{0}
	if err := master.Tx(0x50, []byte{0x00}, id); err != nil || id[0] != 0x50 {
		t.Fatalf("id = %#x, %v", id[0], err)
	}
}

func TestNACK(t *testing.T) {
	_, c, _, master := setup(t)
	master.Configure(Config{})
	err := master.Tx(0x42, []byte{0x00}, nil)
	if !errors.Is(err, ErrNACK) || errcode.Of(err) != errcode.AddressNack {
		t.Fatalf("Tx to empty address = %v", err)
	}
	if c.State() != i2c.Idle {
		t.Fatalf("controller left in %s", c.State())
	}
	// The bus is usable again afterwards.
	if err := master.Tx(0x50, []byte{0x00}, make([]byte, 1)); err != nil {
		t.Fatal(err)
	}
}

func TestTimeoutAndIdleHook(t *testing.T) {
	_, _, _, master := setup(t)
	idles := 0
	master.Configure(Config{MaxPolls: 5, Idle: func() { idles++ }})
	err := master.Tx(0x11, nil, make([]byte, 1))
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("read from silent slave = %v", err)
	}
	if idles != 6 {
		t.Fatalf("idle hook ran %d times, want 6", idles)
	}
}

func TestReadWaitsForEveryByte(t *testing.T) {
	_, c, _, master := setup(t)
	c.Register(0x22, &counter{})
	idles := 0
	master.Configure(Config{MaxPolls: 5, Idle: func() { idles++ }})
	buf := make([]byte, 4)
	if err := master.Tx(0x22, nil, buf); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(buf, []byte{1, 2, 3, 4}) {
		t.Fatalf("read % X", buf)
	}
	if idles != 0 {
		t.Fatalf("RxNE was not up before every byte: %d idle poll(s)", idles)
	}
}

func TestBadAddressAndLazyConfigure(t *testing.T) {
	m, _, _, master := setup(t)
	if err := master.Tx(0x80, nil, nil); !errors.Is(err, ErrAddress) {
		t.Fatalf("Tx(0x80) = %v", err)
	}
	// Tx configures with defaults when Configure was never called.
	if err := master.Tx(0x50, []byte{0x00}, nil); err != nil {
		t.Fatal(err)
	}
	if got := m.ReadDoubleWord(base + regCR2); got != 16 {
		t.Fatalf("default FREQ = %d", got)
	}
}

func TestProbe(t *testing.T) {
	_, _, _, master := setup(t)
	master.Configure(Config{})
	if err := master.Tx(0x50, nil, nil); err != nil {
		t.Fatalf("probe present device: %v", err)
	}
	if err := master.Tx(0x51, nil, nil); !errors.Is(err, ErrNACK) {
		t.Fatalf("probe absent device: %v", err)
	}
}
