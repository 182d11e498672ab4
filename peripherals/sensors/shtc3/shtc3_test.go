package shtc3_test

import (
	"testing"

	tgshtc3 "tinygo.org/x/drivers/shtc3"

	"github.com/cubesatlab/renode-infrastructure/drivers/stm32i2c"
	"github.com/cubesatlab/renode-infrastructure/machine"
	"github.com/cubesatlab/renode-infrastructure/peripherals/i2c"
	"github.com/cubesatlab/renode-infrastructure/peripherals/sensors/shtc3"
	"github.com/cubesatlab/renode-infrastructure/x/bitx"
)

func TestCommands(t *testing.T) {
	d := shtc3.New("shtc3")
	if !d.Asleep() {
		t.Fatal("device should power up asleep")
	}
	d.Write([]byte{0xEF, 0xC8})
	if got := d.Read(1); len(got) != 1 || got[0] != 0xFF {
		t.Fatalf("read while asleep = % X", got)
	}
	d.Write([]byte{0x35, 0x17})
	d.Write([]byte{0xEF, 0xC8})
	id := d.Read(3)
	if len(id) != 3 || id[0] != 0x08 || id[1] != 0x07 || id[2] != bitx.CRC8(id[:2], 0x31, 0xFF) {
		t.Fatalf("ID = % X", id)
	}

	d.Set(50, 42.5) // raw temperature 0x7FFF
	d.Write([]byte{0x5C, 0x24})
	f := d.Read(6)
	if len(f) != 6 || f[0] != 0x7F || f[3] != 0x7F {
		t.Fatalf("humidity-first frame = % X", f)
	}
	if f[2] != bitx.CRC8(f[:2], 0x31, 0xFF) || f[5] != bitx.CRC8(f[3:5], 0x31, 0xFF) {
		t.Fatalf("frame CRCs = % X", f)
	}

	d.Write([]byte{0xB0, 0x98})
	if !d.Asleep() {
		t.Fatal("sleep command ignored")
	}
}

func TestDriverReadsThroughController(t *testing.T) {
	const base = 0x40005800
	m := machine.New("t")
	c := i2c.New("i2c2", m.Scheduler(), i2c.Config{})
	m.Map("i2c2", base, c)
	dev := shtc3.New("shtc3")
	dev.Set(40, 25)
	if err := c.Register(shtc3.Address, dev); err != nil {
		t.Fatal(err)
	}
	master := stm32i2c.New(m, base)
	master.Configure(stm32i2c.Config{FreqMHz: 42})

	sensor := tgshtc3.New(master)
	sensor.WakeUp()
	milliC, centiRH, err := sensor.ReadTemperatureHumidity()
	if err != nil {
		t.Fatal(err)
	}
	if milliC < 24900 || milliC > 25100 {
		t.Fatalf("temperature = %d m°C", milliC)
	}
	if centiRH < 3990 || centiRH > 4010 {
		t.Fatalf("humidity = %d c%%", centiRH)
	}
	sensor.Sleep()
	if !dev.Asleep() {
		t.Fatal("device not asleep after Sleep")
	}
}
