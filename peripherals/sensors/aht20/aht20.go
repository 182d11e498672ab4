// Package aht20 models the Aosong AHT20 temperature/humidity sensor as an
// I2C slave. A measurement triggered with 0xAC completes immediately; the
// next read returns the status byte, 20-bit humidity, 20-bit temperature
// and a CRC.
package aht20

import (
	"github.com/cubesatlab/renode-infrastructure/x/bitx"
	"github.com/cubesatlab/renode-infrastructure/x/logx"
)

// I2C address.
const Address = 0x38

// Commands and status bits.
const (
	cmdTrigger    = 0xAC
	cmdInitialize = 0xBE
	cmdSoftReset  = 0xBA
	cmdStatus     = 0x71

	statusBusy       = 0x80
	statusCalibrated = 0x08
)

const fullScale = 0x100000 // 2^20

// Sample holds raw 20-bit readings.
type Sample struct {
	RawHumidity uint32
	RawTemp     uint32
}

// SampleOf encodes physical values, clamped to the sensor's range
// (0..100 %RH, -50..150 °C).
func SampleOf(relHumidity, celsius float64) Sample {
	h := bitx.Clamp(relHumidity, 0, 100) / 100 * fullScale
	t := (bitx.Clamp(celsius, -50, 150) + 50) / 200 * fullScale
	return Sample{
		RawHumidity: bitx.Clamp(uint32(h), 0, fullScale-1),
		RawTemp:     bitx.Clamp(uint32(t), 0, fullScale-1),
	}
}

func (s Sample) DeciRelHumidity() int32 {
	return (int32(s.RawHumidity) * 1000) / fullScale
}

func (s Sample) DeciCelsius() int32 {
	return ((int32(s.RawTemp) * 2000) / fullScale) - 500
}

// frame packs the sample the way the device clocks it out.
func (s Sample) frame(status byte) []byte {
	b := []byte{
		status,
		byte(s.RawHumidity >> 12),
		byte(s.RawHumidity >> 4),
		byte(s.RawHumidity<<4) | byte(s.RawTemp>>16)&0x0F,
		byte(s.RawTemp >> 8),
		byte(s.RawTemp),
	}
	return append(b, bitx.CRC8(b, 0x31, 0xFF))
}

type Device struct {
	log        *logx.Logger
	calibrated bool
	measured   bool // a triggered measurement is waiting to be read
	latched    Sample
	current    Sample
	triggers   int
}

func New(name string) *Device {
	return &Device{log: logx.New(name)}
}

// Set changes the environment the next measurement will observe.
func (d *Device) Set(relHumidity, celsius float64) { d.current = SampleOf(relHumidity, celsius) }

// Triggers counts measurement commands since creation.
func (d *Device) Triggers() int { return d.triggers }

// Current is the sample the next measurement will latch.
func (d *Device) Current() Sample { return d.current }

func (d *Device) status() byte {
	var st byte
	if d.calibrated {
		st |= statusCalibrated
	}
	return st
}

func (d *Device) Write(data []byte) {
	if len(data) == 0 {
		return
	}
	switch data[0] {
	case cmdInitialize:
		d.calibrated = true
		d.log.Debug("initialised")
	case cmdTrigger:
		d.latched = d.current
		d.measured = true
		d.triggers++
		d.log.Debug("measurement: %.1f %%RH %.1f C",
			float64(d.latched.DeciRelHumidity())/10, float64(d.latched.DeciCelsius())/10)
	case cmdSoftReset:
		d.Reset()
	case cmdStatus:
		d.measured = false
	default:
		d.log.Warning("unknown command 0x%02X", data[0])
	}
}

// Read returns the measurement frame after a trigger, otherwise the
// status byte.
func (d *Device) Read(int) []byte {
	if d.measured {
		return d.latched.frame(d.status())
	}
	return []byte{d.status()}
}

func (d *Device) FinishTransmission() {}

func (d *Device) Reset() {
	d.calibrated = false
	d.measured = false
}
