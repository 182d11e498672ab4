// Package shtc3 models the Sensirion SHTC3 humidity/temperature sensor as
// an I2C slave. Commands are 16-bit; every 16-bit word the device returns
// is followed by its CRC-8.
package shtc3

import (
	"github.com/cubesatlab/renode-infrastructure/x/bitx"
	"github.com/cubesatlab/renode-infrastructure/x/logx"
)

const Address = 0x70

const (
	cmdWakeup     = 0x3517
	cmdSleep      = 0xB098
	cmdSoftReset  = 0x805D
	cmdReadID     = 0xEFC8
	cmdMeasureTF  = 0x7CA2 // temperature first, clock stretching
	cmdMeasureHF  = 0x5C24 // humidity first, clock stretching
	cmdMeasureTFn = 0x7866 // temperature first, polling
	cmdMeasureHFn = 0x58E0 // humidity first, polling

	productID = 0x0807
)

type Device struct {
	log    *logx.Logger
	asleep bool
	out    []byte // response to the last command

	rawTemp, rawHum uint16
}

func New(name string) *Device {
	d := &Device{log: logx.New(name)}
	d.Reset()
	return d
}

// Set changes the environment reported by the next measurement.
func (d *Device) Set(relHumidity, celsius float64) {
	d.rawHum = uint16(bitx.Clamp(relHumidity, 0, 100) / 100 * 65535)
	d.rawTemp = uint16((bitx.Clamp(celsius, -45, 130) + 45) / 175 * 65535)
}

// Asleep reports whether the device is in sleep mode.
func (d *Device) Asleep() bool { return d.asleep }

func word(v uint16) []byte {
	b := []byte{byte(v >> 8), byte(v)}
	return append(b, bitx.CRC8(b, 0x31, 0xFF))
}

func (d *Device) Write(data []byte) {
	if len(data) < 2 {
		d.log.Warning("short command % X", data)
		return
	}
	cmd := uint16(data[0])<<8 | uint16(data[1])
	if d.asleep && cmd != cmdWakeup {
		d.log.Warning("command 0x%04X while asleep", cmd)
		return
	}
	d.out = nil
	switch cmd {
	case cmdWakeup:
		d.asleep = false
	case cmdSleep:
		d.asleep = true
	case cmdSoftReset:
		d.asleep = false
	case cmdReadID:
		d.out = word(productID)
	case cmdMeasureTF, cmdMeasureTFn:
		d.out = append(word(d.rawTemp), word(d.rawHum)...)
	case cmdMeasureHF, cmdMeasureHFn:
		d.out = append(word(d.rawHum), word(d.rawTemp)...)
	default:
		d.log.Warning("unknown command 0x%04X", cmd)
	}
}

// Read returns the response of the last command. Without one, the bus
// floats high.
func (d *Device) Read(int) []byte {
	if d.asleep || d.out == nil {
		return []byte{0xFF}
	}
	return d.out
}

func (d *Device) FinishTransmission() {}

// Reset puts the device to sleep, its power-on state.
func (d *Device) Reset() {
	d.asleep = true
	d.out = nil
}
