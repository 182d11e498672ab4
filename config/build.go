package config

import (
	"fmt"
	"strconv"

	"github.com/cubesatlab/renode-infrastructure/errcode"
	"github.com/cubesatlab/renode-infrastructure/machine"
	"github.com/cubesatlab/renode-infrastructure/peripherals/i2c"
	"github.com/cubesatlab/renode-infrastructure/peripherals/sensors/aht20"
	"github.com/cubesatlab/renode-infrastructure/peripherals/sensors/regfile"
	"github.com/cubesatlab/renode-infrastructure/peripherals/sensors/shtc3"
)

type slaveFactory func(name string, s Slave) (i2c.Peripheral, error)

var slaveTypes = map[string]slaveFactory{
	"regfile": newRegfile,
	"aht20": func(name string, s Slave) (i2c.Peripheral, error) {
		d := aht20.New(name)
		d.Set(s.Humidity, s.Temperature)
		return d, nil
	},
	"shtc3": func(name string, s Slave) (i2c.Peripheral, error) {
		d := shtc3.New(name)
		d.Set(s.Humidity, s.Temperature)
		return d, nil
	},
}

func newRegfile(name string, s Slave) (i2c.Peripheral, error) {
	cfg := regfile.Config{Size: s.Size, Init: make(map[uint8]byte, len(s.Init))}
	for k, v := range s.Init {
		reg, err := strconv.ParseUint(k, 0, 8)
		if err != nil {
			return nil, errcode.Wrap(errcode.InvalidParams, "config.regfile "+name, err)
		}
		if v > 0xFF {
			return nil, errcode.New(errcode.InvalidParams, "config.regfile "+name,
				fmt.Sprintf("init value 0x%X for register %s is not a byte", uint64(v), k))
		}
		cfg.Init[uint8(reg)] = byte(v)
	}
	for _, r := range s.ReadOnly {
		if r > 0xFF {
			return nil, errcode.New(errcode.InvalidParams, "config.regfile "+name,
				fmt.Sprintf("read-only register 0x%X out of range", uint64(r)))
		}
		cfg.ReadOnly = append(cfg.ReadOnly, uint8(r))
	}
	return regfile.New(name, cfg)
}

// BuiltSlave is a slave device together with its description.
type BuiltSlave struct {
	Slave
	Device i2c.Peripheral
}

// Built is an assembled machine.
type Built struct {
	Machine *machine.Machine
	I2C     map[string]*i2c.Controller
	Slaves  map[string][]BuiltSlave // by controller name
}

// Build creates the machine, maps every controller and attaches its slaves.
func (m *Machine) Build() (*Built, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	mach := machine.New(m.Name)
	if m.AutoSync != nil {
		mach.SetAutoSync(*m.AutoSync)
	}
	out := &Built{
		Machine: mach,
		I2C:     make(map[string]*i2c.Controller, len(m.I2C)),
		Slaves:  make(map[string][]BuiltSlave, len(m.I2C)),
	}
	for _, c := range m.I2C {
		ctrl := i2c.New(c.Name, mach.Scheduler(), i2c.Config{ReleaseSlaveOnIdle: c.ReleaseSlaveOnIdle})
		ctrl.Attach(mach.Bus().NewConnection(c.Name))
		if err := mach.Map(c.Name, uint64(c.Base), ctrl); err != nil {
			return nil, err
		}
		for _, s := range c.Slaves {
			dev, err := slaveTypes[s.Type](c.Name+"."+s.DisplayName(), s)
			if err != nil {
				return nil, err
			}
			if err := ctrl.Register(int(s.Address), dev); err != nil {
				return nil, err
			}
			out.Slaves[c.Name] = append(out.Slaves[c.Name], BuiltSlave{Slave: s, Device: dev})
		}
		out.I2C[c.Name] = ctrl
	}
	return out, nil
}
