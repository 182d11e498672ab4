// Package telemetry reads the environmental sensors of a built machine
// through the STM32 I2C driver, using the same sensor drivers firmware
// would, and publishes each reading as a retained message on
// env/<kind>/<sensor>.
package telemetry

import (
	"context"
	"maps"
	"math"
	"slices"
	"sync"
	"time"

	"tinygo.org/x/drivers/aht20"
	"tinygo.org/x/drivers/shtc3"

	"github.com/cubesatlab/renode-infrastructure/bus"
	"github.com/cubesatlab/renode-infrastructure/config"
	"github.com/cubesatlab/renode-infrastructure/drivers/stm32i2c"
	"github.com/cubesatlab/renode-infrastructure/errcode"
	"github.com/cubesatlab/renode-infrastructure/types"
	"github.com/cubesatlab/renode-infrastructure/x/bitx"
	"github.com/cubesatlab/renode-infrastructure/x/logx"
)

// TopicInterval carries a time.Duration that replaces Run's polling period.
var TopicInterval = bus.T("config", "telemetry", "interval")

// shtc3 parts answer on a single fixed address.
const shtc3Address = 0x70

// Config holds construction options. The zero value is valid.
type Config struct {
	// Driver is applied to every controller's master.
	Driver stm32i2c.Config
	Logger *logx.Logger
}

// Result is one sensor's outcome from Sample.
type Result struct {
	Info        types.SensorInfo
	Temperature types.TemperatureValue
	Humidity    types.HumidityValue
	Err         error
}

type sensor struct {
	info types.SensorInfo
	// read returns tenths of °C and hundredths of %RH.
	read func() (deciC, rhx100 int32, err error)
}

type Service struct {
	mu      sync.Mutex
	built   *config.Built
	conn    *bus.Connection
	log     *logx.Logger
	masters map[string]*stm32i2c.Master
	sensors []*sensor
}

// New configures a master for every controller of b and binds a driver to
// each aht20 and shtc3 slave. Other slave types are ignored.
func New(b *config.Built, conn *bus.Connection, cfg Config) (*Service, error) {
	s := &Service{
		built:   b,
		conn:    conn,
		log:     cfg.Logger,
		masters: make(map[string]*stm32i2c.Master, len(b.I2C)),
	}
	if s.log == nil {
		s.log = logx.New("telemetry")
	}
	for _, name := range slices.Sorted(maps.Keys(b.I2C)) {
		mp, ok := b.Machine.Lookup(name)
		if !ok {
			return nil, errcode.New(errcode.UnknownDevice, "telemetry", name)
		}
		m := stm32i2c.New(b.Machine, mp.Base)
		if err := m.Configure(cfg.Driver); err != nil {
			return nil, err
		}
		s.masters[name] = m
		for _, sl := range b.Slaves[name] {
			s.bind(name, m, sl.Slave)
		}
	}
	return s, nil
}

func (s *Service) bind(busName string, m *stm32i2c.Master, sl config.Slave) {
	info := types.SensorInfo{
		Name:   busName + "." + sl.DisplayName(),
		Sensor: sl.Type,
		Bus:    busName,
		Addr:   uint16(sl.Address),
	}
	var read func() (int32, int32, error)
	switch sl.Type {
	case "aht20":
		d := aht20.New(m)
		d.Address = info.Addr
		read = func() (int32, int32, error) {
			// Calibration is lost on every machine reset; Configure only
			// re-sends it when the status byte says so.
			d.Configure()
			if err := d.Read(); err != nil {
				return 0, 0, err
			}
			return d.DeciCelsius(), d.DeciRelHumidity() * 10, nil
		}
	case "shtc3":
		if info.Addr != shtc3Address {
			s.log.Warning("%s: shtc3 at 0x%02X cannot be reached by its driver", info.Name, info.Addr)
			return
		}
		d := shtc3.New(m)
		read = func() (int32, int32, error) {
			if err := d.WakeUp(); err != nil {
				return 0, 0, err
			}
			defer d.Sleep()
			milliC, centiRH, err := d.ReadTemperatureHumidity()
			if err != nil {
				return 0, 0, err
			}
			return milliC / 100, int32(centiRH), nil
		}
	default:
		return
	}
	s.sensors = append(s.sensors, &sensor{info: info, read: read})
	s.log.Debug("bound %s driver to %s", sl.Type, info.Name)
}

// Master returns the driver shared by the service for a controller.
func (s *Service) Master(name string) (*stm32i2c.Master, bool) {
	m, ok := s.masters[name]
	return m, ok
}

// Reconfigure reprograms every master with its last settings. It is needed
// after the controllers have been reset.
func (s *Service) Reconfigure() error {
	for _, name := range slices.Sorted(maps.Keys(s.masters)) {
		m := s.masters[name]
		if err := m.Configure(m.Config()); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) Sensors() []types.SensorInfo {
	out := make([]types.SensorInfo, len(s.sensors))
	for i, sn := range s.sensors {
		out[i] = sn.info
	}
	return out
}

// Sample reads every sensor once, in bus order, and publishes the results.
func (s *Service) Sample() []Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Result, 0, len(s.sensors))
	for _, sn := range s.sensors {
		r := Result{Info: sn.info}
		deciC, rhx100, err := sn.read()
		tick := s.built.Machine.Now()
		if err != nil {
			r.Err = err
			code := string(errcode.MapDriverErr(err))
			s.log.Warning("%s: %v", sn.info.Name, err)
			s.publish(types.KindTemperature, sn.info.Name, types.Reading{Err: code, Tick: tick})
			s.publish(types.KindHumidity, sn.info.Name, types.Reading{Err: code, Tick: tick})
			out = append(out, r)
			continue
		}
		r.Temperature = types.TemperatureValue{DeciC: int16(bitx.Clamp(deciC, math.MinInt16, math.MaxInt16))}
		r.Humidity = types.HumidityValue{RHx100: uint16(bitx.Clamp(rhx100, 0, 10000))}
		s.log.Debug("%s: %d dC %d cRH", sn.info.Name, r.Temperature.DeciC, r.Humidity.RHx100)
		s.publish(types.KindTemperature, sn.info.Name, types.Reading{Value: r.Temperature, Tick: tick})
		s.publish(types.KindHumidity, sn.info.Name, types.Reading{Value: r.Humidity, Tick: tick})
		out = append(out, r)
	}
	return out
}

func (s *Service) publish(kind types.Kind, name string, r types.Reading) {
	if s.conn == nil {
		return
	}
	s.conn.Publish(s.conn.NewMessage(bus.T("env", string(kind), name), r, true))
}

// Run samples every interval until ctx is cancelled. A time.Duration
// published on TopicInterval changes the period.
func (s *Service) Run(ctx context.Context, interval time.Duration) {
	var cfgCh <-chan *bus.Message
	if s.conn != nil {
		cfgSub := s.conn.Subscribe(TopicInterval)
		defer s.conn.Unsubscribe(cfgSub)
		cfgCh = cfgSub.Channel()
	}

	tick := time.NewTicker(interval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("stopping")
			return
		case <-tick.C:
			s.Sample()
		case msg, ok := <-cfgCh:
			if !ok {
				s.log.Info("interval updates closed")
				cfgCh = nil
				continue
			}
			if d, ok := msg.Payload.(time.Duration); ok && d > 0 {
				tick.Reset(d)
				s.log.Info("interval set to %v", d)
			}
		}
	}
}
