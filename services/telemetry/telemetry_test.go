package telemetry

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cubesatlab/renode-infrastructure/bus"
	"github.com/cubesatlab/renode-infrastructure/config"
	"github.com/cubesatlab/renode-infrastructure/drivers/stm32i2c"
	"github.com/cubesatlab/renode-infrastructure/types"
	"github.com/cubesatlab/renode-infrastructure/x/logx"
)

func build(t *testing.T) (*config.Built, *bus.Connection) {
	t.Helper()
	logx.SetOutput(io.Discard)
	t.Cleanup(func() { logx.SetOutput(nil) })
	cfg, err := config.Embedded(config.DefaultMachine)
	if err != nil {
		t.Fatal(err)
	}
	b, err := cfg.Build()
	if err != nil {
		t.Fatal(err)
	}
	return b, b.Machine.Bus().NewConnection("test")
}

func TestSensorsBound(t *testing.T) {
	b, conn := build(t)
	s, err := New(b, conn, Config{})
	if err != nil {
		t.Fatal(err)
	}
	got := s.Sensors()
	if len(got) != 2 || got[0].Name != "i2c1.aht20" || got[1].Name != "i2c1.shtc3" {
		t.Fatalf("sensors = %+v", got)
	}
	if got[0].Addr != 0x38 || got[1].Sensor != "shtc3" {
		t.Fatalf("sensor info = %+v", got)
	}
	for _, name := range []string{"i2c1", "i2c2", "i2c3"} {
		if _, ok := s.Master(name); !ok {
			t.Fatalf("no master for %s", name)
		}
	}
}

func TestSamplePublishesReadings(t *testing.T) {
	b, conn := build(t)
	s, err := New(b, conn, Config{})
	if err != nil {
		t.Fatal(err)
	}
	sub := conn.Subscribe(bus.T("env", bus.MultiLevel))

	res := s.Sample()
	if len(res) != 2 {
		t.Fatalf("%d results", len(res))
	}
	if res[0].Err != nil || res[0].Temperature.DeciC != 209 || res[0].Humidity.RHx100 != 4540 {
		t.Fatalf("aht20 result = %+v", res[0])
	}
	sh := res[1]
	if sh.Err != nil || sh.Temperature.DeciC < 223 || sh.Temperature.DeciC > 225 ||
		sh.Humidity.RHx100 < 3990 || sh.Humidity.RHx100 > 4010 {
		t.Fatalf("shtc3 result = %+v", sh)
	}

	seen := map[string]types.Reading{}
	for len(seen) < 4 {
		select {
		case msg := <-sub.Channel():
			seen[msg.Topic[1].(string)+"/"+msg.Topic[2].(string)] = msg.Payload.(types.Reading)
		case <-time.After(time.Second):
			t.Fatalf("only %d readings published", len(seen))
		}
	}
	r := seen["temperature/i2c1.aht20"]
	if v, ok := r.Value.(types.TemperatureValue); !ok || v.DeciC != 209 || r.Err != "" {
		t.Fatalf("aht20 temperature reading = %+v", r)
	}
	if _, ok := seen["humidity/i2c1.shtc3"].Value.(types.HumidityValue); !ok {
		t.Fatalf("shtc3 humidity reading = %+v", seen["humidity/i2c1.shtc3"])
	}
}

func TestMissingSensorPublishesError(t *testing.T) {
	b, conn := build(t)
	s, err := New(b, conn, Config{})
	if err != nil {
		t.Fatal(err)
	}
	if err := b.I2C["i2c1"].Unregister(0x70); err != nil {
		t.Fatal(err)
	}
	sub := conn.Subscribe(bus.T("env", "humidity", "i2c1.shtc3"))

	res := s.Sample()
	if !errors.Is(res[1].Err, stm32i2c.ErrNACK) {
		t.Fatalf("shtc3 err = %v", res[1].Err)
	}
	msg := <-sub.Channel()
	if r := msg.Payload.(types.Reading); r.Err != "address_nack" || r.Value != nil {
		t.Fatalf("reading = %+v", r)
	}
}

func TestReconfigureAfterReset(t *testing.T) {
	b, conn := build(t)
	s, err := New(b, conn, Config{})
	if err != nil {
		t.Fatal(err)
	}
	b.Machine.Reset()
	if got := b.I2C["i2c1"].Frequency(); got != 0 {
		t.Fatalf("FREQ after reset = %d", got)
	}
	if err := s.Reconfigure(); err != nil {
		t.Fatal(err)
	}
	if got := b.I2C["i2c1"].Frequency(); got != 16 {
		t.Fatalf("FREQ after Reconfigure = %d", got)
	}
	for _, r := range s.Sample() {
		if r.Err != nil {
			t.Fatalf("%s: %v", r.Info.Name, r.Err)
		}
	}
}

func TestRunFollowsIntervalUpdates(t *testing.T) {
	b, conn := build(t)
	s, err := New(b, conn, Config{})
	if err != nil {
		t.Fatal(err)
	}
	conn.Publish(conn.NewMessage(TopicInterval, 10*time.Millisecond, true))
	sub := conn.Subscribe(bus.T("env", "temperature", "i2c1.aht20"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx, time.Hour)
		close(done)
	}()

	select {
	case <-sub.Channel():
	case <-time.After(5 * time.Second):
		t.Fatal("no reading within 5s of shortening the interval")
	}
	cancel()
	<-done
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestRunKeepsSamplingAfterIntervalUpdatesClose(t *testing.T) {
	b, conn := build(t)
	logs := &syncBuffer{}
	logx.SetOutput(logs)
	s, err := New(b, conn, Config{})
	if err != nil {
		t.Fatal(err)
	}
	sub := b.Machine.Bus().NewConnection("watch").Subscribe(bus.T("env", "temperature", "i2c1.aht20"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx, 5*time.Millisecond)
		close(done)
	}()
	defer func() {
		cancel()
		<-done
	}()

	next := func(what string) {
		t.Helper()
		select {
		case <-sub.Channel():
		case <-time.After(5 * time.Second):
			t.Fatalf("no reading %s", what)
		}
	}
	next("before closing")
	conn.Disconnect()

	deadline := time.Now().Add(5 * time.Second)
	for !strings.Contains(logs.String(), "interval updates closed") {
		if time.Now().After(deadline) {
			t.Fatal("Run did not notice the closed subscription")
		}
		time.Sleep(time.Millisecond)
	}
	for len(sub.Channel()) > 0 {
		<-sub.Channel()
	}
	next("after closing")
	if n := strings.Count(logs.String(), "interval updates closed"); n != 1 {
		t.Fatalf("closed subscription handled %d times", n)
	}
}
