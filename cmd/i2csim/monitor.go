package main

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/google/shlex"

	"github.com/cubesatlab/renode-infrastructure/bus"
	"github.com/cubesatlab/renode-infrastructure/config"
	"github.com/cubesatlab/renode-infrastructure/core/gpio"
	"github.com/cubesatlab/renode-infrastructure/errcode"
	"github.com/cubesatlab/renode-infrastructure/peripherals/i2c"
	"github.com/cubesatlab/renode-infrastructure/services/telemetry"
)

const help = `read ADDR [b|w|d]          read from the system bus
write ADDR VALUE [b|w|d]   write to the system bus
tx CTRL ADDR HEX|- [N]     run a transaction through CTRL's driver
sync                       flush deferred updates
tick N                     advance virtual time by N ticks
state [CTRL]               controller state and buffers
lines [CTRL]               interrupt and DMA line levels
events                     bus messages since the last call
faults                     protocol fault counters
slaves                     attached slave devices
sample                     read every environmental sensor
reset                      reset the machine
help                       this text
quit                       leave the monitor
`

type monitor struct {
	b      *config.Built
	svc    *telemetry.Service
	out    io.Writer
	prompt string
	names  []string
	events *bus.Subscription
	quit   bool
}

func newMonitor(b *config.Built, svc *telemetry.Service, out io.Writer) *monitor {
	return &monitor{
		b:      b,
		svc:    svc,
		out:    out,
		prompt: b.Machine.Name() + "> ",
		names:  slices.Sorted(maps.Keys(b.I2C)),
		events: b.Machine.Bus().NewConnection("monitor").Subscribe(bus.T(bus.MultiLevel)),
	}
}

// run executes commands from in until it is exhausted or quit is entered.
// Command errors are printed and do not stop the loop.
func (m *monitor) run(in io.Reader, interactive bool) error {
	sc := bufio.NewScanner(in)
	for !m.quit {
		if interactive {
			fmt.Fprint(m.out, m.prompt)
		}
		if !sc.Scan() {
			return sc.Err()
		}
		args, err := shlex.Split(sc.Text())
		if err != nil {
			fmt.Fprintln(m.out, "error:", err)
			continue
		}
		if len(args) == 0 {
			continue
		}
		if err := m.exec(args[0], args[1:]); err != nil {
			fmt.Fprintln(m.out, "error:", err)
		}
	}
	return nil
}

func (m *monitor) exec(name string, args []string) error {
	switch name {
	case "read":
		return m.read(args)
	case "write":
		return m.write(args)
	case "tx":
		return m.tx(args)
	case "sync":
		fmt.Fprintf(m.out, "%d update(s)\n", m.b.Machine.Sync())
	case "tick":
		if len(args) != 1 {
			return usageErr("tick N")
		}
		n, err := strconv.ParseUint(args[0], 0, 64)
		if err != nil {
			return err
		}
		m.b.Machine.Advance(n)
		fmt.Fprintf(m.out, "t=%d\n", m.b.Machine.Now())
	case "state":
		return m.each(args, m.state)
	case "lines":
		return m.each(args, m.lines)
	case "events":
		m.drainEvents()
	case "faults":
		m.faults()
	case "slaves":
		m.slaves()
	case "sample":
		m.sample()
	case "reset":
		m.b.Machine.Reset()
		return m.svc.Reconfigure()
	case "help", "?":
		fmt.Fprint(m.out, help)
	case "quit", "exit":
		m.quit = true
	default:
		return fmt.Errorf("unknown command %q, try help", name)
	}
	return nil
}

func usageErr(u string) error { return errcode.New(errcode.InvalidParams, "", "usage: "+u) }

func parseWidth(args []string) (int, error) {
	if len(args) == 0 {
		return 4, nil
	}
	switch args[0] {
	case "b":
		return 1, nil
	case "w":
		return 2, nil
	case "d":
		return 4, nil
	}
	return 0, fmt.Errorf("width %q is not b, w or d", args[0])
}

func (m *monitor) read(args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return usageErr("read ADDR [b|w|d]")
	}
	addr, err := strconv.ParseUint(args[0], 0, 64)
	if err != nil {
		return err
	}
	width, err := parseWidth(args[1:])
	if err != nil {
		return err
	}
	var v uint64
	switch width {
	case 1:
		v = uint64(m.b.Machine.ReadByte(addr))
	case 2:
		v = uint64(m.b.Machine.ReadWord(addr))
	default:
		v = uint64(m.b.Machine.ReadDoubleWord(addr))
	}
	fmt.Fprintf(m.out, "0x%08X: 0x%0*X\n", addr, 2*width, v)
	return nil
}

func (m *monitor) write(args []string) error {
	if len(args) < 2 || len(args) > 3 {
		return usageErr("write ADDR VALUE [b|w|d]")
	}
	addr, err := strconv.ParseUint(args[0], 0, 64)
	if err != nil {
		return err
	}
	width, err := parseWidth(args[2:])
	if err != nil {
		return err
	}
	v, err := strconv.ParseUint(args[1], 0, 8*width)
	if err != nil {
		return err
	}
	switch width {
	case 1:
		m.b.Machine.WriteByte(addr, byte(v))
	case 2:
		m.b.Machine.WriteWord(addr, uint16(v))
	default:
		m.b.Machine.WriteDoubleWord(addr, uint32(v))
	}
	return nil
}

func (m *monitor) tx(args []string) error {
	if len(args) < 3 || len(args) > 4 {
		return usageErr("tx CTRL ADDR HEX|- [N]")
	}
	ms, ok := m.svc.Master(args[0])
	if !ok {
		return errcode.New(errcode.UnknownDevice, "", args[0])
	}
	addr, err := strconv.ParseUint(args[1], 0, 16)
	if err != nil {
		return err
	}
	var w []byte
	if args[2] != "-" {
		if w, err = hex.DecodeString(args[2]); err != nil {
			return err
		}
	}
	var r []byte
	if len(args) == 4 {
		n, err := strconv.Atoi(args[3])
		if err != nil || n < 0 {
			return fmt.Errorf("bad read count %q", args[3])
		}
		r = make([]byte, n)
	}
	if err := ms.Tx(uint16(addr), w, r); err != nil {
		return err
	}
	if len(r) > 0 {
		fmt.Fprintf(m.out, "% X\n", r)
	} else {
		fmt.Fprintln(m.out, "ok")
	}
	return nil
}

// each runs fn for the named controller, or for all of them. fn runs under
// the machine lock, as the polling service may be mid-transaction.
func (m *monitor) each(args []string, fn func(string, *i2c.Controller)) error {
	names := m.names
	if len(args) > 0 {
		if _, ok := m.b.I2C[args[0]]; !ok {
			return errcode.New(errcode.UnknownDevice, "", args[0])
		}
		names = args[:1]
	}
	for _, name := range names {
		c := m.b.I2C[name]
		m.b.Machine.Do(func() { fn(name, c) })
	}
	return nil
}

func (m *monitor) state(name string, c *i2c.Controller) {
	sel := "none"
	if a, ok := c.SelectedAddress(); ok {
		sel = fmt.Sprintf("0x%02X", a)
	}
	fmt.Fprintf(m.out, "%s: %s selected=%s out=[% X] in=%d freq=%dMHz\n",
		name, c.State(), sel, c.Outgoing(), c.Incoming(), c.Frequency())
}

func (m *monitor) lines(_ string, c *i2c.Controller) {
	for _, l := range []*gpio.Line{c.EventInterrupt, c.ErrorInterrupt, c.DMATransmit, c.DMAReceive} {
		fmt.Fprintf(m.out, "%s: %s\n", l.Name(), level(l.IsSet(), l.Edges()))
	}
}

func level(high bool, edges uint64) string {
	if high {
		return fmt.Sprintf("high edges=%d", edges)
	}
	return fmt.Sprintf("low edges=%d", edges)
}

func (m *monitor) drainEvents() {
	for {
		select {
		case msg, ok := <-m.events.Channel():
			if !ok {
				return
			}
			fmt.Fprintf(m.out, "%s %s\n", topicString(msg.Topic), payloadString(msg.Payload))
		default:
			return
		}
	}
}

func topicString(t bus.Topic) string {
	parts := make([]string, len(t))
	for i, tok := range t {
		parts[i] = fmt.Sprint(tok)
	}
	return strings.Join(parts, "/")
}

func payloadString(p any) string {
	switch v := p.(type) {
	case gpio.Level:
		return level(v.High, v.Edges)
	case uint64:
		return fmt.Sprintf("count=%d", v)
	}
	return fmt.Sprint(p)
}

func (m *monitor) faults() {
	for _, name := range m.names {
		var f map[errcode.Code]uint64
		m.b.Machine.Do(func() { f = m.b.I2C[name].Faults() })
		for _, code := range slices.Sorted(maps.Keys(f)) {
			fmt.Fprintf(m.out, "%s %s %d\n", name, code, f[code])
		}
	}
	fmt.Fprintf(m.out, "machine unmapped_access %d\n", m.b.Machine.Unmapped())
}

func (m *monitor) slaves() {
	for _, name := range m.names {
		for _, s := range m.b.Slaves[name] {
			fmt.Fprintf(m.out, "%s 0x%02X %-8s %s\n", name, uint64(s.Address), s.Type, s.DisplayName())
		}
	}
}

func (m *monitor) sample() {
	for _, r := range m.svc.Sample() {
		if r.Err != nil {
			fmt.Fprintf(m.out, "%s: %s\n", r.Info.Name, errcode.MapDriverErr(r.Err))
			continue
		}
		fmt.Fprintf(m.out, "%s: %.1f C %.2f %%RH\n", r.Info.Name,
			float64(r.Temperature.DeciC)/10, float64(r.Humidity.RHx100)/100)
	}
}
