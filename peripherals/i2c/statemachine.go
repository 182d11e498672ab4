package i2c

import "github.com/cubesatlab/renode-infrastructure/errcode"

type State int

const (
	Idle State = iota
	AwaitingAddress
	AwaitingData
	ReceivingData
)

var stateNames = [...]string{"Idle", "AwaitingAddress", "AwaitingData", "ReceivingData"}

func (s State) String() string {
	if s < Idle || s > ReceivingData {
		return "State(?)"
	}
	return stateNames[s]
}

type event int

const (
	evStart event = iota
	evStop
	evDataWrite
	evDataRead
)

// dispatch is the transition function. Every protocol event goes through
// it, keyed on the event and the current state. Only evDataRead produces
// a value.
func (c *Controller) dispatch(ev event, v byte) byte {
	switch ev {
	case evStart:
		c.flushOutgoing()
		c.tra.SetValue(false)
		c.txEmpty.SetValue(false)
		c.btf.SetValue(false)
		c.startBit.SetValue(true)
		switch c.state {
		case Idle, AwaitingData, ReceivingData:
			c.state = AwaitingAddress
			c.masterSlave.SetValue(true)
			c.sched.Defer(c.update)
		}

	case evStop:
		if c.selected != nil {
			c.flushOutgoing()
			c.selected.FinishTransmission()
		}
		c.enterIdle()
		c.btf.SetValue(false)
		c.txEmpty.SetValue(false)
		c.update()

	case evDataWrite:
		switch c.state {
		case AwaitingAddress:
			c.addressPhase(v)
		case AwaitingData:
			c.tx.Push(v)
			epoch := c.epoch
			c.sched.Defer(func() {
				if epoch != c.epoch {
					return
				}
				c.txEmpty.SetValue(true)
				c.btf.SetValue(true)
				c.update()
			})
		default:
			c.fault(errcode.InvalidStateWrite, "data 0x%02X written in state %s", v, c.state)
		}

	case evDataRead:
		return c.receive()
	}
	return 0
}

// addressPhase decodes the byte written after START: the 7-bit address in
// bits 7:1 and the direction in bit 0 (1 = read).
func (c *Controller) addressPhase(v byte) {
	c.startBit.SetValue(false)
	read := v&1 == 1
	addr := v >> 1

	slave, ok := c.slaves.Lookup(addr)
	if !ok {
		c.enterIdle()
		c.ackFailed.SetValue(true)
		c.fault(errcode.AddressNack, "no slave at 0x%02X", addr)
		c.sched.Defer(c.update)
		return
	}

	c.selected, c.selAddr = slave, addr
	c.addrSent.SetValue(true)
	c.tra.SetValue(!read)
	if read {
		c.rx.Reset()
		c.rx.Write(slave.Read(1))
		c.btf.SetValue(true)
		c.state = ReceivingData
		c.log.Debug("addressed 0x%02X for read, %d byte(s) queued", addr, c.rx.Len())
	} else {
		c.tx.Reset()
		c.txEmpty.SetValue(true)
		c.state = AwaitingData
		c.log.Debug("addressed 0x%02X for write", addr)
	}
	c.sched.Defer(c.update)
}

// receive serves a data register read. In ReceivingData the read that
// empties the queue refills it from the selected slave, so RxNE and BTF
// stay up while the slave has data, and a refill raises a new DMA receive
// request once the clock is quiescent.
func (c *Controller) receive() byte {
	b, ok := c.rx.Pop()
	if !ok {
		c.fault(errcode.EmptyQueueRead, "data read with nothing to receive in state %s", c.state)
	}

	refilled := false
	if c.rx.Empty() && c.state == ReceivingData && c.selected != nil {
		n, _ := c.rx.Write(c.selected.Read(1))
		refilled = n > 0
	}
	c.btf.SetValue(!c.rx.Empty())
	c.update()

	if refilled {
		c.requestReceive()
	}
	c.log.Debug("data read 0x%02X, %d byte(s) left", b, c.rx.Len())
	return b
}

func (c *Controller) dataWrite(v byte) {
	c.btf.SetValue(false)
	c.update()
	c.dispatch(evDataWrite, v)
}

// flushOutgoing hands the buffered write phase to the selected slave in
// one call.
func (c *Controller) flushOutgoing() {
	if c.selected == nil || c.tx.Empty() {
		return
	}
	data := c.tx.Drain()
	c.log.Debug("flush %d byte(s) to 0x%02X", len(data), c.selAddr)
	c.selected.Write(data)
}

func (c *Controller) enterIdle() {
	c.state = Idle
	if c.cfg.ReleaseSlaveOnIdle {
		c.selected = nil
	}
}

func (c *Controller) startWrite(_, v bool) {
	if !v {
		return
	}
	c.log.Noisy("START in state %s", c.state)
	c.dispatch(evStart, 0)
}

func (c *Controller) stopWrite(_, v bool) {
	if !v {
		return
	}
	c.log.Noisy("STOP in state %s", c.state)
	c.dispatch(evStop, 0)
}

// peripheralEnableWrite clears the status flags when PE is written as 0.
// The transaction state is left as it is.
func (c *Controller) peripheralEnableWrite(_, v bool) {
	if v {
		return
	}
	c.ack.SetValue(false)
	c.masterSlave.SetValue(false)
	c.ackFailed.SetValue(false)
	c.tra.SetValue(false)
	c.txEmpty.SetValue(false)
	c.btf.SetValue(false)
	c.update()
}

func (c *Controller) softwareResetWrite(_, v bool) {
	if v {
		c.log.Debug("software reset")
		c.Reset()
	}
}
