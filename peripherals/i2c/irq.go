package i2c

// update recomputes both interrupt lines from the current field values.
// It has no other side effects, so calling it again without a field change
// leaves the lines where they are.
func (c *Controller) update() {
	event := c.eventIE.Value() && (c.startBit.Value() || c.addrSent.Value() || c.btf.Value() ||
		(c.bufferIE.Value() && (c.txEmpty.Value() || c.rxNotEmpty())))
	c.EventInterrupt.Set(event)
	c.ErrorInterrupt.Set(c.errorIE.Value() && c.ackFailed.Value())
}

// rxNotEmpty backs SR1.RxNE. It is never stored.
func (c *Controller) rxNotEmpty() bool { return !c.rx.Empty() }

// interruptEnableChange handles ITEVTEN, ITBUFEN and ITERREN. Enabling a
// source waits for the next quiescent point so it cannot fire on state the
// current access is about to change. Disabling takes effect before the
// write returns, so a handler that masks its own source is not re-entered.
func (c *Controller) interruptEnableChange(_, enabled bool) {
	c.log.Debug("interrupt enable change: %v", enabled)
	if enabled {
		c.sched.Defer(c.update)
		return
	}
	c.update()
}
