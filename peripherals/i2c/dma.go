package i2c

import "github.com/cubesatlab/renode-infrastructure/core/gpio"

// dmaEnableChange raises both request lines when DMA is switched on. The
// controller cannot tell which direction the firmware intends, so each line
// that is not already asserted gets a fresh rising edge.
func (c *Controller) dmaEnableChange(_, on bool) {
	c.log.Debug("DMA enable change: %v", on)
	if !on {
		c.DMATransmit.Unset()
		c.DMAReceive.Unset()
		return
	}
	for _, l := range [...]*gpio.Line{c.DMATransmit, c.DMAReceive} {
		if !l.IsSet() {
			l.Unset()
			l.Set(true)
		}
	}
}

// requestReceive signals that a refilled byte is ready for the DMA
// controller: the receive line drops now and rises at the next quiescent
// point.
func (c *Controller) requestReceive() {
	c.DMAReceive.Unset()
	epoch := c.epoch
	c.sched.Defer(func() {
		if epoch == c.epoch {
			c.DMAReceive.Set(true)
		}
	})
}
