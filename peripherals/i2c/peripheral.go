// Package i2c emulates the STM32F4 I2C controller in master mode: the
// register bank, the transaction state machine, interrupt assertion and DMA
// request signalling. Slave devices attach to the controller by 7-bit
// address and are driven through the Peripheral interface.
package i2c

// Peripheral is a device addressable on the I2C bus. Calls are synchronous
// and must not re-enter the controller that issued them.
type Peripheral interface {
	// Read returns the next bytes the device puts on the bus. count is a
	// hint; devices may return more or fewer bytes.
	Read(count int) []byte
	// Write delivers the bytes of one write phase, in bus order.
	Write(data []byte)
	// FinishTransmission is called when the master issues STOP.
	FinishTransmission()
	Reset()
}
