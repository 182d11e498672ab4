// Package types holds the payloads published on the machine bus by
// services that sit on top of the emulated peripherals.
package types

// Kind names a measured quantity and is the second topic token of a
// reading, as in env/temperature/<sensor>.
type Kind string

const (
	KindTemperature Kind = "temperature"
	KindHumidity    Kind = "humidity"
)

type SensorInfo struct {
	Name   string `json:"name"`
	Sensor string `json:"sensor"` // "aht20", "shtc3"
	Bus    string `json:"bus"`    // controller name
	Addr   uint16 `json:"addr"`
}

type TemperatureValue struct {
	// Tenths of °C (e.g. 231 => 23.1°C).
	DeciC int16 `json:"deci_c"`
}

type HumidityValue struct {
	// Hundredths of %RH (0..10000 for 0..100.00%).
	RHx100 uint16 `json:"rh_x100"`
}

// Reading is the retained payload of a sensor topic. Exactly one of Value
// and Err is set; Value is a TemperatureValue or a HumidityValue.
type Reading struct {
	Value any    `json:"value,omitempty"`
	Err   string `json:"error,omitempty"`
	// Tick is the machine's virtual time when the reading was taken.
	Tick uint64 `json:"tick"`
}
