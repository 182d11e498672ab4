package config

// -----------------------------------------------------------------------------
// Embedded configuration
//
// Key: machine name (as passed to Embedded)
// Val: raw JSON bytes for that machine
// -----------------------------------------------------------------------------

// DefaultMachine is used by the monitor when no file is given.
const DefaultMachine = "stm32f4"

const cfgSTM32F4 = `{
  "name": "stm32f4",
  "i2c": [
    {
      "name": "i2c1",
      "base": "0x40005400",
      "slaves": [
        {"name": "baro", "type": "regfile", "address": "0x76", "size": 256,
         "init": {"0x00": "0x50", "0x01": "0x00"}, "read_only": ["0x00"]},
        {"name": "aht20", "type": "aht20", "address": "0x38", "humidity": 45.5, "temperature": 21.0},
        {"name": "shtc3", "type": "shtc3", "address": "0x70", "humidity": 40.0, "temperature": 22.5}
      ]
    },
    {
      "name": "i2c2",
      "base": "0x40005800",
      "slaves": [
        {"name": "eeprom", "type": "regfile", "address": "0x50", "size": 256}
      ]
    },
    {
      "name": "i2c3",
      "base": "0x40005C00",
      "release_slave_on_idle": true
    }
  ]
}`

var embeddedConfigs = map[string][]byte{
	DefaultMachine: []byte(cfgSTM32F4),
}

// EmbeddedConfigLookup allows overriding how embedded configs are resolved.
var EmbeddedConfigLookup = func(name string) ([]byte, bool) {
	b, ok := embeddedConfigs[name]
	return b, ok
}
