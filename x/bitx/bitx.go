// Package bitx holds small generic helpers for register bit manipulation.
package bitx

import "golang.org/x/exp/constraints"

// Mask returns width one-bits starting at pos. width >= bit size of T
// yields all ones.
func Mask[T constraints.Unsigned](pos, width uint) T {
	var ones T = ^T(0)
	if width == 0 {
		return 0
	}
	if bits := Width[T](); width < bits {
		ones = (T(1) << width) - 1
	}
	return ones << pos
}

// Width is the size of T in bits.
func Width[T constraints.Unsigned]() uint {
	var n uint
	for v := ^T(0); v != 0; v >>= 1 {
		n++
	}
	return n
}

// Get extracts width bits at pos from v.
func Get[T constraints.Unsigned](v T, pos, width uint) T {
	return (v & Mask[T](pos, width)) >> pos
}

// Set returns v with width bits at pos replaced by field (truncated).
func Set[T constraints.Unsigned](v T, pos, width uint, field T) T {
	m := Mask[T](pos, width)
	return (v &^ m) | ((field << pos) & m)
}

// IsSet reports whether bit pos is set.
func IsSet[T constraints.Unsigned](v T, pos uint) bool {
	return v&(T(1)<<pos) != 0
}

// Clamp limits v to [lo, hi]. If lo > hi, the bounds are swapped.
func Clamp[T constraints.Ordered](v, lo, hi T) T {
	if hi < lo {
		lo, hi = hi, lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// CRC8 is the MSB-first CRC-8 used by Sensirion and Aosong sensors
// (poly 0x31, init 0xFF for both).
func CRC8(data []byte, poly, init byte) byte {
	crc := init
	for _, b := range data {
		crc ^= b
		for i := 0; i < 8; i++ {
			if crc&0x80 != 0 {
				crc = crc<<1 ^ poly
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
