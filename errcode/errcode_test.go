package errcode

import (
	"errors"
	"fmt"
	"testing"
)

func TestOf(t *testing.T) {
	cases := []struct {
		err  error
		want Code
	}{
		{nil, OK},
		{AddressNack, AddressNack},
		{New(DuplicateAddress, "register", "0x50"), DuplicateAddress},
		{fmt.Errorf("outer: %w", New(UnmappedAccess, "read", "")), Error},
		{errors.New("plain"), Error},
	}
	for i, c := range cases {
		if got := Of(c.err); got != c.want {
			t.Fatalf("case %d: Of(%v) = %q, want %q", i, c.err, got, c.want)
		}
	}
}

func TestE_IsAndUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := Wrap(InvalidParams, "config", cause)

	if !errors.Is(err, InvalidParams) {
		t.Fatal("errors.Is should match the bare code")
	}
	if errors.Is(err, Timeout) {
		t.Fatal("errors.Is matched the wrong code")
	}
	if !errors.Is(err, cause) {
		t.Fatal("cause not reachable through Unwrap")
	}
	if got, want := err.Error(), "config: invalid_params: boom"; got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
}

func TestE_ErrorWithMessage(t *testing.T) {
	err := New(InvalidAddress, "", "0x80 is not a 7-bit address")
	if got, want := err.Error(), "invalid_address: 0x80 is not a 7-bit address"; got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
}

func TestMapDriverErr(t *testing.T) {
	cases := []struct {
		err  error
		want Code
	}{
		{nil, OK},
		{fmt.Errorf("tx: %w", New(AddressNack, "stm32i2c", "")), AddressNack},
		{fmt.Errorf("wrapped: %w", Timeout), Timeout},
		{errors.New("Timeout"), Timeout},
		{errors.New("bus timed out"), Timeout},
		{errors.New("crc mismatch"), Error},
	}
	for i, c := range cases {
		if got := MapDriverErr(c.err); got != c.want {
			t.Fatalf("case %d: MapDriverErr(%v) = %q, want %q", i, c.err, got, c.want)
		}
	}
}
