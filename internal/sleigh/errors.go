package sleigh

import (
	"errors"
	"fmt"
)

var (
	// ErrAddressRange reports a read outside the bytes supplied to the image.
	ErrAddressRange       = errors.New("address out of range")
	ErrAddressBeforeRange = fmt.Errorf("%w: before start of image", ErrAddressRange)
	ErrAddressAfterRange  = fmt.Errorf("%w: past end of image", ErrAddressRange)

	// ErrBadData reports bytes that match no instruction.
	ErrBadData = errors.New("bad data")
	// ErrUnimplemented reports an instruction the engine recognises but
	// cannot translate.
	ErrUnimplemented = errors.New("unimplemented instruction")

	// ErrParse reports a malformed or unbindable language document.
	ErrParse = errors.New("specification parse error")

	ErrUnknownProcessor       = errors.New("unknown processor")
	ErrUnknownContextVariable = errors.New("unknown context variable")
)

// IsDecodeFailure reports whether err belongs to the class of failures that
// end a bounded scan instead of propagating to the caller.
func IsDecodeFailure(err error) bool {
	return errors.Is(err, ErrBadData) || errors.Is(err, ErrUnimplemented)
}

// BadData builds a bad-data error for addr with an engine supplied reason.
func BadData(addr Address, reason error) error {
	if reason == nil {
		return fmt.Errorf("%w at %s", ErrBadData, addr)
	}
	return fmt.Errorf("%w at %s: %v", ErrBadData, addr, reason)
}

// Unimplemented builds an unimplemented-instruction error for addr.
func Unimplemented(addr Address, mnemonic string) error {
	return fmt.Errorf("%w at %s: %s", ErrUnimplemented, addr, mnemonic)
}
