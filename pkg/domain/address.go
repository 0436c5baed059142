package domain

import (
	"encoding/hex"
	"errors"

	dErrors "leasehold/pkg/domain-errors"
)

var (
	errMissingPrefix = errors.New("missing 0x prefix")
	errBadLength     = errors.New("wrong length")
	errNotHex        = errors.New("not hex")
)

// Address is a 20-byte account identity: owners, operators, the engine itself.
type Address [20]byte

// ZeroAddress is the unset address.
var ZeroAddress = Address{}

// ParseAddress parses a 0x-prefixed 40 hex digit address. Case is ignored.
func ParseAddress(s string) (Address, error) {
	var a Address
	raw, err := decodeHex(s, len(a))
	if err != nil {
		return Address{}, dErrors.New(dErrors.CodeInvalidInput, "invalid address: "+err.Error())
	}
	copy(a[:], raw)
	return a, nil
}

// MustParseAddress is ParseAddress for constants and tests.
func MustParseAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

func (a Address) String() string {
	return "0x" + hex.EncodeToString(a[:])
}

func (a Address) IsZero() bool {
	return a == ZeroAddress
}

func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
