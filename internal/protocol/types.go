package protocol

import (
	"errors"
	"fmt"
)

// Message categories (header.tr_cd).
const (
	TrCdVI            = "VI_"
	TrCdPrimaryTick   = "S3_" // KRX board trade ticks
	TrCdSecondaryTick = "K3_" // KOSDAQ board trade ticks
)

// Subscription directions (header.tr_type).
const (
	TrTypeSubscribe   = "3"
	TrTypeUnsubscribe = "4"
)

// Acknowledgement codes (header.rsp_cd).
const (
	RspSubscribed   = "00000"
	RspUnsubscribed = "00001"
)

// DefaultRootVIKey is the tr_key that selects VI events for all instruments.
const DefaultRootVIKey = "000000"

// PrimaryExchangeName is the exchname value reported for the primary board.
const PrimaryExchangeName = "KRX"

// ErrDecode is the sentinel wrapped by every DecodeError.
var ErrDecode = errors.New("decode frame")

// DecodeError reports a malformed inbound frame.
type DecodeError struct {
	Stage string // "envelope", "vi", "tick"
	TrCd  string
	Err   error
}

func (e *DecodeError) Error() string {
	if e.TrCd != "" {
		return fmt.Sprintf("decode %s (%s): %v", e.Stage, e.TrCd, e.Err)
	}
	return fmt.Sprintf("decode %s: %v", e.Stage, e.Err)
}

// Unwrap lets errors.Is match both ErrDecode and the underlying cause.
func (e *DecodeError) Unwrap() []error {
	return []error{ErrDecode, e.Err}
}

// Exchange identifies the board an instrument trades on.
type Exchange int

const (
	ExchangePrimary Exchange = iota
	ExchangeSecondary
)

// ParseExchange maps an exchname value to an Exchange. Anything that is not
// the primary board is treated as the secondary board.
func ParseExchange(name string) Exchange {
	if name == PrimaryExchangeName {
		return ExchangePrimary
	}
	return ExchangeSecondary
}

func (e Exchange) String() string {
	switch e {
	case ExchangePrimary:
		return "primary"
	default:
		return "secondary"
	}
}

// MarshalText encodes the exchange by name.
func (e Exchange) MarshalText() ([]byte, error) {
	return []byte(e.String()), nil
}

// Instrument is a tradable security. Codes are unique across exchanges.
type Instrument struct {
	Code     string   `json:"code"`
	Exchange Exchange `json:"exchange"`
}

// VIStatus is the volatility interruption state reported by vi_gubun.
type VIStatus int

const (
	VIUnrecognized VIStatus = iota - 1
	VIReleased
	VIStaticTriggered
	VIDynamicTriggered
	VIBothTriggered
)

// ParseVIStatus decodes the single-digit wire value.
func ParseVIStatus(digit string) VIStatus {
	switch digit {
	case "0":
		return VIReleased
	case "1":
		return VIStaticTriggered
	case "2":
		return VIDynamicTriggered
	case "3":
		return VIBothTriggered
	default:
		return VIUnrecognized
	}
}

// Triggered reports whether the status means the instrument is under VI.
func (s VIStatus) Triggered() bool {
	return s == VIStaticTriggered || s == VIDynamicTriggered || s == VIBothTriggered
}

func (s VIStatus) String() string {
	switch s {
	case VIReleased:
		return "released"
	case VIStaticTriggered:
		return "static"
	case VIDynamicTriggered:
		return "dynamic"
	case VIBothTriggered:
		return "static+dynamic"
	default:
		return "unrecognized"
	}
}

// Label is the operator-facing description of the status.
func (s VIStatus) Label() string {
	switch s {
	case VIReleased:
		return "VI released"
	case VIStaticTriggered:
		return "static VI triggered"
	case VIDynamicTriggered:
		return "dynamic VI triggered"
	case VIBothTriggered:
		return "static and dynamic VI triggered"
	default:
		return "unknown VI status"
	}
}
