package protocol

import "github.com/goccy/go-json"

// Encoder builds outbound commands. It carries the access token explicitly
// and has no knowledge of connection or subscription state.
type Encoder struct {
	token     string
	rootVIKey string
}

// NewEncoder creates an Encoder. An empty rootVIKey selects DefaultRootVIKey.
func NewEncoder(token, rootVIKey string) *Encoder {
	if rootVIKey == "" {
		rootVIKey = DefaultRootVIKey
	}
	return &Encoder{token: token, rootVIKey: rootVIKey}
}

// TickTrCd returns the tick feed category for an exchange.
func TickTrCd(ex Exchange) string {
	if ex == ExchangePrimary {
		return TrCdPrimaryTick
	}
	return TrCdSecondaryTick
}

// EncodeSubscribe builds a tick subscribe command for the instrument.
func (e *Encoder) EncodeSubscribe(inst Instrument) Envelope {
	return e.command(TrTypeSubscribe, TickTrCd(inst.Exchange), inst.Code)
}

// EncodeUnsubscribe builds a tick unsubscribe command for the instrument.
func (e *Encoder) EncodeUnsubscribe(inst Instrument) Envelope {
	return e.command(TrTypeUnsubscribe, TickTrCd(inst.Exchange), inst.Code)
}

// EncodeRootVISubscribe builds the VI subscription covering all instruments.
func (e *Encoder) EncodeRootVISubscribe() Envelope {
	return e.command(TrTypeSubscribe, TrCdVI, e.rootVIKey)
}

func (e *Encoder) command(trType, trCd, trKey string) Envelope {
	// commandBody has only string fields; Marshal cannot fail.
	body, _ := json.Marshal(commandBody{TrCd: trCd, TrKey: trKey})
	return Envelope{
		Header: Header{
			Token:  e.token,
			TrType: trType,
		},
		Body: body,
	}
}
