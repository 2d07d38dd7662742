package protocol

import (
	"errors"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
)

// VIEvent is a decoded VI_ body.
type VIEvent struct {
	Instrument      Instrument
	ExchangeName    string
	Status          VIStatus
	RawStatus       string // vi_gubun as received, kept for logging unknown values
	TriggerPrice    decimal.Decimal
	StaticRefPrice  decimal.Decimal
	DynamicRefPrice decimal.Decimal
	Time            string // HHMMSS exchange time

	// PriceErr holds the first price field that failed to parse. Such
	// fields decode to zero and the event is still valid.
	PriceErr error
}

// TickEvent is a decoded S3_/K3_ body.
type TickEvent struct {
	Code         string
	TrCd         string
	ExchangeName string
	Price        decimal.Decimal
	Change       decimal.Decimal
	Rate         decimal.Decimal
	Volume       decimal.Decimal
	Value        decimal.Decimal
	Bid          decimal.Decimal
	Ask          decimal.Decimal
	Time         string // HHMMSS execution time
}

type viWire struct {
	Code        string `json:"ref_shcode"`
	Gubun       string `json:"vi_gubun"`
	TrgPrice    string `json:"vi_trgprice"`
	Time        string `json:"time"`
	ExchName    string `json:"exchname"`
	SviRecPrice string `json:"svi_recprice"`
	DviRecPrice string `json:"dvi_recprice"`
}

type tickWire struct {
	Price    string `json:"price"`
	Change   string `json:"change"`
	Drate    string `json:"drate"`
	Volume   string `json:"volume"`
	Value    string `json:"value"`
	Bidho    string `json:"bidho"`
	Offerho  string `json:"offerho"`
	Chetime  string `json:"chetime"`
	ExchName string `json:"exchname"`
}

// IsTickCategory reports whether tr_cd is one of the trade tick feeds.
func IsTickCategory(trCd string) bool {
	return trCd == TrCdPrimaryTick || trCd == TrCdSecondaryTick
}

// DecodeVI decodes the body of a VI_ envelope. Only a body that is not an
// object or lacks ref_shcode is a decode error; bad price fields are reported
// through VIEvent.PriceErr.
func DecodeVI(env Envelope) (VIEvent, error) {
	var w viWire
	if err := json.Unmarshal(env.Body, &w); err != nil {
		return VIEvent{}, &DecodeError{Stage: "vi", TrCd: env.Header.TrCd, Err: err}
	}
	code := strings.TrimSpace(w.Code)
	if code == "" {
		return VIEvent{}, &DecodeError{Stage: "vi", TrCd: env.Header.TrCd, Err: errors.New("missing ref_shcode")}
	}

	p := priceParser{}
	ev := VIEvent{
		Instrument:      Instrument{Code: code, Exchange: ParseExchange(w.ExchName)},
		ExchangeName:    w.ExchName,
		Status:          ParseVIStatus(strings.TrimSpace(w.Gubun)),
		RawStatus:       w.Gubun,
		TriggerPrice:    p.parse("vi_trgprice", w.TrgPrice),
		StaticRefPrice:  p.parse("svi_recprice", w.SviRecPrice),
		DynamicRefPrice: p.parse("dvi_recprice", w.DviRecPrice),
		Time:            w.Time,
		PriceErr:        p.err,
	}
	return ev, nil
}

// DecodeTick decodes the body of a tick envelope. The instrument code comes
// from header.tr_key.
func DecodeTick(env Envelope) (TickEvent, error) {
	code := strings.TrimSpace(env.Header.TrKey)
	if code == "" {
		return TickEvent{}, &DecodeError{Stage: "tick", TrCd: env.Header.TrCd, Err: errors.New("missing tr_key")}
	}
	var w tickWire
	if err := json.Unmarshal(env.Body, &w); err != nil {
		return TickEvent{}, &DecodeError{Stage: "tick", TrCd: env.Header.TrCd, Err: err}
	}

	p := priceParser{}
	ev := TickEvent{
		Code:         code,
		TrCd:         env.Header.TrCd,
		ExchangeName: w.ExchName,
		Price:        p.parse("price", w.Price),
		Change:       p.parse("change", w.Change),
		Rate:         p.parse("drate", w.Drate),
		Volume:       p.parse("volume", w.Volume),
		Value:        p.parse("value", w.Value),
		Bid:          p.parse("bidho", w.Bidho),
		Ask:          p.parse("offerho", w.Offerho),
		Time:         w.Chetime,
	}
	if p.err != nil {
		return TickEvent{}, &DecodeError{Stage: "tick", TrCd: env.Header.TrCd, Err: p.err}
	}
	return ev, nil
}

// priceParser keeps the first parse failure so a body is decoded in one pass.
type priceParser struct {
	err error
}

// parse converts a numeric string field. Empty fields decode to zero.
func (p *priceParser) parse(field, s string) decimal.Decimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		if p.err == nil {
			p.err = fmt.Errorf("field %s: %w", field, err)
		}
		return decimal.Zero
	}
	return d
}
