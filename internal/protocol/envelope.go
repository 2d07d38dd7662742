package protocol

import (
	"bytes"
	"errors"

	"github.com/goccy/go-json"
)

// Header is the envelope header. Inbound events fill TrCd/TrKey/RspCd/RspMsg,
// outbound commands fill Token/TrType.
type Header struct {
	TrCd   string `json:"tr_cd,omitempty"`
	TrKey  string `json:"tr_key,omitempty"`
	TrType string `json:"tr_type,omitempty"`
	Token  string `json:"token,omitempty"`
	RspCd  string `json:"rsp_cd,omitempty"`
	RspMsg string `json:"rsp_msg,omitempty"`
}

// Envelope is a single wire message.
type Envelope struct {
	Header Header          `json:"header"`
	Body   json.RawMessage `json:"body,omitempty"`
}

// commandBody is the body of a subscribe / unsubscribe command.
type commandBody struct {
	TrCd  string `json:"tr_cd"`
	TrKey string `json:"tr_key"`
}

var nullBody = []byte("null")

// Decode parses a raw frame into an Envelope.
func Decode(raw []byte) (Envelope, error) {
	var env Envelope
	if len(bytes.TrimSpace(raw)) == 0 {
		return env, &DecodeError{Stage: "envelope", Err: errors.New("empty frame")}
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, &DecodeError{Stage: "envelope", Err: err}
	}
	return env, nil
}

// Marshal encodes an Envelope for sending.
func Marshal(env Envelope) ([]byte, error) {
	return json.Marshal(env)
}

// HasBody reports whether the envelope carries a non-empty body.
func (e Envelope) HasBody() bool {
	body := bytes.TrimSpace(e.Body)
	if len(body) == 0 || bytes.Equal(body, nullBody) {
		return false
	}
	return !bytes.Equal(body, []byte("{}"))
}

// IsAck reports whether the envelope is a command acknowledgement.
func (e Envelope) IsAck() bool {
	return e.Header.RspCd != ""
}

// Category returns the message category used for routing.
func (e Envelope) Category() string {
	return e.Header.TrCd
}
