package ws

import (
	"fmt"

	"github.com/hilthontt/rendezvous/internal/domain"
	"github.com/tidwall/gjson"
)

// Frame is one inbound signaling message. Raw is relayed untouched; Type and
// To are read from it for routing, logs and metrics.
type Frame struct {
	Raw  []byte
	Type domain.SignalType
	To   string
}

func ParseFrame(raw []byte) (Frame, error) {
	if !gjson.ValidBytes(raw) {
		return Frame{}, fmt.Errorf("%w: invalid json", domain.ErrMalformedMessage)
	}

	doc := gjson.ParseBytes(raw)
	if !doc.IsObject() {
		return Frame{}, fmt.Errorf("%w: expected a json object", domain.ErrMalformedMessage)
	}

	typ := doc.Get("type")
	if typ.Exists() && typ.Type != gjson.String {
		return Frame{}, fmt.Errorf("%w: type must be a string", domain.ErrMalformedMessage)
	}
	if IsReservedType(typ.Str) {
		return Frame{}, fmt.Errorf("%w: type %q is reserved", domain.ErrMalformedMessage, typ.Str)
	}

	to := doc.Get("to")
	if to.Exists() && to.Type != gjson.String {
		return Frame{}, fmt.Errorf("%w: to must be a string", domain.ErrMalformedMessage)
	}

	return Frame{
		Raw:  raw,
		Type: domain.ClassifySignal(typ.Str, doc.Get("candidate").Exists()),
		To:   to.Str,
	}, nil
}
