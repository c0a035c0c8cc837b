package domain

// SignalType classifies a relayed frame. The relay never acts on it beyond
// metrics and logging.
type SignalType string

const (
	SignalOffer        SignalType = "offer"
	SignalAnswer       SignalType = "answer"
	SignalICECandidate SignalType = "ice-candidate"
	SignalOther        SignalType = "other"
)

// ClassifySignal maps the frame's type field to a SignalType. Browsers send
// serialized RTCIceCandidate objects without a type, so a bare candidate field
// also counts as an ICE candidate.
func ClassifySignal(typ string, hasCandidate bool) SignalType {
	switch typ {
	case "offer":
		return SignalOffer
	case "answer":
		return SignalAnswer
	case "ice-candidate", "ice_candidate", "candidate":
		return SignalICECandidate
	case "":
		if hasCandidate {
			return SignalICECandidate
		}
	}

	return SignalOther
}
