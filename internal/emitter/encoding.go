package emitter

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/e7canasta/orion-care-sensor/modules/framehandoff/internal"
)

// Payload encodings
const (
	EncodingJSON    = "json"
	EncodingMsgpack = "msgpack"
)

// Envelope wraps a rate report on the wire.
type Envelope struct {
	MessageID string              `json:"message_id" msgpack:"message_id"`
	Type      string              `json:"type" msgpack:"type"`
	SentAt    time.Time           `json:"sent_at" msgpack:"sent_at"`
	Report    internal.RateReport `json:"report" msgpack:"report"`
}

// NewEnvelope wraps report with a fresh message ID.
func NewEnvelope(report internal.RateReport) Envelope {
	return Envelope{
		MessageID: uuid.NewString(),
		Type:      "rate_report",
		SentAt:    time.Now().UTC(),
		Report:    report,
	}
}

// Encode marshals v with the given encoding.
func Encode(encoding string, v any) ([]byte, error) {
	switch encoding {
	case EncodingJSON, "":
		return json.Marshal(v)
	case EncodingMsgpack:
		return msgpack.Marshal(v)
	default:
		return nil, fmt.Errorf("unknown encoding %q", encoding)
	}
}

// Decode unmarshals data produced by Encode.
func Decode(encoding string, data []byte, v any) error {
	switch encoding {
	case EncodingJSON, "":
		return json.Unmarshal(data, v)
	case EncodingMsgpack:
		return msgpack.Unmarshal(data, v)
	default:
		return fmt.Errorf("unknown encoding %q", encoding)
	}
}
