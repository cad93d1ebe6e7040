package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/sjson"
)

// Encode wraps payload in a frame envelope addressed to id.
//
// The payload is written verbatim: json.RawMessage values are copied as is,
// everything else is marshalled with encoding/json.
func Encode(id ID, payload interface{}) ([]byte, error) {
	b, err := sjson.SetBytes([]byte(`{}`), fieldID, uint64(id))
	if err != nil {
		return nil, fmt.Errorf("Failed to encode id %s: %w", id, err)
	}

	if raw, ok := payload.(json.RawMessage); ok {
		if !json.Valid(raw) {
			return nil, fmt.Errorf("Failed to encode payload for %s: raw payload is not valid JSON", id)
		}

		b, err = sjson.SetRawBytes(b, fieldData, raw)
	} else {
		b, err = sjson.SetBytes(b, fieldData, payload)
	}

	if err != nil {
		return nil, fmt.Errorf("Failed to encode payload for %s: %w", id, err)
	}

	return b, nil
}

// EncodeOk encodes the bare success reply. The client never sends this, it's
// what a daemon replies with.
func EncodeOk(id ID) ([]byte, error) {
	return Encode(id, string(KindOk))
}

// EncodeError encodes an error reply carrying message.
func EncodeError(id ID, message string) ([]byte, error) {
	return Encode(id, map[string]string{string(KindError): message})
}

// EncodeStatus encodes a full status snapshot reply.
func EncodeStatus(id ID, status json.RawMessage) ([]byte, error) {
	return Encode(id, map[string]json.RawMessage{string(KindStatus): status})
}

// EncodePatch encodes a batch of patch operations. Unsolicited patches use
// NotificationID.
func EncodePatch(id ID, ops []PatchOp) ([]byte, error) {
	if ops == nil {
		ops = []PatchOp{}
	}

	return Encode(id, map[string][]PatchOp{string(KindPatch): ops})
}
