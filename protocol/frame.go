package protocol

import (
	"encoding/json"
	"fmt"
)

// Frame is a decoded inbound message.
type Frame struct {
	ID   ID
	Kind Kind

	// Data holds the interesting part of the reply. For KindStatus this is the
	// snapshot object, for KindPatch the operation array, for KindError the
	// message string and for everything else the whole data value.
	Data json.RawMessage

	// Message is the daemon's error text when Kind is KindError.
	Message string

	// Patch holds the decoded operations when Kind is KindPatch.
	Patch []PatchOp

	// Err is why the data could not be decoded when Kind is KindInvalid.
	Err error
}

// IsOk returns true if the frame is the bare success marker.
func (f *Frame) IsOk() bool {
	return f.Kind == KindOk
}

// Unmarshal decodes Data into v.
func (f *Frame) Unmarshal(v interface{}) error {
	if len(f.Data) == 0 {
		return fmt.Errorf("Frame %s has no data to unmarshal", f.ID)
	}

	return json.Unmarshal(f.Data, v)
}
