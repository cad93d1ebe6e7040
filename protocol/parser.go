package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/tidwall/gjson"
)

const (
	fieldID   = "id"
	fieldData = "data"
)

var (
	ErrMalformedFrame = errors.New("Frame is malformed")

	ErrInvalidJSON    = fmt.Errorf("%w, it is not valid JSON", ErrMalformedFrame)
	ErrNotAnObject    = fmt.Errorf("%w, it is not a JSON object", ErrMalformedFrame)
	ErrMissingID      = fmt.Errorf("%w, it has no id field", ErrMalformedFrame)
	ErrInvalidID      = fmt.Errorf("%w, its id is not an unsigned 64bit integer", ErrMalformedFrame)
	ErrMissingData    = fmt.Errorf("%w, it has no data field", ErrMalformedFrame)
	ErrMalformedError = fmt.Errorf("%w, its Error message is not a string", ErrMalformedFrame)
	ErrMalformedPatch = fmt.Errorf("%w, its Patch is not a list of operations", ErrMalformedFrame)
)

// Decode parses raw as a single frame.
//
// Errors always wrap ErrMalformedFrame. When the id could be read but the data
// could not, Decode returns both the error and a KindInvalid frame carrying the
// id, so the reply can still be routed back to whoever asked for it.
func Decode(raw []byte) (*Frame, error) {
	if !gjson.ValidBytes(raw) {
		return nil, ErrInvalidJSON
	}

	root := gjson.ParseBytes(raw)
	if !root.IsObject() {
		return nil, ErrNotAnObject
	}

	rawID := root.Get(fieldID)
	if !rawID.Exists() {
		return nil, ErrMissingID
	}

	if rawID.Type != gjson.Number {
		return nil, fmt.Errorf("Failed to parse id %s: %w", rawID.Raw, ErrInvalidID)
	}

	// gjson goes through float64 which can't hold the notification id, so
	// parse the raw text ourselves.
	id, err := strconv.ParseUint(rawID.Raw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("Failed to parse id %s: %w", rawID.Raw, ErrInvalidID)
	}

	frame := &Frame{ID: ID(id)}

	data := root.Get(fieldData)
	if !data.Exists() {
		return frame.invalid(ErrMissingData)
	}

	if err := classify(frame, data); err != nil {
		return frame.invalid(err)
	}

	return frame, nil
}

func classify(frame *Frame, data gjson.Result) error {
	if data.Type == gjson.String && data.Str == string(KindOk) {
		frame.Kind = KindOk
		frame.Data = json.RawMessage(data.Raw)
		return nil
	}

	if !data.IsObject() {
		frame.Kind = KindResult
		frame.Data = json.RawMessage(data.Raw)
		return nil
	}

	if status := data.Get(string(KindStatus)); status.Exists() {
		frame.Kind = KindStatus
		frame.Data = json.RawMessage(status.Raw)
		return nil
	}

	if patch := data.Get(string(KindPatch)); patch.Exists() {
		if !patch.IsArray() {
			return ErrMalformedPatch
		}

		var ops []PatchOp
		if err := json.Unmarshal([]byte(patch.Raw), &ops); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedPatch, err)
		}

		frame.Kind = KindPatch
		frame.Data = json.RawMessage(patch.Raw)
		frame.Patch = ops
		return nil
	}

	if message := data.Get(string(KindError)); message.Exists() {
		if message.Type != gjson.String {
			return ErrMalformedError
		}

		frame.Kind = KindError
		frame.Data = json.RawMessage(message.Raw)
		frame.Message = message.Str
		return nil
	}

	frame.Kind = KindResult
	frame.Data = json.RawMessage(data.Raw)
	return nil
}

func (f *Frame) invalid(err error) (*Frame, error) {
	f.Kind = KindInvalid
	f.Err = err
	return f, err
}
