package protocol

import "encoding/json"

// Op is a JSON patch operation name.
type Op string

const (
	OpAdd     Op = "add"
	OpRemove  Op = "remove"
	OpReplace Op = "replace"
	OpCopy    Op = "copy"
	OpMove    Op = "move"
	OpTest    Op = "test"
)

// Valid returns true if op is one of the six RFC 6902 operations.
func (op Op) Valid() bool {
	switch op {
	case OpAdd, OpRemove, OpReplace, OpCopy, OpMove, OpTest:
		return true
	default:
		return false
	}
}

// PatchOp is a single change pushed by the daemon.
type PatchOp struct {
	Op    Op              `json:"op"`
	Path  string          `json:"path"`
	Value json.RawMessage `json:"value,omitempty"`
	From  string          `json:"from,omitempty"`
}
