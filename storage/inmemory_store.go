package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/google/go-cmp/cmp"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/luma/goxlr/protocol"
)

var (
	ErrNotFound        = errors.New("Path does not exist")
	ErrInvalidDocument = errors.New("Status is not a valid JSON document")
	ErrMissingValue    = errors.New("Operation is missing a value")
	ErrUnknownOp       = errors.New("Unknown patch operation")
	ErrIndexOutOfRange = errors.New("Array index is out of range")
	ErrTestFailed      = errors.New("Test operation failed")
	ErrInvalidMove     = errors.New("Cannot move a value into one of its own children")
)

const UpdateBufferSize = 255

type InmemoryStore struct {
	valuesMu sync.RWMutex
	values   []byte

	mu          sync.Mutex
	updateChans []chan *Update

	// stop willl be closed when Close() is called
	stop     chan struct{}
	stopOnce sync.Once
}

func NewInmemoryStore() *InmemoryStore {
	return &InmemoryStore{
		values:      []byte(""),
		stop:        make(chan struct{}),
		updateChans: make([]chan *Update, 0),
	}
}

func (i *InmemoryStore) Close() error {
	i.stopOnce.Do(func() {
		close(i.stop)

		i.mu.Lock()
		defer i.mu.Unlock()

		for _, updateChan := range i.updateChans {
			close(updateChan)
		}

		i.updateChans = nil
	})

	return nil
}

func (i *InmemoryStore) Get(ctx context.Context, path string) ([]byte, error) {
	pointer, err := ParsePointer(path)
	if err != nil {
		return nil, err
	}

	i.valuesMu.RLock()
	defer i.valuesMu.RUnlock()

	result := get(i.document(), pointer)
	if !result.Exists() {
		return nil, fmt.Errorf("Failed to get %s: %w", path, ErrNotFound)
	}

	return []byte(result.Raw), nil
}

func (i *InmemoryStore) Apply(ctx context.Context, ops []protocol.PatchOp) error {
	i.valuesMu.Lock()

	doc := i.document()
	updates := make([]*Update, 0, len(ops))

	for n, op := range ops {
		var (
			update *Update
			err    error
		)

		doc, update, err = apply(doc, op)
		if err != nil {
			i.valuesMu.Unlock()
			return fmt.Errorf("Failed to apply operation %d (%s %s): %w", n, op.Op, op.Path, err)
		}

		if update != nil {
			updates = append(updates, update)
		}
	}

	i.values = doc
	i.valuesMu.Unlock()

	i.publish(updates)

	return nil
}

func (i *InmemoryStore) ListenToUpdates() <-chan *Update {
	i.mu.Lock()
	defer i.mu.Unlock()

	updateChan := make(chan *Update, UpdateBufferSize)
	if !i.isRunning() {
		close(updateChan)
		return updateChan
	}

	i.updateChans = append(i.updateChans, updateChan)

	return updateChan
}

// Restore replaces the whole document, e.g. with a fresh status snapshot.
func (i *InmemoryStore) Restore(values []byte) error {
	if !gjson.ValidBytes(values) {
		return ErrInvalidDocument
	}

	i.valuesMu.Lock()
	i.values = append([]byte(nil), values...)
	i.valuesMu.Unlock()

	i.publish([]*Update{{Op: protocol.OpReplace, Path: "", Value: values}})

	return nil
}

func (i *InmemoryStore) Backup() ([]byte, error) {
	i.valuesMu.RLock()
	defer i.valuesMu.RUnlock()

	return append([]byte(nil), i.document()...), nil
}

// document must be called with valuesMu held.
func (i *InmemoryStore) document() []byte {
	if len(i.values) == 0 {
		return []byte("{}")
	}

	return i.values
}

func (i *InmemoryStore) publish(updates []*Update) {
	if len(updates) == 0 || !i.isRunning() {
		return
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	for _, updateChan := range i.updateChans {
		for _, update := range updates {
			select {
			case updateChan <- update:
			case <-i.stop:
				return
			}
		}
	}
}

// isRunning returns true if Close has not been called
func (i *InmemoryStore) isRunning() bool {
	select {
	case <-i.stop:
		return false

	default:
		return true
	}
}

func apply(doc []byte, op protocol.PatchOp) ([]byte, *Update, error) {
	path, err := ParsePointer(op.Path)
	if err != nil {
		return nil, nil, err
	}

	switch op.Op {
	case protocol.OpAdd:
		if len(op.Value) == 0 {
			return nil, nil, ErrMissingValue
		}

		doc, err = add(doc, path, op.Value)
		return doc, &Update{Op: op.Op, Path: op.Path, Value: op.Value}, err

	case protocol.OpRemove:
		doc, err = remove(doc, path)
		return doc, &Update{Op: op.Op, Path: op.Path}, err

	case protocol.OpReplace:
		if len(op.Value) == 0 {
			return nil, nil, ErrMissingValue
		}

		if !get(doc, path).Exists() {
			return nil, nil, ErrNotFound
		}

		doc, err = set(doc, path, op.Value)
		return doc, &Update{Op: op.Op, Path: op.Path, Value: op.Value}, err

	case protocol.OpCopy, protocol.OpMove:
		from, err := ParsePointer(op.From)
		if err != nil {
			return nil, nil, err
		}

		value := get(doc, from)
		if !value.Exists() {
			return nil, nil, ErrNotFound
		}

		raw := []byte(value.Raw)

		if op.Op == protocol.OpMove {
			if len(path) > len(from) && path.HasPrefix(from) {
				return nil, nil, ErrInvalidMove
			}

			if doc, err = remove(doc, from); err != nil {
				return nil, nil, err
			}
		}

		doc, err = add(doc, path, raw)
		return doc, &Update{Op: op.Op, Path: op.Path, Value: raw}, err

	case protocol.OpTest:
		value := get(doc, path)
		if !value.Exists() {
			return nil, nil, ErrNotFound
		}

		equal, err := equalJSON([]byte(value.Raw), op.Value)
		if err != nil {
			return nil, nil, err
		}

		if !equal {
			return nil, nil, ErrTestFailed
		}

		return doc, nil, nil

	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownOp, op.Op)
	}
}

func get(doc []byte, path Pointer) gjson.Result {
	if path.IsRoot() {
		return gjson.ParseBytes(doc)
	}

	return gjson.GetBytes(doc, path.Path())
}

func set(doc []byte, path Pointer, raw []byte) ([]byte, error) {
	if path.IsRoot() {
		return append([]byte(nil), raw...), nil
	}

	return sjson.SetRawBytes(doc, path.Path(), raw)
}

// add follows RFC 6902: members are added or replaced, array elements are
// inserted and "-" appends.
func add(doc []byte, path Pointer, raw []byte) ([]byte, error) {
	if path.IsRoot() {
		return set(doc, path, raw)
	}

	parent := get(doc, path.Parent())

	switch {
	case parent.IsObject():
		return set(doc, path, raw)

	case parent.IsArray():
		elems := parent.Array()

		index := len(elems)
		if last := path.Last(); last != "-" {
			var err error
			if index, err = strconv.Atoi(last); err != nil || index < 0 || index > len(elems) {
				return nil, fmt.Errorf("%w: %s", ErrIndexOutOfRange, last)
			}
		}

		raws := make([]string, 0, len(elems)+1)
		for n, elem := range elems {
			if n == index {
				raws = append(raws, string(raw))
			}

			raws = append(raws, elem.Raw)
		}

		if index == len(elems) {
			raws = append(raws, string(raw))
		}

		return set(doc, path.Parent(), []byte("["+strings.Join(raws, ",")+"]"))

	default:
		return nil, ErrNotFound
	}
}

func remove(doc []byte, path Pointer) ([]byte, error) {
	if path.IsRoot() {
		return nil, ErrInvalidPointer
	}

	if !get(doc, path).Exists() {
		return nil, ErrNotFound
	}

	return sjson.DeleteBytes(doc, path.Path())
}

func equalJSON(a, b []byte) (bool, error) {
	if bytes.Equal(a, b) {
		return true, nil
	}

	var av, bv interface{}
	if err := json.Unmarshal(a, &av); err != nil {
		return false, err
	}

	if err := json.Unmarshal(b, &bv); err != nil {
		return false, err
	}

	return cmp.Equal(av, bv), nil
}

var _ Store = (*InmemoryStore)(nil)
