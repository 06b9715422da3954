package state

import (
	"bytes"
	"errors"
	"fmt"
	"reflect"
	"sort"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"seedchain/storage"
)

// Manager buffers the writes of a single transaction on top of a backing
// database. Reads see the buffered writes first. Nothing reaches the database
// until Commit, which flushes every pending write as one atomic batch;
// Discard drops them.
//
// Manager is not safe for concurrent use. The node serialises transactions.
type Manager struct {
	db      storage.Database
	pending map[string]entry
}

type entry struct {
	value   []byte
	deleted bool
}

// Snapshot identifies an overlay state that can be restored with
// RevertToSnapshot.
type Snapshot struct {
	pending map[string]entry
}

// NewManager creates a state manager operating on the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db, pending: make(map[string]entry)}
}

func kvKey(key []byte) []byte {
	return ethcrypto.Keccak256(key)
}

func (m *Manager) get(hashed []byte) ([]byte, error) {
	if e, ok := m.pending[string(hashed)]; ok {
		if e.deleted {
			return nil, nil
		}
		return e.value, nil
	}
	if m.db == nil {
		return nil, errors.New("state: database not configured")
	}
	data, err := m.db.Get(hashed)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	return data, err
}

func (m *Manager) set(hashed []byte, value []byte) {
	m.pending[string(hashed)] = entry{value: value}
}

// KVPut stores the provided value under the supplied key using RLP encoding.
// The key is hashed with keccak256 before it reaches the database.
func (m *Manager) KVPut(key []byte, value interface{}) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	m.set(kvKey(key), encoded)
	return nil
}

// KVGet retrieves the value stored under the supplied key and decodes it into
// the provided destination. The boolean return value indicates whether the key
// existed in state.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	if len(key) == 0 {
		return false, fmt.Errorf("kv: key must not be empty")
	}
	data, err := m.get(kvKey(key))
	if err != nil {
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, err
	}
	return true, nil
}

// KVDelete removes the key. Removing a missing key is a no-op.
func (m *Manager) KVDelete(key []byte) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	m.pending[string(kvKey(key))] = entry{deleted: true}
	return nil
}

// KVAppend appends the provided value to the RLP-encoded byte slice list stored
// under the supplied key. Duplicate values are ignored to keep the index
// deterministic.
func (m *Manager) KVAppend(key []byte, value []byte) error {
	list, err := m.loadList(key)
	if err != nil {
		return err
	}
	for _, existing := range list {
		if bytes.Equal(existing, value) {
			return nil
		}
	}
	list = append(list, append([]byte(nil), value...))
	return m.storeList(key, list)
}

// KVRemove drops value from the byte slice list stored under key. The
// remaining entries keep their order.
func (m *Manager) KVRemove(key []byte, value []byte) error {
	list, err := m.loadList(key)
	if err != nil {
		return err
	}
	kept := list[:0]
	for _, existing := range list {
		if !bytes.Equal(existing, value) {
			kept = append(kept, existing)
		}
	}
	if len(kept) == 0 {
		return m.KVDelete(key)
	}
	return m.storeList(key, kept)
}

// KVGetList decodes the list stored under key into out, which must be a
// pointer to a slice. Missing keys produce an empty slice.
func (m *Manager) KVGetList(key []byte, out interface{}) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	data, err := m.get(kvKey(key))
	if err != nil {
		return err
	}
	if len(data) == 0 {
		val := reflect.ValueOf(out)
		if val.Kind() != reflect.Ptr || val.IsNil() {
			return fmt.Errorf("kv: destination must be a non-nil pointer")
		}
		elem := val.Elem()
		if elem.Kind() != reflect.Slice {
			return fmt.Errorf("kv: destination must point to a slice")
		}
		elem.Set(reflect.MakeSlice(elem.Type(), 0, 0))
		return nil
	}
	return rlp.DecodeBytes(data, out)
}

func (m *Manager) loadList(key []byte) ([][]byte, error) {
	if len(key) == 0 {
		return nil, fmt.Errorf("kv: key must not be empty")
	}
	data, err := m.get(kvKey(key))
	if err != nil {
		return nil, err
	}
	var list [][]byte
	if len(data) > 0 {
		if err := rlp.DecodeBytes(data, &list); err != nil {
			return nil, err
		}
	}
	return list, nil
}

func (m *Manager) storeList(key []byte, list [][]byte) error {
	encoded, err := rlp.EncodeToBytes(list)
	if err != nil {
		return err
	}
	m.set(kvKey(key), encoded)
	return nil
}

// Dirty reports the number of keys touched since the last Commit or Discard.
func (m *Manager) Dirty() int {
	return len(m.pending)
}

// Snapshot captures the current overlay.
func (m *Manager) Snapshot() Snapshot {
	copied := make(map[string]entry, len(m.pending))
	for k, v := range m.pending {
		copied[k] = v
	}
	return Snapshot{pending: copied}
}

// RevertToSnapshot restores the overlay captured by Snapshot.
func (m *Manager) RevertToSnapshot(s Snapshot) {
	restored := make(map[string]entry, len(s.pending))
	for k, v := range s.pending {
		restored[k] = v
	}
	m.pending = restored
}

// Atomic runs fn and rolls the overlay back to its previous contents when fn
// fails.
func (m *Manager) Atomic(fn func() error) error {
	snap := m.Snapshot()
	if err := fn(); err != nil {
		m.RevertToSnapshot(snap)
		return err
	}
	return nil
}

// Commit writes all pending changes to the database in one batch and clears
// the overlay. Keys are flushed in sorted order so identical transactions
// produce identical batches.
func (m *Manager) Commit() error {
	if len(m.pending) == 0 {
		return nil
	}
	if m.db == nil {
		return errors.New("state: database not configured")
	}
	keys := make([]string, 0, len(m.pending))
	for k := range m.pending {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	ops := make([]storage.Op, 0, len(keys))
	for _, k := range keys {
		e := m.pending[k]
		ops = append(ops, storage.Op{Key: []byte(k), Value: e.value, Delete: e.deleted})
	}
	if err := m.db.WriteBatch(ops); err != nil {
		return err
	}
	m.pending = make(map[string]entry)
	return nil
}

// Discard drops every pending change.
func (m *Manager) Discard() {
	m.pending = make(map[string]entry)
}
