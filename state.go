package algofi

import (
	"encoding/base64"
	"sort"

	"github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/pkg/errors"
)

type ValueType uint64

const (
	ValueTypeBytes ValueType = 1
	ValueTypeUint  ValueType = 2
)

// StateEntry is one application key/value pair as served by the node: the
// key and any byte value are base64 strings.
type StateEntry struct {
	Key   string          `json:"key" cbor:"1,keyasint"`
	Value StateEntryValue `json:"value" cbor:"2,keyasint"`
}

type StateEntryValue struct {
	Type  ValueType `json:"type" cbor:"1,keyasint"`
	Bytes string    `json:"bytes,omitempty" cbor:"2,keyasint,omitempty"`
	Uint  uint64    `json:"uint,omitempty" cbor:"3,keyasint,omitempty"`
}

type StateValue struct {
	Type  ValueType
	Bytes []byte
	Uint  uint64
}

// State is decoded application state keyed by the decoded key. Keys are
// kept as raw byte strings so per-market keys with a binary prefix survive.
type State map[string]StateValue

// DecodeState turns raw entries into a State. Undecodable keys and byte
// values fall back to their raw bytes; an empty byte value stays empty.
func DecodeState(entries []StateEntry) State {
	state := make(State, len(entries))

	for _, entry := range entries {
		key, err := base64.StdEncoding.DecodeString(entry.Key)
		if err != nil {
			key = []byte(entry.Key)
		}

		value := StateValue{Type: entry.Value.Type}

		switch entry.Value.Type {
		case ValueTypeBytes:
			if entry.Value.Bytes == "" {
				value.Bytes = []byte{}
				break
			}
			b, err := base64.StdEncoding.DecodeString(entry.Value.Bytes)
			if err != nil {
				b = []byte(entry.Value.Bytes)
			}
			value.Bytes = b
		default:
			value.Type = ValueTypeUint
			value.Uint = entry.Value.Uint
		}

		state[string(key)] = value
	}

	return state
}

// Encode is the inverse of DecodeState, sorted by key.
func (s State) Encode() []StateEntry {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	entries := make([]StateEntry, 0, len(s))
	for _, k := range keys {
		v := s[k]
		entry := StateEntry{
			Key:   base64.StdEncoding.EncodeToString([]byte(k)),
			Value: StateEntryValue{Type: v.Type},
		}
		if v.Type == ValueTypeBytes {
			entry.Value.Bytes = base64.StdEncoding.EncodeToString(v.Bytes)
		} else {
			entry.Value.Uint = v.Uint
		}
		entries = append(entries, entry)
	}

	return entries
}

func (s State) Uint(key string) (v uint64, ok bool) {
	value, found := s[key]
	if !found || value.Type != ValueTypeUint {
		return
	}
	return value.Uint, true
}

func (s State) Bytes(key string) (v []byte, ok bool) {
	value, found := s[key]
	if !found || value.Type != ValueTypeBytes {
		return
	}
	return value.Bytes, true
}

// UintOrZero applies the default-zero policy for aggregate fields.
func (s State) UintOrZero(key string) uint64 {
	v, _ := s.Uint(key)
	return v
}

// OptionalUint applies the default-nil policy for configuration fields.
func (s State) OptionalUint(key string) *uint64 {
	v, ok := s.Uint(key)
	if !ok {
		return nil
	}
	return &v
}

func (s State) OptionalString(key string) *string {
	v, ok := s.Bytes(key)
	if !ok {
		return nil
	}
	str := string(v)
	return &str
}

// Address reads a 32 byte public key value as an address.
func (s State) Address(key string) (address string, err error) {
	b, ok := s.Bytes(key)
	if !ok || len(b) != len(types.Address{}) {
		err = errors.Wrapf(ErrStateNotFound, "no address under key '%s'", key)
		return
	}
	var addr types.Address
	copy(addr[:], b)
	return addr.String(), nil
}
