// Package id defines TypeID-based identities for subdivisions, stored
// section records and generation workers, in the URL-safe form
// "prefix_suffix".
package id

import (
	"fmt"

	"go.jetify.com/typeid/v2"
)

// Prefix identifies the entity type encoded in a TypeID.
type Prefix string

const (
	PrefixSubdivision Prefix = "subdiv"
	PrefixSection     Prefix = "msec"
	PrefixWorker      Prefix = "wkr"
)

// ID wraps a TypeID. The zero value is Nil and renders as "".
//
//nolint:recvcheck // UnmarshalText needs a pointer receiver.
type ID struct {
	inner typeid.TypeID
	valid bool
}

// Nil is the zero-value ID.
var Nil ID

// SubdivisionID identifies a subdivision.
type SubdivisionID = ID

// WorkerID identifies a remote generation worker.
type WorkerID = ID

// New generates an ID with the given prefix. It panics on an invalid
// prefix.
func New(prefix Prefix) ID {
	tid, err := typeid.Generate(string(prefix))
	if err != nil {
		panic(fmt.Sprintf("id: invalid prefix %q: %v", prefix, err))
	}
	return ID{inner: tid, valid: true}
}

func NewSubdivisionID() ID { return New(PrefixSubdivision) }
func NewSectionID() ID     { return New(PrefixSection) }
func NewWorkerID() ID      { return New(PrefixWorker) }

// Parse parses a TypeID string such as "subdiv_01h2xcejqtf2nbrexx3vqjhp41".
func Parse(s string) (ID, error) {
	if s == "" {
		return Nil, fmt.Errorf("id: parse %q: empty string", s)
	}
	tid, err := typeid.Parse(s)
	if err != nil {
		return Nil, fmt.Errorf("id: parse %q: %w", s, err)
	}
	return ID{inner: tid, valid: true}, nil
}

// ParseWithPrefix is Parse, rejecting IDs whose prefix is not expected.
func ParseWithPrefix(s string, expected Prefix) (ID, error) {
	parsed, err := Parse(s)
	if err != nil {
		return Nil, err
	}
	if parsed.Prefix() != expected {
		return Nil, fmt.Errorf("id: expected prefix %q, got %q", expected, parsed.Prefix())
	}
	return parsed, nil
}

// ParseSubdivisionID parses a subdivision ID received off the wire.
func ParseSubdivisionID(s string) (ID, error) { return ParseWithPrefix(s, PrefixSubdivision) }

// String returns "prefix_suffix", or "" for Nil.
func (i ID) String() string {
	if !i.valid {
		return ""
	}
	return i.inner.String()
}

func (i ID) Prefix() Prefix {
	if !i.valid {
		return ""
	}
	return Prefix(i.inner.Prefix())
}

func (i ID) IsNil() bool { return !i.valid }

// MarshalText implements encoding.TextMarshaler.
func (i ID) MarshalText() ([]byte, error) {
	return []byte(i.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Empty text is Nil.
func (i *ID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*i = Nil
		return nil
	}
	parsed, err := Parse(string(data))
	if err != nil {
		return err
	}
	*i = parsed
	return nil
}
