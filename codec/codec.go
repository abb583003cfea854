// Package codec encodes stored section records and remote generation frames.
package codec

// Codec defines the serialization contract shared by result caches and the
// remote generator transport.
type Codec interface {
	// Marshal serializes v to bytes.
	Marshal(v any) ([]byte, error)

	// Unmarshal deserializes data into v.
	Unmarshal(data []byte, v any) error

	// Name returns the codec identifier.
	Name() string

	// Binary reports whether encoded values must travel in binary frames.
	Binary() bool
}

// Codec names for format negotiation.
const (
	NameJSON    = "json"
	NameMsgpack = "msgpack"
)

// Get returns a codec by name. Defaults to msgpack.
func Get(name string) Codec {
	switch name {
	case NameJSON:
		return JSON{}
	case NameMsgpack, "":
		return Msgpack{}
	default:
		return Msgpack{}
	}
}
