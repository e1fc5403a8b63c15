package protocol

import "encoding/json"

// Serializer defines the contract for serializing and deserializing command payloads.
// This allows different teams to choose their preferred format (JSON, Protobuf, SBE, etc.)
// while interacting with the engine.
type Serializer interface {
	// Marshal serializes a Go struct (e.g. LimitOrderCommand) into bytes.
	Marshal(v any) ([]byte, error)

	// Unmarshal deserializes bytes into a Go struct.
	// v must be a pointer to the target struct.
	Unmarshal(data []byte, v any) error
}

// DefaultJSONSerializer is the encoding/json implementation of Serializer.
type DefaultJSONSerializer struct{}

func (s *DefaultJSONSerializer) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (s *DefaultJSONSerializer) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// NewCommand builds an envelope around payload using s.
func NewCommand(s Serializer, typ CommandType, payload any) (*Command, error) {
	data, err := s.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Command{
		Version: 1,
		Type:    typ,
		Payload: data,
	}, nil
}
