// Package codec provides the JSON serializers the HTTP client can be
// configured with.
package codec

import (
	"encoding/json"
	"fmt"

	gojson "github.com/goccy/go-json"
)

// Codec serializes request payloads and deserializes response bodies.
type Codec interface {
	Name() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// SelfMarshaler is implemented by models that render their own JSON.
type SelfMarshaler interface {
	JSON() ([]byte, error)
}

var (
	// Default is the high-performance codec used unless another is configured.
	Default Codec = GoJSON{}

	// Std is backed by encoding/json.
	Std Codec = StdJSON{}
)

// GoJSON is backed by github.com/goccy/go-json.
type GoJSON struct{}

func (GoJSON) Name() string { return "go-json" }

func (GoJSON) Marshal(v any) ([]byte, error) {
	return gojson.Marshal(v)
}

func (GoJSON) Unmarshal(data []byte, v any) error {
	return gojson.Unmarshal(data, v)
}

// StdJSON is backed by encoding/json.
type StdJSON struct{}

func (StdJSON) Name() string { return "encoding/json" }

func (StdJSON) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (StdJSON) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// Models wraps a codec so values implementing SelfMarshaler are serialized
// by their own JSON method. Everything else goes to the wrapped codec.
func Models(fallback Codec) Codec {
	if fallback == nil {
		fallback = Default
	}
	return models{fallback: fallback}
}

type models struct {
	fallback Codec
}

func (m models) Name() string { return "models+" + m.fallback.Name() }

func (m models) Marshal(v any) ([]byte, error) {
	if sm, ok := v.(SelfMarshaler); ok {
		data, err := sm.JSON()
		if err != nil {
			return nil, fmt.Errorf("codec: render %T: %w", v, err)
		}
		return data, nil
	}
	return m.fallback.Marshal(v)
}

func (m models) Unmarshal(data []byte, v any) error {
	return m.fallback.Unmarshal(data, v)
}

// Funcs adapts a serializer/deserializer pair into a Codec. A nil function
// falls back to Default.
func Funcs(name string, marshal func(any) ([]byte, error), unmarshal func([]byte, any) error) Codec {
	if marshal == nil {
		marshal = Default.Marshal
	}
	if unmarshal == nil {
		unmarshal = Default.Unmarshal
	}
	return funcs{name: name, marshal: marshal, unmarshal: unmarshal}
}

type funcs struct {
	name      string
	marshal   func(any) ([]byte, error)
	unmarshal func([]byte, any) error
}

func (f funcs) Name() string                       { return f.name }
func (f funcs) Marshal(v any) ([]byte, error)      { return f.marshal(v) }
func (f funcs) Unmarshal(data []byte, v any) error { return f.unmarshal(data, v) }
