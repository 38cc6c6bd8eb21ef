package decode

import (
	"fmt"
	"reflect"

	"github.com/mitchellh/mapstructure"
)

// Options customizes decode behavior.
type Options struct {
	// WeaklyTypedInput enables lenient decoding (default true):
	// e.g. "123" -> int, 1.0 -> int64.
	WeaklyTypedInput bool
}

// DefaultOptions returns the default options.
func DefaultOptions() Options {
	return Options{
		WeaklyTypedInput: true,
	}
}

// DecodeMap decodes a generic payload map into an arbitrary struct T.
// T is typically an event payload such as AuthPayload or ForwardPayload.
// Struct fields are read via their `json` tag.
func DecodeMap[T any](m map[string]any, opts ...Options) (*T, error) {
	if m == nil {
		return nil, fmt.Errorf("decode: nil map")
	}
	opt := DefaultOptions()
	if len(opts) > 0 {
		opt = opts[0]
	}

	var out T
	if reflect.TypeOf(out).Kind() != reflect.Struct {
		return nil, fmt.Errorf("decode: target must be a struct, got %s", reflect.TypeOf(out).Kind())
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           &out,
		WeaklyTypedInput: opt.WeaklyTypedInput,
	})
	if err != nil {
		return nil, fmt.Errorf("decode: build decoder: %w", err)
	}
	if err := dec.Decode(m); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return &out, nil
}
