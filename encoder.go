package agent

import (
	"context"
	"io"

	"github.com/goccy/go-json"
)

// EncoderFunc is used to create an Encoder from io.Writer;
// the context.Context value may be used to select appropriate Encoder.
type EncoderFunc func(context.Context, io.Writer) Encoder

// Encoder helps in transforming objects to message bytes
type Encoder interface {
	// Encode takes any object and encodes it into bytes
	Encode(v interface{}) error
}

// DefaultEncoderFunc is a EncoderFunc that writes indented JSON.
func DefaultEncoderFunc(_ context.Context, w io.Writer) Encoder {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc
}

// CompactEncoderFunc is a EncoderFunc that writes single line JSON.
func CompactEncoderFunc(_ context.Context, w io.Writer) Encoder {
	return json.NewEncoder(w)
}

func (f EncoderFunc) apply(o *options) { o.newEncoder = f }
