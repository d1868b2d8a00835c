// Package jsoncodec centralises JSON encoding for the gateway. Envelopes,
// bus messages, and HTTP bodies all go through sonic with the
// stdlib-compatible configuration.
package jsoncodec

import (
	"io"

	"github.com/bytedance/sonic"
)

var codec = sonic.ConfigStd

func Marshal(v any) ([]byte, error) {
	return codec.Marshal(v)
}

func Unmarshal(data []byte, v any) error {
	return codec.Unmarshal(data, v)
}

func Encode(w io.Writer, v any) error {
	return codec.NewEncoder(w).Encode(v)
}

func Decode(r io.Reader, v any) error {
	return codec.NewDecoder(r).Decode(v)
}
