// Package codec holds the transforms applied to every frame before it is
// written to, and after it is read from, the transport.
package codec

// Encoder turns an outbound frame into its wire form.
type Encoder interface {
	Encode(v any) ([]byte, error)
}

// Decoder turns a wire frame back into its generic form (maps, slices,
// scalars).
type Decoder interface {
	Decode(data []byte) (any, error)
}

// Codec pairs both directions.
type Codec interface {
	Encoder
	Decoder
}

// EncoderFunc adapts a function to Encoder.
type EncoderFunc func(v any) ([]byte, error)

func (f EncoderFunc) Encode(v any) ([]byte, error) { return f(v) }

// DecoderFunc adapts a function to Decoder.
type DecoderFunc func(data []byte) (any, error)

func (f DecoderFunc) Decode(data []byte) (any, error) { return f(data) }
