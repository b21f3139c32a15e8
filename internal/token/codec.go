package token

// Encoder is implemented by every adapter-owned token format.
type Encoder[T any] interface {
	Encode(T) (string, error)
	Decode(string) (T, error)
}

// Codec binds a schema to a typed value.
type Codec[T any] struct {
	Schema Schema
	Pack   func(T) []string
	Unpack func([]string) (T, error)
}

var _ Encoder[struct{}] = Codec[struct{}]{}

// NewCodec returns a codec for schema.
func NewCodec[T any](schema Schema, pack func(T) []string, unpack func([]string) (T, error)) Codec[T] {
	return Codec[T]{Schema: schema, Pack: pack, Unpack: unpack}
}

// Encode packs v into a token string.
func (c Codec[T]) Encode(v T) (string, error) {
	return c.Schema.Encode(c.Pack(v))
}

// Decode parses tok. Any failure, including one raised by Unpack, is a *DecodeError.
func (c Codec[T]) Decode(tok string) (T, error) {
	var zero T
	parts, err := c.Schema.Decode(tok)
	if err != nil {
		return zero, err
	}
	v, err := c.Unpack(parts)
	if err != nil {
		return zero, &DecodeError{Schema: c.Schema.Name, Token: tok, Reason: "invalid segment", Err: err}
	}
	return v, nil
}
