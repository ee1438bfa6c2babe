package valet

import "context"

// Decoder validates a raw valet token and extracts the grant it carries.
//
// A (nil, nil) return means the token carried no usable grant and the
// request should be rejected as unauthorized. A non-nil error signals a
// decoding fault; callers must surface it on their error path instead of
// collapsing it into a plain rejection, so that misconfiguration is
// observable.
type Decoder interface {
	Decode(ctx context.Context, raw string) (*Grant, error)
}

// DecoderFunc adapts a function to the Decoder interface.
type DecoderFunc func(ctx context.Context, raw string) (*Grant, error)

func (f DecoderFunc) Decode(ctx context.Context, raw string) (*Grant, error) {
	return f(ctx, raw)
}

// CompoundDecoder tries a sequence of decoders, one per signing scheme, and
// returns the first grant that decodes. A fault from any decoder stops the
// chain.
type CompoundDecoder struct {
	decoders []Decoder
}

// NewCompoundDecoder creates a CompoundDecoder over the given decoders.
func NewCompoundDecoder(decoders ...Decoder) *CompoundDecoder {
	return &CompoundDecoder{decoders: decoders}
}

func (c *CompoundDecoder) Decode(ctx context.Context, raw string) (*Grant, error) {
	for _, d := range c.decoders {
		grant, err := d.Decode(ctx, raw)
		if err != nil {
			return nil, err
		}
		if grant != nil {
			return grant, nil
		}
	}
	return nil, nil
}
