package fragments

import (
	"errors"
	"fmt"
	"unsafe"
)

// ErrNotEnoughBytes is returned (possibly wrapped) when a read would
// run past the end of the source buffer.
var ErrNotEnoughBytes = errors.New("not enough bytes remaining in buffer")

// ErrPaddingNonZero is returned (possibly wrapped) when a byte skipped
// as alignment padding was not zero.
var ErrPaddingNonZero = errors.New("padding byte was not zero")

// A Decoder reads a DBus wire format byte slice with a cursor that
// only ever advances.
//
// Decoder is the shared mutable cursor that a streaming unmarshaller
// hands down to nested iterators: all of them hold a pointer to the
// same Decoder, so advancing it from a child iterator is visible to
// everything above it once control returns there. Decoder itself
// enforces no such discipline; callers (the unmarshaller) are
// responsible for not reading through a parent while a child still
// has unconsumed bytes belonging to it.
//
// Methods that read multi-byte or length-prefixed values insert
// [Decoder.Pad] as needed; [Decoder.Read] reads bytes verbatim with
// no padding.
type Decoder struct {
	// Order is the byte order to use when decoding multi-byte values.
	Order ByteOrder

	// in is the remainder of the source buffer that hasn't been
	// consumed yet.
	in []byte
	// offset is the total number of bytes consumed so far, counted
	// from the start of the buffer the Decoder was constructed with.
	// Alignment depends on this global offset, not on any local
	// sub-slice's length.
	offset int
}

// NewDecoder returns a Decoder that reads buf starting at offset 0.
func NewDecoder(buf []byte, order ByteOrder) *Decoder {
	return &Decoder{Order: order, in: buf}
}

// Offset returns the number of bytes consumed so far.
func (d *Decoder) Offset() int { return d.offset }

// Remaining returns the number of unconsumed bytes left in the
// buffer.
func (d *Decoder) Remaining() int { return len(d.in) }

func (d *Decoder) advance(n int) {
	d.offset += n
	d.in = d.in[n:]
}

// Pad consumes padding bytes as needed to make the next read happen
// at a multiple of align bytes (align must be one of 1, 2, 4, 8). If
// the decoder is already correctly aligned, no bytes are consumed. It
// is an error for any skipped byte to be non-zero.
func (d *Decoder) Pad(align int) error {
	extra := d.offset % align
	if extra == 0 {
		return nil
	}
	skip := align - extra
	if skip > len(d.in) {
		return fmt.Errorf("aligning to %d: %w", align, ErrNotEnoughBytes)
	}
	for _, b := range d.in[:skip] {
		if b != 0 {
			return fmt.Errorf("aligning to %d: %w", align, ErrPaddingNonZero)
		}
	}
	d.advance(skip)
	return nil
}

// Read returns the next n bytes, with no padding or framing. The
// returned slice aliases the Decoder's source buffer: it is valid
// only as long as that buffer is not mutated or discarded.
func (d *Decoder) Read(n int) ([]byte, error) {
	if n > len(d.in) {
		return nil, ErrNotEnoughBytes
	}
	ret := d.in[:n:n]
	d.advance(n)
	return ret, nil
}

// Uint8 reads a uint8.
func (d *Decoder) Uint8() (uint8, error) {
	bs, err := d.Read(1)
	if err != nil {
		return 0, err
	}
	return bs[0], nil
}

// Uint16 reads a uint16, 2-byte aligned.
func (d *Decoder) Uint16() (uint16, error) {
	if err := d.Pad(2); err != nil {
		return 0, err
	}
	bs, err := d.Read(2)
	if err != nil {
		return 0, err
	}
	return d.Order.Uint16(bs), nil
}

// Uint32 reads a uint32, 4-byte aligned.
func (d *Decoder) Uint32() (uint32, error) {
	if err := d.Pad(4); err != nil {
		return 0, err
	}
	bs, err := d.Read(4)
	if err != nil {
		return 0, err
	}
	return d.Order.Uint32(bs), nil
}

// Uint64 reads a uint64, 8-byte aligned.
func (d *Decoder) Uint64() (uint64, error) {
	if err := d.Pad(8); err != nil {
		return 0, err
	}
	bs, err := d.Read(8)
	if err != nil {
		return 0, err
	}
	return d.Order.Uint64(bs), nil
}

// Bytes reads a DBus byte array's raw payload: a uint32 length
// followed by that many bytes, with no further framing. The returned
// slice aliases the source buffer.
func (d *Decoder) Bytes() ([]byte, error) {
	ln, err := d.Uint32()
	if err != nil {
		return nil, err
	}
	return d.Read(int(ln))
}

// String reads a DBus string or object path: a uint32 length, that
// many bytes, and a trailing NUL. The trailing byte must be exactly
// 0; String does not otherwise validate the payload (UTF-8 and
// object-path grammar are the caller's concern). The returned string
// aliases the source buffer via [BorrowString]; it must not outlive
// the buffer.
func (d *Decoder) String() (string, error) {
	ln, err := d.Uint32()
	if err != nil {
		return "", err
	}
	bs, err := d.Read(int(ln) + 1)
	if err != nil {
		return "", err
	}
	if bs[len(bs)-1] != 0 {
		return "", fmt.Errorf("string payload missing NUL terminator")
	}
	return BorrowString(bs[:len(bs)-1]), nil
}

// Signature reads a DBus signature: a uint8 length, that many bytes,
// and a trailing NUL. It does not parse or validate the signature
// grammar; that is the caller's concern.
func (d *Decoder) Signature() (string, error) {
	ln, err := d.Uint8()
	if err != nil {
		return "", err
	}
	bs, err := d.Read(int(ln) + 1)
	if err != nil {
		return "", err
	}
	if bs[len(bs)-1] != 0 {
		return "", fmt.Errorf("signature payload missing NUL terminator")
	}
	return BorrowString(bs[:len(bs)-1]), nil
}

// ByteOrderFlag reads a DBus byte order flag byte, and sets d.Order to
// match it.
func (d *Decoder) ByteOrderFlag() error {
	v, err := d.Uint8()
	if err != nil {
		return err
	}
	switch v {
	case 'B':
		d.Order = BigEndian
	case 'l':
		d.Order = LittleEndian
	default:
		return fmt.Errorf("unknown byte order flag %q", v)
	}
	return nil
}

// BorrowString reinterprets bs as a string without copying. The
// result is only valid while the backing array of bs is not mutated;
// decoders use it to hand callers string/signature/object-path values
// that alias the source buffer instead of allocating a copy for
// every field. Callers that need an independent copy should convert
// with strings.Clone.
func BorrowString(bs []byte) string {
	if len(bs) == 0 {
		return ""
	}
	return unsafe.String(unsafe.SliceData(bs), len(bs))
}
