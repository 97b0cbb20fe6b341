package fragments

// An Encoder accumulates a DBus wire format byte buffer.
//
// Every method inserts padding as needed to satisfy DBus alignment
// rules before writing its payload, except [Encoder.Write] which
// appends bytes verbatim with no padding or framing.
type Encoder struct {
	// Order is the byte order to use when encoding multi-byte values.
	Order ByteOrder
	// Out is the encoded output so far. Encoder only ever appends to
	// Out; callers may snapshot len(Out) before a call and truncate
	// back to it to undo a partial write.
	Out []byte
}

// Pad appends zero bytes so that len(e.Out) is a multiple of align.
// align must be one of 1, 2, 4, 8. If the output is already correctly
// aligned, no bytes are appended.
func (e *Encoder) Pad(align int) {
	extra := len(e.Out) % align
	if extra == 0 {
		return
	}
	var pad [8]byte
	e.Out = append(e.Out, pad[:align-extra]...)
}

// Write appends bs to the output as-is. It is the caller's
// responsibility to ensure correct padding and encoding.
func (e *Encoder) Write(bs []byte) {
	e.Out = append(e.Out, bs...)
}

// Bytes writes bs as a DBus byte array: a uint32 length followed by
// the bytes themselves, 4-byte aligned.
func (e *Encoder) Bytes(bs []byte) {
	e.Pad(4)
	e.Uint32(uint32(len(bs)))
	e.Out = append(e.Out, bs...)
}

// String writes s as a DBus string: a uint32 byte length (excluding
// the terminator), the bytes of s, and a trailing NUL.
func (e *Encoder) String(s string) {
	e.Pad(4)
	e.Uint32(uint32(len(s)))
	e.Out = append(e.Out, s...)
	e.Out = append(e.Out, 0)
}

// Signature writes s as a DBus signature: a uint8 byte length
// (excluding the terminator), the bytes of s, and a trailing NUL.
func (e *Encoder) Signature(s string) {
	e.Uint8(uint8(len(s)))
	e.Out = append(e.Out, s...)
	e.Out = append(e.Out, 0)
}

// Uint8 writes a uint8.
func (e *Encoder) Uint8(u8 uint8) {
	e.Out = append(e.Out, u8)
}

// Uint16 writes a uint16, 2-byte aligned.
func (e *Encoder) Uint16(u16 uint16) {
	e.Pad(2)
	e.Out = e.Order.AppendUint16(e.Out, u16)
}

// Uint32 writes a uint32, 4-byte aligned.
func (e *Encoder) Uint32(u32 uint32) {
	e.Pad(4)
	e.Out = e.Order.AppendUint32(e.Out, u32)
}

// Uint64 writes a uint64, 8-byte aligned.
func (e *Encoder) Uint64(u64 uint64) {
	e.Pad(8)
	e.Out = e.Order.AppendUint64(e.Out, u64)
}

// Array writes a DBus array. elemAlign is the alignment of the
// array's element type, used to pad the payload start independently
// of the 4-byte length prefix. elements is called once the length
// placeholder and payload padding have been written, and is
// responsible for appending each element (including each element's
// own alignment padding).
//
// The patched length covers only elements' output, not the padding
// inserted between the length prefix and the first element.
func (e *Encoder) Array(elemAlign int, elements func()) {
	e.Pad(4)
	lenOffset := len(e.Out)
	e.Uint32(0)
	e.Pad(elemAlign)

	start := len(e.Out)
	elements()
	end := len(e.Out)
	e.Order.PutUint32(e.Out[lenOffset:], uint32(end-start))
}

// Struct writes a DBus struct (or dict entry): it pads to 8-byte
// alignment and then invokes fields, which is responsible for
// appending each field (including each field's own alignment
// padding).
func (e *Encoder) Struct(fields func()) {
	e.Pad(8)
	fields()
}

// ByteOrderFlag writes the DBus byte order flag byte ('l' or 'B')
// that matches e.Order. This is a convenience for callers framing a
// full message; the core codec does not use it internally.
func (e *Encoder) ByteOrderFlag() {
	e.Out = append(e.Out, e.Order.dbusFlag())
}
