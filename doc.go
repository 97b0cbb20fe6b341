// Package dbus implements the core codec for the DBus wire format: a
// signature parser and type model, a marshaller, and a streaming
// unmarshaller.
//
// # Signatures
//
// Every DBus value is described by a signature, a compact string
// using one character per basic type and a small bracket grammar for
// containers ([ParseSignature]). A [Signature] is parsed once and is
// read-only afterwards; [Signature.String] is the exact inverse of
// [ParseSignature] on any signature it accepted.
//
// # Values
//
// A [Value] is a tagged union mirroring the signature grammar: base
// values (bytes, integers, strings, ...) and containers (arrays,
// structs, dicts, variants). Constructors such as [Int32], [String]
// and [Array] build a Value tree; [Value.Signature] derives the
// signature of a tree by structural walk.
//
// # Marshalling
//
// [Marshal] encodes a [Value] (or a sequence of them, for a DBus
// message body) into a growing byte buffer, honoring the wire
// format's alignment and length-prefix rules:
//
//	out, fds, err := dbus.Marshal(fragments.LittleEndian, dbus.Int32(5))
//	// out == []byte{0x05, 0x00, 0x00, 0x00}
//
// # Unmarshalling
//
// [NewIterator] returns a pull-based streaming [Iterator] over a byte
// slice and a signature. Each call to [Iterator.Recurse] decodes and
// returns the next top-level value, descending into any containers it
// contains; the shared cursor it advances is never touched by
// anything else while that call is in progress, since recursive
// descent only ever has one frame active on the stack at a time. This
// lets a caller walk a message body one value at a time, and avoids
// copying string or signature payloads out of the source buffer.
//
// # Scope
//
// This package is the wire codec only: transport, message framing
// (headers, serials, routing), the bus authentication handshake, and
// connection/object state are all external collaborators, addressed
// only through the types they need from this package (a byte buffer,
// an [fragments.ByteOrder], a file-descriptor table).
package dbus
