// Package fragments provides the low-level alignment and primitive
// I/O building blocks of the DBus wire format: padding, byte order,
// and fixed/length-prefixed field reads and writes.
//
// Fragments has no notion of a type signature or a value tree; it
// only knows how to pad a buffer to an alignment and how to read or
// write the handful of primitive shapes the wire format uses
// (fixed-width integers, length-prefixed strings and signatures). The
// higher-level signature model, value model, and marshal/unmarshal
// logic live in the parent package and are built on top of this one.
package fragments
