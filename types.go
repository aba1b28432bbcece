// Copyright 2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a source-available license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

// Package httpparse implements a resumable, byte-offset based HTTP/1.x
// request parser and chunked-body dechunker, producing a CGI-style
// environment map suitable for handing off to a request handler. The
// parser never performs socket I/O: it consumes bytes handed to it by
// a caller and emits values through the caller's output buffer
// (FilterBody) and the parser's own env map.
package httpparse

// OffsT is the type used for offsets and lengths inside PField.
type OffsT uint32

// PField identifies a token ([Offs, Offs+Len)) inside a buffer without
// holding a reference to the buffer itself. Because ParserState.buf may
// be reallocated between calls (it grows by append as more bytes arrive),
// every parsed token is kept as an offset pair and only resolved against
// the current buffer on demand via Get.
type PField struct {
	Offs OffsT
	Len  OffsT
}

// Set points p at [start, end).
func (p *PField) Set(start, end int) {
	if end < start {
		panic("httpparse: invalid field range")
	}
	p.Offs = OffsT(start)
	p.Len = OffsT(end - start)
}

// Reset clears p to the empty field.
func (p *PField) Reset() {
	*p = PField{}
}

// Extend grows p so that it ends at newEnd, keeping the same start.
func (p *PField) Extend(newEnd int) {
	if newEnd < int(p.Offs) {
		panic("httpparse: invalid field end offset")
	}
	p.Len = OffsT(newEnd) - p.Offs
}

// Empty returns true if p has zero length.
func (p PField) Empty() bool {
	return p.Len == 0
}

// EndOffs returns the offset of the first byte after p.
func (p PField) EndOffs() int {
	return int(p.Offs) + int(p.Len)
}

// Get returns the slice of buf identified by p.
func (p PField) Get(buf []byte) []byte {
	return buf[p.Offs : p.Offs+p.Len]
}

// String returns the field's content as a string, copying out of buf.
func (p PField) String(buf []byte) string {
	return string(p.Get(buf))
}
