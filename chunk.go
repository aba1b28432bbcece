// Copyright 2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a source-available license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

package httpparse

import "math"

// FilterBody is the Body Filter: it copies as much decoded body data as
// is currently buffered into dst, dechunking on the fly when the
// request used Transfer-Encoding: chunked, and reports whether the body
// (and any trailer) is now fully consumed. A bodyless request reports
// eof=true immediately. Once the parser is sticky-error, every call
// returns that same error.
func (ps *ParserState) FilterBody(dst []byte) (n int, eof bool, err error) {
	if ps.machineState == sError {
		return 0, false, ps.stickyErr
	}
	if ps.flags.has(flagReqEOF) {
		return 0, true, nil
	}

	var code errCode
	switch ps.machineState {
	case sBodyCLen:
		n, code = ps.filterLengthBody(dst)
	case sBodyChunkEntry, sBodyChunkData, sTrailers:
		n, code = ps.filterChunkedBody(dst)
	default:
		return 0, true, nil
	}
	if code.fatal() {
		return n, false, ps.setStickyErr(code)
	}
	return n, ps.flags.has(flagReqEOF), nil
}

// filterLengthBody copies min(len(dst), bytes buffered, bytes remaining)
// and marks the request done once contentOrChunkLen reaches zero.
func (ps *ParserState) filterLengthBody(dst []byte) (int, errCode) {
	avail := len(ps.buf) - ps.offset
	if avail < 0 {
		avail = 0
	}
	n := len(dst)
	if n > avail {
		n = avail
	}
	if int64(n) > ps.contentOrChunkLen {
		n = int(ps.contentOrChunkLen)
	}
	copy(dst[:n], ps.buf[ps.offset:ps.offset+n])
	ps.offset += n
	ps.contentOrChunkLen -= int64(n)
	if ps.contentOrChunkLen == 0 {
		ps.flags.set(flagReqEOF)
		ps.machineState = sFirstFinal
	}
	return n, errOK
}

// filterChunkedBody drives the chunk-size / chunk-data / trailer
// sequence, writing decoded data into dst as it becomes available. The
// chunk-size and trailer states make progress against ps.buf alone and
// are always attempted; only chunk-data consumes room in dst.
func (ps *ParserState) filterChunkedBody(dst []byte) (int, errCode) {
	written := 0
	for {
		switch ps.machineState {
		case sBodyChunkEntry:
			switch err := scanChunkSize(ps); err {
			case errOK:
				continue
			case errMoreBytes:
				return written, errOK
			default:
				return written, err
			}
		case sBodyChunkData:
			if written >= len(dst) {
				return written, errOK
			}
			n := len(dst) - written
			if avail := len(ps.buf) - ps.offset; n > avail {
				n = avail
			}
			if int64(n) > ps.contentOrChunkLen {
				n = int(ps.contentOrChunkLen)
			}
			if n > 0 {
				copy(dst[written:written+n], ps.buf[ps.offset:ps.offset+n])
				ps.offset += n
				ps.contentOrChunkLen -= int64(n)
				written += n
			}
			if ps.contentOrChunkLen != 0 {
				return written, errOK // dst full or buf exhausted, still mid-chunk
			}
			nOff, _, cerr := skipCRLF(ps.buf, ps.offset)
			if cerr != errOK {
				if cerr == errMoreBytes {
					return written, errOK
				}
				return written, cerr
			}
			ps.offset = nOff
			ps.machineState = sBodyChunkEntry
			continue
		case sTrailers:
			ps.flags.set(flagInTrailer)
			switch err := scanHeaderSection(ps); err {
			case errHeaderEnd:
				ps.flags.clear(flagInTrailer)
				ps.flags.set(flagReqEOF)
				ps.machineState = sFirstFinal
				return written, errOK
			case errMoreBytes:
				return written, errOK
			default:
				return written, err
			}
		default:
			return written, errOK
		}
	}
}

// scanChunkSize parses "chunk-size [ ';' chunk-ext ] CRLF" at ps.offset.
// A zero chunk-size transitions into trailer parsing instead of
// chunk-data, per RFC 7230 §4.1.
func scanChunkSize(ps *ParserState) errCode {
	buf := ps.buf
	i := ps.offset
	start := i
	for i < len(buf) {
		c := buf[i]
		if c == '\r' || c == '\n' || c == ';' {
			break
		}
		if !isHexDigit(c) {
			ps.offset = i
			return errBadChar
		}
		i++
	}
	if i >= len(buf) {
		// ps.offset stays at start: the whole size line is rescanned
		// once more bytes arrive.
		return errMoreBytes
	}
	if i == start {
		ps.offset = i
		return errBadChar
	}
	size, ok := hexToU(buf[start:i])
	if !ok {
		ps.offset = i
		return errNumTooBig
	}

	var next int
	var cerr errCode
	if buf[i] == ';' {
		next, _, cerr = skipLine(buf, i)
	} else {
		next, _, cerr = skipCRLF(buf, i)
	}
	if cerr != errOK {
		if cerr != errMoreBytes {
			ps.offset = i
		}
		return cerr
	}

	ps.offset = next
	ps.contentOrChunkLen = int64(size)
	if size == 0 {
		ps.machineState = sTrailers
	} else {
		ps.machineState = sBodyChunkData
	}
	return errOK
}

func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

// hexToU parses a hex chunk-size, capped at math.MaxUint32 to keep a
// malformed or hostile chunk-size line from overflowing into a huge or
// negative remaining-length value.
func hexToU(b []byte) (uint64, bool) {
	if len(b) == 0 {
		return 0, false
	}
	var n uint64
	for _, c := range b {
		var d uint64
		switch {
		case c >= '0' && c <= '9':
			d = uint64(c - '0')
		case c >= 'a' && c <= 'f':
			d = uint64(c-'a') + 10
		case c >= 'A' && c <= 'F':
			d = uint64(c-'A') + 10
		default:
			return 0, false
		}
		n = n*16 + d
		if n > math.MaxUint32 {
			return 0, false
		}
	}
	return n, true
}
