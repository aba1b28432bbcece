// Copyright 2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a source-available license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

package httpparse

// Small, allocation-free byte-scanning helpers shared by the
// request-line and header sub-machines. Each returns the offset of the
// first byte it did *not* consume (which may be len(buf) if the run
// extends to the end of the currently available input — callers treat
// that as "need more bytes").

// isCtl reports whether c is an ASCII control character. HT is not
// counted as one; CR and LF are, so callers test for them first.
func isCtl(c byte) bool {
	return c < 0x20 && c != '\t' || c == 0x7f
}

// skipToken advances over a run of "loose token" bytes: anything except
// SP, HT, CR or LF. This is deliberately broader than RFC 7230's strict
// token grammar (it allows '/', '.', ':' and similar) because it is
// reused for the request method and the HTTP version, the latter of
// which contains characters a strict token excludes.
func skipToken(buf []byte, offs int) int {
	i := offs
	for i < len(buf) {
		switch buf[i] {
		case ' ', '\t', '\r', '\n':
			return i
		}
		i++
	}
	return i
}

// skipTokenDelim is like skipToken but also stops at delim.
func skipTokenDelim(buf []byte, offs int, delim byte) int {
	i := offs
	for i < len(buf) {
		c := buf[i]
		if c == delim || c == ' ' || c == '\t' || c == '\r' || c == '\n' {
			return i
		}
		i++
	}
	return i
}

// skipWS advances over spaces and horizontal tabs only.
func skipWS(buf []byte, offs int) int {
	i := offs
	for i < len(buf) && (buf[i] == ' ' || buf[i] == '\t') {
		i++
	}
	return i
}

// skipCRLF consumes a CRLF, a bare LF or a bare CR at offs. It returns the new
// offset and the number of bytes consumed (1 or 2), or errMoreBytes if
// buf does not contain enough bytes to decide, or errBadChar if offs
// does not start a line terminator.
func skipCRLF(buf []byte, offs int) (int, int, errCode) {
	if offs >= len(buf) {
		return offs, 0, errMoreBytes
	}
	switch buf[offs] {
	case '\n':
		return offs + 1, 1, errOK
	case '\r':
		if offs+1 >= len(buf) {
			return offs, 0, errMoreBytes
		}
		if buf[offs+1] == '\n' {
			return offs + 2, 2, errOK
		}
		// bare CR, tolerated as a line terminator on its own
		return offs + 1, 1, errOK
	}
	return offs, 0, errBadChar
}

// skipLine advances to just after the next line terminator, starting
// the scan at offs (which must already be positioned on non-terminator
// content or right at one). It returns the new offset and the number
// of terminator bytes consumed (so callers can Extend a field to
// exclude them).
func skipLine(buf []byte, offs int) (int, int, errCode) {
	i := offs
	for i < len(buf) {
		if buf[i] == '\r' || buf[i] == '\n' {
			n, crl, err := skipCRLF(buf, i)
			if err != errOK {
				return i, 0, err
			}
			return n, crl, errOK
		}
		i++
	}
	return i, 0, errMoreBytes
}
