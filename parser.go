// Copyright 2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a source-available license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

package httpparse

// Parse advances the scanner as far as the currently buffered bytes
// allow. It returns the CGI-style environment once the request line and
// header block are fully parsed (nil, nil if more input is needed), or
// a sticky error if the input is malformed or exceeds a configured
// limit. Once headers are parsed, further calls return the same env
// immediately without rescanning.
func (ps *ParserState) Parse() (map[string]string, error) {
	if ps.flags.has(flagToClear) {
		ps.Clear()
	}
	if ps.machineState == sError {
		return nil, ps.stickyErr
	}
	switch code := ps.runToHeaderEnd(); code {
	case errOK:
		return ps.env, nil
	case errMoreBytes:
		return nil, nil
	default:
		return nil, ps.setStickyErr(code)
	}
}

// Headers returns the CGI-style environment map accumulated so far. It
// is the same map Parse returns on success; once FilterBody finishes
// consuming a chunked body's trailer, any trailer headers are merged
// into it under the same canonicalization rules as regular headers.
func (ps *ParserState) Headers() map[string]string {
	return ps.env
}

// HeadersSeen reports whether a HTTP/1.x header block was present
// (false for an HTTP/0.9 request, which has no version and no headers).
func (ps *ParserState) HeadersSeen() bool {
	return ps.flags.has(flagHasHeader)
}

// ContentLength reports the number of body bytes not yet delivered via
// FilterBody: the remaining bytes of a length-delimited body, 0 for a
// bodyless request, or -1 for a chunked body (whose total length is
// not known until the final chunk is reached).
func (ps *ParserState) ContentLength() int64 {
	if ps.flags.has(flagChunked) {
		return -1
	}
	if !ps.flags.has(flagHasBody) {
		return 0
	}
	return ps.contentOrChunkLen
}

// BodyEOF reports whether the request body (and, for a chunked body,
// its trailer) has been fully consumed.
func (ps *ParserState) BodyEOF() bool {
	return ps.flags.has(flagReqEOF)
}

// KeepAlive reports whether the connection should be kept open for
// another request on it: the request (and body) must be fully
// consumed, the client must have signaled a keep-alive-capable
// version or Connection token, the per-connection budget must not be
// exhausted, and — mirroring the historical http11 predicate this
// module is modeled on — only GET and HEAD requests are considered
// keep-alive eligible.
func (ps *ParserState) KeepAlive() bool {
	if ps.machineState == sError {
		return false
	}
	if !ps.flags.has(flagReqEOF) || !ps.flags.has(flagKAVersion) {
		return false
	}
	if ps.requestsRemaining == 0 {
		return false
	}
	switch ps.method {
	case MGet, MHead:
		return true
	default:
		return false
	}
}

// Next closes out the just-completed request: it decrements the
// keep-alive budget, arranges for the parser to auto-reset on the next
// AddParse call, and returns whether the connection should stay open,
// per KeepAlive.
func (ps *ParserState) Next() bool {
	ka := ps.KeepAlive()
	if ps.requestsRemaining > 0 {
		ps.requestsRemaining--
	}
	ps.flags.set(flagToClear)
	return ka
}
