// Copyright 2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a source-available license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

package httpparse

import (
	"github.com/intuitivelabs/bytescase"
)

// stateFlags is the bitset described by spec.md §3 ("flags").
type stateFlags uint16

const (
	flagChunked    stateFlags = 1 << iota // body is chunked-encoded
	flagHasBody                           // request has a body (length or chunked)
	flagHasTrailer                        // a Trailer header advertised trailer fields
	flagInTrailer                         // currently parsing trailer headers
	flagReqEOF                            // request (incl. body) fully consumed
	flagKAVersion                         // tentative keep-alive from the HTTP version / Connection header
	flagHasHeader                         // a HTTP/1.x request line (with version) was seen
	flagToClear                           // auto-reset on next Parse/AddParse call
)

func (f *stateFlags) set(b stateFlags)     { *f |= b }
func (f *stateFlags) clear(b stateFlags)   { *f &^= b }
func (f stateFlags) has(b stateFlags) bool { return f&b != 0 }

// mState enumerates the scanner's machine_state positions (spec.md §3).
type mState uint8

const (
	sInit mState = iota
	sMethod
	sURI
	sVersion
	sReqLineCRLF
	sHeaders
	sBodyCLen       // length-delimited body remaining
	sBodyChunkEntry // "chunked_body_entry": parsing the next chunk-size line
	sBodyChunkData  // copying the current chunk's data
	sTrailers       // parsing trailer headers after the last chunk
	sFirstFinal     // request (and any body) fully parsed
	sError          // sticky-error sentinel
)

// header sub-machine states, used while machineState == sHeaders.
const (
	hInit uint8 = iota
	hName
	hNameEnd
	hBodyStart
	hVal
	hValCR
	hFIN
)

// contKind is the tag of the polymorphic "cont" slot from spec.md §3.
type contKind uint8

const (
	contUnset   contKind = iota // no header value in progress
	contIgnored                 // in-progress header is being discarded (Version, duplicate Host)
	contValue                   // in-progress header value, accumulated byte by byte
)

// contSlot holds the header value currently being scanned. Because
// folded continuation lines replace "CRLF 1*(SP/HTAB)" with a single
// space, the value is not necessarily a contiguous slice of buf, so
// (unlike header names) it is accumulated into its own byte slice
// rather than kept as a PField.
type contSlot struct {
	kind contKind
	key  string // destination env key, valid when kind == contValue
	val  []byte // accumulated value bytes, valid when kind == contValue
}

func (c *contSlot) reset() { *c = contSlot{} }

// ParserState is the resumable per-connection parser described by
// spec.md §3. One instance is created per connection (New) and reused
// across keep-alive requests (Clear / the TO_CLEAR auto-reset).
type ParserState struct {
	machineState mState
	hdrState     uint8
	flags        stateFlags

	requestsRemaining int

	mark   int // start offset of the token currently being scanned
	offset int // resume position: bytes [0:offset) have been consumed

	contentOrChunkLen int64 // remaining bytes in a length body or the current chunk

	buf []byte
	env map[string]string

	cont contSlot

	curName PField // header name currently being scanned
	uriTok  PField // raw Request-URI token from the request line
	verTok  PField // raw HTTP-Version token from the request line

	method HTTPMethod

	cfg Config

	stickyErr error // cached public error once machineState == sError

	lastURIComponent string // set just before returning errURITooLong
}

// New allocates and initializes a ParserState using cfg. env starts
// empty and the keep-alive budget is taken from cfg.KeepaliveRequests
// (unlimited if nil).
func New(cfg Config) *ParserState {
	ps := &ParserState{cfg: cfg}
	ps.requestsRemaining = initialBudget(cfg)
	ps.env = make(map[string]string, 16)
	return ps
}

func initialBudget(cfg Config) int {
	if cfg.KeepaliveRequests != nil {
		return *cfg.KeepaliveRequests
	}
	return -1 // unlimited
}

// Clear re-initializes ps for a new request on the same connection,
// discarding any buffered bytes and the current env but preserving the
// connection's remaining keep-alive budget. This is the canonical reset
// operation; it is also invoked automatically by AddParse when the
// TO_CLEAR flag is set (see Next).
func (ps *ParserState) Clear() {
	remaining := ps.requestsRemaining
	cfg := ps.cfg
	*ps = ParserState{}
	ps.cfg = cfg
	ps.requestsRemaining = remaining
	ps.env = make(map[string]string, 16)
}

// Reset is a deprecated alias for Clear, kept for callers migrating
// from the historical "reset" name.
func (ps *ParserState) Reset() {
	ps.Clear()
}

// AddParse appends bytes to the internal buffer and runs Parse,
// auto-clearing first if the previous request asked for it (see Next).
func (ps *ParserState) AddParse(b []byte) (map[string]string, error) {
	if ps.flags.has(flagToClear) {
		ps.Clear()
	}
	ps.buf = append(ps.buf, b...)
	return ps.Parse()
}

// headerBudgetExceeded checks the §4.5 "header too large" bound: it
// only applies while we are still inside the request-line/header block
// (once a body state is reached the bound no longer applies).
func (ps *ParserState) headerBudgetExceeded() bool {
	if ps.machineState > sHeaders {
		return false
	}
	return ps.offset > ps.cfg.maxHeaderLen()
}

// runToHeaderEnd advances the scanner from wherever it currently is
// through request-line and header parsing, stopping as soon as the
// header block is complete, more input is required, or a fatal error
// occurs. It never touches body states.
func (ps *ParserState) runToHeaderEnd() errCode {
	for {
		switch {
		case ps.machineState == sError:
			return errBug // caller already holds the sticky error
		case ps.machineState > sHeaders:
			return errOK // headers (and maybe more) already done
		case ps.machineState == sHeaders:
			err := scanHeaderSection(ps)
			if ps.headerBudgetExceeded() {
				return errHeaderTooLarge
			}
			switch err {
			case errHeaderEnd:
				finalizeHeaders(ps)
				return errOK
			case errMoreBytes:
				return errMoreBytes
			default:
				return err
			}
		default:
			err := scanRequestLine(ps)
			if ps.headerBudgetExceeded() {
				return errHeaderTooLarge
			}
			switch err {
			case errOK:
				continue
			case errMoreBytes:
				return errMoreBytes
			default:
				return err
			}
		}
	}
}

// scanRequestLine parses Request-Line := Method SP Request-URI SP
// HTTP-Version CRLF, or the HTTP/0.9 form Method SP Request-URI CRLF
// (no version, no headers, no body). It is resumable: ps.machineState
// records exactly where to pick up if buf runs out mid-token.
func scanRequestLine(ps *ParserState) errCode {
	buf := ps.buf
	if ps.machineState == sInit {
		ps.mark = ps.offset
		ps.machineState = sMethod
	}

	switch ps.machineState {
	case sMethod:
		i := skipToken(buf, ps.offset)
		if i >= len(buf) {
			ps.offset = i
			return errMoreBytes
		}
		if buf[i] != ' ' {
			ps.offset = i
			return errBadChar
		}
		var methodTok PField
		methodTok.Set(ps.mark, i)
		if methodTok.Empty() {
			ps.offset = i
			return errBadChar
		}
		ps.env["REQUEST_METHOD"] = methodTok.String(buf)
		ps.method = GetMethodNo(methodTok.Get(buf))
		ps.offset = i + 1
		ps.mark = ps.offset
		ps.machineState = sURI
		return scanRequestLine(ps)
	case sURI:
		i := ps.offset
		for i < len(buf) {
			c := buf[i]
			if c == ' ' || c == '\r' || c == '\n' {
				break
			}
			if isCtl(c) {
				ps.offset = i
				return errBadChar
			}
			i++
		}
		if i >= len(buf) {
			ps.offset = i
			return errMoreBytes
		}
		ps.uriTok.Set(ps.mark, i)
		if ps.uriTok.Empty() {
			ps.offset = i
			return errBadChar
		}
		if buf[i] == ' ' {
			ps.offset = i + 1
			ps.mark = ps.offset
			ps.machineState = sVersion
			return scanRequestLine(ps)
		}
		// HTTP/0.9: no version token, request line ends here.
		if err := finalizeRequestLine(ps, nil); err != errOK {
			ps.offset = i
			return err
		}
		n, _, err := skipCRLF(buf, i)
		if err != errOK {
			ps.offset = i
			return err
		}
		ps.offset = n
		ps.machineState = sFirstFinal
		ps.flags.set(flagReqEOF)
		finalizeEnv(ps)
		return errOK
	case sVersion:
		i := skipToken(buf, ps.offset)
		if i >= len(buf) {
			ps.offset = i
			return errMoreBytes
		}
		if buf[i] != '\r' && buf[i] != '\n' {
			ps.offset = i
			return errBadChar
		}
		ps.verTok.Set(ps.mark, i)
		if ps.verTok.Empty() {
			ps.offset = i
			return errBadChar
		}
		ps.offset = i
		ps.machineState = sReqLineCRLF
		return scanRequestLine(ps)
	case sReqLineCRLF:
		n, _, err := skipCRLF(buf, ps.offset)
		if err != errOK {
			ps.offset = n
			return err
		}
		ps.offset = n
		if err := finalizeRequestLine(ps, &ps.verTok); err != errOK {
			return err
		}
		ps.machineState = sHeaders
		ps.hdrState = hInit
		return errOK
	}
	return errBug
}

// finalizeRequestLine sets the request-line-derived env entries once the
// request line is fully scanned: REQUEST_URI and its components, plus
// (when ver is non-nil) HTTP_VERSION/SERVER_PROTOCOL and the tentative
// keep-alive flag.
func finalizeRequestLine(ps *ParserState, ver *PField) errCode {
	buf := ps.buf
	uriRaw := ps.uriTok.Get(buf)

	if len(uriRaw) > MaxURILength {
		ps.lastURIComponent = "REQUEST_URI"
		return errURITooLong
	}
	if err := setEnvLen(ps, "REQUEST_URI", string(uriRaw), MaxURILength); err != errOK {
		return err
	}

	if string(uriRaw) == "*" {
		ps.env["REQUEST_PATH"] = ""
		ps.env["PATH_INFO"] = ""
	} else {
		scheme, host, path, query, fragment := splitRequestTarget(uriRaw)
		_ = scheme
		if err := setEnvLen(ps, "REQUEST_PATH", path, MaxURILength); err != errOK {
			return err
		}
		ps.env["PATH_INFO"] = ps.env["REQUEST_PATH"]
		if query != "" {
			if err := setEnvLen(ps, "QUERY_STRING", query, MaxURILength); err != errOK {
				return err
			}
		}
		if fragment != "" {
			if err := setEnvLen(ps, "FRAGMENT", fragment, MaxURILength); err != errOK {
				return err
			}
		}
		if host != "" {
			ps.env["HTTP_HOST"] = host
		}
	}

	if ver == nil {
		return errOK // HTTP/0.9: no version, HASHEADER stays false
	}
	verStr := ver.String(buf)
	ps.env["HTTP_VERSION"] = verStr
	ps.env["SERVER_PROTOCOL"] = verStr
	ps.flags.set(flagHasHeader)
	if verStr == "HTTP/1.1" {
		ps.flags.set(flagKAVersion)
	}
	return errOK
}

// setEnvLen stores env[key] = val if len(val) is within limit,
// otherwise records key as the offending component and returns
// errURITooLong.
func setEnvLen(ps *ParserState, key, val string, limit int) errCode {
	if len(val) > limit {
		ps.lastURIComponent = key
		return errURITooLong
	}
	ps.env[key] = val
	return errOK
}

// scanHeaderSection repeatedly parses header lines until the blank
// line ending the header block is found (errHeaderEnd), more input is
// required (errMoreBytes), or a fatal error occurs.
func scanHeaderSection(ps *ParserState) errCode {
	for {
		err := scanHeaderLine(ps)
		switch err {
		case errOK:
			continue
		default:
			return err
		}
	}
}

// scanHeaderLine parses Name SP* ':' LWS* val CRLF, or detects the
// blank line that ends the header block; val runs up to the line
// terminator, so trailing whitespace is kept. It folds continuation lines
// ("CRLF 1*(SP/HTAB)") into the value as a single space and streams raw
// value bytes to the canonicalizer via ps.cont as they are scanned, so
// that non-contiguous (folded) values never need to be represented as a
// single buffer offset range.
func scanHeaderLine(ps *ParserState) errCode {
	buf := ps.buf
	for {
		switch ps.hdrState {
		case hInit:
			if ps.offset >= len(buf) {
				return errMoreBytes
			}
			if buf[ps.offset] == '\r' || buf[ps.offset] == '\n' {
				n, _, err := skipCRLF(buf, ps.offset)
				if err != errOK {
					return err
				}
				ps.offset = n
				return errHeaderEnd
			}
			ps.mark = ps.offset
			ps.hdrState = hName
			continue
		case hName:
			i := skipTokenDelim(buf, ps.offset, ':')
			if i >= len(buf) {
				ps.offset = i
				return errMoreBytes
			}
			ps.curName.Set(ps.mark, i)
			if ps.curName.Empty() {
				ps.offset = i
				return errBadChar
			}
			if int(ps.curName.Len) > MaxFieldNameLength {
				ps.offset = i
				return errBadChar
			}
			if buf[i] == ':' {
				ps.offset = i + 1
				ps.hdrState = hBodyStart
			} else if buf[i] == ' ' || buf[i] == '\t' {
				ps.offset = i
				ps.hdrState = hNameEnd
			} else {
				ps.offset = i
				return errBadChar
			}
			continue
		case hNameEnd:
			i := skipWS(buf, ps.offset)
			if i >= len(buf) {
				ps.offset = i
				return errMoreBytes
			}
			if buf[i] != ':' {
				ps.offset = i
				return errBadChar
			}
			ps.offset = i + 1
			ps.hdrState = hBodyStart
			continue
		case hBodyStart:
			i := skipWS(buf, ps.offset)
			if i >= len(buf) {
				ps.offset = i
				return errMoreBytes
			}
			ps.offset = i
			if err := beginHeaderValue(ps); err != errOK {
				return err
			}
			ps.hdrState = hVal
			continue
		case hVal:
			start := ps.offset
			i := start
			for i < len(buf) && buf[i] != '\r' && buf[i] != '\n' {
				i++
			}
			if err := appendHeaderValue(ps, buf[start:i]); err != errOK {
				ps.offset = i
				return err
			}
			ps.offset = i
			if i >= len(buf) {
				return errMoreBytes
			}
			ps.hdrState = hValCR
			continue
		case hValCR:
			n, _, err := skipCRLF(buf, ps.offset)
			if err != errOK {
				return err
			}
			if n >= len(buf) {
				// can't yet tell if this is a folded continuation
				return errMoreBytes
			}
			if buf[n] == ' ' || buf[n] == '\t' {
				if err := appendHeaderValue(ps, []byte{' '}); err != errOK {
					return err
				}
				ps.offset = skipWS(buf, n)
				ps.hdrState = hVal
				continue
			}
			ps.offset = n
			ps.hdrState = hFIN
			continue
		case hFIN:
			err := finishHeaderValue(ps)
			ps.hdrState = hInit
			if err != errOK {
				return err
			}
			return errOK
		}
	}
}

// beginHeaderValue is called once the ':' and any leading linear
// whitespace have been consumed, right before the value bytes start.
// It resolves the header's canonical key/kind and decides whether the
// coming value should be accumulated, ignored, or rejected outright
// (trailer-restricted headers appearing while flagInTrailer is set).
func beginHeaderValue(ps *ParserState) errCode {
	name := ps.curName.Get(ps.buf)
	key, kind := canonicalize(name)

	if ps.flags.has(flagInTrailer) {
		switch kind {
		case hdrContentLength, hdrTransferEncoding, hdrTrailer:
			return errTrailerNotAllowed
		}
	}

	switch kind {
	case hdrVersion:
		ps.cont = contSlot{kind: contIgnored}
	case hdrHost:
		if _, ok := ps.env["HTTP_HOST"]; ok {
			ps.cont = contSlot{kind: contIgnored}
		} else {
			ps.cont = contSlot{kind: contValue, key: key}
		}
	default:
		if existing, ok := ps.env[key]; ok {
			seed := append([]byte(existing), ',')
			ps.cont = contSlot{kind: contValue, key: key, val: seed}
		} else {
			ps.cont = contSlot{kind: contValue, key: key}
		}
	}
	return errOK
}

// appendHeaderValue appends b to the in-progress header value,
// enforcing MaxFieldValueLength. It is a no-op when the current header
// is being ignored.
func appendHeaderValue(ps *ParserState, b []byte) errCode {
	if ps.cont.kind != contValue {
		return errOK
	}
	if len(ps.cont.val)+len(b) > MaxFieldValueLength {
		return errBadChar
	}
	ps.cont.val = append(ps.cont.val, b...)
	return errOK
}

// finishHeaderValue stores the accumulated value into env (unless the
// header is being ignored) and applies the header-specific semantics
// from spec.md §4.2.
func finishHeaderValue(ps *ParserState) errCode {
	defer ps.cont.reset()

	if ps.cont.kind != contValue {
		return errOK
	}

	name := ps.curName.Get(ps.buf)
	_, kind := canonicalize(name)
	val := string(ps.cont.val)
	ps.env[ps.cont.key] = val

	switch kind {
	case hdrConnection:
		applyConnectionTokens(ps, val)
	case hdrContentLength:
		n, err := parseContentLength(val)
		if err != errOK {
			return err
		}
		if n > 0 {
			ps.flags.set(flagHasBody)
		}
		ps.contentOrChunkLen = n
	case hdrTransferEncoding:
		if hasChunkedToken(val) {
			ps.flags.set(flagChunked)
			ps.flags.set(flagHasBody)
		}
	case hdrTrailer:
		ps.flags.set(flagHasTrailer)
	}
	return errOK
}

// applyConnectionTokens scans a (possibly comma-joined) Connection
// value left to right; the last recognized token wins, pinning the
// Open Question from spec.md §9 about "keep-alive, close" in one
// header: close wins in that example because it appears last.
func applyConnectionTokens(ps *ParserState, val string) {
	start := 0
	for i := 0; i <= len(val); i++ {
		if i == len(val) || val[i] == ',' {
			tok := trimOWS(val[start:i])
			if bytescase.CmpEq([]byte(tok), []byte("keep-alive")) {
				ps.flags.set(flagKAVersion)
			} else if bytescase.CmpEq([]byte(tok), []byte("close")) {
				ps.flags.clear(flagKAVersion)
			}
			start = i + 1
		}
	}
}

// hasChunkedToken reports whether any comma-separated token in val is
// "chunked" (case-insensitive).
func hasChunkedToken(val string) bool {
	start := 0
	for i := 0; i <= len(val); i++ {
		if i == len(val) || val[i] == ',' {
			tok := trimOWS(val[start:i])
			if bytescase.CmpEq([]byte(tok), []byte("chunked")) {
				return true
			}
			start = i + 1
		}
	}
	return false
}

func trimOWS(s string) string {
	i, j := 0, len(s)
	for i < j && (s[i] == ' ' || s[i] == '\t') {
		i++
	}
	for j > i && (s[j-1] == ' ' || s[j-1] == '\t') {
		j--
	}
	return s[i:j]
}

// parseContentLength parses a non-negative decimal integer. Leading
// '+', embedded spaces, empty strings and non-digit characters are all
// rejected, per spec.md §8's boundary behaviors.
func parseContentLength(s string) (int64, errCode) {
	if len(s) == 0 {
		return 0, errValNotNumber
	}
	var n int64
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return 0, errValNotNumber
		}
		d := int64(c - '0')
		if n > (1<<62)/10 { // overflow guard, well above any real body size
			return 0, errNumTooBig
		}
		n = n*10 + d
	}
	return n, errOK
}

// finalizeHeaders runs once, right after the blank line ending the
// header block is seen. It decides how the body (if any) is framed and
// runs the Environment Finalizer (finalize.go).
func finalizeHeaders(ps *ParserState) {
	switch {
	case ps.flags.has(flagChunked):
		ps.machineState = sBodyChunkEntry
	case ps.flags.has(flagHasBody):
		ps.machineState = sBodyCLen
	default:
		ps.flags.set(flagReqEOF)
		ps.machineState = sFirstFinal
	}
	finalizeEnv(ps)
}
