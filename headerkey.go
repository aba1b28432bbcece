// Copyright 2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a source-available license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

package httpparse

import (
	"github.com/intuitivelabs/bytescase"
)

// headerKind classifies a header name for the side effects the
// canonicalizer must apply beyond simply storing HTTP_<NAME>. Every
// header, recognized or not, still gets an env entry (except Version,
// which is dropped outright, see below); headerKind only decides what
// *additional* bookkeeping happens.
type headerKind uint8

const (
	hdrOther headerKind = iota
	hdrHost
	hdrConnection
	hdrContentLength
	hdrContentType
	hdrTransferEncoding
	hdrTrailer
	hdrVersion // dropped: would collide with HTTP_VERSION from the request line
)

type commonHeader struct {
	name []byte // canonical lowercase spelling
	kind headerKind
	key  string // precomputed CGI env key
}

// commonHeaders lists the header names seen often enough on real HTTP
// traffic to deserve a precomputed env key, avoiding the
// upper-case/dash-to-underscore/HTTP_-prefix allocation on the hot
// path. Unlisted headers fall back to genericEnvKey. Every entry whose
// kind is not hdrOther additionally drives the semantic handling
// described in spec.md §4.2.
var commonHeaders = []commonHeader{
	{[]byte("host"), hdrHost, "HTTP_HOST"},
	{[]byte("connection"), hdrConnection, "HTTP_CONNECTION"},
	{[]byte("content-length"), hdrContentLength, "CONTENT_LENGTH"},
	{[]byte("content-type"), hdrContentType, "CONTENT_TYPE"},
	{[]byte("transfer-encoding"), hdrTransferEncoding, "HTTP_TRANSFER_ENCODING"},
	{[]byte("trailer"), hdrTrailer, "HTTP_TRAILER"},
	{[]byte("version"), hdrVersion, ""}, // dropped, no env key

	{[]byte("accept"), hdrOther, "HTTP_ACCEPT"},
	{[]byte("accept-charset"), hdrOther, "HTTP_ACCEPT_CHARSET"},
	{[]byte("accept-encoding"), hdrOther, "HTTP_ACCEPT_ENCODING"},
	{[]byte("accept-language"), hdrOther, "HTTP_ACCEPT_LANGUAGE"},
	{[]byte("authorization"), hdrOther, "HTTP_AUTHORIZATION"},
	{[]byte("cache-control"), hdrOther, "HTTP_CACHE_CONTROL"},
	{[]byte("content-encoding"), hdrOther, "HTTP_CONTENT_ENCODING"},
	{[]byte("cookie"), hdrOther, "HTTP_COOKIE"},
	{[]byte("dnt"), hdrOther, "HTTP_DNT"},
	{[]byte("expect"), hdrOther, "HTTP_EXPECT"},
	{[]byte("if-modified-since"), hdrOther, "HTTP_IF_MODIFIED_SINCE"},
	{[]byte("if-none-match"), hdrOther, "HTTP_IF_NONE_MATCH"},
	{[]byte("origin"), hdrOther, "HTTP_ORIGIN"},
	{[]byte("pragma"), hdrOther, "HTTP_PRAGMA"},
	{[]byte("range"), hdrOther, "HTTP_RANGE"},
	{[]byte("referer"), hdrOther, "HTTP_REFERER"},
	{[]byte("sec-websocket-key"), hdrOther, "HTTP_SEC_WEBSOCKET_KEY"},
	{[]byte("sec-websocket-version"), hdrOther, "HTTP_SEC_WEBSOCKET_VERSION"},
	{[]byte("upgrade"), hdrOther, "HTTP_UPGRADE"},
	{[]byte("user-agent"), hdrOther, "HTTP_USER_AGENT"},
	{[]byte("x-forwarded-for"), hdrOther, "HTTP_X_FORWARDED_FOR"},
	{[]byte("x-forwarded-proto"), hdrOther, "HTTP_X_FORWARDED_PROTO"},
	{[]byte("x-forwarded-ssl"), hdrOther, "HTTP_X_FORWARDED_SSL"},
	{[]byte("x-requested-with"), hdrOther, "HTTP_X_REQUESTED_WITH"},
}

const (
	hnBitsLen   uint = 2 // re-check bucket sizes after editing the table
	hnBitsFChar uint = 5
)

var commonHeaderLookup [1 << (hnBitsLen + hnBitsFChar)][]commonHeader

func hashHeaderName(n []byte) int {
	const (
		mC = (1 << hnBitsFChar) - 1
		mL = (1 << hnBitsLen) - 1
	)
	return (int(bytescase.ByteToLower(n[0])) & mC) |
		((len(n) & mL) << hnBitsFChar)
}

func init() {
	for _, h := range commonHeaders {
		i := hashHeaderName(h.name)
		commonHeaderLookup[i] = append(commonHeaderLookup[i], h)
	}
}

// lookupCommonHeader returns the table entry for name, if any. name must
// not contain leading/trailing whitespace.
func lookupCommonHeader(name []byte) (commonHeader, bool) {
	if len(name) == 0 {
		return commonHeader{}, false
	}
	i := hashHeaderName(name)
	for _, h := range commonHeaderLookup[i] {
		if bytescase.CmpEq(name, h.name) {
			return h, true
		}
	}
	return commonHeader{}, false
}

// genericEnvKey computes HTTP_<NAME> for a header name with no table
// entry: upper-cased, '-' replaced with '_'. The two CGI-exempted names
// (Content-Length, Content-Type) are always table hits and never reach
// this path.
func genericEnvKey(name []byte) string {
	out := make([]byte, len(name)+5)
	copy(out, "HTTP_")
	for i, c := range name {
		if c == '-' {
			c = '_'
		} else {
			c = bytescase.ByteToUpper(c)
		}
		out[5+i] = c
	}
	return string(out)
}

// canonicalize resolves a raw header name into its env key and
// headerKind, using the common-field table on the hot path and falling
// back to a freshly computed key on a miss.
func canonicalize(name []byte) (key string, kind headerKind) {
	if h, ok := lookupCommonHeader(name); ok {
		return h.key, h.kind
	}
	return genericEnvKey(name), hdrOther
}
