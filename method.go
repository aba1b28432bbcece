// Copyright 2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a source-available license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

package httpparse

import (
	"github.com/intuitivelabs/bytescase"
)

// HTTPMethod is a small enum recognizing the common HTTP request
// methods. It exists purely as a fast classifier for the keep-alive
// predicate (spec §4.5 "keepalive?" requires GET/HEAD); the verbatim
// method token is always what gets stored in REQUEST_METHOD, unknown
// methods are never a parse error and are simply classified MOther.
type HTTPMethod uint8

const (
	MUndef HTTPMethod = iota
	MGet
	MHead
	MPost
	MPut
	MDelete
	MConnect
	MOptions
	MTrace
	MPatch
	MOther // must be last
)

// method2Name maps a HTTPMethod back to its canonical ASCII spelling,
// used to build mthNameLookup and by String; REQUEST_METHOD itself
// always comes from the raw bytes seen on the wire.
var method2Name = [MOther + 1][]byte{
	MUndef:   []byte(""),
	MGet:     []byte("GET"),
	MHead:    []byte("HEAD"),
	MPost:    []byte("POST"),
	MPut:     []byte("PUT"),
	MDelete:  []byte("DELETE"),
	MConnect: []byte("CONNECT"),
	MOptions: []byte("OPTIONS"),
	MTrace:   []byte("TRACE"),
	MPatch:   []byte("PATCH"),
	MOther:   []byte("OTHER"),
}

func (m HTTPMethod) String() string {
	if m > MOther {
		return string(method2Name[MUndef])
	}
	return string(method2Name[m])
}

type mth2Type struct {
	n []byte
	t HTTPMethod
}

// magic values: after adding/removing methods, re-check the bucket
// sizes (currently at most 2: HEAD and POST share a bucket).
const (
	mthBitsLen   uint = 3
	mthBitsFChar uint = 3
)

var mthNameLookup [1 << (mthBitsLen + mthBitsFChar)][]mth2Type

func hashMthName(n []byte) int {
	const (
		mC = (1 << mthBitsFChar) - 1
		mL = (1 << mthBitsLen) - 1
	)
	return (int(bytescase.ByteToLower(n[0])) & mC) |
		((len(n) & mL) << mthBitsFChar)
}

func init() {
	for i := MUndef + 1; i < MOther; i++ {
		h := hashMthName(method2Name[i])
		mthNameLookup[h] = append(mthNameLookup[h], mth2Type{method2Name[i], i})
	}
}

// GetMethodNo classifies a raw method token (as seen on the wire) into
// one of the recognized HTTPMethod values, or MOther if unrecognized.
// The match is case-sensitive: HTTP methods are case-sensitive tokens
// per RFC 7230, so "get" is a distinct, unrecognized token from "GET".
func GetMethodNo(buf []byte) HTTPMethod {
	if len(buf) == 0 {
		return MOther
	}
	i := hashMthName(buf)
	for _, m := range mthNameLookup[i] {
		if len(buf) == len(m.n) && string(buf) == string(m.n) {
			return m.t
		}
	}
	return MOther
}
