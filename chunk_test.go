// Copyright 2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a source-available license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

package httpparse

import "testing"

func TestHexToU(t *testing.T) {
	cases := []struct {
		in   string
		want uint64
		ok   bool
	}{
		{"5", 5, true},
		{"ff", 255, true},
		{"FF", 255, true},
		{"0", 0, true},
		{"", 0, false},
		{"zz", 0, false},
		{"100000000", 0, false}, // exceeds math.MaxUint32
	}
	for _, c := range cases {
		got, ok := hexToU([]byte(c.in))
		if ok != c.ok || (ok && got != c.want) {
			t.Errorf("hexToU(%q) = (%d,%v), want (%d,%v)", c.in, got, ok, c.want, c.ok)
		}
	}
}

func TestChunkExtensionIgnored(t *testing.T) {
	ps := New(DefaultConfig())
	ps.buf = []byte("5;ext=1\r\nhello\r\n0\r\n\r\n")
	ps.machineState = sBodyChunkEntry

	dst := make([]byte, 32)
	n, eof, err := ps.FilterBody(dst)
	if err != nil {
		t.Fatalf("FilterBody: %v", err)
	}
	if !eof || string(dst[:n]) != "hello" {
		t.Errorf("FilterBody = (%q, eof=%v), want (\"hello\", true)", dst[:n], eof)
	}
}

func TestMalformedChunkSize(t *testing.T) {
	ps := New(DefaultConfig())
	ps.buf = []byte("zz\r\n")
	ps.machineState = sBodyChunkEntry

	_, _, err := ps.FilterBody(make([]byte, 16))
	if err == nil {
		t.Fatalf("expected an error for a non-hex chunk size")
	}
}
