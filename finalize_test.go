// Copyright 2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a source-available license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

package httpparse

import "testing"

func TestSplitHostPort(t *testing.T) {
	cases := []struct {
		in       string
		wantHost string
		wantPort string
	}{
		{"example.com:8080", "example.com", "8080"},
		{"example.com", "example.com", ""},
		{"[::1]:8080", "[::1]", "8080"},
		{"[::1]", "[::1]", ""},
	}
	for _, c := range cases {
		host, port := splitHostPort(c.in)
		if host != c.wantHost || port != c.wantPort {
			t.Errorf("splitHostPort(%q) = (%q,%q), want (%q,%q)", c.in, host, port, c.wantHost, c.wantPort)
		}
	}
}

func TestSplitRequestTargetOriginForm(t *testing.T) {
	scheme, host, path, query, fragment := splitRequestTarget([]byte("/a/b?x=1#frag"))
	if scheme != "" || host != "" || path != "/a/b" || query != "x=1" || fragment != "frag" {
		t.Errorf("splitRequestTarget origin-form = (%q,%q,%q,%q,%q)", scheme, host, path, query, fragment)
	}
}

func TestSplitRequestTargetAbsoluteForm(t *testing.T) {
	scheme, host, path, query, fragment := splitRequestTarget([]byte("http://Example.COM/a"))
	if scheme != "http" || host != "example.com" || path != "/a" || query != "" || fragment != "" {
		t.Errorf("splitRequestTarget absolute-form = (%q,%q,%q,%q,%q)", scheme, host, path, query, fragment)
	}
}

func TestSplitRequestTargetAbsoluteFormNoPath(t *testing.T) {
	scheme, host, path, _, _ := splitRequestTarget([]byte("http://example.com"))
	if scheme != "http" || host != "example.com" || path != "/" {
		t.Errorf("splitRequestTarget no-path absolute-form = (%q,%q,%q)", scheme, host, path)
	}
}
