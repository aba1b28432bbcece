// Copyright 2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a source-available license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

package httpparse

import (
	"errors"
	"testing"
)

// feedWhole appends the entire request in one AddParse call.
func feedWhole(t *testing.T, ps *ParserState, req string) map[string]string {
	t.Helper()
	env, err := ps.AddParse([]byte(req))
	if err != nil {
		t.Fatalf("AddParse: unexpected error: %v", err)
	}
	if env == nil {
		t.Fatalf("AddParse: expected a completed environment, got nil (more bytes requested)")
	}
	return env
}

// feedByByte feeds req one byte at a time, checking that every
// intermediate call (other than the last) reports "more bytes needed",
// and returns the final env so the caller can compare it with the env
// from feeding the whole request at once. This pins the "any
// partitioning of the input yields the same result" invariant
// regardless of where the split falls.
func feedByByte(t *testing.T, cfg Config, req string) map[string]string {
	t.Helper()
	ps := New(cfg)
	var env map[string]string
	for i := 0; i < len(req); i++ {
		e, err := ps.AddParse([]byte{req[i]})
		if err != nil {
			t.Fatalf("AddParse byte %d (%q): unexpected error: %v", i, req[i], err)
		}
		if e != nil {
			if i != len(req)-1 {
				t.Fatalf("AddParse byte %d: env completed early", i)
			}
			env = e
		}
	}
	if env == nil {
		t.Fatalf("byte-at-a-time feed never completed")
	}
	return env
}

func wantEnv(t *testing.T, env map[string]string, key, want string) {
	t.Helper()
	got, ok := env[key]
	if !ok {
		t.Errorf("env[%s] missing, want %q", key, want)
		return
	}
	if got != want {
		t.Errorf("env[%s] = %q, want %q", key, got, want)
	}
}

func TestMinimalGET(t *testing.T) {
	const req = "GET / HTTP/1.1\r\nHost: example.com\r\n\r\n"
	ps := New(DefaultConfig())
	env := feedWhole(t, ps, req)

	wantEnv(t, env, "REQUEST_METHOD", "GET")
	wantEnv(t, env, "REQUEST_URI", "/")
	wantEnv(t, env, "PATH_INFO", "/")
	wantEnv(t, env, "HTTP_HOST", "example.com")
	wantEnv(t, env, "SERVER_NAME", "example.com")
	wantEnv(t, env, "SERVER_PORT", "80")
	wantEnv(t, env, "rack.url_scheme", "http")
	wantEnv(t, env, "QUERY_STRING", "")

	if !ps.KeepAlive() {
		t.Errorf("KeepAlive() = false, want true")
	}

	byteEnv := feedByByte(t, DefaultConfig(), req)
	for k, v := range env {
		if byteEnv[k] != v {
			t.Errorf("byte-at-a-time env[%s] = %q, want %q", k, byteEnv[k], v)
		}
	}
}

func TestHTTP09(t *testing.T) {
	ps := New(DefaultConfig())
	env := feedWhole(t, ps, "GET /index\r\n")

	wantEnv(t, env, "SERVER_PROTOCOL", "HTTP/0.9")
	if ps.HeadersSeen() {
		t.Errorf("HeadersSeen() = true, want false")
	}
	if ps.KeepAlive() {
		t.Errorf("KeepAlive() = true, want false")
	}
}

func TestOptionsAsterisk(t *testing.T) {
	ps := New(DefaultConfig())
	env := feedWhole(t, ps, "OPTIONS * HTTP/1.1\r\nHost: example.com\r\n\r\n")

	wantEnv(t, env, "REQUEST_METHOD", "OPTIONS")
	wantEnv(t, env, "REQUEST_URI", "*")
	wantEnv(t, env, "REQUEST_PATH", "")
	wantEnv(t, env, "PATH_INFO", "")
}

func TestChunkedBodyWithTrailer(t *testing.T) {
	const req = "POST /upload HTTP/1.1\r\n" +
		"Host: example.com\r\n" +
		"Transfer-Encoding: chunked\r\n" +
		"Trailer: X-Checksum\r\n" +
		"\r\n" +
		"5\r\nhello\r\n" +
		"6\r\n world\r\n" +
		"0\r\n" +
		"X-Checksum: abc123\r\n" +
		"\r\n"

	ps := New(DefaultConfig())
	env, err := ps.AddParse([]byte(req))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if env == nil {
		t.Fatalf("Parse: headers did not complete")
	}
	if ps.ContentLength() != -1 {
		t.Errorf("ContentLength() = %d, want -1 for chunked body", ps.ContentLength())
	}

	dst := make([]byte, 256)
	n, eof, err := ps.FilterBody(dst)
	if err != nil {
		t.Fatalf("FilterBody: %v", err)
	}
	if !eof {
		t.Fatalf("FilterBody: eof = false, want true (whole body was buffered)")
	}
	if got := string(dst[:n]); got != "hello world" {
		t.Errorf("FilterBody body = %q, want %q", got, "hello world")
	}
	wantEnv(t, ps.Headers(), "HTTP_X_CHECKSUM", "abc123")
}

func TestChunkedBodyFedInPieces(t *testing.T) {
	head := "POST /upload HTTP/1.1\r\nHost: example.com\r\nTransfer-Encoding: chunked\r\n\r\n"
	ps := New(DefaultConfig())
	env, err := ps.AddParse([]byte(head))
	if err != nil || env == nil {
		t.Fatalf("Parse headers: env=%v err=%v", env, err)
	}

	var body []byte
	pieces := []string{"3\r\nfoo", "\r\n3\r\nbar\r\n0\r\n\r\n"}
	for _, p := range pieces {
		if _, err := ps.AddParse([]byte(p)); err != nil {
			t.Fatalf("AddParse body chunk: %v", err)
		}
		dst := make([]byte, 64)
		n, _, err := ps.FilterBody(dst)
		if err != nil {
			t.Fatalf("FilterBody: %v", err)
		}
		body = append(body, dst[:n]...)
	}
	if !ps.BodyEOF() {
		t.Fatalf("BodyEOF() = false after consuming the final chunk")
	}
	if string(body) != "foobar" {
		t.Errorf("reassembled body = %q, want %q", body, "foobar")
	}
}

func TestForwardedHTTPS(t *testing.T) {
	const req = "GET / HTTP/1.1\r\nHost: example.com\r\nX-Forwarded-Proto: https\r\n\r\n"

	trusting := New(DefaultConfig())
	env := feedWhole(t, trusting, req)
	wantEnv(t, env, "rack.url_scheme", "https")
	wantEnv(t, env, "SERVER_PORT", "443")

	cfg := DefaultConfig()
	cfg.TrustXForwardedProto = false
	untrusting := New(cfg)
	env = feedWhole(t, untrusting, req)
	wantEnv(t, env, "rack.url_scheme", "http")
	wantEnv(t, env, "SERVER_PORT", "80")
}

func TestIPv6HostWithPort(t *testing.T) {
	ps := New(DefaultConfig())
	env := feedWhole(t, ps, "GET / HTTP/1.1\r\nHost: [::1]:8080\r\n\r\n")

	wantEnv(t, env, "SERVER_NAME", "[::1]")
	wantEnv(t, env, "SERVER_PORT", "8080")
}

func TestContentLengthZero(t *testing.T) {
	ps := New(DefaultConfig())
	env := feedWhole(t, ps, "POST /x HTTP/1.1\r\nHost: h\r\nContent-Length: 0\r\n\r\n")
	wantEnv(t, env, "CONTENT_LENGTH", "0")
	if ps.ContentLength() != 0 {
		t.Errorf("ContentLength() = %d, want 0", ps.ContentLength())
	}
	if !ps.BodyEOF() {
		t.Errorf("BodyEOF() = false, want true for a zero-length body")
	}
}

func TestMalformedContentLength(t *testing.T) {
	cases := []string{
		"Content-Length: \r\n",
		"Content-Length: +5\r\n",
		"Content-Length: 4 2\r\n",
		"Content-Length: abc\r\n",
	}
	for _, hdr := range cases {
		req := "POST /x HTTP/1.1\r\nHost: h\r\n" + hdr + "\r\n"
		ps := New(DefaultConfig())
		env, err := ps.AddParse([]byte(req))
		if err == nil {
			t.Errorf("%q: expected an error, got env=%v", hdr, env)
			continue
		}
		var pe *ParseError
		if !errors.As(err, &pe) {
			t.Errorf("%q: error = %v, want a *ParseError", hdr, err)
		}
	}
}

func TestChunkedTakesPrecedenceOverContentLength(t *testing.T) {
	const req = "POST /x HTTP/1.1\r\n" +
		"Host: h\r\n" +
		"Content-Length: 999\r\n" +
		"Transfer-Encoding: chunked\r\n" +
		"\r\n" +
		"2\r\nhi\r\n0\r\n\r\n"
	ps := New(DefaultConfig())
	if _, err := ps.AddParse([]byte(req)); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if ps.ContentLength() != -1 {
		t.Errorf("ContentLength() = %d, want -1 (chunked wins over Content-Length)", ps.ContentLength())
	}
	dst := make([]byte, 16)
	n, eof, err := ps.FilterBody(dst)
	if err != nil || !eof || string(dst[:n]) != "hi" {
		t.Errorf("FilterBody = (%q, %v, %v), want (\"hi\", true, nil)", dst[:n], eof, err)
	}
}

func TestDuplicateHostIgnoresSecond(t *testing.T) {
	ps := New(DefaultConfig())
	env := feedWhole(t, ps, "GET / HTTP/1.1\r\nHost: first.example\r\nHost: second.example\r\n\r\n")
	wantEnv(t, env, "HTTP_HOST", "first.example")
}

func TestConnectionLastTokenWins(t *testing.T) {
	ps := New(DefaultConfig())
	feedWhole(t, ps, "GET / HTTP/1.1\r\nHost: h\r\nConnection: keep-alive, close\r\n\r\n")
	if ps.KeepAlive() {
		t.Errorf("KeepAlive() = true, want false: \"close\" is the last Connection token")
	}

	ps2 := New(DefaultConfig())
	feedWhole(t, ps2, "GET / HTTP/1.1\r\nHost: h\r\nConnection: close, keep-alive\r\n\r\n")
	if !ps2.KeepAlive() {
		t.Errorf("KeepAlive() = false, want true: \"keep-alive\" is the last Connection token")
	}
}

func TestHeaderBlockTooLarge(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxHeaderLen = 32
	ps := New(cfg)
	req := "GET / HTTP/1.1\r\nHost: example.com\r\nX-Padding: 0123456789012345678901234567890123456789\r\n\r\n"
	_, err := ps.AddParse([]byte(req))
	var hle *HeaderTooLargeError
	if !errors.As(err, &hle) {
		t.Fatalf("error = %v, want a *HeaderTooLargeError", err)
	}
	// the parser is now sticky: further calls report the same failure.
	_, err2 := ps.AddParse(nil)
	if !errors.Is(err2, ErrHeaderTooLarge) {
		t.Errorf("second call error = %v, want ErrHeaderTooLarge", err2)
	}
}

func TestKeepaliveBudgetExhausted(t *testing.T) {
	n := 1
	cfg := DefaultConfig()
	cfg.KeepaliveRequests = &n
	ps := New(cfg)
	feedWhole(t, ps, "GET / HTTP/1.1\r\nHost: h\r\n\r\n")
	if !ps.Next() {
		t.Fatalf("Next() = false on the first of a 1-request budget")
	}
	ps.AddParse([]byte("GET / HTTP/1.1\r\nHost: h\r\n\r\n"))
	if ps.KeepAlive() {
		t.Errorf("KeepAlive() = true after the keep-alive budget was exhausted")
	}
}

func TestPostOnlyKeepAliveIneligible(t *testing.T) {
	ps := New(DefaultConfig())
	feedWhole(t, ps, "POST / HTTP/1.1\r\nHost: h\r\nContent-Length: 0\r\n\r\n")
	if ps.KeepAlive() {
		t.Errorf("KeepAlive() = true for POST, want false (only GET/HEAD are keep-alive eligible)")
	}
}

func TestAbsoluteURISetsHostAndIgnoresHeader(t *testing.T) {
	ps := New(DefaultConfig())
	env := feedWhole(t, ps, "GET http://origin.example/a/b?q=1 HTTP/1.1\r\nHost: other.example\r\n\r\n")
	wantEnv(t, env, "HTTP_HOST", "origin.example")
	wantEnv(t, env, "REQUEST_PATH", "/a/b")
	wantEnv(t, env, "QUERY_STRING", "q=1")
	wantEnv(t, env, "SERVER_NAME", "origin.example")
}
