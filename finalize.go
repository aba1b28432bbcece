// Copyright 2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a source-available license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

package httpparse

import (
	"strings"

	"github.com/intuitivelabs/bytescase"
)

// lowerASCII folds s to lower case byte by byte, reusing the bytescase
// package genericEnvKey uses for header names, rather than pulling
// in a separate case-folding routine for host/scheme text.
func lowerASCII(s string) string {
	out := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		out[i] = bytescase.ByteToLower(s[i])
	}
	return string(out)
}

// splitHostPort separates a "host[:port]" or bracketed IPv6
// "[literal]:port" string into its components. Unlike net.SplitHostPort
// it never errors: a bare host with no port returns port == "".
func splitHostPort(hostport string) (host, port string) {
	if len(hostport) > 0 && hostport[0] == '[' {
		end := strings.IndexByte(hostport, ']')
		if end < 0 {
			return hostport, ""
		}
		host = hostport[:end+1]
		rest := hostport[end+1:]
		if len(rest) > 1 && rest[0] == ':' {
			port = rest[1:]
		}
		return host, port
	}
	if i := strings.LastIndexByte(hostport, ':'); i >= 0 {
		return hostport[:i], hostport[i+1:]
	}
	return hostport, ""
}

// isSchemeToken reports whether s matches the URI scheme grammar
// (ALPHA *( ALPHA / DIGIT / "+" / "-" / "." )), used to tell an
// absolute-form request-target ("http://host/path") apart from an
// origin-form one containing a stray "://" inside its path or query.
func isSchemeToken(s string) bool {
	if len(s) == 0 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9' && i > 0:
		case (c == '+' || c == '-' || c == '.') && i > 0:
		default:
			return false
		}
	}
	return true
}

// splitRequestTarget decomposes a raw Request-URI (already known not to
// be the bare "*" asterisk-form) into scheme/host (set only for
// absolute-form), path, query and fragment.
func splitRequestTarget(uriRaw []byte) (scheme, host, path, query, fragment string) {
	raw := string(uriRaw)
	rest := raw

	if idx := strings.Index(raw, "://"); idx > 0 && isSchemeToken(raw[:idx]) {
		scheme = lowerASCII(raw[:idx])
		rest = raw[idx+3:]
		cut := strings.IndexAny(rest, "/?#")
		if cut < 0 {
			return scheme, lowerASCII(rest), "/", "", ""
		}
		host = lowerASCII(rest[:cut])
		rest = rest[cut:]
	}

	if h := strings.IndexByte(rest, '#'); h >= 0 {
		fragment = rest[h+1:]
		rest = rest[:h]
	}
	if q := strings.IndexByte(rest, '?'); q >= 0 {
		query = rest[q+1:]
		rest = rest[:q]
	}
	path = rest
	if path == "" {
		path = "/"
	}
	return scheme, host, path, query, fragment
}

// negotiateScheme implements the forwarded-proto trust rules: with
// trust disabled the scheme is always http; otherwise X-Forwarded-Ssl
// wins over X-Forwarded-Proto, and an unrecognized or absent forwarded
// header falls back to http.
func negotiateScheme(ps *ParserState) (scheme, port string) {
	if !ps.cfg.TrustXForwardedProto {
		return "http", ""
	}
	if v, ok := ps.env["HTTP_X_FORWARDED_SSL"]; ok && bytescase.CmpEq([]byte(v), []byte("on")) {
		return "https", "443"
	}
	if v, ok := ps.env["HTTP_X_FORWARDED_PROTO"]; ok {
		if len(v) >= 5 {
			if _, match := bytescase.Prefix([]byte("https"), []byte(v)); match {
				return "https", "443"
			}
		}
	}
	return "http", ""
}

// finalizeEnv is the Environment Finalizer: it runs exactly once, right
// after the header block ends (bodyless or not), and fills in the
// derived keys that depend on the complete header set rather than any
// single header.
func finalizeEnv(ps *ParserState) {
	env := ps.env

	if _, ok := env["rack.url_scheme"]; !ok {
		scheme, port := negotiateScheme(ps)
		env["rack.url_scheme"] = scheme
		if port != "" {
			env["SERVER_PORT"] = port
		}
	}

	if _, ok := env["SERVER_NAME"]; !ok {
		host := env["HTTP_HOST"]
		if host == "" {
			env["SERVER_NAME"] = "localhost"
		} else {
			name, port := splitHostPort(host)
			env["SERVER_NAME"] = name
			if port != "" {
				env["SERVER_PORT"] = port
			}
		}
	}

	if _, ok := env["SERVER_PORT"]; !ok {
		if env["rack.url_scheme"] == "https" {
			env["SERVER_PORT"] = "443"
		} else {
			env["SERVER_PORT"] = "80"
		}
	}

	if !ps.flags.has(flagHasHeader) {
		env["SERVER_PROTOCOL"] = "HTTP/0.9"
	}

	if _, ok := env["QUERY_STRING"]; !ok {
		env["QUERY_STRING"] = ""
	}
}
