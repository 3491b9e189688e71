package httpproto

import "testing"

func TestParseBasicRequest(t *testing.T) {
	raw := "GET /index.html HTTP/1.1\r\nHost: example.com\r\nAccept-Encoding: gzip\r\n\r\n"
	req, consumed, err := Parse([]byte(raw))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if consumed != len(raw) {
		t.Fatalf("consumed = %d, want %d", consumed, len(raw))
	}
	if req.Method != "GET" || req.URI != "/index.html" || req.Version != "HTTP/1.1" {
		t.Fatalf("unexpected request line: %+v", req)
	}
	if got := req.Header("host"); got != "example.com" {
		t.Fatalf("Header(host) = %q, want example.com (lookup must be case-insensitive)", got)
	}
	if !req.KeepAlive {
		t.Fatal("HTTP/1.1 without Connection: close should default to keep-alive")
	}
}

func TestParseIncompleteReturnsErrIncomplete(t *testing.T) {
	_, _, err := Parse([]byte("GET / HTTP/1.1\r\nHost: x"))
	if err != ErrIncomplete {
		t.Fatalf("got %v, want ErrIncomplete", err)
	}
}

func TestParseMalformedRequestLine(t *testing.T) {
	_, _, err := Parse([]byte("GET\r\n\r\n"))
	pe, ok := err.(*ParseError)
	if !ok || pe.Kind != Malformed {
		t.Fatalf("got %v, want *ParseError{Kind: Malformed}", err)
	}
}

func TestParseUnsupportedVersion(t *testing.T) {
	_, _, err := Parse([]byte("GET / HTTP/2.0\r\n\r\n"))
	pe, ok := err.(*ParseError)
	if !ok || pe.Kind != UnsupportedVersion {
		t.Fatalf("got %v, want *ParseError{Kind: UnsupportedVersion}", err)
	}
}

func TestDeriveKeepAliveHTTP10(t *testing.T) {
	req, _, err := Parse([]byte("GET / HTTP/1.0\r\n\r\n"))
	if err != nil {
		t.Fatal(err)
	}
	if req.KeepAlive {
		t.Fatal("HTTP/1.0 without Connection: keep-alive should default to close")
	}

	req2, _, err := Parse([]byte("GET / HTTP/1.0\r\nConnection: keep-alive\r\n\r\n"))
	if err != nil {
		t.Fatal(err)
	}
	if !req2.KeepAlive {
		t.Fatal("HTTP/1.0 with Connection: keep-alive should stay open")
	}
}

func TestDeriveKeepAliveHTTP11Close(t *testing.T) {
	req, _, err := Parse([]byte("GET / HTTP/1.1\r\nConnection: close\r\n\r\n"))
	if err != nil {
		t.Fatal(err)
	}
	if req.KeepAlive {
		t.Fatal("HTTP/1.1 with Connection: close should close")
	}
}

func TestParsePipelinedRequestsConsumeExactBoundary(t *testing.T) {
	first := "GET /a HTTP/1.1\r\n\r\n"
	second := "GET /b HTTP/1.1\r\n\r\n"
	buf := []byte(first + second)

	req1, n1, err := Parse(buf)
	if err != nil {
		t.Fatal(err)
	}
	if req1.URI != "/a" || n1 != len(first) {
		t.Fatalf("first request: uri=%q consumed=%d", req1.URI, n1)
	}

	req2, n2, err := Parse(buf[n1:])
	if err != nil {
		t.Fatal(err)
	}
	if req2.URI != "/b" || n2 != len(second) {
		t.Fatalf("second request: uri=%q consumed=%d", req2.URI, n2)
	}
}
