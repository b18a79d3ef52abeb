package transmit

import (
	"bufio"
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bugradavut/dev-vizionmenu-sub013/pkg/canonical"
)

func testSigned() canonical.SignedHeaders {
	return canonical.SignedHeaders{
		Request: canonical.CanonicalRequest{Method: "POST", Path: "/v1/tx"},
		Headers: map[string]string{
			"ENVIRN":      "ESSAI",
			"APPRLINIT":   "SRV",
			"SIGNATRANSM": "sig",
		},
	}
}

func TestSendDeliversHeadersAndBody(t *testing.T) {
	var gotPath, gotEnv, gotInit string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotEnv = r.Header.Get("ENVIRN")
		gotInit = r.Header.Get("APPRLINIT")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	status, _, err := c.Send(context.Background(), testSigned(), []byte(`{"t":1}`))
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if gotPath != "/v1/tx" || gotEnv != "ESSAI" || gotInit != "SRV" {
		t.Fatalf("request not faithful: path=%q env=%q init=%q", gotPath, gotEnv, gotInit)
	}
	if string(gotBody) != `{"t":1}` {
		t.Fatalf("body mismatch: %q", gotBody)
	}
}

// The regulator matches the documented uppercase header names literally, so
// the client must bypass net/http's MIME canonicalization. A plain httptest
// handler cannot check this (the server side re-canonicalizes on parse), so
// this test reads the raw request bytes off the socket.
func TestSendPreservesLiteralHeaderNames(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	raw := make(chan string, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		r := bufio.NewReader(conn)
		var b strings.Builder
		for {
			line, err := r.ReadString('\n')
			if err != nil || line == "\r\n" {
				break
			}
			b.WriteString(line)
		}
		raw <- b.String()
		_, _ = conn.Write([]byte("HTTP/1.1 200 OK\r\nContent-Length: 0\r\n\r\n"))
	}()

	signed := canonical.SignedHeaders{
		Request: canonical.CanonicalRequest{Method: "POST", Path: "/v1/tx"},
		Headers: map[string]string{
			"ENVIRN":           "ESSAI",
			"IDSEV":            "SEV-100",
			"SIGNATRANSM":      "sig",
			"EMPRCERTIFTRANSM": "fp",
		},
	}
	c := NewClient("http://"+ln.Addr().String(), time.Second)
	if _, _, err := c.Send(context.Background(), signed, nil); err != nil {
		t.Fatalf("Send: %v", err)
	}

	head := <-raw
	for _, want := range []string{
		"ENVIRN: ESSAI",
		"IDSEV: SEV-100",
		"SIGNATRANSM: sig",
		"EMPRCERTIFTRANSM: fp",
	} {
		if !strings.Contains(head, want) {
			t.Fatalf("wire is missing literal header %q:\n%s", want, head)
		}
	}
	if strings.Contains(head, "Idsev:") || strings.Contains(head, "Signatransm:") {
		t.Fatalf("header names were canonicalized on the wire:\n%s", head)
	}
}

func TestSendReturnsResponseBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"mess":"entete invalide"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	status, body, err := c.Send(context.Background(), testSigned(), nil)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if status != http.StatusBadRequest || string(body) != `{"mess":"entete invalide"}` {
		t.Fatalf("unexpected outcome: %d %q", status, body)
	}
}

func TestSendTimeoutIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 20*time.Millisecond)
	_, _, err := c.Send(context.Background(), testSigned(), nil)
	if err == nil {
		t.Fatalf("expected a transport error on timeout")
	}
}

func TestSendCancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	c := NewClient(srv.URL, time.Second)
	if _, _, err := c.Send(ctx, testSigned(), nil); err == nil {
		t.Fatalf("expected an error when the context is cancelled mid-send")
	}
}
