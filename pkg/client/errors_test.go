package client

import (
	"context"
	"errors"
	"net"
	"syscall"
	"testing"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassifyNetwork(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want NetworkKind
	}{
		{
			name: "dns failure",
			err:  &net.DNSError{Err: "no such host", Name: "collectionapi.metmuseum.org", IsNotFound: true},
			want: KindDNS,
		},
		{
			name: "connection reset",
			err:  &net.OpError{Op: "read", Err: syscall.ECONNRESET},
			want: KindReset,
		},
		{
			name: "deadline exceeded",
			err:  context.DeadlineExceeded,
			want: KindTimeout,
		},
		{
			name: "net timeout",
			err:  timeoutErr{},
			want: KindTimeout,
		},
		{
			name: "anything else",
			err:  errors.New("tls handshake broke"),
			want: KindOther,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyNetwork(tt.err)
			if got.Kind != tt.want {
				t.Errorf("classifyNetwork() kind = %s, want %s", got.Kind, tt.want)
			}
			if !errors.Is(got, tt.err) {
				t.Error("classifyNetwork() does not wrap the original error")
			}
		})
	}
}

func TestHTTPError_Error(t *testing.T) {
	err := &HTTPError{StatusCode: 404, Status: "404 Not Found"}
	want := "upstream http error: 404 Not Found"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestNetworkError_Unwrap(t *testing.T) {
	cause := errors.New("boom")
	err := &NetworkError{Kind: KindOther, Err: cause}
	if !errors.Is(err, cause) {
		t.Error("errors.Is() should find the wrapped cause")
	}
}
