package transport

import (
	"net/http/httptest"
	"testing"
)

func TestIsLoopbackRemote(t *testing.T) {
	cases := map[string]bool{
		"127.0.0.1:5555": true,
		"[::1]:80":       true,
		"::1":            true,
		"10.0.0.4:80":    false,
		"example.com:80": false,
		"":               false,
	}
	for addr, want := range cases {
		if got := IsLoopbackRemote(addr); got != want {
			t.Fatalf("%q: got %v want %v", addr, got, want)
		}
	}
}

func TestAllowed(t *testing.T) {
	r := httptest.NewRequest("GET", "/v1/control", nil)
	r.RemoteAddr = "192.168.1.20:4000"
	if Allowed(r, false) {
		t.Fatalf("remote request must be refused by default")
	}
	if !Allowed(r, true) {
		t.Fatalf("allow_remote should admit remote requests")
	}
}
