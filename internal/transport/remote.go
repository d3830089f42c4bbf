// Package transport holds helpers shared by the websocket servers.
package transport

import (
	"net"
	"net/http"
	"strings"
)

func IsLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// Allowed reports whether r may reach a guarded endpoint.
func Allowed(r *http.Request, allowRemote bool) bool {
	return allowRemote || IsLoopbackRemote(r.RemoteAddr)
}
