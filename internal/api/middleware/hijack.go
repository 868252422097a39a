// internal/api/middleware/hijack.go
package middleware

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
)

// Hijack exposes the wrapped writer's Hijacker. gorilla/websocket asserts
// http.Hijacker directly on the writer it is handed.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	if r.status == http.StatusOK {
		r.status = http.StatusSwitchingProtocols
	}
	return h.Hijack()
}
