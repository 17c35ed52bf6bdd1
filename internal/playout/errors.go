package playout

import "errors"

// ErrTransportClosed is the sentinel a Transport implementation should wrap
// when SendFrame is called after its underlying socket/session has gone
// away. The engine treats it like any other transient send error (counts
// toward the circuit breaker); it exists for callers that want to
// distinguish the reason in logs or metrics.
var ErrTransportClosed = errors.New("playout: transport closed")
