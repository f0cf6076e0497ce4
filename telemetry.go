package agent

import (
	"net/http"
	"sync/atomic"

	"github.com/goccy/go-json"
)

// SessionInfo describes the session a loop currently owns.
type SessionInfo struct {
	Mode      string   `json:"mode"`
	ClientID  string   `json:"client_id"`
	Broker    string   `json:"broker"`
	Username  string   `json:"username"`
	Connected bool     `json:"connected"`
	Topics    []string `json:"topics"`
	Failures  int64    `json:"failures"`
	Cycles    int64    `json:"cycles"`
}

// Telemetry exposes the state of a running loop. The loop is the only
// writer; readers such as the HTTP handler only load.
type Telemetry struct {
	mode     atomic.Value
	session  atomic.Pointer[Session]
	failures atomic.Int64
	cycles   atomic.Int64
}

func (t *Telemetry) setMode(m string)      { t.mode.Store(m) }
func (t *Telemetry) setSession(s *Session) { t.session.Store(s) }
func (t *Telemetry) setFailures(n int)     { t.failures.Store(int64(n)) }
func (t *Telemetry) setCycles(n int)       { t.cycles.Store(int64(n)) }

// Info returns a snapshot of the current session.
func (t *Telemetry) Info() SessionInfo {
	info := SessionInfo{
		Topics:   []string{},
		Failures: t.failures.Load(),
		Cycles:   t.cycles.Load(),
	}

	if m, ok := t.mode.Load().(string); ok {
		info.Mode = m
	}

	if s := t.session.Load(); s != nil {
		info.ClientID = s.ClientID()
		info.Broker = s.Broker()
		info.Username = s.username
		info.Connected = s.IsConnected()
		info.Topics = s.Topics()
	}

	return info
}

// Handler returns a http.Handler that exposes the current session information
func (t *Telemetry) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(t.Info())
	})
}
