// Package relaytest starts an in-memory relay for tests.
package relaytest

import (
	"net/http/httptest"
	"testing"

	"cipherchat/internal/relay"
	"cipherchat/internal/relay/server"
	"cipherchat/internal/store"
)

// Start runs a relay backed by in-memory badger and returns a client for
// it. Everything is torn down when the test ends.
func Start(t testing.TB) *relay.HTTP {
	t.Helper()
	st, err := store.OpenBadger("", nil)
	if err != nil {
		t.Fatalf("open relay store: %v", err)
	}
	srv := server.New(st, nil)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		srv.Close()
		ts.Close()
		_ = st.Close()
	})
	return relay.NewHTTP(ts.URL, ts.Client(), nil)
}
