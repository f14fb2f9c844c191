package api

import (
	"encoding/json"
	stdlog "log"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/skycoin/skycoin/src/util/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meshwire/meshwire/pkg/frame"
	"github.com/meshwire/meshwire/pkg/link"
	"github.com/meshwire/meshwire/pkg/mesh"
	"github.com/meshwire/meshwire/pkg/routing"
)

func TestMain(m *testing.M) {
	loggingLevel, ok := os.LookupEnv("TEST_LOGGING_LEVEL")
	if ok {
		lvl, err := logging.LevelFromString(loggingLevel)
		if err != nil {
			stdlog.Fatal(err)
		}
		logging.SetLevel(lvl)
	} else {
		logging.Disable()
	}

	os.Exit(m.Run())
}

func newTestAPI(t *testing.T, logs link.LogStore) (*API, *mesh.Network) {
	t.Helper()

	m := link.NewMedium()
	addr := frame.Addr{0xAA, 0, 0, 0, 0, 1}

	cfg := mesh.DefaultConfig()
	cfg.LogStore = logs
	n, err := mesh.New(cfg, m.NewLink(addr))
	require.NoError(t, err)
	t.Cleanup(func() { n.Close() }) // nolint: errcheck

	return New(n, logs), n
}

func TestStatus(t *testing.T) {
	a, n := newTestAPI(t, nil)

	srv := httptest.NewServer(a)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got Summary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, n.Addr(), got.Addr)
	assert.Equal(t, mesh.DefaultNetworkID, got.NetworkID)
	assert.Equal(t, 0, got.Routes)
}

func TestRoutesEmpty(t *testing.T) {
	a, _ := newTestAPI(t, nil)

	srv := httptest.NewServer(a)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/routes")
	require.NoError(t, err)
	defer resp.Body.Close()

	var got []routing.Entry
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Empty(t, got)
}

func TestPeerLog(t *testing.T) {
	logs := link.InMemoryLogStore()
	a, _ := newTestAPI(t, logs)

	peer := frame.Addr{0xAA, 0, 0, 0, 0, 2}
	entry := &link.LogEntry{SentFrames: 3, SentBytes: 717}
	require.NoError(t, logs.Record(peer, entry))

	srv := httptest.NewServer(a)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/log/" + peer.String())
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got link.LogEntry
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, *entry, got)

	resp, err = http.Get(srv.URL + "/log/not-an-addr")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPeerLogDisabled(t *testing.T) {
	a, _ := newTestAPI(t, nil)

	srv := httptest.NewServer(a)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/log/aa:00:00:00:00:02")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
