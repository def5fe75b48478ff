package api

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/cfmgr/pkg/objectstore"
	"github.com/marmos91/cfmgr/pkg/objectstore/memory"
)

func TestServerLifecycle(t *testing.T) {
	objects := objectstore.New(map[string]objectstore.Bucket{"assets": memory.New()})

	srv, err := NewServer(APIConfig{Port: 18080}, Dependencies{ObjectStore: objects, Version: "test"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(ctx) }()

	url := fmt.Sprintf("http://localhost:%d/api/v1/health", srv.port)
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 50*time.Millisecond)

	assert.Equal(t, 18080, srv.Port())

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop")
	}

	// Stop after shutdown is a no-op.
	assert.NoError(t, srv.Stop(context.Background()))
}

func TestNewServerAppliesDefaults(t *testing.T) {
	srv, err := NewServer(APIConfig{}, Dependencies{})
	require.NoError(t, err)

	assert.Equal(t, ":8080", srv.http.Addr)
	assert.Equal(t, 30*time.Second, srv.http.ReadTimeout)
	assert.Equal(t, 60*time.Second, srv.http.IdleTimeout)
}
