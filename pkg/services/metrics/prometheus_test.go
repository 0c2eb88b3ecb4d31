package metrics

import (
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/nspcc-dev/arcgo/pkg/arc"
	"github.com/nspcc-dev/arcgo/pkg/config"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestNewPrometheusService(t *testing.T) {
	require.Nil(t, NewPrometheusService(config.BasicService{}, nil))

	s := NewPrometheusService(config.BasicService{Addresses: []string{":0"}}, zaptest.NewLogger(t))
	require.NotNil(t, s)
	require.Equal(t, "Prometheus", s.Name())
	// Disabled service neither starts nor stops anything.
	s.Start()
	s.ShutDown()
}

func TestPrometheusService_Serve(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	s := NewPrometheusService(config.BasicService{Enabled: true, Addresses: []string{addr}}, zaptest.NewLogger(t))
	s.Start()
	t.Cleanup(s.ShutDown)

	m, err := arc.New(config.ManagerConfiguration{}, nil)
	require.NoError(t, err)
	require.NoError(t, m.Using(m.Allocate("metrics", nil), func(*arc.Slot) error { return nil }))

	var body string
	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/metrics")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return false
		}
		body = string(b)
		return true
	}, 5*time.Second, 50*time.Millisecond)
	require.True(t, strings.Contains(body, "arcgo_finalizations_total"))
	require.True(t, strings.Contains(body, "arcgo_live_objects"))
}
