package datadog

import (
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGauge_NoClient(t *testing.T) {
	require.NoError(t, Close())
	assert.NotPanics(t, func() {
		Gauge("plug.power_w", 1)
		Incr("plug.failures")
	})
}

func TestGauge_EmitsToAgent(t *testing.T) {
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer conn.Close()

	InitMetrics(conn.LocalAddr().String(), "plug_monitor.", []string{"env:test"})
	defer func() { _ = Close() }()

	Gauge("power_w", 92.5)
	require.NoError(t, dogstatsd.Flush())

	buf := make([]byte, 1024)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	n, _, err := conn.ReadFrom(buf)
	require.NoError(t, err)

	line := string(buf[:n])
	assert.True(t, strings.HasPrefix(line, "plug_monitor.power_w:92.5|g"), line)
	assert.Contains(t, line, "env:test")
}
