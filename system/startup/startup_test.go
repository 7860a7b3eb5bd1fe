package startup

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstallService(t *testing.T) {
	path := filepath.Join(t.TempDir(), "systemd", "plug-monitor.service")
	unit := ServiceUnit{
		User:       "pi",
		WorkingDir: "/home/pi/plug-monitor",
		ExecPath:   "/usr/local/bin/plug-monitor",
		ConfigFile: "/etc/plug-monitor/config.json",
	}

	require.NoError(t, InstallService(path, unit))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	contents := string(data)
	assert.Contains(t, contents, "User=pi\n")
	assert.Contains(t, contents, "WorkingDirectory=/home/pi/plug-monitor\n")
	assert.Contains(t, contents, "ExecStart=/usr/local/bin/plug-monitor -config-file /etc/plug-monitor/config.json\n")
	assert.Contains(t, contents, "WantedBy=multi-user.target")
}

func TestRender_NoUser(t *testing.T) {
	unit := ServiceUnit{WorkingDir: "/srv", ExecPath: "/srv/plug-monitor", ConfigFile: "config.json"}
	assert.NotContains(t, unit.Render(), "User=")
}
