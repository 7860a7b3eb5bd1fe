package startup

import (
	"fmt"
	"os"
	"path/filepath"
)

// ServiceUnit describes the systemd unit that runs the monitor.
type ServiceUnit struct {
	User       string
	WorkingDir string
	ExecPath   string
	ConfigFile string
}

func (u ServiceUnit) Render() string {
	user := ""
	if u.User != "" {
		user = "User=" + u.User + "\n"
	}

	return fmt.Sprintf(`[Unit]
Description=Smart plug energy monitor
After=network-online.target
Wants=network-online.target

[Service]
Type=simple
%sWorkingDirectory=%s
ExecStart=%s -config-file %s
Restart=on-failure
RestartSec=5s

[Install]
WantedBy=multi-user.target
`, user, u.WorkingDir, u.ExecPath, u.ConfigFile)
}

// InstallService writes the unit file to servicePath.
func InstallService(servicePath string, unit ServiceUnit) error {
	if err := os.MkdirAll(filepath.Dir(servicePath), 0755); err != nil {
		return fmt.Errorf("failed to create service directory: %w", err)
	}
	return os.WriteFile(servicePath, []byte(unit.Render()), 0644)
}
