package config

import (
	"fmt"
	"os"
)

// WriteTemplate writes the example master config to path.
func WriteTemplate(path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(masterTemplate), 0o600)
}

const masterTemplate = `listen_addr = ":2000"
external_ip = "127.0.0.1"
database_path = "master.db"
log_dir = "logs"
metrics_addr = ""

tick_period_ms = 16
world_port_base = 3000
soft_cap = 8
hard_cap = 12

prestart_servers = false
prestart_zones = [0, 1000]

[commands]
world = []
chat = []
auth = []
`
