package configs

import (
	"flag"
	"os"

	"github.com/hilthontt/rendezvous/internal/infrastructure/env"
)

// DetermineConfigPath returns the first config file found via the -config
// flag, RENDEZVOUS_CONFIG, or the usual locations. An empty result means the
// defaults and environment alone configure the service.
func DetermineConfigPath() string {
	var configPath string

	flag.StringVar(&configPath, "config", "", "path to config file")
	flag.Parse()

	if configPath == "" {
		configPath = env.GetString("RENDEZVOUS_CONFIG", "")
	}

	if configPath == "" {
		configPath = firstExisting([]string{
			"./config.yaml",
			"./config.yml",
			"./tmp/config.yaml",
			"../../config.yaml",
			"/etc/rendezvous/config.yaml",
			"/app/config.yaml",
		})
	}

	return configPath
}

func firstExisting(candidates []string) string {
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}
