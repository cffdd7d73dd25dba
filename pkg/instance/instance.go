// Package instance names the running process for logs and lock ownership.
package instance

import (
	"os"
	"strings"

	"github.com/angelmondragon/containerflow/pkg/env"
)

var idEnvVars = []string{"CONTAINERFLOW_INSTANCE_ID", "DYNO", "HOSTNAME"}

// ID returns the first configured instance identifier, then the host name,
// then "local".
func ID() string {
	for _, key := range idEnvVars {
		if id := strings.TrimSpace(env.Get(key, "")); id != "" {
			return id
		}
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "local"
}
