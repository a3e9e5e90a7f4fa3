package version

import (
	"fmt"
	"runtime/debug"
)

func Get() string {
	var revision string
	var modified bool

	buildInfo, ok := debug.ReadBuildInfo()
	if !ok {
		return "unavailable"
	}

	for _, setting := range buildInfo.Settings {
		switch setting.Key {
		case "vcs.revision":
			revision = setting.Value
		case "vcs.modified":
			modified = setting.Value == "true"
		}
	}

	if revision == "" {
		return "unavailable"
	}

	if modified {
		return fmt.Sprintf("%s-dirty", revision)
	}

	return revision
}
