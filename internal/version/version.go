// Package version reports the build version of the manager.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
)

// Set at build time, for example:
//
//	-ldflags "-X github.com/adamgunderson/FMOS-LoadAvgCheck-Manager/internal/version.Version=v1.2.0"
var (
	Version = ""
	Commit  = ""
	Date    = ""
)

const devVersion = "0.0.0-dev"

var readBuildInfo = debug.ReadBuildInfo

// String returns the injected version, else the module version from the
// build info, else a development placeholder. A leading "v" is dropped.
func String() string {
	v := strings.TrimSpace(Version)
	if v == "" {
		if info, ok := readBuildInfo(); ok && info != nil {
			if mv := strings.TrimSpace(info.Main.Version); mv != "(devel)" {
				v = mv
			}
		}
	}
	if v == "" {
		v = devVersion
	}
	return strings.TrimPrefix(v, "v")
}

// Detailed returns the version with commit, build date and Go runtime.
func Detailed() string {
	var extra []string
	if c := strings.TrimSpace(Commit); c != "" {
		if len(c) > 12 {
			c = c[:12]
		}
		extra = append(extra, "commit "+c)
	}
	if d := strings.TrimSpace(Date); d != "" {
		extra = append(extra, "built "+d)
	}
	extra = append(extra, runtime.Version(), runtime.GOOS+"/"+runtime.GOARCH)
	return fmt.Sprintf("%s (%s)", String(), strings.Join(extra, ", "))
}
