// Package version describes the running hostcore build.
package version

import (
	"fmt"
	"os"
	"runtime"
	"runtime/debug"
	"strings"
)

// Name is the program name reported with the version.
const Name = "hostcore"

// Version can be set at build time:
// go build -ldflags "-X github.com/vsariola/hostcore/version.Version=$(git describe --dirty)"
var Version string

// Info is what the commands print for -v and log at startup.
type Info struct {
	Program   string // executable name, e.g. hostcore-render
	Version   string // empty for development builds
	Revision  string // short VCS revision, with a -dirty suffix if modified
	GoVersion string
	Host      string // machine the program runs on
}

// Read describes the running program.
func Read() Info {
	bi, ok := debug.ReadBuildInfo()
	i := fromBuildInfo(bi, ok)
	i.Program = Name
	if len(os.Args) > 0 {
		i.Program = baseName(os.Args[0])
	}
	if h, err := os.Hostname(); err == nil {
		i.Host = h
	}
	return i
}

func fromBuildInfo(bi *debug.BuildInfo, ok bool) Info {
	i := Info{Version: Version, GoVersion: runtime.Version()}
	if !ok || bi == nil {
		return i
	}
	if i.Version == "" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		i.Version = bi.Main.Version
	}
	modified := false
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			i.Revision = s.Value
		case "vcs.modified":
			modified = s.Value == "true"
		}
	}
	if len(i.Revision) > 7 {
		i.Revision = i.Revision[:7]
	}
	if i.Revision != "" && modified {
		i.Revision += "-dirty"
	}
	return i
}

func baseName(path string) string {
	if k := strings.LastIndexAny(path, `/\`); k >= 0 {
		path = path[k+1:]
	}
	return strings.TrimSuffix(path, ".exe")
}

// String formats the info as e.g.
// "hostcore-render v0.3.0 (3f2a9c1-dirty, go1.23.8) on studio".
func (i Info) String() string {
	var b strings.Builder
	b.WriteString(i.Program)
	if i.Program != Name && !strings.HasPrefix(i.Program, Name) {
		fmt.Fprintf(&b, " (%s)", Name)
	}
	v := i.Version
	if v == "" {
		v = "devel"
	}
	fmt.Fprintf(&b, " %s (", v)
	if i.Revision != "" {
		fmt.Fprintf(&b, "%s, ", i.Revision)
	}
	b.WriteString(i.GoVersion + ")")
	if i.Host != "" {
		fmt.Fprintf(&b, " on %s", i.Host)
	}
	return b.String()
}

// LogAttrs returns the info as key value pairs for slog.
func (i Info) LogAttrs() []any {
	return []any{"program", i.Program, "version", i.Version, "revision", i.Revision, "go", i.GoVersion, "host", i.Host}
}
