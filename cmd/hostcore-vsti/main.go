//go:build plugin

package main

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/vsariola/hostcore/cmd"
	"github.com/vsariola/hostcore/config"
	"github.com/vsariola/hostcore/version"
	"github.com/vsariola/hostcore/vst"
	"pipelined.dev/audio/vst2"
)

var (
	pluginID      = [4]byte{'h', 'c', 'o', 'r'}
	pluginVersion = int32(100)
	pluginVendor  = "vsariola/hostcore"
)

// loadConfig reads hostcore/vsti.yml from the user config directory, falling
// back to the defaults.
func loadConfig(logger *slog.Logger) *config.Config {
	dir, err := os.UserConfigDir()
	if err != nil {
		return config.Default()
	}
	path := filepath.Join(dir, "hostcore", "vsti.yml")
	if _, err := os.Stat(path); err != nil {
		return config.Default()
	}
	c, err := config.LoadFile(path)
	if err != nil {
		logger.Error("could not load config, using defaults", "err", err)
		return config.Default()
	}
	return c
}

func init() {
	vst2.PluginAllocator = func(h vst2.Host) (vst2.Plugin, vst2.Dispatcher) {
		logger := cmd.NewLogger(false)
		logger.Info("starting", version.Read().LogAttrs()...)
		registry, err := cmd.NewRegistry()
		if err != nil {
			logger.Error("could not register plugins", "err", err)
			return vst2.Plugin{}, vst2.Dispatcher{}
		}
		shell, err := vst.New(registry, loadConfig(logger), logger)
		if err != nil {
			logger.Error("could not create plugin", "err", err)
			registry.Shutdown()
			return vst2.Plugin{}, vst2.Dispatcher{}
		}
		d := shell.Dispatcher()
		d.CloseFunc = func() {
			shell.Close()
			registry.Shutdown()
		}
		return shell.Plugin(pluginID, pluginVersion, pluginVendor), d
	}
}

func main() {}
