//go:build cgo

package vst

import (
	"bytes"
	"log/slog"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/vsariola/hostcore"
	"github.com/vsariola/hostcore/config"
	"github.com/vsariola/hostcore/engine"
	"pipelined.dev/audio/vst2"
)

// IdleInterval is how often the shell runs the engine's Idle.
const IdleInterval = 20 * time.Millisecond

// Shell hosts one engine instance as a VST2 plugin. The VST host calls
// ProcessEvents and Process on its audio thread; everything else runs on
// the control thread or the idle goroutine of the shell.
type Shell struct {
	engine  *engine.Engine
	input   *Input
	in, out [][]float32
	logger  *slog.Logger

	mu     sync.Mutex // protects config
	config *config.Config

	quit      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// New creates the plugin described by cfg, starts an engine for it and the
// idle goroutine of the engine.
func New(r *hostcore.Registry, cfg *config.Config, logger *slog.Logger) (*Shell, error) {
	if logger == nil {
		logger = slog.Default()
	}
	p, err := r.New(cfg.Plugin.Kind, cfg.Setup())
	if err != nil {
		return nil, err
	}
	s := &Shell{logger: logger, config: cfg, quit: make(chan struct{})}
	ec, err := cfg.EngineConfig(logger)
	if err != nil {
		return nil, err
	}
	ec.Notify = s.notify
	port := hostcore.NewEventBuffer(0, hostcore.MaxMIDIEvents)
	e, err := engine.New(p, ec, port)
	if err != nil {
		return nil, err
	}
	if err := cfg.Plugin.Apply(e); err != nil {
		return nil, err
	}
	s.engine = e
	s.input = NewInput(port)
	info := e.Info()
	s.in = make([][]float32, info.AudioIns)
	s.out = make([][]float32, info.AudioOuts)
	e.Activate()
	s.wg.Add(1)
	go s.idle()
	return s, nil
}

func (s *Shell) Engine() *engine.Engine { return s.engine }

func (s *Shell) idle() {
	defer s.wg.Done()
	ticker := time.NewTicker(IdleInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.engine.Idle()
		case <-s.quit:
			s.engine.Idle()
			return
		}
	}
}

// notify runs on the idle goroutine.
func (s *Shell) notify(n engine.Notification) {
	if n.Kind == engine.NotifyOversizeCycle {
		if err := s.engine.BufferSizeChanged(n.Frame); err != nil {
			s.logger.Error("could not grow buffers", "frames", n.Frame, "err", err)
		}
	}
}

// Process renders one cycle. Plugin inputs the host does not provide are
// silent and plugin outputs without a host channel are dropped.
func (s *Shell) Process(in, out vst2.FloatBuffer) {
	frames := out.Frames
	bindChannels(s.in, in.Channels, frames, in.Channel)
	outs := bindChannels(s.out, out.Channels, frames, out.Channel)
	s.engine.Process(s.in, outs, frames)
	s.input.Clear()
}

func (s *Shell) CanDo(pcds vst2.PluginCanDoString) vst2.CanDoResponse {
	switch pcds {
	case vst2.PluginCanReceiveEvents, vst2.PluginCanReceiveMIDIEvent:
		return vst2.YesCanDo
	}
	return vst2.NoCanDo
}

// Chunk returns the configuration of the instance, with the current host
// side state, as YAML.
func (s *Shell) Chunk() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.config.Plugin.Capture(s.engine)
	b, err := s.config.Marshal()
	if err != nil {
		s.logger.Error("could not save state", "err", err)
		return nil
	}
	return b
}

// SetChunk restores a state saved with Chunk. The plugin kind cannot change.
func (s *Shell) SetChunk(data []byte) error {
	c, err := config.Load(bytes.NewReader(data))
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.Plugin.Kind != s.config.Plugin.Kind {
		return errors.Errorf("saved state is for plugin %q, not %q", c.Plugin.Kind, s.config.Plugin.Kind)
	}
	o, err := hostcore.ParseOptions(c.Plugin.Options)
	if err != nil {
		return err
	}
	s.engine.SetOption(^hostcore.Options(0), false)
	s.engine.SetOption(o, true)
	if err := s.engine.SetControlChannel(c.Plugin.ControlChannel); err != nil {
		return err
	}
	if err := c.Plugin.Apply(s.engine); err != nil {
		return err
	}
	s.config = c
	return nil
}

// Close stops the idle goroutine and deactivates the engine.
func (s *Shell) Close() {
	s.closeOnce.Do(func() {
		close(s.quit)
		s.wg.Wait()
		s.engine.Deactivate()
	})
}

// Plugin describes the shell to the VST host.
func (s *Shell) Plugin(uniqueID [4]byte, version int32, vendor string) vst2.Plugin {
	info := s.engine.Info()
	p := vst2.Plugin{
		UniqueID:         uniqueID,
		Version:          version,
		InputChannels:    info.AudioIns,
		OutputChannels:   info.AudioOuts,
		Name:             info.Name,
		Vendor:           vendor,
		Category:         vst2.PluginCategoryEffect,
		ProcessFloatFunc: s.Process,
	}
	if info.Hints&hostcore.HintIsSynth != 0 {
		p.Category = vst2.PluginCategorySynth
		p.Flags = vst2.PluginIsSynth
	}
	return p
}

func (s *Shell) Dispatcher() vst2.Dispatcher {
	return vst2.Dispatcher{
		CanDoFunc:         s.CanDo,
		ProcessEventsFunc: s.input.ProcessEvents,
		CloseFunc:         s.Close,
		GetChunkFunc:      func(bool) []byte { return s.Chunk() },
		SetChunkFunc: func(data []byte, _ bool) {
			if err := s.SetChunk(data); err != nil {
				s.logger.Error("could not restore state", "err", err)
			}
		},
	}
}
