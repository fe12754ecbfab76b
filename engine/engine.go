package engine

import (
	"log/slog"
	"math"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/vsariola/hostcore"
)

type (
	// Engine runs one plugin instance. Process is called by the audio thread
	// once per cycle; everything else is for the control thread.
	Engine struct {
		plugin   hostcore.Plugin
		params   hostcore.ParameterPlugin
		programs hostcore.ProgramPlugin
		info     hostcore.PluginInfo

		paramInfos     []hostcore.ParameterInfo
		bindings       []binding
		programList    []hostcore.MIDIProgram
		program        atomic.Int32 // current MIDI program, -1 if none
		options        atomic.Uint32
		ctrlChannel    atomic.Int32
		active         atomic.Bool
		needsReset     atomic.Bool
		offline        atomic.Bool
		post           postState
		pendingLatency atomic.Int64 // latency waiting to be applied by Idle, -1 if none

		master sync.Mutex // lifecycle: activation, reconfiguration
		guard  Guard

		// owned by the audio thread, or by the control thread holding both
		// master and guard
		merger            *hostcore.Merger
		bufferSize        int
		ins, outs         [][]float32
		inView, outView   [][]float32
		queue             []hostcore.Event
		rtCalls           []rtCall
		latency           *Latency
		reportedLatency   int
		postProc          *PostProcessor
		nextBank          uint32
		allNotesOffSent   bool
		queueFullReported bool

		notes    *noteQueue
		notifier *Notifier
		notify   func(Notification)
		logger   *slog.Logger
		stats    stats
	}

	// Config configures a new Engine.
	Config struct {
		SampleRate float64
		BufferSize int
		// Options requested for the plugin. Only the options the plugin
		// supports are enabled.
		Options hostcore.Options
		// ControlChannel is the MIDI channel carrying host shortcuts and
		// program changes, or -1 for none.
		ControlChannel int8
		Offline        bool
		// MaxNotifications bounds the notifications of one cycle.
		MaxNotifications int
		Logger           *slog.Logger
		// Notify is called by Idle for every notification, after logging.
		Notify func(Notification)
	}

	// Stats are cumulative counters of an Engine.
	Stats struct {
		Cycles               uint64
		SubBlocks            uint64
		Contended            uint64
		TimingErrors         uint64
		DroppedEvents        uint64
		DroppedNotifications uint64
	}

	binding struct {
		channel atomic.Int32
		control atomic.Int32
	}

	postState struct {
		dryWet, volume, balanceLeft, balanceRight atomicFloat
	}

	atomicFloat struct{ bits atomic.Uint32 }

	// rtCall is a plugin call requested by an event, applied under the guard
	// right before the sub-block it belongs to is rendered.
	rtCall struct {
		program bool
		index   int
		value   float32
		frame   int
	}

	stats struct {
		cycles, subBlocks, timingErrors, droppedEvents atomic.Uint64
	}
)

// DefaultConfig returns the configuration used when nothing else is known.
func DefaultConfig() Config {
	return Config{SampleRate: 44100, BufferSize: 512, ControlChannel: 0}
}

// New creates an inactive engine for plugin, reading events from ports. Port i
// becomes MIDI input i of the plugin.
func New(plugin hostcore.Plugin, cfg Config, ports ...hostcore.Port) (*Engine, error) {
	if plugin == nil {
		return nil, errors.New("engine: nil plugin")
	}
	if cfg.BufferSize <= 0 {
		return nil, errors.Errorf("engine: invalid buffer size %d", cfg.BufferSize)
	}
	if cfg.ControlChannel < -1 || cfg.ControlChannel >= hostcore.MaxMIDIChannels {
		return nil, errors.Errorf("engine: invalid control channel %d", cfg.ControlChannel)
	}
	e := &Engine{
		plugin:   plugin,
		info:     plugin.Info(),
		merger:   hostcore.NewMerger(ports...),
		queue:    make([]hostcore.Event, 0, hostcore.MaxMIDIEvents),
		rtCalls:  make([]rtCall, 0, hostcore.MaxMIDIEvents),
		notes:    newNoteQueue(hostcore.MaxMIDIEvents),
		notifier: NewNotifier(cfg.MaxNotifications),
		notify:   cfg.Notify,
		logger:   cfg.Logger,
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	e.logger = e.logger.With("plugin", e.info.Name)
	if p, ok := plugin.(hostcore.ParameterPlugin); ok {
		e.params = p
		e.paramInfos = p.Parameters()
		e.bindings = make([]binding, len(e.paramInfos))
		for i, pi := range e.paramInfos {
			e.bindings[i].channel.Store(int32(pi.MIDIChannel))
			e.bindings[i].control.Store(int32(pi.MIDIControl))
		}
	}
	e.program.Store(-1)
	if p, ok := plugin.(hostcore.ProgramPlugin); ok {
		e.programs = p
		e.programList = p.MIDIPrograms()
	}
	e.options.Store(uint32(cfg.Options & e.info.Options))
	e.ctrlChannel.Store(int32(cfg.ControlChannel))
	e.offline.Store(cfg.Offline)
	e.post.store(DefaultPostState)
	e.pendingLatency.Store(-1)
	e.reportedLatency = plugin.LatencyFrames()
	e.allocate(cfg.BufferSize, e.reportedLatency)
	if r, ok := plugin.(hostcore.Reconfigurer); ok {
		r.BufferSizeChanged(cfg.BufferSize)
		if cfg.SampleRate > 0 {
			r.SampleRateChanged(cfg.SampleRate)
		}
	}
	return e, nil
}

// allocate (re)creates the working buffers. The caller holds master and
// guard, or is the constructor.
func (e *Engine) allocate(bufferSize, latency int) {
	e.bufferSize = bufferSize
	e.ins = makeBuffers(e.info.AudioIns, bufferSize)
	e.outs = makeBuffers(e.info.AudioOuts, bufferSize)
	e.inView = make([][]float32, e.info.AudioIns)
	e.outView = make([][]float32, e.info.AudioOuts)
	e.postProc = NewPostProcessor(bufferSize)
	e.setLatency(latency)
}

func (e *Engine) setLatency(frames int) {
	if frames > MaxLatencyFrames || frames < 0 {
		e.logger.Error("plugin latency out of range, compensation disabled", "frames", frames, "max", MaxLatencyFrames)
		frames = 0
	}
	e.latency = NewLatency(e.info.AudioIns, frames)
}

func makeBuffers(channels, frames int) [][]float32 {
	ret := make([][]float32, channels)
	for i := range ret {
		ret[i] = make([]float32, frames)
	}
	return ret
}

// Guard returns the guard of the plugin buffers. Hold it while changing the
// plugin state from the control thread.
func (e *Engine) Guard() *Guard { return &e.guard }

// Plugin returns the hosted plugin.
func (e *Engine) Plugin() hostcore.Plugin { return e.plugin }

// Info returns the plugin info read at construction.
func (e *Engine) Info() hostcore.PluginInfo { return e.info }

func (e *Engine) Options() hostcore.Options { return hostcore.Options(e.options.Load()) }

// SetOption enables or disables an option. Options the plugin does not
// support stay disabled.
func (e *Engine) SetOption(o hostcore.Options, enabled bool) {
	o &= e.info.Options
	for {
		old := e.options.Load()
		n := old &^ uint32(o)
		if enabled {
			n = old | uint32(o)
		}
		if e.options.CompareAndSwap(old, n) {
			return
		}
	}
}

func (e *Engine) ControlChannel() int8 { return int8(e.ctrlChannel.Load()) }

func (e *Engine) SetControlChannel(ch int8) error {
	if ch < -1 || ch >= hostcore.MaxMIDIChannels {
		return errors.Errorf("invalid control channel %d", ch)
	}
	e.ctrlChannel.Store(int32(ch))
	return nil
}

// sampleAccurate tells whether cycles are split at event boundaries.
func (e *Engine) sampleAccurate() bool {
	return e.Options()&hostcore.OptionFixedBuffers == 0 && e.info.Hints&hostcore.HintNeedsFixedBuffers == 0
}

func (e *Engine) Activate() {
	e.master.Lock()
	defer e.master.Unlock()
	if e.active.Load() {
		return
	}
	e.guard.Lock()
	if a, ok := e.plugin.(hostcore.Activator); ok {
		a.Activate()
	}
	e.latency.Clear()
	e.guard.Unlock()
	e.active.Store(true)
}

func (e *Engine) Deactivate() {
	e.master.Lock()
	defer e.master.Unlock()
	if !e.active.Load() {
		return
	}
	e.active.Store(false)
	e.notes.clear()
	e.guard.Lock()
	if a, ok := e.plugin.(hostcore.Activator); ok {
		a.Deactivate()
	}
	e.guard.Unlock()
}

func (e *Engine) Active() bool { return e.active.Load() }

// BufferSizeChanged reallocates the working buffers and the latency history.
func (e *Engine) BufferSizeChanged(frames int) error {
	if frames <= 0 {
		return errors.Errorf("invalid buffer size %d", frames)
	}
	e.master.Lock()
	defer e.master.Unlock()
	e.guard.Lock()
	e.allocate(frames, e.latency.Frames())
	e.guard.Unlock()
	if r, ok := e.plugin.(hostcore.Reconfigurer); ok {
		r.BufferSizeChanged(frames)
	}
	return nil
}

// SampleRateChanged informs the plugin and clears the latency history.
func (e *Engine) SampleRateChanged(rate float64) error {
	if rate <= 0 || math.IsNaN(rate) {
		return errors.Errorf("invalid sample rate %v", rate)
	}
	e.master.Lock()
	defer e.master.Unlock()
	e.guard.Lock()
	e.latency.Clear()
	e.guard.Unlock()
	if r, ok := e.plugin.(hostcore.Reconfigurer); ok {
		r.SampleRateChanged(rate)
	}
	return nil
}

// Reset requests silencing all notes at the start of the next cycle, e.g.
// after a transport relocation. Notes queued with SendNote and not yet played
// are dropped.
func (e *Engine) Reset() {
	e.notes.clear()
	e.needsReset.Store(true)
}

// SetOffline switches the render step to blocking acquisition of the guard,
// for faster than realtime rendering where waiting is fine.
func (e *Engine) SetOffline(offline bool) { e.offline.Store(offline) }

// Idle applies pending reconfigurations and hands the notifications of the
// finished cycles to the logger and the Notify callback. Call it regularly
// from the control thread.
func (e *Engine) Idle() {
	if l := e.pendingLatency.Swap(-1); l >= 0 {
		e.master.Lock()
		e.guard.Lock()
		if int(l) != e.latency.Frames() {
			e.setLatency(int(l))
		}
		e.guard.Unlock()
		e.master.Unlock()
	}
	e.notifier.Drain(e.handle)
}

func (e *Engine) handle(n Notification) {
	switch n.Kind {
	case NotifyTimingError:
		e.logger.Warn("event earlier than already rendered frames, clamped", "frame", n.Frame, "renderedUntil", n.Index)
	case NotifyEventSkipped:
		e.logger.Warn("event beyond end of cycle, skipped", "frame", n.Frame, "cycle", n.Index)
	case NotifyQueueFull:
		e.logger.Warn("native event queue full, event dropped", "frame", n.Frame)
	case NotifyOversizeCycle:
		e.logger.Warn("cycle longer than buffer size, rendered silence", "frames", n.Frame, "bufferSize", n.Index)
	case NotifyLatencyChanged:
		e.logger.Info("plugin latency changed", "frames", n.Index)
	default:
		e.logger.Debug("notification", "kind", n.Kind, "channel", n.Channel, "index", n.Index, "value", n.Value, "frame", n.Frame)
	}
	if e.notify != nil {
		e.notify(n)
	}
}

// LatencyFrames returns the latency currently compensated, which lags the
// latency reported by the plugin until the next Idle.
func (e *Engine) LatencyFrames() int {
	e.master.Lock()
	defer e.master.Unlock()
	return e.latency.Frames()
}

// Stats returns a snapshot of the counters.
func (e *Engine) Stats() Stats {
	return Stats{
		Cycles:               e.stats.cycles.Load(),
		SubBlocks:            e.stats.subBlocks.Load(),
		Contended:            e.guard.Contended(),
		TimingErrors:         e.stats.timingErrors.Load(),
		DroppedEvents:        e.stats.droppedEvents.Load(),
		DroppedNotifications: e.notifier.Dropped(),
	}
}

// PostState returns the current post-processing values.
func (e *Engine) PostState() PostState { return e.post.load() }

func (e *Engine) SetDryWet(v float32) {
	e.guard.Lock()
	e.post.dryWet.Store(clampFloat(v, 0, 1))
	e.guard.Unlock()
}

// SetVolume sets the output gain, 0..1.27.
func (e *Engine) SetVolume(v float32) {
	e.guard.Lock()
	e.post.volume.Store(clampFloat(v, 0, 1.27))
	e.guard.Unlock()
}

func (e *Engine) SetBalanceLeft(v float32) {
	e.guard.Lock()
	e.post.balanceLeft.Store(clampFloat(v, -1, 1))
	e.guard.Unlock()
}

func (e *Engine) SetBalanceRight(v float32) {
	e.guard.Lock()
	e.post.balanceRight.Store(clampFloat(v, -1, 1))
	e.guard.Unlock()
}

// Parameters returns the parameters of the plugin, with the current MIDI
// bindings.
func (e *Engine) Parameters() []hostcore.ParameterInfo {
	ret := make([]hostcore.ParameterInfo, len(e.paramInfos))
	copy(ret, e.paramInfos)
	for i := range ret {
		ret[i].MIDIChannel = int8(e.bindings[i].channel.Load())
		ret[i].MIDIControl = int16(e.bindings[i].control.Load())
	}
	return ret
}

// ParameterIndex finds a parameter by name.
func (e *Engine) ParameterIndex(name string) (int, bool) {
	for i, p := range e.paramInfos {
		if p.Name == name {
			return i, true
		}
	}
	return -1, false
}

// SetParameterValue sets a plugin parameter from a normalized 0..1 value.
func (e *Engine) SetParameterValue(index int, normalized float32) error {
	if index < 0 || index >= len(e.paramInfos) {
		return errors.Errorf("parameter index %d out of range", index)
	}
	v := e.paramInfos[index].Unnormalize(normalized)
	e.guard.Lock()
	e.params.SetParameterValue(index, v, 0)
	e.guard.Unlock()
	return nil
}

// MapParameter binds a parameter to a MIDI controller on a channel; control
// -1 removes the binding. Bank select and controllers of 120 and above are
// reserved.
func (e *Engine) MapParameter(index int, channel int8, control int16) error {
	if index < 0 || index >= len(e.bindings) {
		return errors.Errorf("parameter index %d out of range", index)
	}
	if channel < 0 || channel >= hostcore.MaxMIDIChannels {
		return errors.Errorf("invalid MIDI channel %d", channel)
	}
	if control >= int16(hostcore.ControlAllSoundOff) || control < -1 || (control >= 0 && hostcore.IsBankSelect(uint16(control))) {
		return errors.Errorf("controller %d cannot be mapped", control)
	}
	e.bindings[index].channel.Store(int32(channel))
	e.bindings[index].control.Store(int32(control))
	return nil
}

func (e *Engine) MIDIPrograms() []hostcore.MIDIProgram { return e.programList }

// MIDIProgram returns the current program index, -1 if none has been set.
func (e *Engine) MIDIProgram() int { return int(e.program.Load()) }

func (e *Engine) SetMIDIProgram(index int) error {
	if index < 0 || index >= len(e.programList) {
		return errors.Errorf("MIDI program %d out of range", index)
	}
	e.guard.Lock()
	e.programs.SetMIDIProgram(index)
	e.program.Store(int32(index))
	e.guard.Unlock()
	return nil
}

// SendNote queues a note to be played at the start of the next cycle.
// Velocity 0 releases the note. It returns false if the queue is full.
func (e *Engine) SendNote(channel, note, velocity uint8) bool {
	if channel >= hostcore.MaxMIDIChannels || note >= hostcore.MaxMIDINotes || velocity >= hostcore.MaxMIDIValue {
		return false
	}
	return e.notes.push(externalNote{channel: channel, note: note, velocity: velocity})
}

func (s *postState) load() PostState {
	return PostState{
		DryWet:       s.dryWet.Load(),
		Volume:       s.volume.Load(),
		BalanceLeft:  s.balanceLeft.Load(),
		BalanceRight: s.balanceRight.Load(),
	}
}

func (s *postState) store(p PostState) {
	s.dryWet.Store(p.DryWet)
	s.volume.Store(p.Volume)
	s.balanceLeft.Store(p.BalanceLeft)
	s.balanceRight.Store(p.BalanceRight)
}

func (f *atomicFloat) Load() float32   { return math.Float32frombits(f.bits.Load()) }
func (f *atomicFloat) Store(v float32) { f.bits.Store(math.Float32bits(v)) }

func clampFloat(v, lo, hi float32) float32 {
	switch {
	case v != v:
		return lo
	case v < lo:
		return lo
	case v > hi:
		return hi
	}
	return v
}
