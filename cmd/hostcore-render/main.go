package main

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"github.com/Masterminds/sprig"
	"github.com/pkg/errors"
	"github.com/vsariola/hostcore"
	"github.com/vsariola/hostcore/cmd"
	"github.com/vsariola/hostcore/config"
	"github.com/vsariola/hostcore/engine"
	"github.com/vsariola/hostcore/gomidi"
	"github.com/vsariola/hostcore/oto"
	"github.com/vsariola/hostcore/rpc"
	"github.com/vsariola/hostcore/version"
)

const reportTemplate = `{{ .File }}: {{ .Frames }} frames ({{ printf "%.2f" .Seconds }} s), {{ .Events }} events
  plugin   {{ .Plugin }} [{{ .Options | join "|" | default "no options" }}]
  latency  {{ .Latency }} frames
  peak     {{ round (index .Volume.Peak 0) 1 }} / {{ round (index .Volume.Peak 1) 1 }} dB
  average  {{ round (index .Volume.Average 0) 1 }} / {{ round (index .Volume.Average 1) 1 }} dB
  cycles   {{ .Stats.Cycles }} ({{ .Stats.SubBlocks }} sub-blocks, {{ .Stats.Contended }} contended)
{{- if or .Stats.TimingErrors .Stats.DroppedEvents .Stats.DroppedNotifications }}
  problems {{ .Stats.TimingErrors }} timing errors, {{ .Stats.DroppedEvents }} dropped events, {{ .Stats.DroppedNotifications }} dropped notifications
{{- end }}
`

type report struct {
	File    string
	Frames  int
	Seconds float64
	Events  int
	Plugin  string
	Options []string
	Latency int
	Volume  hostcore.Volume
	Stats   engine.Stats
}

func main() {
	stdout := flag.Bool("s", false, "Do not write files; write to standard output instead.")
	help := flag.Bool("h", false, "Show help.")
	directory := flag.String("o", "", "Directory where to output all files. The directory and its parents are created if needed. By default, everything is placed in the working directory.")
	play := flag.Bool("p", false, "Play the rendered audio (default behaviour when no other output is defined).")
	rawOut := flag.Bool("r", false, "Output the rendered audio as .raw file. By default, saves stereo float32 buffer to disk.")
	wavOut := flag.Bool("w", false, "Output the rendered audio as .wav file. By default, uses 24-bit samples.")
	pcm := flag.Bool("c", false, "Convert audio to 16-bit signed PCM when outputting.")
	configFile := flag.String("config", "", "YAML file configuring the engine and the plugin.")
	kind := flag.String("k", "", "Plugin kind, overrides the one in the configuration.")
	midiIn := flag.String("m", "", "Play live from the MIDI input whose name starts with the given prefix, instead of rendering files. Use \"*\" for the first input.")
	rpcAddr := flag.String("rpc", "", "When playing live, accept control calls (parameters, dry/wet, volume, notes) over net/rpc on the given address, e.g. \":31337\".")
	list := flag.Bool("l", false, "List the plugin kinds and MIDI inputs.")
	quiet := flag.Bool("q", false, "Do not print the report.")
	debug := flag.Bool("d", false, "Log debug messages.")
	versionFlag := flag.Bool("v", false, "Print version.")
	flag.Usage = printUsage
	flag.Parse()
	if *versionFlag {
		fmt.Println(version.Read())
		os.Exit(0)
	}
	logger := cmd.NewLogger(*debug)
	registry, err := cmd.NewRegistry()
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not register plugins: %v\n", err)
		os.Exit(1)
	}
	defer registry.Shutdown()
	if *list {
		listAll(registry)
		os.Exit(0)
	}
	if (flag.NArg() == 0 && *midiIn == "") || *help {
		flag.Usage()
		os.Exit(0)
	}
	cfg := config.Default()
	if *configFile != "" {
		if cfg, err = config.LoadFile(*configFile); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
	}
	if *kind != "" {
		cfg.Plugin.Kind = *kind
	}
	if *midiIn != "" {
		if err := playLive(registry, cfg, logger, strings.TrimSuffix(*midiIn, "*"), *rpcAddr); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}
	if !*rawOut && !*wavOut {
		*play = true // if the user gives nothing to output, then the default behaviour is just to play the file
	}
	var audioContext *oto.Context
	if *play {
		audioContext, err = oto.NewContext(int(cfg.SampleRate))
		if err != nil {
			fmt.Fprintf(os.Stderr, "could not acquire oto AudioContext: %v\n", err)
			os.Exit(1)
		}
	}
	tmpl := template.Must(template.New("report").Funcs(sprig.TxtFuncMap()).Parse(reportTemplate))
	process := func(filename string) error {
		output := func(extension string, contents []byte) error {
			if *stdout {
				_, err := os.Stdout.Write(contents)
				return err
			}
			_, name := filepath.Split(filename)
			dir := *directory
			if dir == "" {
				var err error
				dir, err = os.Getwd()
				if err != nil {
					return errors.Wrap(err, "could not get working directory, specify the output directory explicitly")
				}
			}
			name = strings.TrimSuffix(name, filepath.Ext(name)) + extension
			f := filepath.Join(dir, name)
			if err := os.MkdirAll(dir, os.ModePerm); err != nil {
				return errors.Wrapf(err, "could not create output directory %v", dir)
			}
			if err := os.WriteFile(f, contents, 0644); err != nil {
				return errors.Wrapf(err, "could not write file %v", f)
			}
			return nil
		}
		buffer, rep, err := render(registry, cfg, logger, filename)
		if err != nil {
			return err
		}
		if *play {
			player := audioContext.Play(buffer.Source())
			defer player.Close()
			defer player.Wait()
		}
		if *rawOut {
			raw, err := hostcore.Raw(buffer, *pcm)
			if err != nil {
				return errors.Wrap(err, "could not generate .raw file")
			}
			if err := output(".raw", raw); err != nil {
				return errors.Wrap(err, "error outputting .raw file")
			}
		}
		if *wavOut {
			var b writeSeeker
			if err := hostcore.WriteWAV(&b, buffer, int(cfg.SampleRate), *pcm); err != nil {
				return errors.Wrap(err, "could not generate .wav file")
			}
			if err := output(".wav", b.buf.Bytes()); err != nil {
				return errors.Wrap(err, "error outputting .wav file")
			}
		}
		if !*quiet {
			w := io.Writer(os.Stdout)
			if *stdout {
				w = os.Stderr
			}
			if err := tmpl.Execute(w, rep); err != nil {
				return errors.Wrap(err, "could not print report")
			}
		}
		return nil
	}
	retval := 0
	for _, param := range flag.Args() {
		files := []string{param}
		if info, err := os.Stat(param); err == nil && info.IsDir() {
			files = nil
			for _, pattern := range []string{"*.mid", "*.midi"} {
				matches, err := filepath.Glob(filepath.Join(param, pattern))
				if err != nil {
					fmt.Fprintf(os.Stderr, "could not glob the path %v for MIDI files: %v\n", param, err)
					retval = 1
					continue
				}
				files = append(files, matches...)
			}
		}
		for _, file := range files {
			if err := process(file); err != nil {
				fmt.Fprintf(os.Stderr, "could not process file %v: %v\n", file, err)
				retval = 1
			}
		}
	}
	os.Exit(retval)
}

// newEngine creates the configured plugin and an active engine for it.
func newEngine(registry *hostcore.Registry, cfg *config.Config, logger *slog.Logger, offline bool) (*engine.Engine, []*hostcore.EventBuffer, error) {
	plugin, err := registry.New(cfg.Plugin.Kind, cfg.Setup())
	if err != nil {
		return nil, nil, err
	}
	ec, err := cfg.EngineConfig(logger)
	if err != nil {
		return nil, nil, err
	}
	ec.Offline = ec.Offline || offline
	buffers := make([]*hostcore.EventBuffer, cfg.NumPorts())
	ports := make([]hostcore.Port, len(buffers))
	for i := range buffers {
		buffers[i] = hostcore.NewEventBuffer(uint8(i), hostcore.MaxMIDIEvents)
		ports[i] = buffers[i]
	}
	e, err := engine.New(plugin, ec, ports...)
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Plugin.Apply(e); err != nil {
		return nil, nil, err
	}
	e.Activate()
	return e, buffers, nil
}

// render renders a MIDI file offline.
func render(registry *hostcore.Registry, cfg *config.Config, logger *slog.Logger, filename string) (hostcore.AudioBuffer, *report, error) {
	seq, err := gomidi.ReadSequenceFile(filename, cfg.SampleRate, cfg.NumPorts())
	if err != nil {
		return nil, nil, err
	}
	e, ports, err := newEngine(registry, cfg, logger, true)
	if err != nil {
		return nil, nil, err
	}
	defer e.Deactivate()
	length := seq.Length() + cfg.Tail
	stream := engine.NewStream(e, seq, ports, cfg.BufferSize, length)
	buffer := make(hostcore.AudioBuffer, length)
	analyzer := hostcore.NewVolumeAnalyzer(cfg.SampleRate)
	for pos := 0; pos < length; {
		chunk := buffer[pos:min(pos+cfg.BufferSize, length)]
		n, err := stream.ReadAudio(chunk)
		e.Idle()
		if err := analyzer.Update(chunk[:n]); err != nil {
			logger.Warn("bad output", "frame", pos, "err", err)
		}
		pos += n
		if err == io.EOF {
			buffer = buffer[:pos]
			break
		}
		if err != nil {
			return nil, nil, errors.Wrap(err, "rendering failed")
		}
	}
	events := 0
	for i := 0; i < seq.NumPorts(); i++ {
		events += seq.NumEvents(i)
	}
	rep := &report{
		File:    filename,
		Frames:  len(buffer),
		Seconds: float64(len(buffer)) / cfg.SampleRate,
		Events:  events,
		Plugin:  e.Info().Name,
		Options: e.Options().Names(),
		Latency: e.LatencyFrames(),
		Volume:  analyzer.Level,
		Stats:   e.Stats(),
	}
	return buffer, rep, nil
}

// playLive plays the plugin from a MIDI input until interrupted. A non-empty
// rpcAddr also starts the control bridge.
func playLive(registry *hostcore.Registry, cfg *config.Config, logger *slog.Logger, namePrefix, rpcAddr string) error {
	input, closer, err := cmd.OpenMIDI(namePrefix, cfg.SampleRate, 0)
	if err != nil {
		return err
	}
	defer closer.Close()
	e, ports, err := newEngine(registry, cfg, logger, false)
	if err != nil {
		return err
	}
	defer e.Deactivate()
	if rpcAddr != "" {
		receiver, err := rpc.Receive(e, rpcAddr, logger)
		if err != nil {
			return err
		}
		defer receiver.Close()
	}
	audioContext, err := oto.NewContext(int(cfg.SampleRate))
	if err != nil {
		return errors.Wrap(err, "could not acquire oto AudioContext")
	}
	player := audioContext.Play(engine.NewStream(e, input, ports, cfg.BufferSize, -1))
	defer player.Close()
	logger.Info("playing", "input", fmt.Sprint(closer), "plugin", e.Info().Name)
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			e.Idle()
		case <-interrupt:
			return nil
		}
	}
}

func listAll(registry *hostcore.Registry) {
	fmt.Println("Plugin kinds:")
	for _, k := range registry.Kinds() {
		fmt.Printf("  %v\n", k)
	}
	inputs, err := cmd.MIDIInputs()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return
	}
	fmt.Println("MIDI inputs:")
	for _, in := range inputs {
		fmt.Printf("  %v\n", in)
	}
}

// writeSeeker is an in-memory io.WriteSeeker for the wav encoder.
type writeSeeker struct {
	buf bytes.Buffer
	pos int
}

func (w *writeSeeker) Write(p []byte) (int, error) {
	b := w.buf.Bytes()
	n := copy(b[min(w.pos, len(b)):], p)
	if n < len(p) {
		w.buf.Write(p[n:])
	}
	w.pos += len(p)
	return len(p), nil
}

func (w *writeSeeker) Seek(offset int64, whence int) (int64, error) {
	var pos int64
	switch whence {
	case io.SeekStart:
		pos = offset
	case io.SeekCurrent:
		pos = int64(w.pos) + offset
	case io.SeekEnd:
		pos = int64(w.buf.Len()) + offset
	}
	if pos < 0 || pos > int64(w.buf.Len()) {
		return 0, errors.New("seek out of range")
	}
	w.pos = int(pos)
	return pos, nil
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Hostcore command line utility for rendering MIDI files through a plugin.\nUsage: %s [flags] [path ...]\n", os.Args[0])
	flag.PrintDefaults()
}
