// Package oto plays audio sources on the default audio device.
package oto

import (
	"io"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/pkg/errors"
	"github.com/vsariola/hostcore"
)

type (
	// Context is an open audio device. There can only be one per process.
	Context struct {
		context    *oto.Context
		sampleRate int
	}

	// Player plays one AudioSource until it ends or is closed.
	Player struct {
		player *oto.Player
		reader *sourceReader
	}

	// sourceReader turns an AudioSource into the byte stream oto reads.
	sourceReader struct {
		source  hostcore.AudioSource
		buf     hostcore.AudioBuffer
		pending []byte
		err     error
	}
)

const readFrames = 1024

// NewContext opens the audio device and waits until it is ready.
func NewContext(sampleRate int) (*Context, error) {
	context, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 2,
		Format:       oto.FormatFloat32LE,
		BufferSize:   50 * time.Millisecond,
	})
	if err != nil {
		return nil, errors.Wrap(err, "cannot create oto context")
	}
	<-ready
	return &Context{context: context, sampleRate: sampleRate}, nil
}

func (c *Context) SampleRate() int { return c.sampleRate }

// Play starts playing source.
func (c *Context) Play(source hostcore.AudioSource) *Player {
	r := newSourceReader(source)
	p := &Player{player: c.context.NewPlayer(r), reader: r}
	p.player.Play()
	return p
}

// Wait blocks until the player has played everything.
func (p *Player) Wait() error {
	for p.player.IsPlaying() {
		time.Sleep(10 * time.Millisecond)
	}
	if err := p.player.Err(); err != nil {
		return errors.Wrap(err, "playback failed")
	}
	if p.reader.err != nil && p.reader.err != io.EOF {
		return p.reader.err
	}
	return nil
}

func (p *Player) Close() error {
	if err := p.player.Close(); err != nil {
		return errors.Wrap(err, "cannot close oto player")
	}
	return nil
}

func newSourceReader(source hostcore.AudioSource) *sourceReader {
	return &sourceReader{
		source:  source,
		buf:     make(hostcore.AudioBuffer, readFrames),
		pending: make([]byte, 0, readFrames*bytesPerFrame),
	}
}

// Read implements io.Reader.
func (r *sourceReader) Read(p []byte) (int, error) {
	if len(r.pending) == 0 {
		if r.err != nil {
			return 0, r.err
		}
		frames := min(len(r.buf), max(len(p)/bytesPerFrame, 1))
		var n int
		n, r.err = r.source.ReadAudio(r.buf[:frames])
		r.pending = appendFloat32LE(r.pending[:0], r.buf[:n])
		if len(r.pending) == 0 && r.err != nil {
			return 0, r.err
		}
	}
	n := copy(p, r.pending)
	r.pending = r.pending[n:]
	if len(r.pending) == 0 {
		r.pending = r.pending[:0:cap(r.pending)]
	}
	return n, nil
}
