// Package rpc is a net/rpc bridge for controlling a running engine from
// another process, e.g. a tracker sending parameter changes to a live host.
package rpc

import (
	"log/slog"
	"net"
	"net/http"
	"net/rpc"

	"github.com/pkg/errors"
)

// DefaultAddress is where Receive listens when given an empty address.
const DefaultAddress = ":31337"

type (
	// Controller is the part of an engine the bridge drives. *engine.Engine
	// implements it.
	Controller interface {
		SetParameterValue(index int, normalized float32) error
		SetDryWet(v float32)
		SetVolume(v float32)
		SendNote(channel, note, velocity uint8) bool
	}

	ParameterArgs struct {
		Index int
		Value float32 // normalized, 0..1
	}

	NoteArgs struct {
		Channel, Note, Velocity uint8
	}

	// ControlServer is the receiver registered with net/rpc. Every method
	// forwards to the controller; reply is unused.
	ControlServer struct {
		ctrl   Controller
		logger *slog.Logger
	}

	// Receiver serves one controller over HTTP until closed.
	Receiver struct {
		listener net.Listener
		server   *http.Server
		done     chan struct{}
	}

	// Sender is the client side of a Receiver.
	Sender struct {
		client *rpc.Client
	}
)

func (s *ControlServer) SetParameterValue(args ParameterArgs, reply *int) error {
	s.logger.Debug("rpc parameter", "index", args.Index, "value", args.Value)
	return s.ctrl.SetParameterValue(args.Index, args.Value)
}

func (s *ControlServer) SetDryWet(v float32, reply *int) error {
	if v < 0 || v > 1 {
		return errors.Errorf("dry/wet %v out of range", v)
	}
	s.ctrl.SetDryWet(v)
	return nil
}

func (s *ControlServer) SetVolume(v float32, reply *int) error {
	if v < 0 {
		return errors.Errorf("negative volume %v", v)
	}
	s.ctrl.SetVolume(v)
	return nil
}

func (s *ControlServer) SendNote(args NoteArgs, reply *int) error {
	if !s.ctrl.SendNote(args.Channel, args.Note, args.Velocity) {
		return errors.Errorf("note %d on channel %d rejected", args.Note, args.Channel)
	}
	return nil
}

// Receive starts serving ctrl on addr. Use Addr to find the port when addr
// ends in ":0".
func Receive(ctrl Controller, addr string, logger *slog.Logger) (*Receiver, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if addr == "" {
		addr = DefaultAddress
	}
	server := rpc.NewServer()
	if err := server.RegisterName("ControlServer", &ControlServer{ctrl: ctrl, logger: logger}); err != nil {
		return nil, errors.Wrap(err, "rpc register failed")
	}
	mux := http.NewServeMux()
	mux.Handle(rpc.DefaultRPCPath, server)
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.Wrap(err, "net.Listen failed")
	}
	r := &Receiver{listener: l, server: &http.Server{Handler: mux}, done: make(chan struct{})}
	go func() {
		defer close(r.done)
		if err := r.server.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("rpc server stopped", "err", err)
		}
	}()
	logger.Info("rpc listening", "addr", l.Addr().String())
	return r, nil
}

func (r *Receiver) Addr() net.Addr { return r.listener.Addr() }

func (r *Receiver) Close() error {
	err := r.server.Close()
	<-r.done
	return err
}

// Dial connects to a Receiver.
func Dial(addr string) (*Sender, error) {
	client, err := rpc.DialHTTP("tcp", addr)
	if err != nil {
		return nil, errors.Wrap(err, "rpc.DialHTTP failed")
	}
	return &Sender{client: client}, nil
}

func (s *Sender) SetParameterValue(index int, normalized float32) error {
	return s.call("SetParameterValue", ParameterArgs{Index: index, Value: normalized})
}

func (s *Sender) SetDryWet(v float32) error { return s.call("SetDryWet", v) }
func (s *Sender) SetVolume(v float32) error { return s.call("SetVolume", v) }

func (s *Sender) SendNote(channel, note, velocity uint8) error {
	return s.call("SendNote", NoteArgs{Channel: channel, Note: note, Velocity: velocity})
}

func (s *Sender) Close() error { return s.client.Close() }

func (s *Sender) call(method string, args any) error {
	var reply int
	if err := s.client.Call("ControlServer."+method, args, &reply); err != nil {
		return errors.Wrapf(err, "ControlServer.%s", method)
	}
	return nil
}
