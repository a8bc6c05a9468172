package cues

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/hypebeast/go-osc/osc"
	"go.uber.org/zap"
)

const maxPacketSize = 65535

var errMissingSink = errors.New("cues: sink is required")

// Sink receives deduplicated cue and act labels.
type Sink interface {
	ApplyCue(label string)
	ApplyAct(label string)
}

// ListenerConfig describes the OSC input from the lighting console.
type ListenerConfig struct {
	Address   string
	ActPrefix string
	Sink      Sink
	Logger    *zap.Logger
}

// Listener receives OSC packets over UDP and dispatches them in arrival order.
type Listener struct {
	address   string
	sink      Sink
	extractor *Extractor
	logger    *zap.Logger
	conn      net.PacketConn
}

// NewListener validates the configuration.
func NewListener(cfg ListenerConfig) (*Listener, error) {
	if cfg.Sink == nil {
		return nil, errMissingSink
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Listener{
		address:   cfg.Address,
		sink:      cfg.Sink,
		extractor: NewExtractor(cfg.ActPrefix, logger),
		logger:    logger,
	}, nil
}

// Listen binds the UDP socket.
func (l *Listener) Listen() error {
	conn, err := net.ListenPacket("udp", l.address)
	if err != nil {
		return fmt.Errorf("cues: listen %s: %w", l.address, err)
	}
	l.conn = conn
	l.logger.Info("osc listener bound", zap.String("address", conn.LocalAddr().String()))
	return nil
}

// Addr returns the bound address once Listen succeeded.
func (l *Listener) Addr() net.Addr {
	if l.conn == nil {
		return nil
	}
	return l.conn.LocalAddr()
}

// Serve reads packets until ctx is cancelled or the socket fails.
func (l *Listener) Serve(ctx context.Context) error {
	if l.conn == nil {
		if err := l.Listen(); err != nil {
			return err
		}
	}
	go func() {
		<-ctx.Done()
		_ = l.conn.Close()
	}()

	buffer := make([]byte, maxPacketSize)
	for {
		n, _, err := l.conn.ReadFrom(buffer)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("cues: read: %w", err)
		}
		packet, err := osc.ParsePacket(string(buffer[:n]))
		if err != nil {
			l.logger.Debug("dropping malformed osc packet", zap.Error(err))
			continue
		}
		l.Dispatch(packet)
	}
}

// Dispatch walks messages and nested bundles in order.
func (l *Listener) Dispatch(packet osc.Packet) {
	switch typed := packet.(type) {
	case *osc.Message:
		l.handleMessage(typed)
	case *osc.Bundle:
		for _, message := range typed.Messages {
			l.handleMessage(message)
		}
		for _, bundle := range typed.Bundles {
			l.Dispatch(bundle)
		}
	}
}

func (l *Listener) handleMessage(message *osc.Message) {
	if message == nil {
		return
	}
	payload, ok := firstString(message.Arguments)
	if !ok {
		return
	}
	change, changed := l.extractor.Handle(message.Address, payload)
	if !changed {
		return
	}
	switch change.Kind {
	case ChangeCue:
		l.sink.ApplyCue(change.Value)
	case ChangeAct:
		l.sink.ApplyAct(change.Value)
	}
}

func firstString(arguments []interface{}) (string, bool) {
	for _, argument := range arguments {
		if value, ok := argument.(string); ok {
			return value, true
		}
	}
	return "", false
}
