package timecode

import (
	"context"
	"errors"
	"fmt"
	"net"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const maxDatagramSize = 1500

var errMissingSink = errors.New("timecode: sink is required")

// Sink receives every decoded timecode change.
type Sink interface {
	ApplyTimecode(Timecode)
}

// ListenerConfig describes the UDP MIDI bridge input.
type ListenerConfig struct {
	Address string
	Sink    Sink
	Logger  *zap.Logger
}

// Listener reads raw MIDI bytes from UDP datagrams and feeds quarter frames to a Decoder.
// The decoder is owned by the listener goroutine.
type Listener struct {
	address   string
	sink      Sink
	logger    *zap.Logger
	decoder   *Decoder
	fragments metric.Int64Counter
	conn      net.PacketConn
}

// NewListener validates the configuration and prepares the decoder.
func NewListener(cfg ListenerConfig) (*Listener, error) {
	if cfg.Sink == nil {
		return nil, errMissingSink
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	fragments, err := meter().Int64Counter(
		"mtc.fragments.received",
		metric.WithDescription("Total MTC quarter frames received"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating fragment counter: %w", err)
	}
	return &Listener{
		address:   cfg.Address,
		sink:      cfg.Sink,
		logger:    logger,
		decoder:   NewDecoder(),
		fragments: fragments,
	}, nil
}

// Listen binds the UDP socket. It is split from Serve so callers can learn the bound address.
func (l *Listener) Listen() error {
	conn, err := net.ListenPacket("udp", l.address)
	if err != nil {
		return fmt.Errorf("timecode: listen %s: %w", l.address, err)
	}
	l.conn = conn
	l.logger.Info("mtc listener bound", zap.String("address", conn.LocalAddr().String()))
	return nil
}

// Addr returns the bound address once Listen succeeded.
func (l *Listener) Addr() net.Addr {
	if l.conn == nil {
		return nil
	}
	return l.conn.LocalAddr()
}

// Serve reads datagrams until ctx is cancelled or the socket fails.
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

	buffer := make([]byte, maxDatagramSize)
	for {
		n, _, err := l.conn.ReadFrom(buffer)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("timecode: read: %w", err)
		}
		l.consume(ctx, buffer[:n])
	}
}

// consume scans a datagram for 0xF1 <data> pairs. Other bytes are skipped.
func (l *Listener) consume(ctx context.Context, datagram []byte) {
	for index := 0; index+1 < len(datagram); index++ {
		if datagram[index] != StatusQuarterFrame {
			continue
		}
		data := datagram[index+1]
		if data&0x80 != 0 {
			continue
		}
		index++
		l.fragments.Add(ctx, 1)
		if decoded, changed := l.decoder.FeedMIDI(StatusQuarterFrame, data); changed {
			l.sink.ApplyTimecode(decoded)
		}
	}
}
