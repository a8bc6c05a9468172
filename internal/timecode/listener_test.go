package timecode

import (
	"context"
	"net"
	"testing"
	"time"

	"go.uber.org/zap"
)

type channelSink struct {
	values chan Timecode
}

func (s channelSink) ApplyTimecode(value Timecode) {
	s.values <- value
}

func TestListenerDecodesDatagrams(t *testing.T) {
	sink := channelSink{values: make(chan Timecode, 4)}
	listener, err := NewListener(ListenerConfig{Address: "127.0.0.1:0", Sink: sink, Logger: zap.NewNop()})
	if err != nil {
		t.Fatalf("failed to construct listener: %v", err)
	}
	if err := listener.Listen(); err != nil {
		t.Fatalf("failed to bind listener: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	served := make(chan error, 1)
	go func() {
		served <- listener.Serve(ctx)
	}()

	conn, err := net.Dial("udp", listener.Addr().String())
	if err != nil {
		t.Fatalf("failed to dial listener: %v", err)
	}
	defer conn.Close()

	// Noise and a stray status byte in front of the quarter frames must be skipped.
	datagram := []byte{0x90, 0x40, 0x7F, StatusQuarterFrame, 0xF8}
	for _, item := range scenarioFragments() {
		datagram = append(datagram, StatusQuarterFrame, item.frameType<<4|item.value)
	}
	if _, err := conn.Write(datagram); err != nil {
		t.Fatalf("failed to write datagram: %v", err)
	}

	select {
	case decoded := <-sink.values:
		if decoded.Format() != "08:05:10:37" {
			t.Fatalf("unexpected timecode %s", decoded.Format())
		}
		if decoded.FrameRate != FrameRate24 {
			t.Fatalf("unexpected frame rate %v", decoded.FrameRate)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected decoded timecode within deadline")
	}

	cancel()
	select {
	case err := <-served:
		if err != nil {
			t.Fatalf("expected clean shutdown, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("listener did not stop after cancellation")
	}
}

func TestNewListenerRequiresSink(t *testing.T) {
	if _, err := NewListener(ListenerConfig{Address: "127.0.0.1:0"}); err == nil {
		t.Fatalf("expected missing sink error")
	}
}
