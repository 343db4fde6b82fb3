package pipeline

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/liravoice/lira-core/core/audio"
)

func TestStartForwardsCapturedAudio(t *testing.T) {
	capture := &captureClientStub{frames: [][]byte{{0x01}, {0x02, 0x03}}}
	input := &audioInput{}
	input.set(capture, "luka")

	if !input.isConfigured() {
		t.Fatalf("expected input with a client to be configured")
	}

	var forwarded atomic.Int32
	input.start(context.Background(), func(frame []byte) {
		forwarded.Add(int32(len(frame)))
	}, nil)

	waitForCondition(t, 2*time.Second, "captured frames to be forwarded", func() bool {
		return forwarded.Load() == 3
	})
}

func TestStartIsSingleFlight(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	capture := &captureClientStub{block: true}
	input := &audioInput{}
	input.set(capture, "luka")

	input.start(ctx, func([]byte) {}, nil)
	input.start(ctx, func([]byte) {}, nil)

	waitForCondition(t, 2*time.Second, "capture stream to start", func() bool {
		return capture.streamCalls.Load() > 0
	})
	time.Sleep(50 * time.Millisecond)
	if got := capture.streamCalls.Load(); got != 1 {
		t.Fatalf("expected a single capture stream, got %d", got)
	}
}

func TestCaptureFailureReportsAndAllowsRestart(t *testing.T) {
	capture := &captureClientStub{err: errors.New("device lost")}
	input := &audioInput{}
	input.set(capture, "luka")

	failures := make(chan error, 2)
	onError := func(err error) {
		select {
		case failures <- err:
		default:
		}
	}

	input.start(context.Background(), func([]byte) {}, onError)

	select {
	case err := <-failures:
		if !errors.Is(err, capture.err) {
			t.Fatalf("expected the capture failure surfaced, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for the capture failure")
	}

	input.start(context.Background(), func([]byte) {}, onError)
	waitForCondition(t, 2*time.Second, "capture to be retried", func() bool {
		return capture.streamCalls.Load() == 2
	})
}

func TestUnconfiguredInputNeverCaptures(t *testing.T) {
	input := &audioInput{}

	if input.isConfigured() {
		t.Fatalf("expected input without a client to be unconfigured")
	}

	input.start(context.Background(), func([]byte) {
		t.Errorf("expected no capture without a client")
	}, nil)
	time.Sleep(20 * time.Millisecond)

	if got := input.encodingInfo(); got != audio.DefaultEncodingInfo() {
		t.Fatalf("expected the default encoding for unconfigured input, got %+v", got)
	}
}

type captureClientStub struct {
	frames [][]byte
	block  bool
	err    error

	streamCalls atomic.Int32
}

func (capture *captureClientStub) EncodingInfo() audio.EncodingInfo {
	return audio.DefaultEncodingInfo()
}

func (capture *captureClientStub) Stream(ctx context.Context, onAudio func(audio []byte)) error {
	capture.streamCalls.Add(1)

	if capture.err != nil {
		return capture.err
	}

	for _, frame := range capture.frames {
		onAudio(frame)
	}

	if capture.block {
		<-ctx.Done()
		return ctx.Err()
	}
	return nil
}

func (capture *captureClientStub) Close() {}
