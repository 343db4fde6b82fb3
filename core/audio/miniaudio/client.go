// Package miniaudio plays and captures audio through the operating
// system's default devices.
package miniaudio

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gen2brain/malgo"
	"github.com/liravoice/lira-core/core/audio"
	"github.com/liravoice/lira-core/core/texttospeech"
)

type Client struct {
	// audioContext is only saved to be able to uninitialize it, it is an
	// ownership thing
	audioContext *malgo.AllocatedContext
	closeOnce    sync.Once
	playbackClient
	captureClient
}

func NewClient() (*Client, error) {
	audioCtx, err := malgo.InitContext(
		nil,
		malgo.ContextConfig{},
		func(message string) {},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize audio context: %w", err)
	}

	client := Client{audioContext: audioCtx}

	if err := client.playbackClient.init(audioCtx); err != nil {
		client.Close()
		return nil, err
	}

	if err := client.captureClient.init(audioCtx); err != nil {
		client.Close()
		return nil, err
	}

	return &client, nil
}

// WriteStream moves synthesized audio into the playback buffer as it
// arrives. It returns once the stream is fully consumed; the device keeps
// draining the buffer on its own clock.
func (c *Client) WriteStream(ctx context.Context, stream texttospeech.AudioStream) error {
	if err := c.playbackClient.start(); err != nil {
		return err
	}

	for chunk, err := range stream.Chunks(ctx) {
		if err != nil {
			return fmt.Errorf("failed to read audio stream: %w", err)
		}
		if err := c.playbackClient.write(chunk); err != nil {
			return err
		}
	}
	return nil
}

// Flush drops buffered audio that has not reached the speaker yet.
func (c *Client) Flush() {
	c.playbackClient.clear()
}

// BeginResponse brings the playback device up ahead of the first chunk so
// device spin-up does not eat into it.
func (c *Client) BeginResponse() {
	if err := c.playbackClient.start(); err != nil {
		log.Printf("Failed to start playback device: %v", err)
	}
}

// EndResponse is a no-op. The device stays up between responses, playing
// silence whenever the buffer is empty.
func (c *Client) EndResponse() {}

// WriteSilence appends a stretch of silence to the playback buffer.
func (c *Client) WriteSilence(d time.Duration) {
	if err := c.playbackClient.write(c.EncodingInfo().Silence(d)); err != nil {
		log.Printf("Failed to write silence: %v", err)
	}
}

// IsPlaying reports whether buffered audio is still being played.
func (c *Client) IsPlaying() bool {
	return c.playbackClient.playing()
}

// Stream captures microphone audio until the context is cancelled.
func (c *Client) Stream(ctx context.Context, onAudio func(audio []byte)) error {
	if err := c.captureClient.start(onAudio); err != nil {
		return err
	}
	<-ctx.Done()
	if err := c.captureClient.stop(); err != nil {
		return err
	}
	return nil
}

// Close releases both devices and the audio context. The same client can
// back playback and capture at once, so Close tolerates being called from
// both owners; only the first call does the work.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		_ = c.captureClient.uninit()
		_ = c.playbackClient.uninit()
		_ = c.audioContext.Uninit()
		c.audioContext.Free()
	})
}

func (c *Client) EncodingInfo() audio.EncodingInfo {
	return audio.EncodingInfo{
		SampleRate: audio.DefaultSampleRate,
		Format:     audio.FormatLinear16,
	}
}
