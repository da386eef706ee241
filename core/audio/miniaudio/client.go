package miniaudio

import (
	"context"
	"fmt"

	"github.com/gen2brain/malgo"

	"github.com/charlescrowellnv/mindvalley-eve-ai/core/audio"
)

// Client is a microphone capture client backed by miniaudio. One client
// owns one device handle; Close releases it unconditionally.
type Client struct {
	// audioContext is only saved to be able to uninitialize it, it is an
	// ownership thing
	audioContext *malgo.AllocatedContext
	capture      captureDevice
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

	if err := client.capture.open(audioCtx); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to open capture device: %w", err)
	}

	return &client, nil
}

func (c *Client) StartCapture(_ context.Context, onAudio func(audio []byte)) error {
	return c.capture.start(onAudio)
}

func (c *Client) StopCapture() error {
	return c.capture.stop()
}

func (c *Client) Close() {
	c.capture.release()
	_ = c.audioContext.Uninit()
	c.audioContext.Free()
}

func (c *Client) EncodingInfo() audio.EncodingInfo {
	return c.capture.encoding()
}
