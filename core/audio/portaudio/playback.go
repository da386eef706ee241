package portaudio

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/gordonklaus/portaudio"

	"github.com/charlescrowellnv/mindvalley-eve-ai/core/audio"
)

// Client is a playback-only sink backed by PortAudio. The streaming
// playback buffer hands it one materialized utterance at a time.
type Client struct {
	bufferSize    int
	encoding      audio.EncodingInfo
	stream        *portaudio.Stream
	leftoverAudio []byte

	out []int16
}

func NewClient(bufferSize int) (*Client, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize portaudio: %w", err)
	}

	encoding := audio.GetDefaultEncodingInfo()
	out := make([]int16, bufferSize)
	stream, err := portaudio.OpenDefaultStream(0, 1, float64(encoding.SampleRate), bufferSize, out)
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("failed to open playback stream: %w", err)
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return nil, fmt.Errorf("failed to start playback stream: %w", err)
	}

	return &Client{
		bufferSize: bufferSize,
		encoding:   encoding,
		stream:     stream,
		out:        out,
	}, nil
}

// Write pushes linear16 little-endian audio to the device, buffering any
// trailing partial frame until the next call.
func (c *Client) Write(audio []byte) error {
	frameBytes := c.bufferSize * c.encoding.Format.ByteSize()

	audio = append(c.leftoverAudio, audio...)
	for i := range len(audio)/frameBytes + 1 {
		if (i+1)*frameBytes > len(audio) {
			c.leftoverAudio = make([]byte, len(audio)-i*frameBytes)
			copy(c.leftoverAudio, audio[i*frameBytes:])
			break
		}

		if err := binary.Read(bytes.NewBuffer(audio[i*frameBytes:(i+1)*frameBytes]), binary.LittleEndian, c.out); err != nil {
			return fmt.Errorf("failed to frame playback audio: %w", err)
		}
		if err := c.stream.Write(); err != nil {
			return fmt.Errorf("failed to write to playback stream: %w", err)
		}
	}

	return nil
}

// Flush pads the buffered partial frame out to a full frame with the
// encoding's silence byte and writes it.
func (c *Client) Flush() error {
	if len(c.leftoverAudio) == 0 {
		return nil
	}

	frameBytes := c.bufferSize * c.encoding.Format.ByteSize()
	padding := bytes.Repeat([]byte{c.encoding.SilenceValue()}, frameBytes-len(c.leftoverAudio))
	leftover := c.leftoverAudio
	c.leftoverAudio = nil
	return c.Write(append(leftover, padding...))
}

func (c *Client) Close() {
	c.stream.Close()
	portaudio.Terminate()
}

func (c *Client) EncodingInfo() audio.EncodingInfo {
	return c.encoding
}
