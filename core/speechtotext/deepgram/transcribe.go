package deepgram

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	api "github.com/deepgram/deepgram-go-sdk/pkg/api/listen/v1/websocket/interfaces"
	"github.com/gorilla/websocket"

	"github.com/charlescrowellnv/mindvalley-eve-ai/core/audio"
	"github.com/charlescrowellnv/mindvalley-eve-ai/core/speechtotext"
)

const defaultListenEndpoint = "wss://api.deepgram.com/v1/listen"

// TranscriptionClient transcribes bounded audio captures. Each Transcribe
// call opens a fresh stream; Close finalizes it and waits for the pending
// finals to flush through the registered callbacks, so a caller can treat
// Transcribe/SendAudio/Close as one push-to-talk cycle.
type TranscriptionClient struct {
	apiKey   string
	endpoint string

	connMu sync.Mutex
	conn   *websocket.Conn

	// readDone closes when the read loop for the current stream exits.
	readDone chan struct{}
}

type ClientOption func(*TranscriptionClient)

// WithListenEndpoint overrides the streaming endpoint, mainly for tests.
func WithListenEndpoint(endpoint string) ClientOption {
	return func(c *TranscriptionClient) { c.endpoint = endpoint }
}

// WithAPIKey overrides the DEEPGRAM_API_KEY environment variable.
func WithAPIKey(apiKey string) ClientOption {
	return func(c *TranscriptionClient) { c.apiKey = apiKey }
}

func NewTranscriptionClient(opts ...ClientOption) (*TranscriptionClient, error) {
	client := &TranscriptionClient{
		apiKey:   os.Getenv("DEEPGRAM_API_KEY"),
		endpoint: defaultListenEndpoint,
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.apiKey == "" {
		return nil, fmt.Errorf("deepgram api key not found")
	}
	return client, nil
}

// Transcribe opens a transcription stream. A stream that is already open
// is an error; finalize it with Close first.
func (c *TranscriptionClient) Transcribe(ctx context.Context, opts ...speechtotext.TranscriptionOption) error {
	options := &speechtotext.TranscriptionOptions{EncodingInfo: audio.GetDefaultEncodingInfo()}
	for _, opt := range opts {
		opt(options)
	}

	encoding, err := convertEncoding(options.EncodingInfo)
	if err != nil {
		return fmt.Errorf("invalid encoding: %w", err)
	}

	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.conn != nil {
		return fmt.Errorf("transcription stream is already open")
	}

	conn, err := c.connectWebsocket(connectionOptions{
		sampleRate: encoding.SampleRate,
		encoding:   encoding.Format.Name(),

		detectSpeechStart: options.SpeechStartedCallback != nil,
		interimResults:    options.InterimTranscriptionCallback != nil,
	})
	if err != nil {
		return fmt.Errorf("failed to open websocket: %w", err)
	}

	c.conn = conn
	c.readDone = make(chan struct{})
	go c.readAndProcessMessages(conn, *options, c.readDone)

	return nil
}

type connectionOptions struct {
	sampleRate int
	encoding   string

	detectSpeechStart bool
	interimResults    bool
}

func (c *TranscriptionClient) connectWebsocket(options connectionOptions) (*websocket.Conn, error) {
	listenURL, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid listen endpoint: %w", err)
	}
	queryParams := listenURL.Query()
	queryParams.Set("encoding", options.encoding)
	queryParams.Set("sample_rate", strconv.Itoa(options.sampleRate))
	queryParams.Set("channels", "1")
	queryParams.Set("model", "nova-3")
	queryParams.Set("language", "en-US")
	queryParams.Set("smart_format", "true")
	if options.interimResults {
		queryParams.Set("interim_results", "true")
	}
	queryParams.Set("endpointing", "300")
	if options.detectSpeechStart {
		queryParams.Set("vad_events", "true")
	}

	listenURL.RawQuery = queryParams.Encode()
	conn, _, err := websocket.DefaultDialer.Dial(listenURL.String(),
		http.Header{"Authorization": {"Token " + c.apiKey}})
	if err != nil {
		return nil, fmt.Errorf("failed to open socket connection to deepgram: %w", err)
	}

	return conn, nil
}

func (c *TranscriptionClient) SendAudio(audio []byte) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.conn == nil {
		return fmt.Errorf("transcription stream is not open")
	}
	if err := c.conn.WriteMessage(websocket.BinaryMessage, audio); err != nil {
		return fmt.Errorf("failed to write to deepgram client: %w", err)
	}
	return nil
}

// Close finalizes the open stream and blocks until the server has
// flushed its remaining finals, or ctx expires. Closing an already
// closed client is a no-op.
func (c *TranscriptionClient) Close(ctx context.Context) error {
	c.connMu.Lock()
	conn := c.conn
	readDone := c.readDone
	c.connMu.Unlock()

	if conn == nil {
		return nil
	}

	c.connMu.Lock()
	err := conn.WriteJSON(struct {
		Type string `json:"type"`
	}{Type: string(api.TypeCloseStreamResponse)})
	c.connMu.Unlock()
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to close deepgram stream: %w", err)
	}

	select {
	case <-readDone:
	case <-ctx.Done():
		conn.Close()
		return ctx.Err()
	case <-time.After(5 * time.Second):
		conn.Close()
		return fmt.Errorf("timed out waiting for deepgram stream to flush")
	}

	return nil
}

func (c *TranscriptionClient) readAndProcessMessages(conn *websocket.Conn, options speechtotext.TranscriptionOptions, done chan struct{}) {
	defer close(done)

	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			if err.Error() != "websocket: close 1000 (normal)" {
				log.Println("Failed to read deepgram websocket message", "error", err)
			}

			c.connMu.Lock()
			if c.conn == conn {
				c.conn = nil
			}
			c.connMu.Unlock()
			conn.Close()
			return
		}
		if msgType != websocket.BinaryMessage {
			c.processMessage(msg, options)
		}
	}
}

func (c *TranscriptionClient) processMessage(msg []byte, options speechtotext.TranscriptionOptions) {
	var parsedMsg struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(msg, &parsedMsg); err != nil {
		log.Println("Failed to unmarshal deepgram message", "error", err)
		return
	}

	switch api.TypeResponse(parsedMsg.Type) {
	case api.TypeMessageResponse:
		var msgResp api.MessageResponse
		if err := json.Unmarshal(msg, &msgResp); err != nil {
			log.Println("Failed to unmarshal deepgram message", err)
			return
		}
		if len(msgResp.Channel.Alternatives) == 0 {
			return
		}
		transcript := strings.TrimSpace(msgResp.Channel.Alternatives[0].Transcript)
		if len(transcript) == 0 {
			return
		}

		if msgResp.IsFinal {
			if options.TranscriptionCallback != nil {
				options.TranscriptionCallback(transcript)
			}
		} else if options.InterimTranscriptionCallback != nil {
			options.InterimTranscriptionCallback(transcript)
		}

	case api.TypeSpeechStartedResponse:
		var msgResp api.SpeechStartedResponse
		if err := json.Unmarshal(msg, &msgResp); err != nil {
			log.Println("Failed to unmarshal deepgram message", err)
			return
		}

		if options.SpeechStartedCallback != nil {
			options.SpeechStartedCallback()
		}

	case api.TypeUtteranceEndResponse:
		if options.SpeechEndedCallback != nil {
			options.SpeechEndedCallback()
		}
	}
}
