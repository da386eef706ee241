package conversation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// speechStream fetches synthesized speech for a single utterance as a raw
// byte stream and feeds it chunk by chunk into a playback buffer.
type speechStream struct {
	endpoint string
	client   *http.Client
}

func newSpeechStream(endpoint string) *speechStream {
	return &speechStream{
		endpoint: endpoint,
		client: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport,
			otelhttp.WithSpanNameFormatter(func(operationName string, request *http.Request) string {
				return operationName + " " + request.URL.Path
			}),
		)},
	}
}

type speechRequest struct {
	Text string `json:"text"`
}

// Stream requests synthesis of text and forwards every chunk of the
// response body to buffer in arrival order. Cancelling ctx aborts the
// transfer.
func (s *speechStream) Stream(ctx context.Context, text string, buffer *playbackBuffer) error {
	ctx, span := tracer.Start(ctx, "speechStream.Stream")
	defer span.End()
	span.SetAttributes(attribute.Int("request.text_length", len(text)))

	buffer.Connecting()

	requestBodyBytes, err := json.Marshal(speechRequest{Text: text})
	if err != nil {
		err = fmt.Errorf("error marshalling JSON: %w", err)
		span.RecordError(err)
		buffer.Fail()
		return err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.endpoint, bytes.NewBuffer(requestBodyBytes))
	if err != nil {
		err = fmt.Errorf("error creating HTTP request: %w", err)
		span.RecordError(err)
		buffer.Fail()
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		err = fmt.Errorf("error sending request: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "speech request failed")
		buffer.Fail()
		return err
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("response.status_code", resp.StatusCode))
	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("non-OK HTTP status: %s", resp.Status)
		span.RecordError(err)
		buffer.Fail()
		return err
	}

	chunk := make([]byte, 8192)
	for {
		n, err := resp.Body.Read(chunk)
		if n > 0 {
			buffer.AddChunk(chunk[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				// Aborted by the caller, the buffer was already stopped.
				return ctx.Err()
			}
			err = fmt.Errorf("error reading speech stream: %w", err)
			span.RecordError(err)
			buffer.Fail()
			return err
		}
	}

	span.SetAttributes(attribute.Int("response.bytes_received", buffer.BytesReceived()))
	buffer.Complete()
	return nil
}
