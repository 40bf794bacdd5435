package chat

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
)

// Finish reasons written in the final stream part.
const (
	FinishStop  = "stop"
	FinishError = "error"
)

// StreamSink receives the parts of a chat response.
type StreamSink interface {
	WriteText(token string) error
	WriteError(message string) error
	Finish(reason string) error
}

// DataStreamWriter writes the line based data stream protocol: text parts as
// `0:<json string>`, errors as `3:<json string>` and a closing
// `d:{"finishReason":...}` part. Each part is flushed immediately when the
// underlying writer supports it.
type DataStreamWriter struct {
	w       io.Writer
	flusher http.Flusher
}

func NewDataStreamWriter(w io.Writer) *DataStreamWriter {
	f, _ := w.(http.Flusher)
	return &DataStreamWriter{w: w, flusher: f}
}

func (s *DataStreamWriter) WriteText(token string) error {
	return s.part('0', token)
}

func (s *DataStreamWriter) WriteError(message string) error {
	return s.part('3', message)
}

func (s *DataStreamWriter) Finish(reason string) error {
	return s.part('d', struct {
		FinishReason string `json:"finishReason"`
	}{reason})
}

func (s *DataStreamWriter) part(code byte, v interface{}) error {
	var buf bytes.Buffer
	buf.WriteByte(code)
	buf.WriteByte(':')

	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	// Encode terminates the value with the newline the protocol needs.
	if err := enc.Encode(v); err != nil {
		return err
	}
	if _, err := s.w.Write(buf.Bytes()); err != nil {
		return err
	}
	if s.flusher != nil {
		s.flusher.Flush()
	}
	return nil
}
