package stream

import (
	"bufio"
	"encoding/json"
	"fmt"
)

// ConnectionFrame is the first frame of every stream.
type ConnectionFrame struct {
	Type     string `json:"type"`
	ClientID string `json:"clientId"`
	Identity string `json:"identity,omitempty"`
}

// WriteFrame writes v as one "data:" line and flushes. A flush error means
// the client went away.
func WriteFrame(w *bufio.Writer, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	if _, err := w.WriteString("data: "); err != nil {
		return err
	}
	if _, err := w.Write(b); err != nil {
		return err
	}
	if _, err := w.WriteString("\n\n"); err != nil {
		return err
	}
	return w.Flush()
}

// WriteComment writes a keep-alive comment and flushes.
func WriteComment(w *bufio.Writer, text string) error {
	if _, err := fmt.Fprintf(w, ": %s\n\n", text); err != nil {
		return err
	}
	return w.Flush()
}
