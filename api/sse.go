package api

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/moxer-mmh/blocking-responses-poc/stream"
)

// WriteSSEEvent 把一个管线事件编码为一帧 SSE：
//
//	event: <type>
//	id: <id>
//	data: <json>
//	<空行>
//
// 每帧恰好一个事件，帧间以空行分隔。
func WriteSSEEvent(w io.Writer, ev *stream.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode sse payload: %w", err)
	}
	if _, err := fmt.Fprintf(w, "event: %s\nid: %d\ndata: %s\n\n", ev.Type, ev.ID, payload); err != nil {
		return fmt.Errorf("write sse frame: %w", err)
	}
	return nil
}
