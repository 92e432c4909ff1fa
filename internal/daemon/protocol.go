package daemon

import (
	"errors"
	"strings"
	"unicode/utf8"

	sovereignerr "github.com/Aman-CERP/sovereign/internal/errors"
)

// Request is the line-delimited JSON request accepted by the Unix and TCP
// listeners. One object per line, terminated by '\n'.
type Request struct {
	Command string  `json:"command"`
	Args    *string `json:"args,omitempty"`
}

// Response is the line-delimited JSON reply to a Request.
type Response struct {
	Success bool    `json:"success"`
	Result  *string `json:"result,omitempty"`
	Error   *string `json:"error,omitempty"`
	Code    string  `json:"code,omitempty"`
}

// NewSuccessResponse builds a Response carrying a successful result.
func NewSuccessResponse(result string) Response {
	return Response{Success: true, Result: &result}
}

// NewErrorResponse builds a Response carrying an application error. The
// connection is not closed; per spec §7 an application error is reported,
// not fatal. If err is (or wraps) a *sovereignerr.SovereignError its Code
// travels with the response so a client can distinguish a retryable backend
// failure from a permanent protocol or not-found error without parsing the
// message text; any other error is reported under the generic internal code.
func NewErrorResponse(err error) Response {
	message := err.Error()
	var se *sovereignerr.SovereignError
	code := sovereignerr.ErrCodeInternal
	if errors.As(err, &se) {
		code = se.Code
	}
	return Response{Success: false, Error: &message, Code: code}
}

// WSEvent tags the kind of message sent over the WebSocket protocol.
type WSEvent string

const (
	WSEventChunk    WSEvent = "chunk"
	WSEventComplete WSEvent = "complete"
	WSEventError    WSEvent = "error"
)

// WSRequest is the request shape for the WebSocket listener. Unlike the
// line protocol, every request carries a client-assigned id so that chunked
// responses can be demultiplexed on one connection.
type WSRequest struct {
	ID      string  `json:"id"`
	Command string  `json:"command"`
	Args    *string `json:"args,omitempty"`
}

// WSResponse is a single event in a WebSocket response stream. A completed
// result is split into "chunk" events followed by one "complete" event;
// an application error is reported as a single "error" event.
type WSResponse struct {
	ID    string  `json:"id"`
	Event WSEvent `json:"event"`
	Data  *string `json:"data,omitempty"`
	Code  string  `json:"code,omitempty"`
}

// NewWSErrorEvent builds the "error" WSResponse for req, carrying err's
// SovereignError code the same way NewErrorResponse does for the line
// protocol.
func NewWSErrorEvent(id string, err error) WSResponse {
	message := err.Error()
	var se *sovereignerr.SovereignError
	code := sovereignerr.ErrCodeInternal
	if errors.As(err, &se) {
		code = se.Code
	}
	return WSResponse{ID: id, Event: WSEventError, Data: &message, Code: code}
}

// WSChunkSize is the maximum byte length of a single chunk event's data.
const WSChunkSize = 100

// ChunkMessage splits s into UTF-8-safe slices of at most WSChunkSize
// bytes each, never splitting inside a multi-byte rune. An empty string
// yields a single empty chunk so callers always see at least one event.
func ChunkMessage(s string) []string {
	if s == "" {
		return []string{""}
	}

	var chunks []string
	var buf strings.Builder
	for _, r := range s {
		if buf.Len()+utf8.RuneLen(r) > WSChunkSize && buf.Len() > 0 {
			chunks = append(chunks, buf.String())
			buf.Reset()
		}
		buf.WriteRune(r)
	}
	if buf.Len() > 0 {
		chunks = append(chunks, buf.String())
	}
	return chunks
}
