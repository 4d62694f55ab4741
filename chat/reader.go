// Package chat implements the conversational surface: the streamed response
// reader, the transcript with its single in-progress draft, and the client
// that sends repo-scoped chat requests.
package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"

	"github.com/c360studio/repopulse/metrics"
)

// recordMarker prefixes every meaningful record on the chat stream.
const recordMarker = "data:"

// ChunkFunc receives each text delta together with the running total.
type ChunkFunc func(delta, total string)

// ResponseError is an explicit {error} record returned by the server. It
// fails the whole exchange; records after it are never processed.
type ResponseError struct {
	Message string
}

func (e *ResponseError) Error() string {
	return e.Message
}

// streamRecord is the union of the three meaningful record shapes. Pointer
// fields distinguish "absent" from "zero" so an empty chunk still counts as
// a chunk and a bare {} counts as nothing.
type streamRecord struct {
	Error        *string `json:"error"`
	Chunk        *string `json:"chunk"`
	Done         bool    `json:"done"`
	FullResponse *string `json:"fullResponse"`
}

// StreamReader re-assembles newline-delimited, marker-prefixed JSON records
// from a byte stream whose chunk boundaries fall anywhere, mid-line or even
// mid-rune. It owns the carry-over explicitly: pending holds every byte
// after the last complete line, so a multi-byte sequence or half a JSON
// record split by the transport is whole again before it is decoded.
type StreamReader struct {
	onChunk ChunkFunc

	pending  []byte
	total    strings.Builder
	finished bool
	full     string
}

// NewStreamReader creates a reader delivering deltas to onChunk (may be nil).
func NewStreamReader(onChunk ChunkFunc) *StreamReader {
	return &StreamReader{onChunk: onChunk}
}

// Feed consumes one transport chunk. Complete lines are processed in order;
// the trailing partial line is retained for the next call. A non-nil error
// is terminal for the whole stream.
func (r *StreamReader) Feed(p []byte) error {
	if r.finished {
		// Terminal record already seen; trailing bytes are ignored.
		return nil
	}

	r.pending = append(r.pending, p...)

	for {
		idx := bytes.IndexByte(r.pending, '\n')
		if idx < 0 {
			return nil
		}

		line := r.pending[:idx]
		r.pending = r.pending[idx+1:]

		if err := r.processLine(line); err != nil {
			return err
		}
		if r.finished {
			return nil
		}
	}
}

// Result returns the final text once the stream has ended. A stream that
// ended without a terminal done record degrades gracefully to whatever text
// was accumulated.
func (r *StreamReader) Result() string {
	if r.finished {
		return r.full
	}
	return r.total.String()
}

// Finished reports whether a terminal record was seen.
func (r *StreamReader) Finished() bool {
	return r.finished
}

func (r *StreamReader) processLine(line []byte) error {
	line = bytes.TrimSuffix(line, []byte("\r"))
	if len(line) == 0 {
		return nil
	}

	if !bytes.HasPrefix(line, []byte(recordMarker)) {
		// Transport artifact (comment, padding); not a record.
		return nil
	}
	payload := bytes.TrimPrefix(bytes.TrimPrefix(line, []byte(recordMarker)), []byte(" "))

	var record streamRecord
	if err := json.Unmarshal(payload, &record); err != nil {
		// Lenient parse: an unrecognizable record must not abort the read.
		return nil
	}

	if record.Error != nil {
		r.finished = true
		r.full = r.total.String()
		return &ResponseError{Message: *record.Error}
	}

	if record.Chunk != nil {
		r.total.WriteString(*record.Chunk)
		metrics.ChatChunks.Inc()
		if r.onChunk != nil {
			r.onChunk(*record.Chunk, r.total.String())
		}
	}

	if record.Done {
		r.finished = true
		if record.FullResponse != nil {
			r.full = *record.FullResponse
		} else {
			r.full = r.total.String()
		}
	}

	return nil
}

// ReadStream drives a StreamReader over an entire response body and returns
// the final text.
func ReadStream(ctx context.Context, body io.Reader, onChunk ChunkFunc) (string, error) {
	reader := NewStreamReader(onChunk)
	buf := make([]byte, 4096)

	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		n, err := body.Read(buf)
		if n > 0 {
			if ferr := reader.Feed(buf[:n]); ferr != nil {
				return "", ferr
			}
			if reader.Finished() {
				return reader.Result(), nil
			}
		}
		if err != nil {
			if err == io.EOF {
				// EOF without done: return what we have.
				return reader.Result(), nil
			}
			return "", err
		}
	}
}
