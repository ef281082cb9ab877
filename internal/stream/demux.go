// Package stream reassembles JSON objects from a fragmented byte stream and
// lifts a text delta out of each one.
package stream

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
)

// ErrMalformedChunk marks a complete object that could not be parsed or did
// not carry the delta field. Such objects are dropped.
var ErrMalformedChunk = errors.New("stream: malformed chunk")

// DefaultField is the delta location in OpenAI-style chat completion chunks.
const DefaultField = "choices.0.delta.content"

// Demuxer buffers appended bytes and extracts complete top-level JSON
// objects. After every ExtractReady call the buffer holds only the start of
// an unfinished object, or nothing.
type Demuxer struct {
	buf   []byte
	path  []string
	log   *slog.Logger
	drops int
}

// NewDemuxer creates a demuxer that extracts the dotted field path (numeric
// segments index arrays). An empty field uses DefaultField.
func NewDemuxer(field string, logger *slog.Logger) *Demuxer {
	if field == "" {
		field = DefaultField
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Demuxer{
		path: strings.Split(field, "."),
		log:  logger.With("component", "stream"),
	}
}

// Append adds raw bytes to the buffer.
func (d *Demuxer) Append(b []byte) {
	d.buf = append(d.buf, b...)
}

// Buffered returns the number of bytes waiting for an object to close.
func (d *Demuxer) Buffered() int {
	return len(d.buf)
}

// Dropped returns how many complete objects were discarded so far.
func (d *Demuxer) Dropped() int {
	return d.drops
}

// ExtractReady returns the deltas of every object completed so far, in
// order. Bytes outside objects are discarded; an unfinished trailing object
// stays buffered for the next Append. Calling it again without new data
// returns nothing and leaves the buffer unchanged.
func (d *Demuxer) ExtractReady() []string {
	var (
		out      []string
		depth    int
		start    = -1
		inString bool
		escaped  bool
	)

	for i, c := range d.buf {
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			if depth > 0 {
				inString = true
			}
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth == 0 {
				// Stray closing brace outside any object.
				continue
			}
			depth--
			if depth == 0 {
				if delta, err := d.lift(d.buf[start : i+1]); err != nil {
					d.drops++
					d.log.Debug("dropping chunk", "error", err)
				} else {
					out = append(out, delta)
				}
				start = -1
			}
		}
	}

	// Everything before an unfinished object is consumed or junk.
	consumed := len(d.buf)
	if start >= 0 {
		consumed = start
	}
	d.buf = append(d.buf[:0], d.buf[consumed:]...)
	return out
}

// lift parses one object and walks the configured path to a string.
func (d *Demuxer) lift(obj []byte) (string, error) {
	var v any
	if err := json.Unmarshal(obj, &v); err != nil {
		return "", fmt.Errorf("%w: %w", ErrMalformedChunk, err)
	}

	for _, key := range d.path {
		switch node := v.(type) {
		case map[string]any:
			next, ok := node[key]
			if !ok {
				return "", fmt.Errorf("%w: missing %q", ErrMalformedChunk, key)
			}
			v = next
		case []any:
			idx, err := strconv.Atoi(key)
			if err != nil || idx < 0 || idx >= len(node) {
				return "", fmt.Errorf("%w: no element %q", ErrMalformedChunk, key)
			}
			v = node[idx]
		default:
			return "", fmt.Errorf("%w: cannot descend into %q", ErrMalformedChunk, key)
		}
	}

	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: field is %T, not a string", ErrMalformedChunk, v)
	}
	return s, nil
}
