package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
)

const readChunk = 4096

// Consume reads r until EOF or ctx is done, feeding d and forwarding each
// delta to emit as soon as its object closes. Empty deltas are skipped.
func Consume(ctx context.Context, r io.Reader, d *Demuxer, emit func(string)) error {
	buf := make([]byte, readChunk)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, err := r.Read(buf)
		if n > 0 {
			d.Append(buf[:n])
			for _, delta := range d.ExtractReady() {
				if delta != "" {
					emit(delta)
				}
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("stream: reading: %w", err)
		}
	}
}
