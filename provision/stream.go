package provision

import (
	"context"
	"io"
	"time"

	"github.com/shazow/wifiprov/link"
)

// DefaultPollInterval is how often Run polls the session.
const DefaultPollInterval = 20 * time.Millisecond

// readSize is how much Run reads from the stream at once. It is larger than
// MaxChunk so a burst of input lands in the queue in one piece.
const readSize = 4096

// Run hosts s on a byte stream such as a serial console. Reads happen on a
// separate goroutine; the session only ever sees what has already arrived.
// End of stream closes the session's input. Run returns when the session is
// done or ctx ends.
//
// A Read blocked on r is not interrupted when Run returns.
func Run(ctx context.Context, s *Session, r io.Reader, interval time.Duration, clk link.Clock) error {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	chunks := make(chan []byte, 8)
	go func() {
		defer close(chunks)
		buf := make([]byte, readSize)
		for {
			n, err := r.Read(buf)
			if n > 0 {
				b := append([]byte(nil), buf[:n]...)
				select {
				case chunks <- b:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				return
			}
		}
	}()

	var queue []byte
	for {
	drain:
		for chunks != nil {
			select {
			case b, ok := <-chunks:
				if !ok {
					chunks = nil
					break drain
				}
				queue = append(queue, b...)
			default:
				break drain
			}
		}
		if chunks == nil && len(queue) == 0 {
			s.CloseInput()
		}

		n := s.Poll(ctx, queue)
		queue = queue[n:]
		if s.DropPending() {
			queue = nil
		}
		if s.Done() {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-clk.After(interval):
		}
	}
}
