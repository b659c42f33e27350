package emulator

import (
	"context"
	"errors"
	"io"
	"net"

	"github.com/backkem/bold/pkg/frame"
)

// readBufferSize bounds a single read from the peripheral connection.
const readBufferSize = 4096

// Serve runs the device on conn until ctx is done or the connection closes.
// Incoming bytes are reassembled into frames; all replies to one frame go out
// in a single write, which the link may fragment further.
//
// Serve closes conn when ctx is done. A closed connection is a normal exit.
func (d *Device) Serve(ctx context.Context, conn net.Conn) error {
	stop := context.AfterFunc(ctx, func() {
		conn.Close()
	})
	defer stop()

	decoder := frame.NewDecoder()
	buf := make([]byte, readBufferSize)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}

		for _, f := range decoder.Write(buf[:n]) {
			if d.log != nil {
				d.log.Tracef("received %s", f)
			}
			replies := d.Handle(f)
			if len(replies) == 0 {
				continue
			}
			if _, err := conn.Write(Marshal(replies)); err != nil {
				if d.log != nil {
					d.log.Debugf("write failed: %v", err)
				}
				return nil
			}
		}
	}
}
