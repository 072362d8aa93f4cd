package channels

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/adrianghc/hems/internal/wire"
)

// SocketDir holds the fabric's named Unix domain datagram sockets: the
// real cross-process backing for spec §6's external interface ("OS
// message queues ... named /hems_mq_<name>"). A Unix domain socket,
// unlike the process-local heap in queue.go, is a genuine kernel
// object addressable by any process on the host, so two separately
// forked workers posting/receiving on the same name actually exchange
// envelopes rather than operating on disjoint in-memory state.
var SocketDir = filepath.Join(os.TempDir(), "hems-mq")

func socketPath(name string) string {
	return filepath.Join(SocketDir, name)
}

// maxDatagramBytes bounds one gob-encoded Envelope. Envelopes carry
// only fixed-width fields and a segment name (the payload itself
// travels separately over the Payload Transport), so this is generous
// headroom, not a tight fit.
const maxDatagramBytes = 4096

// sendDatagram serializes env and writes it as a single datagram to
// name's socket, wherever its listener lives. ctx's deadline, if any,
// becomes the write deadline; a full kernel receive buffer on the
// other end (i.e. the listener's drain loop has stalled because its
// bounded Queue is at Capacity) blocks the write until it is drained,
// the deadline elapses, or ctx is done.
func sendDatagram(ctx context.Context, name string, env wire.Envelope) error {
	data, err := wire.Serialize(env)
	if err != nil {
		return err
	}

	addr, err := net.ResolveUnixAddr("unixgram", socketPath(name))
	if err != nil {
		return wrapSocket(name, err)
	}
	conn, err := net.DialUnix("unixgram", nil, addr)
	if err != nil {
		return wrapSocket(name, err)
	}
	defer conn.Close()

	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetWriteDeadline(dl)
	}

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.SetWriteDeadline(time.Unix(0, 1))
		case <-done:
		}
	}()

	_, err = conn.Write(data)
	close(done)
	if err != nil {
		return wrapSocket(name, err)
	}
	return nil
}
