/*Package comm provides primitives for communication with lab hardware.

The model is a Pool of connections to a device, from which drivers Get a
connection, wrap it in framing (NewTerminator) and deadline (NewTimeout)
decorators as the device's protocol requires, and Put it back when done.
Connections are created lazily and reclaimed after an idle period, which
keeps serial ports and terminal-server sockets free when the rig is idle.
*/
package comm

import (
	"errors"
	"io"
	"net"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/tarm/serial"
)

// ErrTimeoutUnsupported is generated when NewTimeout is called on a
// connection which has no deadline support (e.g. a serial port, which
// carries its own timeout in its config).
var ErrTimeoutUnsupported = errors.New("connection does not support deadlines")

// CreationFunc is a function which returns a new "connection" to something.
// A closure should be used to encapsulate the variables and functions needed.
type CreationFunc func() (io.ReadWriteCloser, error)

// TCPSetup opens a new TCP connection and sets a timeout on connect, read, and write
func TCPSetup(addr string, timeout time.Duration) (net.Conn, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, err
	}
	deadline := time.Now().Add(timeout)
	conn.SetReadDeadline(deadline)
	conn.SetWriteDeadline(deadline)
	return conn, nil
}

// BackingOffTCPConnMaker returns a CreationFunc which dials addr with an
// exponential backoff.  Some devices (NKT sources especially) do not like
// being connection thrashed, and a freshly power cycled terminal server can
// take a few seconds to begin accepting connections.
func BackingOffTCPConnMaker(addr string, timeout time.Duration) CreationFunc {
	return func() (io.ReadWriteCloser, error) {
		var conn net.Conn
		op := func() error {
			var err error
			conn, err = TCPSetup(addr, timeout)
			if err != nil {
				errS := strings.ToLower(err.Error())
				if strings.Contains(errS, "refused") {
					// device is there but not listening yet, worth retrying
					return err
				}
				return backoff.Permanent(err)
			}
			return nil
		}
		err := backoff.Retry(op, &backoff.ExponentialBackOff{
			InitialInterval:     25 * time.Millisecond,
			RandomizationFactor: 0.,
			Multiplier:          2.,
			MaxInterval:         1 * time.Second,
			MaxElapsedTime:      3 * time.Second,
			Clock:               backoff.SystemClock})
		return conn, err
	}
}

// SerialConnMaker returns a CreationFunc which opens the serial port
// described by conf
func SerialConnMaker(conf *serial.Config) CreationFunc {
	return func() (io.ReadWriteCloser, error) {
		return serial.OpenPort(conf)
	}
}

// timeoutRW wraps a connection with deadline support, refreshing the
// deadline before each Read or Write
type timeoutRW struct {
	rw      io.ReadWriter
	deadl   deadliner
	timeout time.Duration
}

type deadliner interface {
	SetDeadline(time.Time) error
}

// NewTimeout wraps a ReadWriter such that each Read and Write refreshes the
// I/O deadline.  Errors if the connection does not support deadlines; serial
// ports configure their timeout at open and should not be wrapped.
func NewTimeout(rw io.ReadWriter, timeout time.Duration) (io.ReadWriter, error) {
	d, ok := rw.(deadliner)
	if !ok {
		return nil, ErrTimeoutUnsupported
	}
	return &timeoutRW{rw: rw, deadl: d, timeout: timeout}, nil
}

func (t *timeoutRW) Read(p []byte) (int, error) {
	t.deadl.SetDeadline(time.Now().Add(t.timeout))
	return t.rw.Read(p)
}

func (t *timeoutRW) Write(p []byte) (int, error) {
	t.deadl.SetDeadline(time.Now().Add(t.timeout))
	return t.rw.Write(p)
}

// terminatorRW appends a terminator on writes and consumes through one on reads
type terminatorRW struct {
	rw     io.ReadWriter
	tx, rx byte
}

// NewTerminator wraps a ReadWriter with protocol framing: writes have the Tx
// terminator appended, and Read scans the stream up to and including the Rx
// terminator, returning the payload with the terminator stripped.  Reads are
// done one byte at a time; lab protocols are tiny and the underlying
// transport is the bottleneck, not syscall count.
func NewTerminator(rw io.ReadWriter, tx, rx byte) io.ReadWriter {
	return &terminatorRW{rw: rw, tx: tx, rx: rx}
}

func (t *terminatorRW) Write(p []byte) (int, error) {
	buf := make([]byte, len(p)+1)
	copy(buf, p)
	buf[len(p)] = t.tx
	n, err := t.rw.Write(buf)
	if n == len(buf) {
		n--
	}
	return n, err
}

func (t *terminatorRW) Read(p []byte) (int, error) {
	one := make([]byte, 1)
	n := 0
	for n < len(p) {
		_, err := io.ReadFull(t.rw, one)
		if err != nil {
			return n, err
		}
		if one[0] == t.rx {
			return n, nil
		}
		p[n] = one[0]
		n++
	}
	return n, nil
}
