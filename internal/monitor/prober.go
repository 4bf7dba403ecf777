package monitor

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

var (
	ErrProbeTimeout = errors.New("probe timed out")
	ErrProbeFailed  = errors.New("probe failed")
)

// statusCommand asks the print endpoint for its four-byte status word.
// Any response at all proves the service layer is alive; decoding the
// word is left to device-specific tooling.
const statusCommand = "\x1b!?"

// Prober performs the two-layer reachability check against a device.
// Implementations are network-specific and pluggable.
type Prober interface {
	// ProbeLiveness checks network-layer reachability of the endpoint.
	ProbeLiveness(ctx context.Context, address string, timeout time.Duration) error

	// ProbeService checks that the print service itself answers,
	// not just the host.
	ProbeService(ctx context.Context, address string, timeout time.Duration) error
}

// Transport sends a job payload to a device. Kept on the same TCP
// implementation as the prober so dispatch and health checks agree on
// what "reachable" means.
type Transport interface {
	Send(ctx context.Context, address string, payload []byte, timeout time.Duration) error
}

// TCPProber probes raw TCP print endpoints (JetDirect-style, port 9100).
type TCPProber struct {
	dialer net.Dialer
}

func NewTCPProber() *TCPProber {
	return &TCPProber{}
}

// ProbeLiveness dials the endpoint and hangs up. A completed handshake
// within the timeout counts as alive.
func (p *TCPProber) ProbeLiveness(ctx context.Context, address string, timeout time.Duration) error {
	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, err := p.dialer.DialContext(dialCtx, "tcp", address)
	if err != nil {
		return classifyErr(err)
	}
	conn.Close()
	return nil
}

// ProbeService connects, writes the status inquiry and waits for at
// least one response byte before the deadline.
func (p *TCPProber) ProbeService(ctx context.Context, address string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)

	dialCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	conn, err := p.dialer.DialContext(dialCtx, "tcp", address)
	if err != nil {
		return classifyErr(err)
	}
	defer conn.Close()

	if err := conn.SetDeadline(deadline); err != nil {
		return err
	}

	if _, err := conn.Write([]byte(statusCommand)); err != nil {
		return classifyErr(err)
	}

	buf := make([]byte, 4)
	if _, err := conn.Read(buf); err != nil {
		return classifyErr(err)
	}
	return nil
}

// Send ships a payload to the device over one connection.
func (p *TCPProber) Send(ctx context.Context, address string, payload []byte, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)

	dialCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	conn, err := p.dialer.DialContext(dialCtx, "tcp", address)
	if err != nil {
		return classifyErr(err)
	}
	defer conn.Close()

	if err := conn.SetDeadline(deadline); err != nil {
		return err
	}

	if _, err := conn.Write(payload); err != nil {
		return fmt.Errorf("%w: %v", ErrProbeFailed, err)
	}
	return nil
}

func classifyErr(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrProbeTimeout, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrProbeTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrProbeFailed, err)
}
