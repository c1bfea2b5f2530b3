package replica

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/Dariusrussellkish/eventual-consensus-simulation/internal/faults"
	"github.com/Dariusrussellkish/eventual-consensus-simulation/internal/obslog"
	"github.com/Dariusrussellkish/eventual-consensus-simulation/internal/wire"
)

// peerMesh owns one outbound connection per peer plus a single inbound
// listener multiplexing every peer's broadcasts onto one channel.
type peerMesh struct {
	selfID int
	addrs  map[int]string
	logger obslog.Logger

	mu    sync.Mutex
	conns map[int]net.Conn

	listener net.Listener
	inbound  chan wire.PeerFrame
}

func newPeerMesh(selfID int, addrs map[int]string, listenAddr string, logger obslog.Logger) (*peerMesh, error) {
	ln, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return nil, fmt.Errorf("replica: listening for peers on %s: %w", listenAddr, err)
	}
	m := &peerMesh{
		selfID:   selfID,
		addrs:    addrs,
		logger:   logger,
		conns:    make(map[int]net.Conn),
		listener: ln,
		inbound:  make(chan wire.PeerFrame, 256),
	}
	go m.acceptLoop()
	return m, nil
}

func (m *peerMesh) acceptLoop() {
	for {
		conn, err := m.listener.Accept()
		if err != nil {
			return
		}
		go m.readConn(conn)
	}
}

func (m *peerMesh) readConn(conn net.Conn) {
	defer conn.Close()
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)
	for scanner.Scan() {
		f, err := wire.DecodePeerFrame(scanner.Bytes())
		if err != nil {
			// malformed message: dropped, not propagated.
			continue
		}
		m.inbound <- f
	}
}

// dial lazily connects to a peer, returning the live connection. A
// dial failure is a transient transport error: callers should log and
// skip this peer for the current broadcast, not abort.
func (m *peerMesh) dial(id int) (net.Conn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if conn, ok := m.conns[id]; ok {
		return conn, nil
	}
	addr, ok := m.addrs[id]
	if !ok {
		return nil, fmt.Errorf("replica: no address configured for peer %d", id)
	}
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("replica: dialing peer %d at %s: %w: %w", id, addr, faults.ErrPeerTransport, err)
	}
	m.conns[id] = conn
	return conn, nil
}

// broadcast sends f to every configured peer, dropping (and
// forgetting) any connection that errors so the next cycle redials.
func (m *peerMesh) broadcast(f wire.PeerFrame) {
	data, err := wire.EncodePeerFrame(f)
	if err != nil {
		return
	}
	for id := range m.addrs {
		if id == m.selfID {
			continue
		}
		conn, err := m.dial(id)
		if err != nil {
			if m.logger != nil {
				m.logger.Warning().Err(err).Int("peer_id", id).Log("peer transport error")
			}
			continue
		}
		if _, err := conn.Write(data); err != nil {
			m.mu.Lock()
			delete(m.conns, id)
			m.mu.Unlock()
			conn.Close()
			if m.logger != nil {
				m.logger.Warning().Err(fmt.Errorf("replica: writing to peer %d: %w: %w", id, faults.ErrPeerTransport, err)).Int("peer_id", id).Log("peer transport error")
			}
		}
	}
}

func (m *peerMesh) close() {
	m.listener.Close()
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, conn := range m.conns {
		conn.Close()
	}
}

// controlStream reads fixed-size control frames from the controller.
type controlStream struct {
	conn net.Conn
}

func dialController(ctx context.Context, addr string, selfID int) (*controlStream, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("replica: dialing controller at %s: %w", addr, err)
	}
	hello, err := wire.EncodeHelloFrame(wire.HelloFrame{ID: selfID})
	if err != nil {
		conn.Close()
		return nil, err
	}
	if _, err := conn.Write(hello); err != nil {
		conn.Close()
		return nil, fmt.Errorf("replica: sending hello frame: %w", err)
	}
	return &controlStream{conn: conn}, nil
}

// next blocks until the next 1024-byte control frame is fully read.
// A transport error here means the controller stream is gone; the
// caller should treat the replica as permanently down.
func (c *controlStream) next() (wire.ControlFrame, error) {
	buf := make([]byte, wire.ControlFrameSize)
	if _, err := readFull(c.conn, buf); err != nil {
		return wire.ControlFrame{}, fmt.Errorf("replica: reading control frame: %w: %w", faults.ErrControlTransport, err)
	}
	return wire.DecodeControlFrame(buf)
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func (c *controlStream) close() error {
	return c.conn.Close()
}

// telemetryClient sends telemetry datagrams to the controller.
type telemetryClient struct {
	conn net.Conn
}

func dialTelemetry(addr string) (*telemetryClient, error) {
	conn, err := net.Dial("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("replica: dialing telemetry endpoint %s: %w", addr, err)
	}
	return &telemetryClient{conn: conn}, nil
}

func (t *telemetryClient) send(f wire.TelemetryFrame) error {
	data, err := wire.EncodeTelemetryFrame(f)
	if err != nil {
		return err
	}
	_, err = t.conn.Write(data)
	return err
}

func (t *telemetryClient) close() error {
	return t.conn.Close()
}
