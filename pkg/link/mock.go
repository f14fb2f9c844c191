package link

import (
	"errors"
	"sync"

	"github.com/meshwire/meshwire/pkg/frame"
)

var (
	// ErrLinkClosed is returned when operating on a closed or powered-off link.
	ErrLinkClosed = errors.New("link: closed")
	// ErrUnknownPeer is returned when transmitting to an unregistered peer.
	ErrUnknownPeer = errors.New("link: peer not registered")
)

// Medium is an in-memory radio medium connecting MockLinks. Reachability
// is explicit: only connected pairs hear each other, so line and star
// topologies can be modelled for multi-node tests.
type Medium struct {
	mu    sync.Mutex
	links map[frame.Addr]*MockLink
	edges map[[2]frame.Addr]struct{}
}

// NewMedium returns an empty Medium.
func NewMedium() *Medium {
	return &Medium{
		links: make(map[frame.Addr]*MockLink),
		edges: make(map[[2]frame.Addr]struct{}),
	}
}

// NewLink attaches a node with the given address to the medium.
func (m *Medium) NewLink(addr frame.Addr) *MockLink {
	l := &MockLink{
		medium: m,
		addr:   addr,
		peers:  make(map[frame.Addr]struct{}),
	}
	m.mu.Lock()
	m.links[addr] = l
	m.mu.Unlock()
	return l
}

// Connect makes a and b mutually reachable.
func (m *Medium) Connect(a, b frame.Addr) {
	m.mu.Lock()
	m.edges[edgeKey(a, b)] = struct{}{}
	m.mu.Unlock()
}

// Disconnect severs the a-b path.
func (m *Medium) Disconnect(a, b frame.Addr) {
	m.mu.Lock()
	delete(m.edges, edgeKey(a, b))
	m.mu.Unlock()
}

// Down powers off the node at addr: it stops receiving and every
// transmission towards it fails at the link level.
func (m *Medium) Down(addr frame.Addr) {
	m.mu.Lock()
	l := m.links[addr]
	m.mu.Unlock()
	if l != nil {
		l.setDown(true)
	}
}

// Up powers the node at addr back on.
func (m *Medium) Up(addr frame.Addr) {
	m.mu.Lock()
	l := m.links[addr]
	m.mu.Unlock()
	if l != nil {
		l.setDown(false)
	}
}

func (m *Medium) reachable(from, to frame.Addr) *MockLink {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.edges[edgeKey(from, to)]; !ok {
		return nil
	}
	l := m.links[to]
	if l == nil || l.isDown() {
		return nil
	}
	return l
}

func (m *Medium) neighbors(from frame.Addr) []*MockLink {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*MockLink
	for addr, l := range m.links {
		if addr == from || l.isDown() {
			continue
		}
		if _, ok := m.edges[edgeKey(from, addr)]; ok {
			out = append(out, l)
		}
	}
	return out
}

func edgeKey(a, b frame.Addr) [2]frame.Addr {
	for i := range a {
		if a[i] < b[i] {
			return [2]frame.Addr{a, b}
		}
		if a[i] > b[i] {
			return [2]frame.Addr{b, a}
		}
	}
	return [2]frame.Addr{a, b}
}

// MockLink implements Link over a Medium.
type MockLink struct {
	medium *Medium
	addr   frame.Addr

	mu     sync.Mutex
	peers  map[frame.Addr]struct{}
	recv   RecvFunc
	status StatusFunc
	down   bool
	closed bool
}

// Addr returns the link's address.
func (l *MockLink) Addr() (frame.Addr, error) {
	return l.addr, nil
}

// MTU mimics a small-frame radio link.
func (l *MockLink) MTU() int { return 250 }

// AddPeer registers a peer address.
func (l *MockLink) AddPeer(peer frame.Addr) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrLinkClosed
	}
	l.peers[peer] = struct{}{}
	return nil
}

// DelPeer removes a peer address.
func (l *MockLink) DelPeer(peer frame.Addr) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.peers, peer)
	return nil
}

// HandleRecv registers the receive callback.
func (l *MockLink) HandleRecv(fn RecvFunc) {
	l.mu.Lock()
	l.recv = fn
	l.mu.Unlock()
}

// HandleSendStatus registers the completion callback.
func (l *MockLink) HandleSendStatus(fn StatusFunc) {
	l.mu.Lock()
	l.status = fn
	l.mu.Unlock()
}

// Transmit delivers data to the peer (or to every reachable neighbour for
// the broadcast address) and reports completion via the status callback.
func (l *MockLink) Transmit(peer frame.Addr, data []byte) error {
	l.mu.Lock()
	if l.closed || l.down {
		l.mu.Unlock()
		return ErrLinkClosed
	}
	if _, ok := l.peers[peer]; !ok {
		l.mu.Unlock()
		return ErrUnknownPeer
	}
	status := l.status
	l.mu.Unlock()

	buf := make([]byte, len(data))
	copy(buf, data)

	go func() {
		st := SendSuccess
		if peer.IsBroadcast() {
			// Broadcasts are unacknowledged: the link reports success
			// regardless of who heard them.
			for _, nb := range l.medium.neighbors(l.addr) {
				nb.deliver(l.addr, buf)
			}
		} else {
			if nb := l.medium.reachable(l.addr, peer); nb != nil {
				nb.deliver(l.addr, buf)
			} else {
				st = SendFail
			}
		}
		if status != nil {
			status(peer, st)
		}
	}()
	return nil
}

func (l *MockLink) deliver(src frame.Addr, data []byte) {
	l.mu.Lock()
	fn := l.recv
	down := l.down || l.closed
	l.mu.Unlock()
	if fn == nil || down {
		return
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	fn(src, buf)
}

func (l *MockLink) setDown(v bool) {
	l.mu.Lock()
	l.down = v
	l.mu.Unlock()
}

func (l *MockLink) isDown() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.down || l.closed
}

// Close detaches the link permanently.
func (l *MockLink) Close() error {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
	return nil
}
