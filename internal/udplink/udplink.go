// Package udplink implements the mesh link contract over UDP multicast,
// emulating a shared broadcast radio on commodity hosts. Every datagram
// goes to the group; an envelope carries the intended receiver, which is
// how peer-addressed radios behave on a shared medium.
package udplink

import (
	"net"
	"sync"

	"github.com/pkg/errors"
	"github.com/skycoin/skycoin/src/util/logging"
	"golang.org/x/net/ipv4"

	"github.com/meshwire/meshwire/pkg/frame"
	"github.com/meshwire/meshwire/pkg/link"
)

// DefaultGroup is the multicast group the mesh rides on.
const DefaultGroup = "239.77.77.77:17777"

// envelope: destination address, source address, then the wire frame.
const envelopeLen = 2 * frame.AddrLen

var (
	// ErrNoInterface is returned when no usable multicast interface is found.
	ErrNoInterface = errors.New("udplink: no multicast-capable interface")
	// ErrClosed is returned when transmitting on a closed link.
	ErrClosed = errors.New("udplink: closed")
	// ErrUnknownPeer is returned when transmitting to an unregistered peer.
	ErrUnknownPeer = errors.New("udplink: peer not registered")
)

// Config configures a Link.
type Config struct {
	// Interface is the network interface to bind; empty picks the first
	// up, multicast-capable, non-loopback interface.
	Interface string

	// Group is the multicast group and port; empty uses DefaultGroup.
	Group string

	// Addr overrides the link address. When zero the interface's
	// hardware address is used.
	Addr frame.Addr
}

// Link is a UDP multicast implementation of link.Link.
type Link struct {
	log *logging.Logger

	addr  frame.Addr
	group *net.UDPAddr
	conn  *net.UDPConn
	pc    *ipv4.PacketConn

	mu     sync.Mutex
	peers  map[frame.Addr]struct{}
	recv   link.RecvFunc
	status link.StatusFunc
	closed bool
}

// New binds the multicast group and starts the read loop.
func New(cfg Config) (*Link, error) {
	group := cfg.Group
	if group == "" {
		group = DefaultGroup
	}
	groupAddr, err := net.ResolveUDPAddr("udp4", group)
	if err != nil {
		return nil, errors.Wrap(err, "resolve group")
	}

	iface, err := pickInterface(cfg.Interface)
	if err != nil {
		return nil, err
	}

	addr := cfg.Addr
	if addr.IsZero() {
		if len(iface.HardwareAddr) != frame.AddrLen {
			return nil, ErrNoInterface
		}
		copy(addr[:], iface.HardwareAddr)
	}

	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero, Port: groupAddr.Port})
	if err != nil {
		return nil, errors.Wrap(err, "listen")
	}

	pc := ipv4.NewPacketConn(conn)
	if err := pc.JoinGroup(iface, &net.UDPAddr{IP: groupAddr.IP}); err != nil {
		conn.Close() // nolint: errcheck
		return nil, errors.Wrap(err, "join group")
	}
	if err := pc.SetMulticastInterface(iface); err != nil {
		conn.Close() // nolint: errcheck
		return nil, errors.Wrap(err, "multicast interface")
	}
	// Loopback stays on so several nodes can share one host; the read
	// loop filters our own transmissions by source address.
	if err := pc.SetMulticastLoopback(true); err != nil {
		conn.Close() // nolint: errcheck
		return nil, errors.Wrap(err, "multicast loopback")
	}

	l := &Link{
		log:   logging.MustGetLogger("udplink"),
		addr:  addr,
		group: groupAddr,
		conn:  conn,
		pc:    pc,
		peers: make(map[frame.Addr]struct{}),
	}
	go l.readLoop()

	l.log.Infof("bound %s on %s as %s", group, iface.Name, addr)
	return l, nil
}

func pickInterface(name string) (*net.Interface, error) {
	if name != "" {
		iface, err := net.InterfaceByName(name)
		if err != nil {
			return nil, errors.Wrap(err, "interface")
		}
		return iface, nil
	}

	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, errors.Wrap(err, "interfaces")
	}
	for i := range ifaces {
		iface := &ifaces[i]
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		if iface.Flags&net.FlagMulticast == 0 {
			continue
		}
		return iface, nil
	}
	return nil, ErrNoInterface
}

// Addr returns the link address.
func (l *Link) Addr() (frame.Addr, error) {
	return l.addr, nil
}

// MTU leaves room for the envelope inside a safe UDP datagram.
func (l *Link) MTU() int { return 1400 - envelopeLen }

// AddPeer registers a peer address.
func (l *Link) AddPeer(peer frame.Addr) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrClosed
	}
	l.peers[peer] = struct{}{}
	return nil
}

// DelPeer removes a peer address.
func (l *Link) DelPeer(peer frame.Addr) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.peers, peer)
	return nil
}

// HandleRecv registers the receive callback.
func (l *Link) HandleRecv(fn link.RecvFunc) {
	l.mu.Lock()
	l.recv = fn
	l.mu.Unlock()
}

// HandleSendStatus registers the completion callback.
func (l *Link) HandleSendStatus(fn link.StatusFunc) {
	l.mu.Lock()
	l.status = fn
	l.mu.Unlock()
}

// Transmit sends data to peer over the group. Completion is reported via
// the status callback once the datagram has left the socket.
func (l *Link) Transmit(peer frame.Addr, data []byte) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrClosed
	}
	if _, ok := l.peers[peer]; !ok {
		l.mu.Unlock()
		return ErrUnknownPeer
	}
	status := l.status
	l.mu.Unlock()

	_, err := l.pc.WriteTo(packEnvelope(peer, l.addr, data), nil, l.group)

	st := link.SendSuccess
	if err != nil {
		l.log.Warnf("write: %v", err)
		st = link.SendFail
	}
	if status != nil {
		go status(peer, st)
	}
	return nil
}

func (l *Link) readLoop() {
	buf := make([]byte, 2048)
	for {
		n, _, _, err := l.pc.ReadFrom(buf)
		if err != nil {
			l.mu.Lock()
			closed := l.closed
			l.mu.Unlock()
			if !closed {
				l.log.Warnf("read: %v", err)
			}
			return
		}
		dst, src, data, ok := unpackEnvelope(buf[:n])
		if !ok {
			continue
		}

		// Skip our own multicast echo and frames addressed elsewhere.
		if src == l.addr {
			continue
		}
		if !dst.IsBroadcast() && dst != l.addr {
			continue
		}

		l.mu.Lock()
		fn := l.recv
		l.mu.Unlock()
		if fn == nil {
			continue
		}
		fn(src, data)
	}
}

// Close leaves the group and stops the read loop.
func (l *Link) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.mu.Unlock()

	if err := l.pc.LeaveGroup(nil, &net.UDPAddr{IP: l.group.IP}); err != nil {
		l.log.Debugf("leave group: %v", err)
	}
	return l.conn.Close()
}
