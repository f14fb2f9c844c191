// Package mesh implements a self-organizing overlay on top of a
// single-hop broadcast datagram link. It floods broadcasts with duplicate
// suppression, unicasts over reactively discovered source routes
// confirmed end-to-end, and relays traffic addressed elsewhere.
package mesh

import (
	"context"
	crand "crypto/rand"
	"encoding/binary"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/skycoin/skycoin/src/util/logging"

	"github.com/meshwire/meshwire/internal/netutil"
	"github.com/meshwire/meshwire/pkg/event"
	"github.com/meshwire/meshwire/pkg/frame"
	"github.com/meshwire/meshwire/pkg/link"
	"github.com/meshwire/meshwire/pkg/routing"
)

// Network is a single mesh node: one worker goroutine multiplexing the
// five frame kinds across the four work-item states.
type Network struct {
	Logger *logging.Logger

	cfg  Config
	link link.Link
	addr frame.Addr

	queue    *workQueue
	seen     *routing.SeenCache
	routes   *routing.Table
	confirms *routing.ConfirmList

	dispatcher *event.Dispatcher
	awaiter    *link.SendAwaiter
	retrier    *netutil.Retrier

	rngMu sync.Mutex
	rng   *rand.Rand

	serving int32
	closed  int32
}

// New validates cfg, binds the engine to l and registers the link
// callbacks. The worker does not run until Serve.
func New(cfg Config, l link.Link) (*Network, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if l == nil {
		return nil, ErrInvalidConfig
	}

	// The config is captured before the link is touched, so the address
	// below is read from the interface this instance was configured with.
	addr, err := l.Addr()
	if err != nil {
		return nil, err
	}
	if frame.WireSize > l.MTU() {
		return nil, ErrLinkMTU
	}

	n := &Network{
		Logger:     logging.MustGetLogger("mesh"),
		cfg:        cfg,
		link:       l,
		addr:       addr,
		queue:      newWorkQueue(cfg.QueueSize),
		seen:       routing.NewSeenCache(cfg.IDCacheSize),
		routes:     routing.NewTable(cfg.RouteCacheSize),
		confirms:   routing.NewConfirmList(cfg.QueueSize),
		dispatcher: event.NewDispatcher(cfg.QueueSize),
		awaiter:    link.NewSendAwaiter(),
		retrier:    netutil.NewRetrier(cfg.SendAttempts, 0),
		rng:        rand.New(rand.NewSource(randSeed())),
	}

	l.HandleSendStatus(n.onSendStatus)
	l.HandleRecv(n.onLinkRecv)

	return n, nil
}

func randSeed() int64 {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return time.Now().UnixNano()
	}
	return int64(binary.LittleEndian.Uint64(b[:]))
}

// Addr returns the node's link address.
func (n *Network) Addr() frame.Addr {
	return n.addr
}

// Config returns the active configuration.
func (n *Network) Config() Config {
	return n.cfg
}

// Routes returns a snapshot of the learned route table.
func (n *Network) Routes() []routing.Entry {
	return n.routes.All()
}

// SeenCount returns the number of cached message ids.
func (n *Network) SeenCount() int {
	return n.seen.Len()
}

// PendingConfirms returns the number of unmatched delivery confirmations.
func (n *Network) PendingConfirms() int {
	return n.confirms.Len()
}

// QueueLen returns the number of queued work items.
func (n *Network) QueueLen() int {
	return n.queue.Len()
}

// Subscribe registers a host event subscriber.
func (n *Network) Subscribe() (uuid.UUID, <-chan event.Event) {
	return n.dispatcher.Subscribe()
}

// Unsubscribe removes a host event subscriber.
func (n *Network) Unsubscribe(id uuid.UUID) {
	n.dispatcher.Unsubscribe(id)
}

// Send queues payload for target. The zero or broadcast address floods to
// every reachable node; anything else is routed unicast and confirmed
// end-to-end. The assigned message id is returned; the terminal outcome
// arrives as an OnSend event.
func (n *Network) Send(target frame.Addr, payload []byte) (uint32, error) {
	if n.isClosed() {
		return 0, ErrNotServing
	}
	if len(payload) == 0 || len(payload) > frame.PayloadCap {
		return 0, ErrPayloadSize
	}
	if n.queue.Free() < n.cfg.QueueSize/2 {
		return 0, ErrBusy
	}

	id := n.newMessageID()
	buf := make([]byte, len(payload))
	copy(buf, payload)

	var f frame.Frame
	if target.IsZero() || target.IsBroadcast() {
		f = frame.NewBroadcast(n.cfg.NetworkID, id, n.addr, buf)
	} else {
		f = frame.NewUnicast(n.cfg.NetworkID, id, n.addr, target, buf)
	}

	if !n.queue.Push(workItem{state: stateToSend, frame: f}) {
		return 0, ErrBusy
	}
	n.Logger.Debugf("queued %s %08x to %s", f.Type, id, f.Target)
	return id, nil
}

// Broadcast queues payload for every reachable node.
func (n *Network) Broadcast(payload []byte) (uint32, error) {
	return n.Send(frame.BroadcastAddr, payload)
}

// Serve runs the worker until ctx is cancelled or Close is called.
func (n *Network) Serve(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&n.serving, 0, 1) {
		return ErrAlreadyServing
	}
	defer atomic.StoreInt32(&n.serving, 0)

	n.Logger.Infof("serving mesh %08x as %s", n.cfg.NetworkID, n.addr)
	for {
		item, ok := n.queue.Pop(ctx)
		if !ok {
			if err := ctx.Err(); err != nil {
				return err
			}
			return nil
		}
		n.process(item)
	}
}

// Close tears the engine down: the queue stops accepting work, event
// subscribers are closed and the link is released.
func (n *Network) Close() error {
	if n == nil {
		return nil
	}
	if !atomic.CompareAndSwapInt32(&n.closed, 0, 1) {
		return nil
	}
	n.Logger.Info("closing mesh engine")
	n.queue.Close()
	n.dispatcher.Close()
	return n.link.Close()
}

func (n *Network) isClosed() bool {
	return atomic.LoadInt32(&n.closed) != 0
}

// newMessageID draws a uniform non-zero 32-bit identifier.
func (n *Network) newMessageID() uint32 {
	n.rngMu.Lock()
	defer n.rngMu.Unlock()
	for {
		if id := n.rng.Uint32(); id != 0 {
			return id
		}
	}
}

func (n *Network) onSendStatus(_ frame.Addr, status link.SendStatus) {
	n.awaiter.Done(status)
}

// onLinkRecv is the admission path. It runs in the link's receive
// context: validate, dedup under the seen mutex, stamp the hop address
// and front-insert for the worker.
func (n *Network) onLinkRecv(src frame.Addr, data []byte) {
	if len(data) != frame.WireSize {
		return
	}
	f, err := frame.Unmarshal(data)
	if err != nil {
		return
	}
	if f.NetworkID != n.cfg.NetworkID {
		return
	}
	if n.queue.Free() < 2 {
		// Loss is preferred to blocking the processing loop. The frame is
		// dropped before the seen insert so a later retransmission can
		// still be admitted.
		n.Logger.Debugf("queue pressure, dropping frame %08x", f.MessageID)
		return
	}
	if !n.seen.AddIfNew(f.MessageID) {
		return
	}
	f.Hop = src
	n.recordReceived(src)
	if !n.queue.PushFront(workItem{state: stateOnRecv, frame: f}) {
		n.Logger.Warnf("failed to admit frame %08x", f.MessageID)
	}
}

func (n *Network) recordSent(peer frame.Addr) {
	if n.cfg.LogStore == nil {
		return
	}
	entry, err := n.cfg.LogStore.Entry(peer)
	if err != nil {
		n.Logger.Warnf("log store: %v", err)
		return
	}
	entry.AddSent(frame.WireSize)
	if err := n.cfg.LogStore.Record(peer, entry); err != nil {
		n.Logger.Warnf("log store: %v", err)
	}
}

func (n *Network) recordReceived(peer frame.Addr) {
	if n.cfg.LogStore == nil {
		return
	}
	entry, err := n.cfg.LogStore.Entry(peer)
	if err != nil {
		n.Logger.Warnf("log store: %v", err)
		return
	}
	entry.AddReceived(frame.WireSize)
	if err := n.cfg.LogStore.Record(peer, entry); err != nil {
		n.Logger.Warnf("log store: %v", err)
	}
}
