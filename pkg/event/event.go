// Package event delivers engine events to the embedding host: send
// outcomes for originated traffic and payloads addressed to this node.
package event

import (
	"sync"

	"github.com/google/uuid"
	"github.com/skycoin/skycoin/src/util/logging"

	"github.com/meshwire/meshwire/pkg/frame"
)

// SendStatus is the terminal outcome of an originated send.
type SendStatus int

const (
	// SendSuccess means the send completed: broadcasts left the node,
	// unicasts were confirmed end-to-end.
	SendSuccess SendStatus = iota
	// SendFail means route discovery or confirmation timed out.
	SendFail
)

func (s SendStatus) String() string {
	if s == SendSuccess {
		return "success"
	}
	return "fail"
}

// OnSend reports the outcome of a send originated by this node.
type OnSend struct {
	Addr      frame.Addr
	MessageID uint32
	Status    SendStatus
}

// OnRecv carries a payload addressed to this node. Payload is a fresh
// copy owned by the subscriber.
type OnRecv struct {
	Addr    frame.Addr
	Payload []byte
}

// Event wraps the two event kinds; exactly one field is set.
type Event struct {
	Send *OnSend
	Recv *OnRecv
}

// Dispatcher fans events out to subscribers. Publishing never blocks the
// worker: a subscriber whose channel is full loses the event.
type Dispatcher struct {
	log *logging.Logger

	mu     sync.RWMutex
	subs   map[uuid.UUID]chan Event
	buffer int
	closed bool
}

// NewDispatcher returns a Dispatcher whose subscriber channels hold up to
// buffer events.
func NewDispatcher(buffer int) *Dispatcher {
	return &Dispatcher{
		log:    logging.MustGetLogger("event"),
		subs:   make(map[uuid.UUID]chan Event),
		buffer: buffer,
	}
}

// Subscribe registers a new subscriber and returns its id and channel.
func (d *Dispatcher) Subscribe() (uuid.UUID, <-chan Event) {
	id := uuid.New()
	ch := make(chan Event, d.buffer)

	d.mu.Lock()
	if d.closed {
		close(ch)
	} else {
		d.subs[id] = ch
	}
	d.mu.Unlock()

	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (d *Dispatcher) Unsubscribe(id uuid.UUID) {
	d.mu.Lock()
	if ch, ok := d.subs[id]; ok {
		delete(d.subs, id)
		close(ch)
	}
	d.mu.Unlock()
}

// PublishSend emits an OnSend event.
func (d *Dispatcher) PublishSend(addr frame.Addr, messageID uint32, status SendStatus) {
	d.publish(Event{Send: &OnSend{Addr: addr, MessageID: messageID, Status: status}})
}

// PublishRecv emits an OnRecv event. Each subscriber receives its own
// copy of the payload.
func (d *Dispatcher) PublishRecv(addr frame.Addr, payload []byte) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, ch := range d.subs {
		buf := make([]byte, len(payload))
		copy(buf, payload)
		select {
		case ch <- Event{Recv: &OnRecv{Addr: addr, Payload: buf}}:
		default:
			d.log.Warn("subscriber full, dropping recv event")
		}
	}
}

func (d *Dispatcher) publish(ev Event) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, ch := range d.subs {
		select {
		case ch <- ev:
		default:
			d.log.Warn("subscriber full, dropping send event")
		}
	}
}

// Close closes every subscriber channel; further publishes are no-ops.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		for id, ch := range d.subs {
			delete(d.subs, id)
			close(ch)
		}
	}
	d.mu.Unlock()
}
