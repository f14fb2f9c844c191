package mesh

import (
	"errors"
	"time"

	"github.com/meshwire/meshwire/pkg/event"
	"github.com/meshwire/meshwire/pkg/frame"
	"github.com/meshwire/meshwire/pkg/link"
)

// waitPollInterval paces re-checks of waiting items when nothing else is
// queued, so a lone wait does not spin the worker.
const waitPollInterval = 5 * time.Millisecond

var errSendFailed = errors.New("mesh: link reported send failure")

func (n *Network) process(item workItem) {
	switch item.state {
	case stateToSend:
		n.handleToSend(item)
	case stateOnRecv:
		n.handleRecv(item)
	case stateWaitRoute:
		n.handleWaitRoute(item)
	case stateWaitResponse:
		n.handleWaitResponse(item)
	}
}

// handleToSend resolves the next hop, transmits and dispatches on the
// link outcome.
func (n *Network) handleToSend(item workItem) {
	f := item.frame

	var hop frame.Addr
	switch f.Type {
	case frame.TypeBroadcast, frame.TypeSearchRequest, frame.TypeSearchResponse:
		hop = frame.BroadcastAddr
		if f.Source == n.addr {
			// Record own floods so the mesh echo is never re-accepted.
			n.seen.Add(f.MessageID)
		}
	default:
		var ok bool
		hop, ok = n.routes.NextHop(f.Target)
		if !ok {
			n.Logger.Debugf("no route to %s, starting discovery", f.Target)
			n.beginDiscovery(item)
			return
		}
	}

	if err := n.link.AddPeer(hop); err != nil {
		n.Logger.Warnf("add peer %s: %v", hop, err)
		return
	}
	status := n.transmit(hop, f)
	if err := n.link.DelPeer(hop); err != nil {
		n.Logger.Warnf("del peer %s: %v", hop, err)
	}

	if status == link.SendSuccess {
		n.recordSent(hop)
		if f.Source != n.addr {
			// Relay duty done.
			return
		}
		switch f.Type {
		case frame.TypeBroadcast:
			n.dispatcher.PublishSend(f.Target, f.MessageID, event.SendSuccess)
		case frame.TypeUnicast:
			item.state = stateWaitResponse
			item.since = time.Now()
			n.push(item)
		}
		return
	}

	if !f.Target.IsBroadcast() {
		// The cached next hop is gone; drop the route and rediscover.
		if n.routes.Invalidate(f.Target) {
			n.Logger.Debugf("invalidated route to %s after send failure", f.Target)
		}
		n.beginDiscovery(item)
		return
	}
	n.Logger.Debugf("broadcast %08x lost at link level", f.MessageID)
}

// beginDiscovery parks item until a route to its target appears and
// floods a search request for it.
func (n *Network) beginDiscovery(item workItem) {
	item.state = stateWaitRoute
	item.since = time.Now()
	n.push(item)

	req := frame.NewSearchRequest(n.cfg.NetworkID, n.newMessageID(), n.addr, item.frame.Target)
	n.pushFront(workItem{state: stateToSend, frame: req})
}

// transmit marshals f and drives the link with bounded attempts, waiting
// on the completion signal each time.
func (n *Network) transmit(hop frame.Addr, f frame.Frame) link.SendStatus {
	buf, err := f.Marshal()
	if err != nil {
		n.Logger.Warnf("marshal %s %08x: %v", f.Type, f.MessageID, err)
		return link.SendFail
	}

	err = n.retrier.Do(func() error {
		n.awaiter.Arm()
		if err := n.link.Transmit(hop, buf); err != nil {
			return err
		}
		st, err := n.awaiter.Wait(n.cfg.SendTimeout)
		if err != nil {
			return err
		}
		if st != link.SendSuccess {
			return errSendFailed
		}
		return nil
	})
	if err != nil {
		return link.SendFail
	}
	return link.SendSuccess
}

// handleRecv dispatches an admitted frame on its kind.
func (n *Network) handleRecv(item workItem) {
	f := item.frame

	switch f.Type {
	case frame.TypeBroadcast:
		if !f.Target.IsBroadcast() {
			return
		}
		// Deliver to the host before re-flooding.
		n.dispatcher.PublishRecv(f.Source, f.Payload)
		item.state = stateToSend
		n.push(item)

	case frame.TypeUnicast:
		if f.Target == n.addr {
			n.dispatcher.PublishRecv(f.Source, f.Payload)
			confirm := f.Confirm(n.addr, n.newMessageID())
			n.pushFront(workItem{state: stateToSend, frame: confirm})
			return
		}
		item.state = stateToSend
		n.push(item)

	case frame.TypeDeliveryConfirm:
		if f.Target == n.addr {
			n.confirms.Add(f.ConfirmID)
			return
		}
		item.state = stateToSend
		n.push(item)

	case frame.TypeSearchRequest:
		// The reverse path: the originator is reachable via whoever just
		// transmitted this flood to us.
		n.routes.Learn(f.Source, f.Hop)
		if f.Target == n.addr {
			resp := f.Response(n.addr, n.newMessageID())
			n.pushFront(workItem{state: stateToSend, frame: resp})
			return
		}
		item.state = stateToSend
		n.push(item)

	case frame.TypeSearchResponse:
		n.routes.Learn(f.Source, f.Hop)
		if f.Target != n.addr {
			item.state = stateToSend
			n.push(item)
		}
	}
}

// handleWaitRoute re-checks the route table for a parked item.
func (n *Network) handleWaitRoute(item workItem) {
	f := item.frame

	if _, ok := n.routes.NextHop(f.Target); ok {
		item.state = stateToSend
		n.push(item)
		return
	}

	if time.Since(item.since) > n.cfg.MaxWaitingTime {
		if f.Source == n.addr {
			n.Logger.Debugf("route discovery for %s timed out", f.Target)
			n.dispatcher.PublishSend(f.Target, f.MessageID, event.SendFail)
		}
		return
	}

	n.push(item)
	n.idleWait()
}

// handleWaitResponse matches a transmitted unicast against arrived
// delivery confirmations.
func (n *Network) handleWaitResponse(item workItem) {
	f := item.frame

	if n.confirms.TakeMatch(f.MessageID) {
		n.dispatcher.PublishSend(f.Target, f.MessageID, event.SendSuccess)
		return
	}

	if time.Since(item.since) > n.cfg.MaxWaitingTime {
		if f.Source == n.addr {
			n.Logger.Debugf("confirmation for %08x timed out", f.MessageID)
			n.dispatcher.PublishSend(f.Target, f.MessageID, event.SendFail)
		}
		return
	}

	n.push(item)
	n.idleWait()
}

// idleWait backs off briefly when the only queued work is a waiting item.
func (n *Network) idleWait() {
	if n.queue.Len() == 1 {
		time.Sleep(waitPollInterval)
	}
}

func (n *Network) push(item workItem) {
	if !n.queue.Push(item) {
		n.Logger.Errorf("work queue overflow, dropping %s item", item.state)
	}
}

func (n *Network) pushFront(item workItem) {
	if !n.queue.PushFront(item) {
		n.Logger.Errorf("work queue overflow, dropping %s item", item.state)
	}
}
