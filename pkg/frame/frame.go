// Package frame defines the fixed-width on-wire frame exchanged between
// mesh nodes and the codec for it.
package frame

import (
	"encoding/binary"
	"errors"
)

// MessageType distinguishes the five frame kinds carried by the mesh.
type MessageType byte

const (
	// TypeBroadcast is a frame flooded to every reachable node.
	TypeBroadcast MessageType = iota
	// TypeUnicast is a frame routed hop-by-hop to a single node.
	TypeUnicast
	// TypeDeliveryConfirm acknowledges a unicast end-to-end.
	TypeDeliveryConfirm
	// TypeSearchRequest floods a reactive route discovery.
	TypeSearchRequest
	// TypeSearchResponse answers a search request back to its originator.
	TypeSearchResponse
)

func (t MessageType) String() string {
	switch t {
	case TypeBroadcast:
		return "broadcast"
	case TypeUnicast:
		return "unicast"
	case TypeDeliveryConfirm:
		return "delivery-confirm"
	case TypeSearchRequest:
		return "search-request"
	case TypeSearchResponse:
		return "search-response"
	default:
		return "unknown"
	}
}

const (
	// PayloadCap is the maximum user payload per frame. It must agree
	// network-wide; nodes built with a different value cannot interoperate.
	PayloadCap = 218

	// headerLen is type + network id + message id + confirm id + target + source.
	headerLen = 1 + 4 + 4 + 4 + AddrLen + AddrLen

	// WireSize is the exact size of every transmission: header, payload
	// area and the trailing payload length byte. The previous-hop address
	// is never on the wire; receivers stamp it from the link callback.
	WireSize = headerLen + PayloadCap + 1
)

var (
	// ErrFrameSize is returned when unmarshalling a buffer that is not
	// exactly WireSize bytes.
	ErrFrameSize = errors.New("frame: wrong wire size")
	// ErrPayloadSize is returned when a payload exceeds PayloadCap.
	ErrPayloadSize = errors.New("frame: payload exceeds cap")
)

// Frame is a single mesh transmission. Which fields are meaningful depends
// on Type; the constructor and synthesis helpers keep unused fields zero.
type Frame struct {
	Type      MessageType
	NetworkID uint32
	MessageID uint32
	ConfirmID uint32 // message id being acknowledged; delivery confirms only
	Target    Addr   // ultimate destination (broadcast address for floods)
	Source    Addr   // ultimate originator
	Hop       Addr   // previous hop; stamped by the receiver, never trusted on wire
	Payload   []byte
}

// NewBroadcast constructs an originated broadcast frame.
func NewBroadcast(networkID, messageID uint32, source Addr, payload []byte) Frame {
	return Frame{
		Type:      TypeBroadcast,
		NetworkID: networkID,
		MessageID: messageID,
		Target:    BroadcastAddr,
		Source:    source,
		Payload:   payload,
	}
}

// NewUnicast constructs an originated unicast frame.
func NewUnicast(networkID, messageID uint32, source, target Addr, payload []byte) Frame {
	return Frame{
		Type:      TypeUnicast,
		NetworkID: networkID,
		MessageID: messageID,
		Target:    target,
		Source:    source,
		Payload:   payload,
	}
}

// NewSearchRequest constructs a route discovery flood for target.
func NewSearchRequest(networkID, messageID uint32, source, target Addr) Frame {
	return Frame{
		Type:      TypeSearchRequest,
		NetworkID: networkID,
		MessageID: messageID,
		Target:    target,
		Source:    source,
	}
}

// Confirm synthesizes the delivery confirmation for a received unicast f.
// Sender and target swap and the confirmed id is f's message id.
func (f Frame) Confirm(self Addr, messageID uint32) Frame {
	return Frame{
		Type:      TypeDeliveryConfirm,
		NetworkID: f.NetworkID,
		MessageID: messageID,
		ConfirmID: f.MessageID,
		Target:    f.Source,
		Source:    self,
	}
}

// Response synthesizes the search response answering a search request f.
func (f Frame) Response(self Addr, messageID uint32) Frame {
	return Frame{
		Type:      TypeSearchResponse,
		NetworkID: f.NetworkID,
		MessageID: messageID,
		Target:    f.Source,
		Source:    self,
	}
}

// Marshal encodes f into a fresh WireSize buffer. The Hop field is not
// encoded. Returns ErrPayloadSize if the payload exceeds PayloadCap.
func (f Frame) Marshal() ([]byte, error) {
	if len(f.Payload) > PayloadCap {
		return nil, ErrPayloadSize
	}
	b := make([]byte, WireSize)
	b[0] = byte(f.Type)
	binary.LittleEndian.PutUint32(b[1:], f.NetworkID)
	binary.LittleEndian.PutUint32(b[5:], f.MessageID)
	binary.LittleEndian.PutUint32(b[9:], f.ConfirmID)
	copy(b[13:], f.Target[:])
	copy(b[19:], f.Source[:])
	copy(b[headerLen:], f.Payload)
	b[WireSize-1] = byte(len(f.Payload))
	return b, nil
}

// Unmarshal decodes a received buffer. The buffer must be exactly WireSize
// bytes; anything else is dropped by callers as malformed. The returned
// frame owns a copy of the payload.
func Unmarshal(b []byte) (Frame, error) {
	var f Frame
	if len(b) != WireSize {
		return f, ErrFrameSize
	}
	f.Type = MessageType(b[0])
	f.NetworkID = binary.LittleEndian.Uint32(b[1:])
	f.MessageID = binary.LittleEndian.Uint32(b[5:])
	f.ConfirmID = binary.LittleEndian.Uint32(b[9:])
	copy(f.Target[:], b[13:])
	copy(f.Source[:], b[19:])
	n := int(b[WireSize-1])
	if n > PayloadCap {
		n = PayloadCap
	}
	f.Payload = make([]byte, n)
	copy(f.Payload, b[headerLen:headerLen+n])
	return f, nil
}
