package udplink

import "github.com/meshwire/meshwire/pkg/frame"

// packEnvelope prefixes data with the intended receiver and the sender.
func packEnvelope(dst, src frame.Addr, data []byte) []byte {
	buf := make([]byte, envelopeLen+len(data))
	copy(buf, dst[:])
	copy(buf[frame.AddrLen:], src[:])
	copy(buf[envelopeLen:], data)
	return buf
}

// unpackEnvelope splits a received datagram, copying the payload out of
// the read buffer.
func unpackEnvelope(buf []byte) (dst, src frame.Addr, data []byte, ok bool) {
	if len(buf) < envelopeLen {
		return dst, src, nil, false
	}
	copy(dst[:], buf[:frame.AddrLen])
	copy(src[:], buf[frame.AddrLen:envelopeLen])
	data = make([]byte, len(buf)-envelopeLen)
	copy(data, buf[envelopeLen:])
	return dst, src, data, true
}
