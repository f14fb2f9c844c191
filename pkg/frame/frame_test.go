package frame

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddrString(t *testing.T) {
	a := Addr{0xAA, 0x00, 0x11, 0x22, 0x33, 0x01}
	assert.Equal(t, "aa:00:11:22:33:01", a.String())

	parsed, err := ParseAddr("aa:00:11:22:33:01")
	require.NoError(t, err)
	assert.Equal(t, a, parsed)

	_, err = ParseAddr("aa:00:11")
	assert.Equal(t, ErrInvalidAddr, err)

	_, err = ParseAddr("zz:00:11:22:33:01")
	assert.Equal(t, ErrInvalidAddr, err)
}

func TestAddrBroadcast(t *testing.T) {
	assert.True(t, BroadcastAddr.IsBroadcast())
	assert.False(t, Addr{}.IsBroadcast())
	assert.True(t, Addr{}.IsZero())
}

func TestMarshalRoundTrip(t *testing.T) {
	f := NewUnicast(0xFAFBFCFD, 42, Addr{1, 2, 3, 4, 5, 6}, Addr{6, 5, 4, 3, 2, 1}, []byte("hello"))
	f.Hop = Addr{9, 9, 9, 9, 9, 9}

	b, err := f.Marshal()
	require.NoError(t, err)
	require.Len(t, b, WireSize)

	got, err := Unmarshal(b)
	require.NoError(t, err)
	assert.Equal(t, f.Type, got.Type)
	assert.Equal(t, f.NetworkID, got.NetworkID)
	assert.Equal(t, f.MessageID, got.MessageID)
	assert.Equal(t, f.Target, got.Target)
	assert.Equal(t, f.Source, got.Source)
	assert.Equal(t, f.Payload, got.Payload)

	// The previous hop never crosses the wire.
	assert.True(t, got.Hop.IsZero())
}

func TestMarshalHopNotOnWire(t *testing.T) {
	f := NewBroadcast(1, 2, Addr{1}, []byte("x"))
	plain, err := f.Marshal()
	require.NoError(t, err)

	f.Hop = Addr{0xDE, 0xAD, 0xBE, 0xEF, 0x00, 0x01}
	stamped, err := f.Marshal()
	require.NoError(t, err)

	assert.True(t, bytes.Equal(plain, stamped))
}

func TestMarshalPayloadCap(t *testing.T) {
	f := NewBroadcast(1, 2, Addr{1}, make([]byte, PayloadCap))
	_, err := f.Marshal()
	require.NoError(t, err)

	f.Payload = make([]byte, PayloadCap+1)
	_, err = f.Marshal()
	assert.Equal(t, ErrPayloadSize, err)
}

func TestUnmarshalWrongSize(t *testing.T) {
	_, err := Unmarshal(make([]byte, WireSize-1))
	assert.Equal(t, ErrFrameSize, err)

	_, err = Unmarshal(make([]byte, WireSize+1))
	assert.Equal(t, ErrFrameSize, err)
}

func TestConfirmSynthesis(t *testing.T) {
	self := Addr{6, 5, 4, 3, 2, 1}
	u := NewUnicast(7, 100, Addr{1, 2, 3, 4, 5, 6}, self, []byte("data"))

	c := u.Confirm(self, 200)
	assert.Equal(t, TypeDeliveryConfirm, c.Type)
	assert.Equal(t, uint32(100), c.ConfirmID)
	assert.Equal(t, uint32(200), c.MessageID)
	assert.Equal(t, u.Source, c.Target)
	assert.Equal(t, self, c.Source)
	assert.Empty(t, c.Payload)
}

func TestResponseSynthesis(t *testing.T) {
	self := Addr{6, 5, 4, 3, 2, 1}
	req := NewSearchRequest(7, 100, Addr{1, 2, 3, 4, 5, 6}, self)

	resp := req.Response(self, 300)
	assert.Equal(t, TypeSearchResponse, resp.Type)
	assert.Equal(t, uint32(300), resp.MessageID)
	assert.Equal(t, req.Source, resp.Target)
	assert.Equal(t, self, resp.Source)
	assert.Empty(t, resp.Payload)
}
