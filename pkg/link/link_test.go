package link

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meshwire/meshwire/pkg/frame"
)

func addr(last byte) frame.Addr {
	return frame.Addr{0xAA, 0, 0, 0, 0, last}
}

func TestSendAwaiter(t *testing.T) {
	w := NewSendAwaiter()

	_, err := w.Wait(10 * time.Millisecond)
	assert.Equal(t, ErrSendTimeout, err)

	w.Done(SendSuccess)
	st, err := w.Wait(10 * time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, SendSuccess, st)

	// A stale completion is discarded by Arm.
	w.Done(SendFail)
	w.Arm()
	_, err = w.Wait(10 * time.Millisecond)
	assert.Equal(t, ErrSendTimeout, err)
}

type recorder struct {
	mu     sync.Mutex
	frames [][]byte
	srcs   []frame.Addr
}

func (r *recorder) recv(src frame.Addr, data []byte) {
	r.mu.Lock()
	r.srcs = append(r.srcs, src)
	r.frames = append(r.frames, data)
	r.mu.Unlock()
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.frames)
}

func waitStatus(t *testing.T, ch <-chan SendStatus) SendStatus {
	t.Helper()
	select {
	case st := <-ch:
		return st
	case <-time.After(time.Second):
		t.Fatal("no send status")
		return SendFail
	}
}

func TestMockLinkUnicast(t *testing.T) {
	m := NewMedium()
	la := m.NewLink(addr(1))
	lb := m.NewLink(addr(2))
	m.Connect(addr(1), addr(2))

	var rec recorder
	lb.HandleRecv(rec.recv)

	statusCh := make(chan SendStatus, 1)
	la.HandleSendStatus(func(_ frame.Addr, st SendStatus) { statusCh <- st })

	require.Equal(t, ErrUnknownPeer, la.Transmit(addr(2), []byte("x")))

	require.NoError(t, la.AddPeer(addr(2)))
	require.NoError(t, la.Transmit(addr(2), []byte("x")))
	assert.Equal(t, SendSuccess, waitStatus(t, statusCh))

	for i := 0; i < 100 && rec.count() == 0; i++ {
		time.Sleep(time.Millisecond)
	}
	require.Equal(t, 1, rec.count())
	assert.Equal(t, addr(1), rec.srcs[0])
}

func TestMockLinkUnreachablePeerFails(t *testing.T) {
	m := NewMedium()
	la := m.NewLink(addr(1))
	m.NewLink(addr(3)) // attached but not connected to A

	statusCh := make(chan SendStatus, 1)
	la.HandleSendStatus(func(_ frame.Addr, st SendStatus) { statusCh <- st })

	require.NoError(t, la.AddPeer(addr(3)))
	require.NoError(t, la.Transmit(addr(3), []byte("x")))
	assert.Equal(t, SendFail, waitStatus(t, statusCh))
}

func TestMockLinkBroadcastReachesNeighborsOnly(t *testing.T) {
	m := NewMedium()
	la := m.NewLink(addr(1))
	lb := m.NewLink(addr(2))
	lc := m.NewLink(addr(3))
	m.Connect(addr(1), addr(2)) // line: A-B, B-C
	m.Connect(addr(2), addr(3))

	var recB, recC recorder
	lb.HandleRecv(recB.recv)
	lc.HandleRecv(recC.recv)

	statusCh := make(chan SendStatus, 1)
	la.HandleSendStatus(func(_ frame.Addr, st SendStatus) { statusCh <- st })

	require.NoError(t, la.AddPeer(frame.BroadcastAddr))
	require.NoError(t, la.Transmit(frame.BroadcastAddr, []byte("hi")))
	assert.Equal(t, SendSuccess, waitStatus(t, statusCh))

	for i := 0; i < 100 && recB.count() == 0; i++ {
		time.Sleep(time.Millisecond)
	}
	assert.Equal(t, 1, recB.count())
	assert.Equal(t, 0, recC.count())
}

func TestMockLinkDown(t *testing.T) {
	m := NewMedium()
	la := m.NewLink(addr(1))
	m.NewLink(addr(2))
	m.Connect(addr(1), addr(2))

	statusCh := make(chan SendStatus, 1)
	la.HandleSendStatus(func(_ frame.Addr, st SendStatus) { statusCh <- st })
	require.NoError(t, la.AddPeer(addr(2)))

	m.Down(addr(2))
	require.NoError(t, la.Transmit(addr(2), []byte("x")))
	assert.Equal(t, SendFail, waitStatus(t, statusCh))

	m.Up(addr(2))
	require.NoError(t, la.Transmit(addr(2), []byte("x")))
	assert.Equal(t, SendSuccess, waitStatus(t, statusCh))
}

func TestInMemoryLogStore(t *testing.T) {
	ls := InMemoryLogStore()

	entry, err := ls.Entry(addr(1))
	require.NoError(t, err)

	entry.AddSent(239)
	entry.AddReceived(239)
	require.NoError(t, ls.Record(addr(1), entry))

	got, err := ls.Entry(addr(1))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), got.SentFrames)
	assert.Equal(t, uint64(239), got.SentBytes)
	assert.Equal(t, uint64(1), got.ReceivedFrames)
}

func TestBoltDBLogStore(t *testing.T) {
	dir, err := os.MkdirTemp("", "linklog")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	ls, err := BoltDBLogStore(filepath.Join(dir, "log.db"))
	require.NoError(t, err)
	defer ls.(*boltDBLogStore).Close()

	entry := &LogEntry{SentFrames: 2, SentBytes: 478}
	require.NoError(t, ls.Record(addr(1), entry))

	got, err := ls.Entry(addr(1))
	require.NoError(t, err)
	assert.Equal(t, entry, got)

	missing, err := ls.Entry(addr(9))
	require.NoError(t, err)
	assert.Equal(t, &LogEntry{}, missing)
}

func TestFileLogStore(t *testing.T) {
	dir, err := os.MkdirTemp("", "linklog")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	ls := FileLogStore(dir)
	entry := &LogEntry{ReceivedFrames: 3, ReceivedBytes: 717}
	require.NoError(t, ls.Record(addr(1), entry))

	got, err := ls.Entry(addr(1))
	require.NoError(t, err)
	assert.Equal(t, entry, got)
}
