package event

import (
	"log"
	"os"
	"testing"
	"time"

	"github.com/skycoin/skycoin/src/util/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meshwire/meshwire/pkg/frame"
)

func TestMain(m *testing.M) {
	loggingLevel, ok := os.LookupEnv("TEST_LOGGING_LEVEL")
	if ok {
		lvl, err := logging.LevelFromString(loggingLevel)
		if err != nil {
			log.Fatal(err)
		}
		logging.SetLevel(lvl)
	} else {
		logging.Disable()
	}

	os.Exit(m.Run())
}

func recvEvent(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(time.Second):
		t.Fatal("no event")
		return Event{}
	}
}

func TestDispatcherSendEvent(t *testing.T) {
	d := NewDispatcher(4)
	defer d.Close()

	_, ch := d.Subscribe()

	target := frame.Addr{1, 2, 3, 4, 5, 6}
	d.PublishSend(target, 42, SendFail)

	ev := recvEvent(t, ch)
	require.NotNil(t, ev.Send)
	assert.Nil(t, ev.Recv)
	assert.Equal(t, target, ev.Send.Addr)
	assert.Equal(t, uint32(42), ev.Send.MessageID)
	assert.Equal(t, SendFail, ev.Send.Status)
}

func TestDispatcherRecvCopiesPayload(t *testing.T) {
	d := NewDispatcher(4)
	defer d.Close()

	_, ch1 := d.Subscribe()
	_, ch2 := d.Subscribe()

	payload := []byte("hello")
	d.PublishRecv(frame.Addr{1}, payload)
	payload[0] = 'X' // must not leak into delivered events

	ev1 := recvEvent(t, ch1)
	ev2 := recvEvent(t, ch2)
	assert.Equal(t, []byte("hello"), ev1.Recv.Payload)
	assert.Equal(t, []byte("hello"), ev2.Recv.Payload)
}

func TestDispatcherUnsubscribe(t *testing.T) {
	d := NewDispatcher(4)
	defer d.Close()

	id, ch := d.Subscribe()
	d.Unsubscribe(id)

	_, open := <-ch
	assert.False(t, open)

	// Publishing after unsubscribe must not panic.
	d.PublishSend(frame.Addr{1}, 1, SendSuccess)
}

func TestDispatcherFullSubscriberDrops(t *testing.T) {
	d := NewDispatcher(1)
	defer d.Close()

	_, ch := d.Subscribe()
	d.PublishSend(frame.Addr{1}, 1, SendSuccess)
	d.PublishSend(frame.Addr{1}, 2, SendSuccess)

	ev := recvEvent(t, ch)
	assert.Equal(t, uint32(1), ev.Send.MessageID)

	select {
	case ev := <-ch:
		t.Fatalf("unexpected second event: %+v", ev)
	default:
	}
}

func TestDispatcherClose(t *testing.T) {
	d := NewDispatcher(4)
	_, ch := d.Subscribe()
	d.Close()

	_, open := <-ch
	assert.False(t, open)

	_, ch2 := d.Subscribe()
	_, open = <-ch2
	assert.False(t, open)
}
