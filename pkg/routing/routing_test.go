package routing

import (
	"log"
	"os"
	"testing"

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

func addr(last byte) frame.Addr {
	return frame.Addr{0xAA, 0, 0, 0, 0, last}
}

func TestTableLearnAndLookup(t *testing.T) {
	tbl := NewTable(100)

	_, ok := tbl.NextHop(addr(3))
	assert.False(t, ok)

	tbl.Learn(addr(3), addr(2))
	hop, ok := tbl.NextHop(addr(3))
	require.True(t, ok)
	assert.Equal(t, addr(2), hop)
}

func TestTableUniqueByDestination(t *testing.T) {
	tbl := NewTable(100)

	tbl.Learn(addr(3), addr(2))
	tbl.Learn(addr(3), addr(4))

	assert.Equal(t, 1, tbl.Count())
	hop, ok := tbl.NextHop(addr(3))
	require.True(t, ok)
	assert.Equal(t, addr(4), hop)
}

func TestTableEviction(t *testing.T) {
	tbl := NewTable(2)

	tbl.Learn(addr(1), addr(9))
	tbl.Learn(addr(2), addr(9))
	tbl.Learn(addr(3), addr(9))

	assert.Equal(t, 2, tbl.Count())
	_, ok := tbl.NextHop(addr(1))
	assert.False(t, ok)
	_, ok = tbl.NextHop(addr(3))
	assert.True(t, ok)
}

func TestTableInvalidate(t *testing.T) {
	tbl := NewTable(100)
	tbl.Learn(addr(3), addr(2))

	assert.True(t, tbl.Invalidate(addr(3)))
	assert.False(t, tbl.Invalidate(addr(3)))
	assert.Equal(t, 0, tbl.Count())
}

func TestSeenCacheDedup(t *testing.T) {
	c := NewSeenCache(100)

	assert.True(t, c.AddIfNew(42))
	assert.False(t, c.AddIfNew(42))
	assert.True(t, c.Contains(42))
	assert.Equal(t, 1, c.Len())
}

func TestSeenCacheEviction(t *testing.T) {
	c := NewSeenCache(3)

	for _, id := range []uint32{1, 2, 3, 4} {
		c.Add(id)
	}

	// id 1 has been evicted; replaying it is accepted once more.
	assert.Equal(t, 3, c.Len())
	assert.False(t, c.Contains(1))
	assert.True(t, c.AddIfNew(1))
	assert.False(t, c.Contains(2))
}

func TestConfirmListTakeMatch(t *testing.T) {
	l := NewConfirmList(32)

	l.Add(7)
	assert.True(t, l.TakeMatch(7))
	assert.False(t, l.TakeMatch(7))
	assert.Equal(t, 0, l.Len())
}

func TestConfirmListEviction(t *testing.T) {
	l := NewConfirmList(2)

	l.Add(1)
	l.Add(2)
	l.Add(3)

	assert.Equal(t, 2, l.Len())
	assert.False(t, l.TakeMatch(1))
	assert.True(t, l.TakeMatch(2))
	assert.True(t, l.TakeMatch(3))
}
