package mesh

import (
	"time"

	"github.com/meshwire/meshwire/pkg/link"
)

// DefaultNetworkID is the administrative mesh discriminator used when the
// config does not set one explicitly.
const DefaultNetworkID uint32 = 0xFAFBFCFD

// Config defines configuration parameters for a Network. Every field is
// validated in New; an invalid config fails initialization.
type Config struct {
	// NetworkID discriminates co-located meshes; frames carrying another
	// value are dropped silently.
	NetworkID uint32 `json:"network_id"`

	// QueueSize is the work queue capacity. It also bounds the pending
	// confirmation list. Minimum 4, so the admission thresholds keep
	// headroom.
	QueueSize int `json:"queue_size"`

	// MaxWaitingTime bounds route discovery and confirmation waits.
	MaxWaitingTime time.Duration `json:"max_waiting_time"`

	// SendTimeout bounds the wait for a single link send completion.
	SendTimeout time.Duration `json:"send_timeout"`

	// SendAttempts is how many times a transmission is attempted at the
	// link level before it counts as failed; 1 means no retry.
	SendAttempts int `json:"send_attempts"`

	// IDCacheSize bounds the seen-message-id cache.
	IDCacheSize int `json:"id_cache_size"`

	// RouteCacheSize bounds the route table.
	RouteCacheSize int `json:"route_cache_size"`

	// LogStore, when set, accumulates per-peer traffic counters.
	LogStore link.LogStore `json:"-"`
}

// DefaultConfig returns the stock configuration.
func DefaultConfig() Config {
	return Config{
		NetworkID:      DefaultNetworkID,
		QueueSize:      32,
		MaxWaitingTime: time.Second,
		SendTimeout:    50 * time.Millisecond,
		SendAttempts:   1,
		IDCacheSize:    100,
		RouteCacheSize: 100,
	}
}

// Validate reports whether the config can run an engine.
func (c Config) Validate() error {
	if c.QueueSize < 4 {
		return ErrInvalidConfig
	}
	if c.MaxWaitingTime < 0 {
		return ErrInvalidConfig
	}
	if c.SendTimeout <= 0 {
		return ErrInvalidConfig
	}
	if c.SendAttempts < 1 {
		return ErrInvalidConfig
	}
	if c.IDCacheSize < 1 || c.RouteCacheSize < 1 {
		return ErrInvalidConfig
	}
	return nil
}
