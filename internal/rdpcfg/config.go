// Package rdpcfg holds the small set of tunables every long-lived
// component in rdpmux is threaded with, the way aistore threads
// *cmn.Config through transport.Extra and bundle.DM. spec.md's "no
// configuration beyond init/connect arguments" rules out *user-facing*
// config, not these compiled-in, overridable-for-tests knobs.
package rdpcfg

import (
	"time"

	jsoniter "github.com/json-iterator/go"
)

// Config bundles the tunables threaded through every rdpmux component.
type Config struct {
	// PollTick is the Transport Adapter's poll timeout (spec.md §4.8: 5ms).
	PollTick time.Duration `json:"poll_tick"`

	// SendRetryBase/SendRetryMax/SendRetryCap govern the bounded
	// exponential backoff applied to transport sends (spec.md §9, Open
	// Question "send retry" resolved towards bounded backoff).
	SendRetryBase time.Duration `json:"send_retry_base"`
	SendRetryMax  time.Duration `json:"send_retry_max"`
	SendRetryCap  int           `json:"send_retry_cap"`

	// PollErrBackoffBase/PollErrBackoffMax bound the backoff the Main
	// I/O Thread applies between consecutive non-timeout Poll errors on
	// a dead connection, so a socket that stays closed until the next
	// display_switch reconnects it logs and spins at a bounded rate
	// instead of pegging a core (same shape as SendRetryBase/Max).
	PollErrBackoffBase time.Duration `json:"poll_err_backoff_base"`
	PollErrBackoffMax  time.Duration `json:"poll_err_backoff_max"`

	// QueueInitialCap is the Message Queue's initial backing slice capacity.
	QueueInitialCap int `json:"queue_initial_cap"`

	// MaxWidth/MaxHeight/BytesPerPixel size the Shared Frame Buffer
	// (spec.md §3: 4096x2048x4 = 33,554,432 bytes).
	MaxWidth      int32 `json:"max_width"`
	MaxHeight     int32 `json:"max_height"`
	BytesPerPixel int32 `json:"bytes_per_pixel"`

	// AlignPixels is the tile-alignment grid applied to dirty rects at
	// refresh time (spec.md §4.6: 16).
	AlignPixels int32 `json:"align_pixels"`
}

// Default returns the compiled-in defaults matching spec.md exactly.
func Default() *Config {
	return &Config{
		PollTick:           5 * time.Millisecond,
		SendRetryBase:      time.Millisecond,
		SendRetryMax:       200 * time.Millisecond,
		SendRetryCap:       20,
		PollErrBackoffBase: time.Millisecond,
		PollErrBackoffMax:  200 * time.Millisecond,
		QueueInitialCap:    16,
		MaxWidth:           4096,
		MaxHeight:          2048,
		BytesPerPixel:      4,
		AlignPixels:        16,
	}
}

// SharedFrameSize returns the size of the pixel area of the named
// shared-memory region (spec.md §3/§4.4): MaxWidth * MaxHeight *
// BytesPerPixel. shm.Open maps an 8-byte generation trailer past it.
func (c *Config) SharedFrameSize() int64 {
	return int64(c.MaxWidth) * int64(c.MaxHeight) * int64(c.BytesPerPixel)
}

// Dump renders the config as JSON for diagnostics — mirrors
// stats/common.go's use of jsoniter for stats snapshots.
func (c *Config) Dump() string {
	b, err := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalIndent(c, "", "  ")
	if err != nil {
		return "<config: " + err.Error() + ">"
	}
	return string(b)
}
