// Package cos provides small error and assertion helpers shared across
// rdpmux's internal packages.
//
// Grounded on aistore's cmn/cos/err.go (ErrValue) and cmn/debug (Assert),
// reduced to the subset this module actually needs.
package cos

import (
	"fmt"
	"sync/atomic"
)

// ErrValue stores the first error it is given plus how many errors have
// been observed in total (later errors only bump the count); Cleanup reads it once at teardown to log a single summary
// line instead of one line per failed send retry.
type ErrValue struct {
	v   atomic.Pointer[error]
	cnt atomic.Int64
}

func (ea *ErrValue) Store(err error) {
	if ea.cnt.Add(1) == 1 {
		ea.v.Store(&err)
	}
}

func (ea *ErrValue) Err() error {
	p := ea.v.Load()
	if p == nil {
		return nil
	}
	err := *p
	if cnt := ea.cnt.Load(); cnt > 1 {
		return fmt.Errorf("%w (repeated %dx)", err, cnt)
	}
	return err
}

func (ea *ErrValue) Reset() {
	ea.v.Store(nil)
	ea.cnt.Store(0)
}
