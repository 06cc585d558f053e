package onboarding

import (
	"sync/atomic"

	"github.com/pkg/errors"
)

var ErrStale = errors.New("superseded by a newer request")

// Latest discards the responses of superseded requests: only the last issued ticket is current.
// The zero value is ready to use and safe for concurrent use.
type Latest struct {
	gen atomic.Uint64
}

// Begin issues a ticket, superseding all the previous ones.
func (l *Latest) Begin() uint64 {
	return l.gen.Add(1)
}

func (l *Latest) Current(ticket uint64) bool {
	return l.gen.Load() == ticket
}
