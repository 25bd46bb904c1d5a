package payment

import (
	"strings"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/google/uuid"
)

const maxRootAttempts = 5

// RootIssuer hands out transaction roots and remembers the ones it issued in
// a bloom filter, so a probable repeat within this process is drawn again.
type RootIssuer struct {
	mu     sync.Mutex
	issued *bloom.BloomFilter
	random func() string
}

// NewRootIssuer sizes the filter for capacity roots at a 0.1% false-positive rate.
func NewRootIssuer(capacity uint) *RootIssuer {
	return &RootIssuer{
		issued: bloom.NewWithEstimates(capacity, 0.001),
		random: func() string {
			return strings.ReplaceAll(uuid.NewString(), "-", "")
		},
	}
}

// Next returns a fresh root. After maxRootAttempts probable repeats the last
// draw is used anyway; the gateway rejects true duplicates.
func (r *RootIssuer) Next() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var root string
	for i := 0; i < maxRootAttempts; i++ {
		root = r.random()
		if !r.issued.TestString(root) {
			break
		}
	}
	r.issued.AddString(root)
	return root
}
