// internal/domain/order/sequence.go
package order

import (
	"fmt"
	"sync"

	"gorm.io/gorm"
)

// Sequence hands out monotonically increasing order numbers. It seeds itself
// from the highest persisted order number so restarts continue the series;
// the unique index on orders.order_number backs it up.
type Sequence struct {
	mu   sync.Mutex
	next uint64
}

// NewSequence creates a sequence seeded from the orders table
func NewSequence(db *gorm.DB) (*Sequence, error) {
	var last string
	err := db.Model(&Order{}).
		Select("order_number").
		Order("id DESC").
		Limit(1).
		Scan(&last).Error
	if err != nil {
		return nil, fmt.Errorf("failed to seed order sequence: %w", err)
	}

	var seed uint64
	if last != "" {
		if _, err := fmt.Sscanf(last, "ORD-%d", &seed); err != nil {
			return nil, fmt.Errorf("unparseable order number %q: %w", last, err)
		}
	}

	return &Sequence{next: seed + 1}, nil
}

// Next returns the next order number in the series
func (s *Sequence) Next() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.next
	s.next++
	return fmt.Sprintf("ORD-%06d", n)
}
