package match

import "sync"

// ClaimedSet — принятые этим курьером заказы. Лента консультируется с ним,
// чтобы выигранный заказ не появлялся в собственном списке доступных.
type ClaimedSet struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

func NewClaimedSet() *ClaimedSet {
	return &ClaimedSet{ids: make(map[string]struct{})}
}

func (s *ClaimedSet) Add(orderID string) {
	s.mu.Lock()
	s.ids[orderID] = struct{}{}
	s.mu.Unlock()
}

func (s *ClaimedSet) Contains(orderID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.ids[orderID]
	return ok
}
