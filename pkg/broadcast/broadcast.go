package broadcast

import "sync"

// Broadcaster — типизированный реестр слушателей. Каждая подписка получает
// свой хэндл и отменяется независимо, без общей глобальной map по именам
// событий.
type Broadcaster[T any] struct {
	mu        sync.Mutex
	listeners map[int]func(T)
	next      int
}

func New[T any]() *Broadcaster[T] {
	return &Broadcaster[T]{listeners: make(map[int]func(T))}
}

type Subscription struct {
	once   sync.Once
	cancel func()
}

func (s *Subscription) Cancel() {
	s.once.Do(s.cancel)
}

func (b *Broadcaster[T]) Subscribe(fn func(T)) *Subscription {
	b.mu.Lock()
	id := b.next
	b.next++
	b.listeners[id] = fn
	b.mu.Unlock()

	return &Subscription{cancel: func() {
		b.mu.Lock()
		delete(b.listeners, id)
		b.mu.Unlock()
	}}
}

// Notify вызывает слушателей синхронно, вне блокировки реестра.
func (b *Broadcaster[T]) Notify(event T) {
	b.mu.Lock()
	listeners := make([]func(T), 0, len(b.listeners))
	for _, fn := range b.listeners {
		listeners = append(listeners, fn)
	}
	b.mu.Unlock()

	for _, fn := range listeners {
		fn(event)
	}
}

func (b *Broadcaster[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.listeners)
}
