package backend

import "sync"

// EventHub fans session events out to subscribers. Each subscriber owns an
// unbounded FIFO drained by its own goroutine, so Publish never blocks and
// every subscriber sees events in publish order.
// The zero value is ready to use.
type EventHub struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]*subscriber
}

type subscriber struct {
	mu    sync.Mutex
	queue []SessionEvent
	wake  chan struct{}
	out   chan SessionEvent
	done  chan struct{}
	once  sync.Once
}

func (h *EventHub) Subscribe() (<-chan SessionEvent, func()) {
	s := &subscriber{
		wake: make(chan struct{}, 1),
		out:  make(chan SessionEvent),
		done: make(chan struct{}),
	}

	h.mu.Lock()
	if h.subs == nil {
		h.subs = make(map[int]*subscriber)
	}
	id := h.nextID
	h.nextID++
	h.subs[id] = s
	h.mu.Unlock()

	go s.pump()

	return s.out, func() {
		h.mu.Lock()
		delete(h.subs, id)
		h.mu.Unlock()
		s.stop()
	}
}

func (h *EventHub) Publish(ev SessionEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, s := range h.subs {
		s.push(ev)
	}
}

// Close releases every subscription.
func (h *EventHub) Close() {
	h.mu.Lock()
	subs := h.subs
	h.subs = nil
	h.mu.Unlock()
	for _, s := range subs {
		s.stop()
	}
}

func (s *subscriber) push(ev SessionEvent) {
	s.mu.Lock()
	s.queue = append(s.queue, ev)
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *subscriber) stop() {
	s.once.Do(func() { close(s.done) })
}

func (s *subscriber) pump() {
	defer close(s.out)
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.mu.Unlock()
			select {
			case <-s.wake:
				continue
			case <-s.done:
				return
			}
		}
		ev := s.queue[0]
		s.queue[0] = SessionEvent{}
		s.queue = s.queue[1:]
		s.mu.Unlock()

		select {
		case s.out <- ev:
		case <-s.done:
			return
		}
	}
}
