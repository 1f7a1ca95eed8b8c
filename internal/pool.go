// Package internal holds helpers shared by redisnet packages.
package internal

import "sync"

// Serial runs functions one after another in submission order.
// Queue is unbounded, so Go never blocks; worker goroutine lives while queue is not empty.
// Zero value is ready to use.
type Serial struct {
	mu      sync.Mutex
	q       []func()
	running bool
}

// Go enqueues f.
func (s *Serial) Go(f func()) {
	s.mu.Lock()
	s.q = append(s.q, f)
	if !s.running {
		s.running = true
		go s.run()
	}
	s.mu.Unlock()
}

// Len returns number of functions not yet started.
func (s *Serial) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.q)
}

func (s *Serial) run() {
	for {
		s.mu.Lock()
		if len(s.q) == 0 {
			s.running = false
			s.q = nil
			s.mu.Unlock()
			return
		}
		f := s.q[0]
		s.q[0] = nil
		s.q = s.q[1:]
		s.mu.Unlock()
		f()
	}
}
