package redisconn

import "sync"

// futures is a FIFO of pending calls in wire order.
type futures struct {
	mu sync.Mutex
	q  []*Future
	h  int
}

func (fs *futures) push(f *Future) {
	fs.mu.Lock()
	fs.q = append(fs.q, f)
	fs.mu.Unlock()
}

func (fs *futures) peek() *Future {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.h == len(fs.q) {
		return nil
	}
	return fs.q[fs.h]
}

// popIf removes head if it is f.
func (fs *futures) popIf(f *Future) bool {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.h == len(fs.q) || fs.q[fs.h] != f {
		return false
	}
	fs.q[fs.h] = nil
	fs.h++
	fs.compact()
	return true
}

// removeTransport removes and returns all futures written to t.
func (fs *futures) removeTransport(t *transport) []*Future {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	var removed []*Future
	kept := fs.q[:0]
	for _, f := range fs.q[fs.h:] {
		if f.t == t {
			removed = append(removed, f)
		} else {
			kept = append(kept, f)
		}
	}
	clear(fs.q[len(kept):])
	fs.q = kept
	fs.h = 0
	return removed
}

func (fs *futures) drainAll() []*Future {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	all := append([]*Future(nil), fs.q[fs.h:]...)
	fs.q = nil
	fs.h = 0
	return all
}

func (fs *futures) len() int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return len(fs.q) - fs.h
}

func (fs *futures) compact() {
	if fs.h == len(fs.q) {
		fs.q = fs.q[:0]
		fs.h = 0
		return
	}
	if fs.h > 64 && fs.h*2 > len(fs.q) {
		n := copy(fs.q, fs.q[fs.h:])
		clear(fs.q[n:])
		fs.q = fs.q[:n]
		fs.h = 0
	}
}
