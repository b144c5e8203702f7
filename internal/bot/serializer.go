package bot

import (
	"sync"

	"go.uber.org/zap"
)

// Serializer runs work for one user at a time in arrival order. Different
// users run concurrently.
type Serializer struct {
	mu     sync.Mutex
	lanes  map[int64]*lane
	wg     sync.WaitGroup
	logger *zap.Logger
}

type lane struct {
	queue []func()
}

func NewSerializer(logger *zap.Logger) *Serializer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Serializer{lanes: make(map[int64]*lane), logger: logger}
}

// Go queues fn behind any pending work of userID.
func (s *Serializer) Go(userID int64, fn func()) {
	s.mu.Lock()
	if l, ok := s.lanes[userID]; ok {
		l.queue = append(l.queue, fn)
		s.mu.Unlock()
		return
	}
	l := &lane{queue: []func(){fn}}
	s.lanes[userID] = l
	s.wg.Add(1)
	s.mu.Unlock()

	go s.drain(userID, l)
}

func (s *Serializer) drain(userID int64, l *lane) {
	defer s.wg.Done()
	for {
		s.mu.Lock()
		if len(l.queue) == 0 {
			delete(s.lanes, userID)
			s.mu.Unlock()
			return
		}
		fn := l.queue[0]
		l.queue = l.queue[1:]
		s.mu.Unlock()

		s.run(userID, fn)
	}
}

func (s *Serializer) run(userID int64, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("event handler panicked", zap.Int64("user_id", userID), zap.Any("panic", r))
		}
	}()
	fn()
}

// Wait blocks until all queued work has finished.
func (s *Serializer) Wait() {
	s.wg.Wait()
}

// Pending returns the number of users with queued or running work.
func (s *Serializer) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.lanes)
}
