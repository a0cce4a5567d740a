package concurrency

// SimpleMutex is a channel-based lock guarding the message queue shared
// between a subscription callback and its interactive drainer.
type SimpleMutex chan struct{}

// NewSimpleMutex creates and returns a new SimpleMutex object.
func NewSimpleMutex() SimpleMutex {
	return make(SimpleMutex, 1)
}

// Lock acquires the mutex.
func (s SimpleMutex) Lock() {
	s <- struct{}{}
}

// Unlock releases the mutex.
func (s SimpleMutex) Unlock() {
	<-s
}
