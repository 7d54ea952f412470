package fakes

import "sync"

// FakeRecorder counts service observations by result.
type FakeRecorder struct {
	mu    sync.Mutex
	Saves map[string]int
	Lists map[string]int
}

func NewFakeRecorder() *FakeRecorder {
	return &FakeRecorder{Saves: map[string]int{}, Lists: map[string]int{}}
}

func (r *FakeRecorder) ObserveSave(result string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Saves[result]++
}

func (r *FakeRecorder) ObserveList(result string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Lists[result]++
}
