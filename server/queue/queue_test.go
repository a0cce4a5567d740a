package queue

import (
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestInsertDrainOrder(t *testing.T) {
	q := NewMessages()
	q.Insert("one")
	q.Insert("two")
	q.Insert("three")

	if q.Len() != 3 {
		t.Errorf("Len: expected 3, got %d", q.Len())
	}

	got := q.DrainAll()
	want := []string{"one", "two", "three"}
	if !cmp.Equal(got, want) {
		t.Errorf("DrainAll: %s", cmp.Diff(want, got))
	}
	if q.Len() != 0 {
		t.Errorf("Len after drain: expected 0, got %d", q.Len())
	}
}

func TestPopLast(t *testing.T) {
	q := NewMessages()
	if _, ok := q.PopLast(); ok {
		t.Error("PopLast on empty queue must report not-ok")
	}

	q.Insert("first")
	q.Insert("second")

	msg, ok := q.PopLast()
	if !ok || msg != "first" {
		t.Errorf("PopLast: expected 'first', got '%s' (ok=%v)", msg, ok)
	}
	msg, ok = q.PopLast()
	if !ok || msg != "second" {
		t.Errorf("PopLast: expected 'second', got '%s' (ok=%v)", msg, ok)
	}
}

func TestContains(t *testing.T) {
	q := NewMessages()
	q.Insert("USER_REQUEST:alice")

	if !q.Contains("USER_REQUEST:alice") {
		t.Error("Contains: expected exact match to be found")
	}
	if q.Contains("USER_REQUEST:ali") {
		t.Error("Contains: prefix must not match")
	}
}

func TestConcurrentWriterReader(t *testing.T) {
	q := NewMessages()
	const n = 500

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			q.Insert("msg")
		}
	}()

	drained := 0
	for drained < n {
		if _, ok := q.PopLast(); ok {
			drained++
		}
	}
	wg.Wait()

	if q.Len() != 0 {
		t.Errorf("expected empty queue, %d left", q.Len())
	}
}
