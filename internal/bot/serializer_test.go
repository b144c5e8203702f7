package bot

import (
	"reflect"
	"sync"
	"testing"
	"time"
)

func TestSerializerKeepsOrderPerUser(t *testing.T) {
	s := NewSerializer(nil)
	var (
		mu  sync.Mutex
		got []int
	)
	for i := 0; i < 50; i++ {
		i := i
		s.Go(1, func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		})
	}
	s.Wait()

	want := make([]int, 50)
	for i := range want {
		want[i] = i
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("order mismatch: %v", got)
	}
	if s.Pending() != 0 {
		t.Fatalf("expected lanes released, got %d", s.Pending())
	}
}

func TestSerializerRunsUsersConcurrently(t *testing.T) {
	s := NewSerializer(nil)
	release := make(chan struct{})
	done := make(chan struct{})

	s.Go(1, func() { <-release })
	s.Go(2, func() { close(done) })

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("user 2 blocked behind user 1")
	}
	close(release)
	s.Wait()
}

func TestSerializerSurvivesPanic(t *testing.T) {
	s := NewSerializer(nil)
	ran := false
	s.Go(1, func() { panic("boom") })
	s.Go(1, func() { ran = true })
	s.Wait()
	if !ran {
		t.Fatalf("expected work after panic to run")
	}
}
