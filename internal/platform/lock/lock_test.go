package lock

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
)

func TestKeyedMutexLocker_Serializes(t *testing.T) {
	l := NewKeyedMutexLocker()
	doctor := uuid.New()

	var inSection, maxInSection int
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := l.WithProfessionalLock(context.Background(), doctor, func(ctx context.Context) error {
				mu.Lock()
				inSection++
				if inSection > maxInSection {
					maxInSection = inSection
				}
				mu.Unlock()

				mu.Lock()
				inSection--
				mu.Unlock()
				return nil
			})
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if maxInSection != 1 {
		t.Errorf("critical section admitted %d goroutines for one professional", maxInSection)
	}
}

func TestKeyedMutexLocker_IndependentProfessionals(t *testing.T) {
	l := NewKeyedMutexLocker()
	d1, d2 := uuid.New(), uuid.New()

	release := make(chan struct{})
	holding := make(chan struct{})

	go func() {
		_ = l.WithProfessionalLock(context.Background(), d1, func(ctx context.Context) error {
			close(holding)
			<-release
			return nil
		})
	}()

	<-holding
	// d2's lock must not be blocked by d1's.
	done := make(chan struct{})
	go func() {
		_ = l.WithProfessionalLock(context.Background(), d2, func(ctx context.Context) error { return nil })
		close(done)
	}()
	<-done
	close(release)
}

func TestKeyedMutexLocker_PropagatesError(t *testing.T) {
	l := NewKeyedMutexLocker()
	want := errors.New("boom")
	err := l.WithProfessionalLock(context.Background(), uuid.New(), func(ctx context.Context) error {
		return want
	})
	if !errors.Is(err, want) {
		t.Errorf("expected fn error back, got %v", err)
	}
}
