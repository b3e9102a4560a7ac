package outstanding

import (
	"sync"
	"testing"
)

func TestCASLatticeInitToSendComplete(t *testing.T) {
	r := NewRequest(KindControl, 0, nil, nil)
	r.store(StatusInit)

	if !r.CAS(StatusInit, StatusSendComplete) {
		t.Fatal("CAS INIT->SEND_COMPLETE failed on a fresh request")
	}
	if r.Status() != StatusSendComplete {
		t.Errorf("Status() = %v, want SEND_COMPLETE", r.Status())
	}
	if r.CAS(StatusInit, StatusSendComplete) {
		t.Error("CAS INIT->SEND_COMPLETE succeeded twice")
	}
}

// TestCASLatticeNeverCompletesTwice exercises the race between send
// completion, receive completion and cancellation: regardless of
// interleaving, at least one of the three goroutines observes a winning
// CAS, and send and cancel never both move the request out of INIT (send
// followed by recv may both win). Grounded on the teacher's own
// runner_test.go goroutine-stress style.
func TestCASLatticeNeverCompletesTwice(t *testing.T) {
	for i := 0; i < 200; i++ {
		r := NewRequest(KindControl, 0, nil, nil)
		r.store(StatusInit)

		var wg sync.WaitGroup
		wins := make(chan string, 3)

		wg.Add(3)
		go func() {
			defer wg.Done()
			if r.CAS(StatusInit, StatusSendComplete) {
				wins <- "send"
			}
		}()
		go func() {
			defer wg.Done()
			if r.CAS(StatusSendComplete, StatusRecvComplete) {
				wins <- "recv"
			}
		}()
		go func() {
			defer wg.Done()
			if r.CAS(StatusInit, StatusCanceled) {
				wins <- "cancel"
			}
		}()
		wg.Wait()
		close(wins)

		count := 0
		won := make(map[string]bool, 3)
		for w := range wins {
			won[w] = true
			count++
		}
		if count == 0 {
			t.Fatalf("iteration %d: no actor observed a winning CAS, final status=%v", i, r.Status())
		}
		if won["send"] && won["cancel"] {
			t.Fatalf("iteration %d: both send and cancel won the CAS out of INIT", i)
		}
	}
}
