package mesh

import (
	"testing"

	"github.com/coderoom/coderoom/internal/domain"
)

func TestLinkTransitions(t *testing.T) {
	cases := []struct {
		name string
		from LinkState
		to   LinkState
		ok   bool
	}{
		{"offer out", StateNew, StateOfferSent, true},
		{"offer in", StateNew, StateOfferReceived, true},
		{"glare", StateOfferSent, StateOfferReceived, true},
		{"answer after offer in", StateOfferReceived, StateAnswerSent, true},
		{"connect after answer", StateAnswerSent, StateConnected, true},
		{"renegotiate", StateConnected, StateOfferReceived, true},
		{"skip negotiation", StateNew, StateConnected, false},
		{"answer without offer", StateNew, StateAnswerSent, false},
		{"backwards", StateConnected, StateOfferSent, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			l := newPeerLink("peer", &fakeTransport{})
			l.state = tc.from
			if got := l.transition(tc.to); got != tc.ok {
				t.Errorf("transition(%s -> %s) = %v, want %v", tc.from, tc.to, got, tc.ok)
			}
			want := tc.from
			if tc.ok {
				want = tc.to
			}
			if l.State() != want {
				t.Errorf("state = %s, want %s", l.State(), want)
			}
		})
	}
}

func TestLinkClosedIsTerminal(t *testing.T) {
	tr := &fakeTransport{}
	l := newPeerLink("peer", tr)

	l.close()
	if l.State() != StateClosed {
		t.Fatalf("state = %s", l.State())
	}
	if !tr.isClosed() {
		t.Error("transport not closed")
	}
	if l.transition(StateOfferReceived) {
		t.Error("closed link accepted a transition")
	}

	// Repeated close must not close the transport twice or panic.
	l.close()
}

func TestRegistryGetOrCreate(t *testing.T) {
	r := NewRegistry()
	calls := 0
	factory := func() (*PeerLink, error) {
		calls++
		return newPeerLink("peer", &fakeTransport{}), nil
	}

	l1, created, err := r.GetOrCreate("peer", factory)
	if err != nil || !created {
		t.Fatalf("first GetOrCreate: created=%v err=%v", created, err)
	}
	l2, created, err := r.GetOrCreate("peer", factory)
	if err != nil || created {
		t.Fatalf("second GetOrCreate: created=%v err=%v", created, err)
	}
	if l1 != l2 {
		t.Error("GetOrCreate returned different links for the same remote")
	}
	if calls != 1 {
		t.Errorf("factory ran %d times", calls)
	}
}

func TestRegistryRemoveAndDrain(t *testing.T) {
	r := NewRegistry()
	mk := func(id domain.SocketID) {
		r.GetOrCreate(id, func() (*PeerLink, error) {
			return newPeerLink(id, &fakeTransport{}), nil
		})
	}
	mk("p1")
	mk("p2")

	if l, ok := r.Remove("p1"); !ok || l.Remote() != "p1" {
		t.Fatalf("Remove(p1) = %v, %v", l, ok)
	}
	if _, ok := r.Get("p1"); ok {
		t.Error("removed link still resolvable")
	}

	drained := r.Drain()
	if len(drained) != 1 || r.Len() != 0 {
		t.Errorf("Drain left %d, returned %d", r.Len(), len(drained))
	}
}
