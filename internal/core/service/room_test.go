package service

import (
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/voxwire/voxwire/internal/core/domain"
)

func TestMeshLinksForJoin(t *testing.T) {
	existing := []domain.Participant{
		testParticipant("alice"),
		testParticipant("bob"),
	}

	links := meshLinksForJoin(existing, "carol")
	if len(links) != 2 {
		t.Fatalf("expected 2 links, got %d", len(links))
	}
	for _, l := range links {
		if l.Answerer != "carol" {
			t.Errorf("joiner must answer, got answerer %s", l.Answerer)
		}
		if l.Offerer == "carol" {
			t.Error("joiner must never offer")
		}
	}
}

// buildMesh creates a call and joins the given users in order.
func buildMesh(t *testing.T, reg *Registry, users ...domain.UserID) *Session {
	t.Helper()
	sess, err := reg.CreateSession(testParticipant(users[0]), users[1], domain.KindVoice, time.Minute)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	for _, u := range users[1:] {
		if _, err := reg.AddParticipant(sess.ID, testParticipant(u)); err != nil {
			t.Fatalf("join %s: %v", u, err)
		}
	}
	return sess
}

func TestMeshCompleteness(t *testing.T) {
	reg := NewRegistry(Config{MaxPeers: 8})
	sess := buildMesh(t, reg, "alice", "bob", "carol", "dave")

	links := sess.Links()
	n := len(sess.Participants())
	if want := n * (n - 1) / 2; len(links) != want {
		t.Fatalf("expected %d links for %d participants, got %d", want, n, len(links))
	}

	// Every participant touches exactly n-1 links.
	degree := make(map[domain.UserID]int)
	seen := make(map[pairKey]bool)
	for _, l := range links {
		key := newPairKey(l.Offerer, l.Answerer)
		if seen[key] {
			t.Errorf("duplicate link for pair %v", key)
		}
		seen[key] = true
		degree[l.Offerer]++
		degree[l.Answerer]++
	}
	for _, p := range sess.Participants() {
		if degree[p.UserID] != n-1 {
			t.Errorf("%s has degree %d, want %d", p.UserID, degree[p.UserID], n-1)
		}
	}
}

func TestOfferDirectionFollowsJoinOrder(t *testing.T) {
	reg := NewRegistry(Config{MaxPeers: 8})
	order := []domain.UserID{"alice", "bob", "carol", "dave"}
	sess := buildMesh(t, reg, order...)

	rank := make(map[domain.UserID]int)
	for i, u := range order {
		rank[u] = i
	}
	for _, l := range sess.Links() {
		if rank[l.Offerer] >= rank[l.Answerer] {
			t.Errorf("offerer %s joined after answerer %s", l.Offerer, l.Answerer)
		}
	}
}

func TestOfferDirectionUnderConcurrentJoins(t *testing.T) {
	reg := NewRegistry(Config{MaxPeers: 16})
	sess := buildMesh(t, reg, "alice", "bob")

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			u := domain.UserID(fmt.Sprintf("joiner-%d", i))
			if _, err := reg.AddParticipant(sess.ID, testParticipant(u)); err != nil {
				t.Errorf("join %s: %v", u, err)
			}
		}(i)
	}
	wg.Wait()

	links := sess.Links()
	n := len(sess.Participants())
	if want := n * (n - 1) / 2; len(links) != want {
		t.Fatalf("expected %d links, got %d", want, len(links))
	}

	// Whatever order the joins serialized in, the links must form an
	// orientation of the complete graph induced by a single total order:
	// offer out-degrees are then a permutation of 0..n-1.
	outDegree := make(map[domain.UserID]int)
	for _, p := range sess.Participants() {
		outDegree[p.UserID] = 0
	}
	for _, l := range links {
		outDegree[l.Offerer]++
	}
	degrees := make([]int, 0, n)
	for _, d := range outDegree {
		degrees = append(degrees, d)
	}
	sort.Ints(degrees)
	for i, d := range degrees {
		if d != i {
			t.Fatalf("offer out-degrees %v do not match a join order", degrees)
		}
	}
}

func TestLeaveTearsDownOnlyOwnLinks(t *testing.T) {
	reg := NewRegistry(Config{MaxPeers: 8})
	sess := buildMesh(t, reg, "alice", "bob", "carol", "dave")

	res, err := reg.RemoveParticipant(sess.ID, "carol")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Ended {
		t.Fatal("call should continue with 3 participants")
	}

	for _, l := range sess.Links() {
		if l.Offerer == "carol" || l.Answerer == "carol" {
			t.Errorf("link %v still references the leaver", l)
		}
	}
	if want := 3 * 2 / 2; len(sess.Links()) != want {
		t.Errorf("expected %d links after leave, got %d", want, len(sess.Links()))
	}
}
