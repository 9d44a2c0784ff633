package ledger

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/zfogg/showcase/backend/internal/models"
)

type actorKey struct {
	actorID string
	postID  string
	kind    models.EventKind
}

// MemoryStore keeps the ledger in process. Events live in one slice; the
// indexes hold positions into it.
type MemoryStore struct {
	mu      sync.RWMutex
	events  []models.EngagementEvent
	byPost  map[string][]int
	byActor map[actorKey][]int
}

// NewMemoryStore creates an empty in-memory ledger
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byPost:  make(map[string][]int),
		byActor: make(map[actorKey][]int),
	}
}

func (s *MemoryStore) Append(ctx context.Context, ev *models.EngagementEvent) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if ev.ID == "" {
		ev.ID = NewEventID()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.insert(*ev)
	return ev.ID, nil
}

func (s *MemoryStore) insert(ev models.EngagementEvent) {
	pos := len(s.events)
	s.events = append(s.events, ev)
	s.byPost[ev.PostID] = append(s.byPost[ev.PostID], pos)
	key := actorKey{actorID: ev.ActorID, postID: ev.PostID, kind: ev.Kind}
	s.byActor[key] = append(s.byActor[key], pos)
}

func (s *MemoryStore) QueryByPost(ctx context.Context, postID string) ([]models.EngagementEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	positions := s.byPost[postID]
	out := make([]models.EngagementEvent, 0, len(positions))
	for _, pos := range positions {
		out = append(out, s.events[pos])
	}
	return out, nil
}

func (s *MemoryStore) QueryByUser(ctx context.Context, userID string, kind models.EventKind) ([]models.EngagementEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.EngagementEvent
	for i := range s.events {
		ev := &s.events[i]
		if ev.ActorID == userID && kindMatches(ev, kind) {
			out = append(out, *ev)
		}
	}
	return out, nil
}

func (s *MemoryStore) QueryRecent(ctx context.Context, postID string, since time.Time) ([]models.EngagementEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.EngagementEvent
	for _, pos := range s.byPost[postID] {
		if !s.events[pos].OccurredAt.Before(since) {
			out = append(out, s.events[pos])
		}
	}
	return out, nil
}

func (s *MemoryStore) QuerySince(ctx context.Context, since time.Time) ([]models.EngagementEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.EngagementEvent
	for i := range s.events {
		if !s.events[i].OccurredAt.Before(since) {
			out = append(out, s.events[i])
		}
	}
	return out, nil
}

func (s *MemoryStore) LastEvent(ctx context.Context, userID, postID string, kind models.EventKind) (*models.EngagementEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	positions := s.byActor[actorKey{actorID: userID, postID: postID, kind: kind}]
	if len(positions) == 0 {
		return nil, nil
	}

	// Newest by occurrence; appends usually arrive in order but replays may not
	last := s.events[positions[0]]
	for _, pos := range positions[1:] {
		if !s.events[pos].OccurredAt.Before(last.OccurredAt) {
			last = s.events[pos]
		}
	}
	return &last, nil
}

func (s *MemoryStore) CountByUserSince(ctx context.Context, userID string, kind models.EventKind, since time.Time) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for i := range s.events {
		ev := &s.events[i]
		if ev.ActorID == userID && kindMatches(ev, kind) && !ev.OccurredAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) PurgeBefore(ctx context.Context, cutoff time.Time, kinds ...models.EventKind) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.events
	s.events = make([]models.EngagementEvent, 0, len(kept))
	s.byPost = make(map[string][]int)
	s.byActor = make(map[actorKey][]int)

	var purged int64
	for _, ev := range kept {
		if ev.OccurredAt.Before(cutoff) && (len(kinds) == 0 || slices.Contains(kinds, ev.Kind)) {
			purged++
			continue
		}
		s.insert(ev)
	}
	return purged, nil
}

// Len returns the number of stored events
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}
