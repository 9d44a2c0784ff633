// Package engagement turns raw views, shares and endorsements into
// deduplicated, rate-limited ledger events and live counters.
package engagement

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/zfogg/showcase/backend/internal/config"
	"github.com/zfogg/showcase/backend/internal/fanout"
	"github.com/zfogg/showcase/backend/internal/identity"
	"github.com/zfogg/showcase/backend/internal/ledger"
	"github.com/zfogg/showcase/backend/internal/logger"
	"github.com/zfogg/showcase/backend/internal/metrics"
	"github.com/zfogg/showcase/backend/internal/models"
	"github.com/zfogg/showcase/backend/internal/telemetry"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Publisher receives updates for accepted events
type Publisher interface {
	Publish(u fanout.Update)
}

// Dependencies wires a Service
type Dependencies struct {
	Ledger      ledger.Store
	Counters    Counters
	Posts       identity.PostDirectory
	Broadcaster *fanout.Broadcaster // optional
	Clock       func() time.Time    // defaults to time.Now
	Config      config.Engagement
}

// Outcome is the result of one submission. Rejected submissions are not
// errors; err is reserved for store and directory failures.
type Outcome struct {
	Accepted   bool                  `json:"accepted"`
	EventID    string                `json:"event_id,omitempty"`
	Engagement models.PostEngagement `json:"engagement"`
	Rejection  *Rejection            `json:"rejection,omitempty"`
}

// Service is the engagement engine
type Service struct {
	ledger      ledger.Store
	posts       identity.PostDirectory
	guard       *Guard
	aggregator  *Aggregator
	broadcaster *fanout.Broadcaster
	publisher   Publisher
	locks       *keyedMutex
	viewerLocks *keyedMutex
	now         func() time.Time
	events      *telemetry.BusinessEvents
}

// NewService builds a Service. Ledger, Counters and Posts are required.
func NewService(deps Dependencies) (*Service, error) {
	if deps.Ledger == nil || deps.Counters == nil || deps.Posts == nil {
		return nil, errors.New("engagement: ledger, counters and post directory are required")
	}
	if deps.Config == (config.Engagement{}) {
		deps.Config = config.DefaultEngagement()
	}
	if err := deps.Config.Validate(); err != nil {
		return nil, fmt.Errorf("engagement: %w", err)
	}

	now := deps.Clock
	if now == nil {
		now = time.Now
	}

	s := &Service{
		ledger:      deps.Ledger,
		posts:       deps.Posts,
		guard:       NewGuard(deps.Ledger, deps.Config, now),
		aggregator:  NewAggregator(deps.Ledger, deps.Counters, deps.Config.RecentWindow, now),
		broadcaster: deps.Broadcaster,
		locks:       newKeyedMutex(),
		viewerLocks: newKeyedMutex(),
		now:         now,
		events:      telemetry.GetBusinessEvents(),
	}
	if deps.Broadcaster != nil {
		s.publisher = deps.Broadcaster
	}
	return s, nil
}

// TrackView records a view of postID by the user in ctx
func (s *Service) TrackView(ctx context.Context, postID string) (*Outcome, error) {
	return s.submit(ctx, Action{
		Kind:    models.KindView,
		PostID:  postID,
		ActorID: identity.UserID(ctx),
	})
}

// TrackShare records a share of postID. An empty platform means "other".
func (s *Service) TrackShare(ctx context.Context, postID, platform string) (*Outcome, error) {
	return s.submit(ctx, Action{
		Kind:     models.KindShare,
		PostID:   postID,
		ActorID:  identity.UserID(ctx),
		Platform: platform,
	})
}

// SubmitEndorsement records a written endorsement of postID's owner
func (s *Service) SubmitEndorsement(ctx context.Context, postID, message string) (*Outcome, error) {
	return s.submit(ctx, Action{
		Kind:    models.KindEndorsement,
		PostID:  postID,
		ActorID: identity.UserID(ctx),
		Message: message,
	})
}

func (s *Service) submit(ctx context.Context, action Action) (*Outcome, error) {
	ctx, span := s.events.TraceEngagement(ctx, string(action.Kind), telemetry.EngagementEventAttrs{
		PostID:   action.PostID,
		UserID:   action.ActorID,
		Platform: action.Platform,
	})
	defer span.End()

	outcome, err := s.process(ctx, action)
	switch {
	case err != nil:
		telemetry.RecordError(span, err)
		metrics.RecordEvent(string(action.Kind), metrics.OutcomeError)
		logger.Log.Error("Failed to record engagement",
			logger.WithEventKind(string(action.Kind)),
			logger.WithPostID(action.PostID),
			logger.WithUserID(action.ActorID),
			zap.Error(err),
		)
	case outcome.Accepted:
		telemetry.RecordAccepted(span, outcome.EventID)
		metrics.RecordEvent(string(action.Kind), metrics.OutcomeAccepted)
	default:
		s.recordRejection(span, action, outcome.Rejection)
	}
	return outcome, err
}

func (s *Service) recordRejection(span trace.Span, action Action, r *Rejection) {
	telemetry.RecordRejected(span, string(r.Reason))
	metrics.RecordRejection(string(action.Kind), string(r.Reason))
	logger.Log.Debug("Engagement rejected",
		logger.WithEventKind(string(action.Kind)),
		logger.WithPostID(action.PostID),
		logger.WithUserID(action.ActorID),
		logger.WithReason(string(r.Reason)),
	)
}

func rejected(r *Rejection) *Outcome {
	return &Outcome{Rejection: r}
}

func (s *Service) process(ctx context.Context, action Action) (*Outcome, error) {
	ownerID := ""
	if action.ActorID != "" && strings.TrimSpace(action.PostID) != "" {
		owner, err := s.posts.OwnerOf(ctx, action.PostID)
		if errors.Is(err, identity.ErrPostNotFound) {
			return rejected(reject(ReasonPostNotFound, "That post doesn't exist")), nil
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ledger.ErrUnavailable, err)
		}
		ownerID = owner
	}

	if r := Validate(action, ownerID); r != nil {
		return rejected(r), nil
	}

	unlock := s.lock(action)
	ev, engagement, r, err := s.record(ctx, action, ownerID)
	unlock()
	if err != nil || r != nil {
		return &Outcome{Rejection: r}, err
	}

	if s.publisher != nil {
		s.publisher.Publish(fanout.Update{
			EventID:    ev.ID,
			PostID:     ev.PostID,
			OwnerID:    ev.OwnerID,
			ActorID:    ev.ActorID,
			Kind:       ev.Kind,
			Engagement: engagement,
			At:         ev.OccurredAt,
		})
	}

	return &Outcome{Accepted: true, EventID: ev.ID, Engagement: engagement}, nil
}

// lock serializes the guard checks and the append. Views also take the
// viewer's lock first, since the hourly limit spans all of the viewer's posts.
func (s *Service) lock(action Action) func() {
	if action.Kind != models.KindView {
		return s.locks.Lock(action.PostID)
	}
	unlockViewer := s.viewerLocks.Lock(action.ActorID)
	unlockPost := s.locks.Lock(action.PostID)
	return func() {
		unlockPost()
		unlockViewer()
	}
}

// record runs the guard, appends and aggregates. Callers hold the locks from lock.
func (s *Service) record(ctx context.Context, action Action, ownerID string) (*models.EngagementEvent, models.PostEngagement, *Rejection, error) {
	var none models.PostEngagement
	now := s.now()

	var ev *models.EngagementEvent
	switch action.Kind {
	case models.KindView:
		d, err := s.guard.CanRecordView(ctx, action.PostID, action.ActorID)
		if err != nil || !d.Allowed {
			return nil, none, d.Rejection, err
		}
		d, err = s.guard.CheckRateLimit(ctx, action.ActorID)
		if err != nil || !d.Allowed {
			return nil, none, d.Rejection, err
		}
		ev = models.NewViewEvent(action.PostID, ownerID, action.ActorID, identity.DeviceFingerprint(ctx), now)

	case models.KindShare:
		platform, _ := models.ParsePlatform(action.Platform)
		ev = models.NewShareEvent(action.PostID, ownerID, action.ActorID, platform, now)

	case models.KindEndorsement:
		d, err := s.guard.CanEndorse(ctx, action.PostID, action.ActorID, ownerID)
		if err != nil || !d.Allowed {
			return nil, none, d.Rejection, err
		}
		ev = models.NewEndorsementEvent(action.PostID, action.ActorID, ownerID, strings.TrimSpace(action.Message), now)

	default:
		return nil, none, nil, fmt.Errorf("unknown event kind %q", action.Kind)
	}

	if _, err := s.ledger.Append(ctx, ev); err != nil {
		return nil, none, nil, err
	}

	engagement, err := s.aggregator.OnEventAccepted(ctx, ev)
	if err != nil {
		// The event stays in the ledger; only the counters miss it
		return nil, none, nil, fmt.Errorf("event %s appended but not aggregated: %w", ev.ID, err)
	}
	return ev, engagement, nil, nil
}

// GetPostEngagement returns the post's live counters
func (s *Service) GetPostEngagement(ctx context.Context, postID string) (models.PostEngagement, error) {
	return s.aggregator.GetPostEngagement(ctx, postID)
}

// GetUniqueViewers returns the number of distinct viewers of postID
func (s *Service) GetUniqueViewers(ctx context.Context, postID string) (int, error) {
	return s.aggregator.GetUniqueViewers(ctx, postID)
}

// GetRecentViews returns views of postID in the trailing windowHours
func (s *Service) GetRecentViews(ctx context.Context, postID string, windowHours int) (int, error) {
	return s.aggregator.GetRecentViews(ctx, postID, windowHours)
}

// Endorsements returns postID's endorsements, newest first
func (s *Service) Endorsements(ctx context.Context, postID string) ([]models.EngagementEvent, error) {
	events, err := s.ledger.QueryByPost(ctx, postID)
	if err != nil {
		return nil, err
	}

	var out []models.EngagementEvent
	for _, ev := range events {
		if ev.Kind == models.KindEndorsement {
			out = append(out, ev)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].OccurredAt.After(out[j].OccurredAt)
	})
	return out, nil
}

// Subscribe registers l for updates on accepted events. Returns nil when the
// service was built without a broadcaster.
func (s *Service) Subscribe(l fanout.Listener) *fanout.Subscription {
	if s.broadcaster == nil {
		return nil
	}
	return s.broadcaster.Subscribe(l)
}
