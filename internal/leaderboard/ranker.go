// Package leaderboard ranks workers by engagement score. Rankings are
// computed on every read; nothing is cached or stored.
package leaderboard

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/zfogg/showcase/backend/internal/identity"
	"github.com/zfogg/showcase/backend/internal/ledger"
	"github.com/zfogg/showcase/backend/internal/logger"
	"github.com/zfogg/showcase/backend/internal/metrics"
	"github.com/zfogg/showcase/backend/internal/models"
	"github.com/zfogg/showcase/backend/internal/telemetry"
	"go.uber.org/zap"
)

const (
	DefaultLimit = 50
	MaxLimit     = 500
)

// Period selects which events count toward the score
type Period string

const (
	PeriodAll   Period = "all"
	PeriodDay   Period = "day"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
)

// ParsePeriod accepts "", all, day, week and month
func ParsePeriod(raw string) (Period, error) {
	switch Period(raw) {
	case "", PeriodAll:
		return PeriodAll, nil
	case PeriodDay, PeriodWeek, PeriodMonth:
		return Period(raw), nil
	}
	return "", fmt.Errorf("unknown leaderboard period %q", raw)
}

// Since returns the start of the period's window, or zero time for PeriodAll
func (p Period) Since(now time.Time) time.Time {
	switch p {
	case PeriodDay:
		return now.AddDate(0, 0, -1)
	case PeriodWeek:
		return now.AddDate(0, 0, -7)
	case PeriodMonth:
		return now.AddDate(0, -1, 0)
	}
	return time.Time{}
}

// TotalsSource provides cumulative per-user totals
type TotalsSource interface {
	UserTotals(ctx context.Context) ([]models.User, error)
}

// Ranker computes leaderboards from cumulative totals or, for bounded
// periods, directly from the ledger
type Ranker struct {
	totals TotalsSource
	ledger ledger.Store
	users  identity.UserDirectory // optional
	now    func() time.Time
}

func NewRanker(totals TotalsSource, store ledger.Store, users identity.UserDirectory, now func() time.Time) *Ranker {
	if now == nil {
		now = time.Now
	}
	return &Ranker{totals: totals, ledger: store, users: users, now: now}
}

// tally is one user's score inputs for a ranking pass
type tally struct {
	userID       string
	views        int64
	shares       int64
	endorsements int64
	reachedAt    time.Time
}

func (t *tally) score() int64 {
	return models.EngagementScore(t.views, t.shares, t.endorsements)
}

// Rank returns the top limit users for period, highest score first. Ties go
// to whoever reached the score first; users with no engagement are omitted.
func (r *Ranker) Rank(ctx context.Context, limit int, period Period) ([]models.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if period == "" {
		period = PeriodAll
	}

	ctx, span := telemetry.GetBusinessEvents().TraceLeaderboard(ctx, string(period), limit)
	defer span.End()
	start := time.Now()
	defer func() {
		metrics.Get().Engagement.LeaderboardDuration.WithLabelValues(string(period)).Observe(time.Since(start).Seconds())
	}()

	var (
		tallies []*tally
		err     error
	)
	if period == PeriodAll {
		tallies, err = r.fromTotals(ctx)
	} else {
		tallies, err = r.fromLedger(ctx, period.Since(r.now()))
	}
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	ranked := make([]*tally, 0, len(tallies))
	for _, t := range tallies {
		if t.score() > 0 {
			ranked = append(ranked, t)
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		si, sj := ranked[i].score(), ranked[j].score()
		if si != sj {
			return si > sj
		}
		return ranked[i].reachedAt.Before(ranked[j].reachedAt)
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}

	entries := make([]models.LeaderboardEntry, len(ranked))
	ids := make([]string, len(ranked))
	for i, t := range ranked {
		ids[i] = t.userID
		entries[i] = models.LeaderboardEntry{
			Rank:            i + 1,
			UserID:          t.userID,
			EngagementScore: t.score(),
			Views:           t.views,
			Shares:          t.shares,
			Endorsements:    t.endorsements,
		}
	}
	r.attachNames(ctx, entries, ids)

	return entries, nil
}

func (r *Ranker) fromTotals(ctx context.Context) ([]*tally, error) {
	users, err := r.totals.UserTotals(ctx)
	if err != nil {
		return nil, err
	}

	tallies := make([]*tally, 0, len(users))
	for _, u := range users {
		t := &tally{
			userID:       u.ID,
			views:        u.TotalViews,
			shares:       u.TotalShares,
			endorsements: u.TotalEndorsements,
		}
		if u.ScoreReachedAt != nil {
			t.reachedAt = *u.ScoreReachedAt
		}
		tallies = append(tallies, t)
	}
	return tallies, nil
}

// fromLedger scores each post owner on the events since the window start.
// Events arrive in insertion order, so the last one seen sets reachedAt.
func (r *Ranker) fromLedger(ctx context.Context, since time.Time) ([]*tally, error) {
	events, err := r.ledger.QuerySince(ctx, since)
	if err != nil {
		return nil, err
	}

	byUser := make(map[string]*tally)
	var order []*tally
	for _, ev := range events {
		t, ok := byUser[ev.OwnerID]
		if !ok {
			t = &tally{userID: ev.OwnerID}
			byUser[ev.OwnerID] = t
			order = append(order, t)
		}
		switch ev.Kind {
		case models.KindView:
			t.views++
		case models.KindShare:
			t.shares++
		case models.KindEndorsement:
			t.endorsements++
		}
		if ev.OccurredAt.After(t.reachedAt) {
			t.reachedAt = ev.OccurredAt
		}
	}
	return order, nil
}

func (r *Ranker) attachNames(ctx context.Context, entries []models.LeaderboardEntry, ids []string) {
	if r.users == nil || len(ids) == 0 {
		return
	}
	names, err := r.users.DisplayNames(ctx, ids)
	if err != nil {
		logger.Log.Warn("Failed to load leaderboard display names", zap.Error(err))
		return
	}
	for i := range entries {
		entries[i].DisplayName = names[entries[i].UserID]
	}
}
