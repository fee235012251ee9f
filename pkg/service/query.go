package service

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/samber/lo"

	"github.com/pitwall-sim/pitwall/pkg/model"
	"github.com/pitwall-sim/pitwall/pkg/processing"
	"github.com/pitwall-sim/pitwall/pkg/repository/lap"
	"github.com/pitwall-sim/pitwall/pkg/repository/session"
)

// ErrNoComparison signals that a coaching request cannot be answered, not
// that anything failed: the subject lap carries no telemetry trace.
var ErrNoComparison = errors.New("no comparison possible")

func (s *SessionService) LoadSession(ctx context.Context, key string) (
	*model.DbSession, []*model.DbLap, error,
) {
	sess, err := session.LoadByKey(ctx, s.pool, key)
	if err != nil {
		return nil, nil, err
	}
	laps, err := lap.LoadBySessionID(ctx, s.pool, sess.ID)
	if err != nil {
		return nil, nil, err
	}
	return sess, laps, nil
}

// DeleteSession removes a session and its laps.
func (s *SessionService) DeleteSession(ctx context.Context, key string) error {
	sess, err := session.LoadByKey(ctx, s.pool, key)
	if err != nil {
		return err
	}
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := lap.DeleteBySessionID(ctx, tx, sess.ID); err != nil {
			return err
		}
		_, err := session.DeleteByID(ctx, tx, sess.ID)
		return err
	})
}

// SessionHistory lists a station's sessions, newest first.
func (s *SessionService) SessionHistory(ctx context.Context, stationID string) (
	[]*model.DbSession, error,
) {
	return session.LoadByStation(ctx, s.pool, stationID)
}

// Consistency scores the lap time spread of a session's valid laps.
func (s *SessionService) Consistency(ctx context.Context, sessionID int) (
	float64, error,
) {
	laps, err := lap.LoadBySessionID(ctx, s.pool, sessionID)
	if err != nil {
		return 0, err
	}
	times := lo.FilterMap(laps, func(l *model.DbLap, _ int) (int, bool) {
		return l.LapTimeMs, l.Valid
	})
	return processing.ConsistencyScore(times), nil
}

// IdealLap computes the synthetic best lap of a session from sector minima.
func (s *SessionService) IdealLap(ctx context.Context, sessionID int) (int, error) {
	laps, err := lap.LoadBySessionID(ctx, s.pool, sessionID)
	if err != nil {
		return 0, err
	}
	return processing.IdealLap(laps)
}

// Coach compares a lap against the fastest other valid lap of its session
// (same track and car by construction). When no reference exists the lap
// is compared against itself, which yields no tips.
func (s *SessionService) Coach(ctx context.Context, lapID int) (
	[]model.CoachTip, error,
) {
	subject, err := lap.LoadByID(ctx, s.pool, lapID)
	if err != nil {
		return nil, err
	}
	if len(subject.Trace) == 0 {
		return nil, ErrNoComparison
	}
	candidates, err := lap.LoadBySessionID(ctx, s.pool, subject.SessionID)
	if err != nil {
		return nil, err
	}
	reference := processing.PickReference(subject, candidates)
	return processing.CompareLaps(subject.Trace, reference.Trace), nil
}
