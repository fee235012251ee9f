package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/lo"

	"github.com/pitwall-sim/pitwall/log"
	"github.com/pitwall-sim/pitwall/pkg/model"
	"github.com/pitwall-sim/pitwall/pkg/repository/lap"
	"github.com/pitwall-sim/pitwall/pkg/repository/session"
)

type SessionService struct {
	pool *pgxpool.Pool
	l    *log.Logger
}

func InitSessionService(pool *pgxpool.Pool) *SessionService {
	return &SessionService{pool: pool, l: log.Default().Named("session")}
}

// Ingest reconciles the official result with the buffered telemetry traces
// and persists the session with all its laps in one transaction.
//
//nolint:whitespace // editor/linter issue
func (s *SessionService) Ingest(
	ctx context.Context,
	req *IngestSessionRequest,
	traces map[int][]model.TelemetrySample,
) (*model.DbSession, error) {
	sess := &model.DbSession{
		Key:         uuid.NewString(),
		StationID:   req.StationID,
		Track:       req.Track,
		Car:         req.Car,
		Driver:      req.Driver,
		SessionType: req.SessionType,
	}
	laps := PairLaps(req.Laps, traces)

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := session.Create(ctx, tx, sess); err != nil {
			return err
		}
		for i := range laps {
			laps[i].SessionID = sess.ID
			if err := lap.Create(ctx, tx, laps[i]); err != nil {
				return err
			}
		}
		if best, ok := BestLap(req.Laps); ok {
			if err := session.UpdateBestLap(ctx, tx, sess.ID, best); err != nil {
				return err
			}
			sess.BestLapMs = &best
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.l.Info("session ingested",
		log.String("station", req.StationID),
		log.String("key", sess.Key),
		log.Int("laps", len(laps)),
		log.Int("traced", lo.CountBy(laps, func(l *model.DbLap) bool {
			return len(l.Trace) > 0
		})))
	return sess, nil
}

// PairLaps attaches the buffered trace flushed at index i to the official
// lap at position i. A missing buffer leaves the lap's trace nil:
// telemetry is best effort, the official lap time stands on its own.
// Note: the index pairing assumes official laps and in-game laps line up
// one to one; see the session documentation on the known drift case.
func PairLaps(
	official []model.OfficialLap,
	traces map[int][]model.TelemetrySample,
) []*model.DbLap {
	return lo.Map(official, func(ol model.OfficialLap, i int) *model.DbLap {
		return &model.DbLap{
			LapNo:     i,
			LapTimeMs: ol.LapTimeMs,
			SectorsMs: ol.SectorsMs,
			Valid:     ol.Valid,
			Trace:     traces[i],
		}
	})
}

// BestLap returns the minimum lap time among valid laps; ok is false when
// the session contains no valid lap.
func BestLap(official []model.OfficialLap) (best int, ok bool) {
	for i := range official {
		if !official[i].Valid || official[i].LapTimeMs <= 0 {
			continue
		}
		if !ok || official[i].LapTimeMs < best {
			best = official[i].LapTimeMs
			ok = true
		}
	}
	return best, ok
}
