package session

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/pitwall-sim/pitwall/pkg/model"
	"github.com/pitwall-sim/pitwall/pkg/repository"
)

func Create(ctx context.Context, conn repository.Querier, sess *model.DbSession) (
	*model.DbSession, error,
) {
	row := conn.QueryRow(ctx, `
	insert into session (session_key, station_id, track, car, driver, session_type)
	values ($1,$2,$3,$4,$5,$6)
	returning id, record_stamp
	`, sess.Key, sess.StationID, sess.Track, sess.Car, sess.Driver, sess.SessionType)

	if err := row.Scan(&sess.ID, &sess.RecordStamp); err != nil {
		return nil, err
	}
	return sess, nil
}

// UpdateBestLap sets the best (minimum valid) lap time once ingestion is done.
func UpdateBestLap(ctx context.Context, conn repository.Querier, id, bestLapMs int) error {
	_, err := conn.Exec(ctx,
		"update session set best_lap_ms=$1 where id=$2", bestLapMs, id)
	return err
}

func LoadByID(ctx context.Context, conn repository.Querier, id int) (
	*model.DbSession, error,
) {
	row := conn.QueryRow(ctx, fmt.Sprintf("%s where id=$1", selector), id)
	var sess model.DbSession
	if err := scan(&sess, row); err != nil {
		return nil, err
	}
	return &sess, nil
}

func LoadByKey(ctx context.Context, conn repository.Querier, key string) (
	*model.DbSession, error,
) {
	row := conn.QueryRow(ctx, fmt.Sprintf("%s where session_key=$1", selector), key)
	var sess model.DbSession
	if err := scan(&sess, row); err != nil {
		return nil, err
	}
	return &sess, nil
}

func LoadByStation(ctx context.Context, conn repository.Querier, stationID string) (
	ret []*model.DbSession, err error,
) {
	var rows pgx.Rows
	if rows, err = conn.Query(ctx,
		fmt.Sprintf("%s where station_id=$1 order by record_stamp desc", selector),
		stationID); err != nil {
		return nil, err
	}
	ret, err = pgx.CollectRows(rows,
		func(row pgx.CollectableRow) (*model.DbSession, error) {
			var item model.DbSession
			if err := scan(&item, row); err != nil {
				return nil, err
			}
			return &item, nil
		})
	return ret, err
}

// deletes an entry from the database, returns number of rows deleted.
func DeleteByID(ctx context.Context, conn repository.Querier, id int) (int, error) {
	cmdTag, err := conn.Exec(ctx, "delete from session where id=$1", id)
	if err != nil {
		return 0, err
	}
	return int(cmdTag.RowsAffected()), nil
}

// little helper
const selector = string(`
select id, session_key, station_id, track, car, driver, session_type,
	best_lap_ms, record_stamp from session
`)

func scan(s *model.DbSession, row pgx.Row) error {
	return row.Scan(&s.ID, &s.Key, &s.StationID, &s.Track, &s.Car, &s.Driver,
		&s.SessionType, &s.BestLapMs, &s.RecordStamp)
}
