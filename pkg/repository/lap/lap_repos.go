package lap

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/pitwall-sim/pitwall/pkg/model"
	"github.com/pitwall-sim/pitwall/pkg/repository"
)

func Create(ctx context.Context, conn repository.Querier, lap *model.DbLap) error {
	// nil trace becomes SQL null, not jsonb null
	var trace any
	if len(lap.Trace) > 0 {
		trace = lap.Trace
	}
	row := conn.QueryRow(ctx, `
	insert into lap (session_id, lap_no, lap_time_ms, sectors, valid, trace)
	values ($1,$2,$3,$4,$5,$6)
	returning id
	`, lap.SessionID, lap.LapNo, lap.LapTimeMs, lap.SectorsMs, lap.Valid, trace)
	return row.Scan(&lap.ID)
}

func LoadByID(ctx context.Context, conn repository.Querier, id int) (
	*model.DbLap, error,
) {
	row := conn.QueryRow(ctx, fmt.Sprintf("%s where id=$1", selector), id)
	var item model.DbLap
	if err := scan(&item, row); err != nil {
		return nil, err
	}
	return &item, nil
}

func LoadBySessionID(ctx context.Context, conn repository.Querier, sessionID int) (
	ret []*model.DbLap, err error,
) {
	var rows pgx.Rows
	if rows, err = conn.Query(ctx,
		fmt.Sprintf("%s where session_id=$1 order by lap_no asc", selector),
		sessionID); err != nil {
		return nil, err
	}
	ret, err = pgx.CollectRows(rows,
		func(row pgx.CollectableRow) (*model.DbLap, error) {
			var item model.DbLap
			if err := scan(&item, row); err != nil {
				return nil, err
			}
			return &item, nil
		})
	return ret, err
}

// deletes all laps of a session, returns number of rows deleted.
func DeleteBySessionID(ctx context.Context, conn repository.Querier, sessionID int) (
	int, error,
) {
	cmdTag, err := conn.Exec(ctx, "delete from lap where session_id=$1", sessionID)
	if err != nil {
		return 0, err
	}
	return int(cmdTag.RowsAffected()), nil
}

// little helper
const selector = string(`
select id, session_id, lap_no, lap_time_ms, sectors, valid,
	coalesce(trace, 'null'::jsonb) from lap
`)

func scan(l *model.DbLap, row pgx.Row) error {
	return row.Scan(&l.ID, &l.SessionID, &l.LapNo, &l.LapTimeMs, &l.SectorsMs,
		&l.Valid, &l.Trace)
}
