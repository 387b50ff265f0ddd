package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"uptimeninja/internal/monitor"
)

const monitorCols = `id, chat_id, url, name, status, ssl_valid_from, ssl_valid_to`

func (s *Store) isUnique(err error) bool {
	if s.dialect == dialectPostgres {
		return isPostgresUnique(err)
	}
	return isSQLiteUnique(err)
}

func (s *Store) Exists(ctx context.Context, subscriberID int64, url string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, s.q(`SELECT 1 FROM monitors WHERE chat_id = ? AND url = ? LIMIT 1`), subscriberID, url).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Insert stores ep and returns it with its assigned ID. A duplicate
// (chat_id, url) yields monitor.ErrAlreadyMonitored.
func (s *Store) Insert(ctx context.Context, ep monitor.Endpoint) (monitor.Endpoint, error) {
	if ep.Status == "" {
		ep.Status = monitor.StatusUnknown
	}
	from, to := certArgs(ep.Cert)
	err := s.db.QueryRowContext(ctx,
		s.q(`INSERT INTO monitors (chat_id, url, name, status, ssl_valid_from, ssl_valid_to)
		 VALUES (?, ?, ?, ?, ?, ?) RETURNING id`),
		ep.SubscriberID, ep.URL, ep.Name, string(ep.Status), from, to,
	).Scan(&ep.ID)
	if err != nil {
		if s.isUnique(err) {
			return monitor.Endpoint{}, monitor.ErrAlreadyMonitored
		}
		return monitor.Endpoint{}, err
	}
	return ep, nil
}

// Delete is a no-op when nothing matches.
func (s *Store) Delete(ctx context.Context, subscriberID int64, url string) error {
	_, err := s.db.ExecContext(ctx, s.q(`DELETE FROM monitors WHERE chat_id = ? AND url = ?`), subscriberID, url)
	return err
}

func (s *Store) DeleteAll(ctx context.Context, subscriberID int64) error {
	_, err := s.db.ExecContext(ctx, s.q(`DELETE FROM monitors WHERE chat_id = ?`), subscriberID)
	return err
}

func (s *Store) List(ctx context.Context, subscriberID int64) ([]monitor.Endpoint, error) {
	return s.queryEndpoints(ctx, `SELECT `+monitorCols+` FROM monitors WHERE chat_id = ? ORDER BY id`, subscriberID)
}

func (s *Store) All(ctx context.Context) ([]monitor.Endpoint, error) {
	return s.queryEndpoints(ctx, `SELECT `+monitorCols+` FROM monitors ORDER BY id`)
}

func (s *Store) StatusOf(ctx context.Context, id int64) (monitor.Status, bool, error) {
	var status string
	err := s.db.QueryRowContext(ctx, s.q(`SELECT status FROM monitors WHERE id = ?`), id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return monitor.ParseStatus(status), true, nil
}

func (s *Store) UpdateStatus(ctx context.Context, id int64, status monitor.Status) error {
	_, err := s.db.ExecContext(ctx, s.q(`UPDATE monitors SET status = ? WHERE id = ?`), string(status), id)
	return err
}

func (s *Store) UpdateCertMeta(ctx context.Context, subscriberID int64, url string, meta monitor.CertMeta) (bool, error) {
	from, to := certArgs(&meta)
	res, err := s.db.ExecContext(ctx,
		s.q(`UPDATE monitors SET ssl_valid_from = ?, ssl_valid_to = ? WHERE chat_id = ? AND url = ?`),
		from, to, subscriberID, url,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store) ExpiringBetween(ctx context.Context, from, to time.Time) ([]monitor.Endpoint, error) {
	return s.queryEndpoints(ctx,
		`SELECT `+monitorCols+` FROM monitors
		 WHERE ssl_valid_to IS NOT NULL AND ssl_valid_to > ? AND ssl_valid_to <= ?
		 ORDER BY id`,
		from.Unix(), to.Unix(),
	)
}

func (s *Store) queryEndpoints(ctx context.Context, query string, args ...any) ([]monitor.Endpoint, error) {
	rows, err := s.db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []monitor.Endpoint
	for rows.Next() {
		var (
			ep       monitor.Endpoint
			status   string
			from, to sql.NullInt64
		)
		if err := rows.Scan(&ep.ID, &ep.SubscriberID, &ep.URL, &ep.Name, &status, &from, &to); err != nil {
			return nil, fmt.Errorf("scan monitor: %w", err)
		}
		ep.Status = monitor.ParseStatus(status)
		if to.Valid {
			ep.Cert = &monitor.CertMeta{ValidTo: time.Unix(to.Int64, 0).UTC()}
			if from.Valid {
				ep.Cert.ValidFrom = time.Unix(from.Int64, 0).UTC()
			}
		}
		out = append(out, ep)
	}
	return out, rows.Err()
}

func certArgs(c *monitor.CertMeta) (from, to any) {
	if c == nil || c.ValidTo.IsZero() {
		return nil, nil
	}
	if !c.ValidFrom.IsZero() {
		from = c.ValidFrom.Unix()
	}
	return from, c.ValidTo.Unix()
}
