package storage

import (
	"context"
	"database/sql"
	"errors"

	"uptimeninja/internal/monitor"
)

// Save records a subscriber, refreshing the user name when it already exists.
func (s *Store) Save(ctx context.Context, id int64, userName string) error {
	_, err := s.db.ExecContext(ctx,
		s.q(`INSERT INTO users (id, user_name) VALUES (?, ?)
		 ON CONFLICT (id) DO UPDATE SET user_name = excluded.user_name`),
		id, nullStr(userName),
	)
	return err
}

func (s *Store) Get(ctx context.Context, id int64) (monitor.Subscriber, bool, error) {
	var (
		sub         = monitor.Subscriber{ID: id}
		name, email sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		s.q(`SELECT user_name, email, email_opt_in FROM users WHERE id = ?`), id,
	).Scan(&name, &email, &sub.EmailOptIn)
	if errors.Is(err, sql.ErrNoRows) {
		return monitor.Subscriber{}, false, nil
	}
	if err != nil {
		return monitor.Subscriber{}, false, err
	}
	sub.UserName, sub.Email = name.String, email.String
	return sub, true, nil
}

// SetEmail stores the address and opts the subscriber in.
func (s *Store) SetEmail(ctx context.Context, id int64, email string) error {
	_, err := s.db.ExecContext(ctx,
		s.q(`INSERT INTO users (id, email, email_opt_in) VALUES (?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET email = excluded.email, email_opt_in = excluded.email_opt_in`),
		id, email, true,
	)
	return err
}

func (s *Store) SetEmailOptIn(ctx context.Context, id int64, optIn bool) error {
	_, err := s.db.ExecContext(ctx,
		s.q(`INSERT INTO users (id, email_opt_in) VALUES (?, ?)
		 ON CONFLICT (id) DO UPDATE SET email_opt_in = excluded.email_opt_in`),
		id, optIn,
	)
	return err
}

func nullStr(v string) any {
	if v == "" {
		return nil
	}
	return v
}
