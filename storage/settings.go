package storage

import (
	"context"
	"database/sql"
	"fmt"

	"tasktrack-api/domain"
)

// FetchSettings returns the user's settings, creating the default record on
// first access. Creation is insert-or-ignore followed by a read, so concurrent
// first requests converge on one row.
func (s *Storage) FetchSettings(ctx context.Context, userID string) (domain.Settings, error) {
	var settings domain.Settings
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if err := ensureUser(ctx, tx, userID); err != nil {
			return err
		}
		def := domain.DefaultSettings(userID)
		_, err := tx.ExecContext(ctx, `
			INSERT INTO user_settings (user_id, tasks_per_category, show_done_tasks)
			VALUES (?, ?, ?)
			ON CONFLICT(user_id) DO NOTHING`,
			userID, def.TasksPerCategory, boolToInt(def.ShowDoneTasks))
		if err != nil {
			return fmt.Errorf("create default settings: %w", err)
		}
		settings, err = readSettings(ctx, tx, userID)
		return err
	})
	if err != nil {
		return domain.Settings{}, err
	}
	return settings, nil
}

// SaveSettings writes settings for the user, creating the row if needed.
func (s *Storage) SaveSettings(ctx context.Context, userID string, settings domain.Settings) (domain.Settings, error) {
	var saved domain.Settings
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if err := ensureUser(ctx, tx, userID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO user_settings (user_id, tasks_per_category, show_done_tasks)
			VALUES (?, ?, ?)
			ON CONFLICT(user_id) DO UPDATE SET
				tasks_per_category = excluded.tasks_per_category,
				show_done_tasks = excluded.show_done_tasks`,
			userID, settings.TasksPerCategory, boolToInt(settings.ShowDoneTasks))
		if err != nil {
			return fmt.Errorf("save settings: %w", err)
		}
		saved, err = readSettings(ctx, tx, userID)
		return err
	})
	if err != nil {
		return domain.Settings{}, err
	}
	return saved, nil
}

func readSettings(ctx context.Context, q querier, userID string) (domain.Settings, error) {
	settings := domain.Settings{UserID: userID}
	var showDone int
	err := q.QueryRowContext(ctx,
		`SELECT tasks_per_category, show_done_tasks FROM user_settings WHERE user_id = ?`,
		userID).Scan(&settings.TasksPerCategory, &showDone)
	if err == sql.ErrNoRows {
		return domain.Settings{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Settings{}, fmt.Errorf("read settings: %w", err)
	}
	settings.ShowDoneTasks = showDone != 0
	return settings, nil
}
