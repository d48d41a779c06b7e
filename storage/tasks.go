package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"

	"tasktrack-api/domain"
)

// valueJSON keeps custom field numbers as json.Number so values above 2^53
// read back exactly as written.
var valueJSON = sonic.Config{UseNumber: true}.Froze()

const taskColumns = `t.id, t.user_id, t.title, t.completed, t.created_at,
	f.id, f.field_name, f.field_type, f.field_value`

// ListTasks returns all tasks owned by userID, oldest first.
func (s *Storage) ListTasks(ctx context.Context, userID string) ([]domain.Task, error) {
	query := `
		SELECT ` + taskColumns + `
		FROM tasks t
		LEFT JOIN task_custom_fields f ON f.task_id = t.id
		WHERE t.user_id = ?
		ORDER BY t.created_at, t.id, f.id
	`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	tasks, err := scanTasks(rows)
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

// GetTask returns the task if it exists and is owned by userID.
func (s *Storage) GetTask(ctx context.Context, userID, taskID string) (domain.Task, error) {
	return getTask(ctx, s.db, userID, taskID)
}

func getTask(ctx context.Context, q querier, userID, taskID string) (domain.Task, error) {
	query := `
		SELECT ` + taskColumns + `
		FROM tasks t
		LEFT JOIN task_custom_fields f ON f.task_id = t.id
		WHERE t.user_id = ? AND t.id = ?
		ORDER BY f.id
	`
	rows, err := q.QueryContext(ctx, query, userID, taskID)
	if err != nil {
		return domain.Task{}, fmt.Errorf("get task: %w", err)
	}
	defer rows.Close()

	tasks, err := scanTasks(rows)
	if err != nil {
		return domain.Task{}, err
	}
	if len(tasks) == 0 {
		return domain.Task{}, domain.ErrNotFound
	}
	return tasks[0], nil
}

// CreateTask inserts the task and, when present, its custom field in one transaction.
func (s *Storage) CreateTask(ctx context.Context, userID string, nt domain.NewTask) (domain.Task, error) {
	task := domain.Task{
		ID:           uuid.NewString(),
		UserID:       userID,
		Title:        nt.Title,
		Completed:    nt.Completed,
		CustomFields: []domain.CustomField{},
	}
	createdAt := domain.NextTimestamp()
	task.CreatedAt = time.Unix(0, createdAt).UTC()

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if err := ensureUser(ctx, tx, userID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO tasks (id, user_id, title, completed, created_at) VALUES (?, ?, ?, ?, ?)`,
			task.ID, userID, task.Title, boolToInt(task.Completed), createdAt)
		if err != nil {
			return fmt.Errorf("create task: %w", err)
		}

		cf, ok, err := insertCustomField(ctx, tx, task.ID, nt.CustomField)
		if err != nil {
			return err
		}
		if ok {
			task.CustomFields = append(task.CustomFields, cf)
		}
		return nil
	})
	if err != nil {
		return domain.Task{}, err
	}
	return task, nil
}

// UpdateTask applies upd to the task owned by userID and returns the result.
func (s *Storage) UpdateTask(ctx context.Context, userID, taskID string, upd domain.TaskUpdate) (domain.Task, error) {
	var task domain.Task
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		current, err := getTask(ctx, tx, userID, taskID)
		if err != nil {
			return err
		}
		if upd.Title != nil {
			current.Title = *upd.Title
		}
		if upd.Completed != nil {
			current.Completed = *upd.Completed
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE tasks SET title = ?, completed = ? WHERE id = ? AND user_id = ?`,
			current.Title, boolToInt(current.Completed), taskID, userID)
		if err != nil {
			return fmt.Errorf("update task: %w", err)
		}

		if spec, ok := upd.CustomField.(domain.CustomFieldValue); ok {
			if _, err := tx.ExecContext(ctx, `DELETE FROM task_custom_fields WHERE task_id = ?`, taskID); err != nil {
				return fmt.Errorf("replace custom field: %w", err)
			}
			cf, inserted, err := insertCustomField(ctx, tx, taskID, spec)
			if err != nil {
				return err
			}
			current.CustomFields = current.CustomFields[:0]
			if inserted {
				current.CustomFields = append(current.CustomFields, cf)
			}
		}
		task = current
		return nil
	})
	if err != nil {
		return domain.Task{}, err
	}
	return task, nil
}

// DeleteTask removes the task owned by userID; its custom fields cascade.
func (s *Storage) DeleteTask(ctx context.Context, userID, taskID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ? AND user_id = ?`, taskID, userID)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// insertCustomField persists spec when it is a complete custom field. Incomplete
// values are skipped; a value inconsistent with its declared type is rejected.
func insertCustomField(ctx context.Context, q querier, taskID string, spec domain.CustomFieldSpec) (domain.CustomField, bool, error) {
	cf, ok := spec.(domain.CustomFieldValue)
	if !ok || cf.Name == "" || cf.Type == "" || cf.Value == nil {
		return domain.CustomField{}, false, nil
	}
	if !cf.Type.Matches(cf.Value) {
		return domain.CustomField{}, false, fmt.Errorf("insert custom field %q: %w", cf.Name, domain.ErrFieldTypeMismatch)
	}

	encoded, err := sonic.Marshal(cf.Value)
	if err != nil {
		return domain.CustomField{}, false, fmt.Errorf("encode custom field value: %w", err)
	}
	res, err := q.ExecContext(ctx,
		`INSERT INTO task_custom_fields (task_id, field_name, field_type, field_value) VALUES (?, ?, ?, ?)`,
		taskID, cf.Name, string(cf.Type), string(encoded))
	if err != nil {
		return domain.CustomField{}, false, fmt.Errorf("insert custom field: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.CustomField{}, false, fmt.Errorf("insert custom field: %w", err)
	}
	return domain.CustomField{ID: id, Name: cf.Name, Type: cf.Type, Value: cf.Value}, true, nil
}

func scanTasks(rows *sql.Rows) ([]domain.Task, error) {
	tasks := []domain.Task{}
	index := make(map[string]int)
	for rows.Next() {
		var (
			t          domain.Task
			completed  int
			createdAt  int64
			fieldID    sql.NullInt64
			fieldName  sql.NullString
			fieldType  sql.NullString
			fieldValue sql.NullString
		)
		if err := rows.Scan(&t.ID, &t.UserID, &t.Title, &completed, &createdAt,
			&fieldID, &fieldName, &fieldType, &fieldValue); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}

		i, seen := index[t.ID]
		if !seen {
			t.Completed = completed != 0
			t.CreatedAt = time.Unix(0, createdAt).UTC()
			t.CustomFields = []domain.CustomField{}
			tasks = append(tasks, t)
			i = len(tasks) - 1
			index[t.ID] = i
		}
		if !fieldID.Valid {
			continue
		}

		cf := domain.CustomField{ID: fieldID.Int64, Name: fieldName.String, Type: domain.FieldType(fieldType.String)}
		if err := valueJSON.UnmarshalFromString(fieldValue.String, &cf.Value); err != nil {
			return nil, fmt.Errorf("decode custom field %d: %w", fieldID.Int64, err)
		}
		tasks[i].CustomFields = append(tasks[i].CustomFields, cf)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return tasks, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
