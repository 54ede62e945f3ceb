package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"dealradar/internal/queue"
)

const taskColumns = "id, company_name, website, ir_url, country, status, progress, current_step, steps_json, companies_json, documents_json, error_message, error_kind, log_json, created_at, started_at, finished_at, updated_at"

// SaveTask inserts or replaces the snapshot of a task.
func (s *Store) SaveTask(ctx context.Context, task queue.Task) error {
	_, err := s.execWithRetry(ctx,
		`INSERT INTO tasks (`+taskColumns+`)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(id) DO UPDATE SET
             status = excluded.status,
             progress = excluded.progress,
             current_step = excluded.current_step,
             steps_json = excluded.steps_json,
             companies_json = excluded.companies_json,
             documents_json = excluded.documents_json,
             error_message = excluded.error_message,
             error_kind = excluded.error_kind,
             log_json = excluded.log_json,
             started_at = excluded.started_at,
             finished_at = excluded.finished_at,
             updated_at = excluded.updated_at`,
		task.ID,
		task.CompanyName,
		nullableString(task.Website),
		nullableString(task.IRURL),
		nullableString(task.Country),
		string(task.Status),
		task.Progress,
		nullableString(task.CurrentStep),
		encodeList(task.StepsCompleted),
		encodeList(task.Companies),
		encodeList(task.Documents),
		nullableString(task.Error),
		nullableString(task.ErrorKind),
		encodeList(task.Log),
		formatTime(task.CreatedAt),
		nullableTime(task.StartedAt),
		nullableTime(task.FinishedAt),
		formatTime(task.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("save task %s: %w", task.ID, err)
	}
	return nil
}

// DeleteTasks removes task snapshots. Unknown ids are ignored.
func (s *Store) DeleteTasks(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	stmt, args, err := builder.Delete("tasks").Where(sq.Eq{"id": ids}).ToSql()
	if err != nil {
		return fmt.Errorf("build task delete: %w", err)
	}
	if _, err := s.execWithRetry(ctx, stmt, args...); err != nil {
		return fmt.Errorf("delete tasks: %w", err)
	}
	return nil
}

// LoadTasks returns every persisted task, oldest first.
func (s *Store) LoadTasks(ctx context.Context) ([]queue.Task, error) {
	return s.queryTasks(ctx, builder.Select(taskColumns).From("tasks").OrderBy("created_at ASC", "id ASC"))
}

// TasksByStatus returns tasks in the given statuses, most recent first.
func (s *Store) TasksByStatus(ctx context.Context, statuses ...queue.Status) ([]queue.Task, error) {
	query := builder.Select(taskColumns).From("tasks").OrderBy("created_at DESC", "id DESC")
	if len(statuses) > 0 {
		values := make([]string, len(statuses))
		for i, status := range statuses {
			values[i] = string(status)
		}
		query = query.Where(sq.Eq{"status": values})
	}
	return s.queryTasks(ctx, query)
}

// Task returns one persisted task.
func (s *Store) Task(ctx context.Context, id string) (queue.Task, error) {
	tasks, err := s.queryTasks(ctx, builder.Select(taskColumns).From("tasks").Where(sq.Eq{"id": id}))
	if err != nil {
		return queue.Task{}, err
	}
	if len(tasks) == 0 {
		return queue.Task{}, notFound("task", id)
	}
	return tasks[0], nil
}

func (s *Store) queryTasks(ctx context.Context, query sq.SelectBuilder) ([]queue.Task, error) {
	stmt, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build task query: %w", err)
	}
	rows, err := s.db.QueryContext(ensureContext(ctx), stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []queue.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

func scanTask(scanner rowScanner) (queue.Task, error) {
	var (
		id          string
		companyName string
		website     sql.NullString
		irURL       sql.NullString
		country     sql.NullString
		status      string
		progress    sql.NullFloat64
		currentStep sql.NullString
		stepsJSON   sql.NullString
		companies   sql.NullString
		documents   sql.NullString
		errorMsg    sql.NullString
		errorKind   sql.NullString
		logJSON     sql.NullString
		createdRaw  sql.NullString
		startedRaw  sql.NullString
		finishedRaw sql.NullString
		updatedRaw  sql.NullString
	)
	if err := scanner.Scan(
		&id,
		&companyName,
		&website,
		&irURL,
		&country,
		&status,
		&progress,
		&currentStep,
		&stepsJSON,
		&companies,
		&documents,
		&errorMsg,
		&errorKind,
		&logJSON,
		&createdRaw,
		&startedRaw,
		&finishedRaw,
		&updatedRaw,
	); err != nil {
		return queue.Task{}, err
	}

	parsed, ok := queue.ParseStatus(status)
	if !ok {
		return queue.Task{}, errors.New("unknown status " + status)
	}
	return queue.Task{
		ID:             id,
		CompanyName:    companyName,
		Website:        website.String,
		IRURL:          irURL.String,
		Country:        country.String,
		Status:         parsed,
		Progress:       progress.Float64,
		CurrentStep:    currentStep.String,
		StepsCompleted: decodeList(stepsJSON.String),
		Companies:      decodeList(companies.String),
		Documents:      decodeList(documents.String),
		Error:          errorMsg.String,
		ErrorKind:      errorKind.String,
		Log:            decodeList(logJSON.String),
		CreatedAt:      parseTimeOrZero(createdRaw.String),
		StartedAt:      parseTimeOrZero(startedRaw.String),
		FinishedAt:     parseTimeOrZero(finishedRaw.String),
		UpdatedAt:      parseTimeOrZero(updatedRaw.String),
	}, nil
}
