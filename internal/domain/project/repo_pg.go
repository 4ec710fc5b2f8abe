package project

import (
	"context"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lims/lims/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const projectCols = `id, project_id, name, project_type, client_id, status, tat,
	expected_sample_count, processing_sample_count, project_value, notes,
	start_date, due_date, completed_date, created_by_id, sales_rep_id,
	created_at, updated_at`

func scanProject(row pgx.Row) (*Project, error) {
	var p Project
	err := row.Scan(&p.ID, &p.ProjectID, &p.Name, &p.ProjectType, &p.ClientID,
		&p.Status, &p.TAT, &p.ExpectedSampleCount, &p.ProcessingSampleCount,
		&p.ProjectValue, &p.Notes, &p.StartDate, &p.DueDate, &p.CompletedDate,
		&p.CreatedByID, &p.SalesRepID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *repoPG) Create(ctx context.Context, p *Project) error {
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO projects (project_id, name, project_type, client_id, status, tat,
			expected_sample_count, processing_sample_count, project_value, notes,
			start_date, due_date, created_by_id, sales_rep_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		RETURNING id, created_at, updated_at`,
		p.ProjectID, p.Name, p.ProjectType, p.ClientID, p.Status, p.TAT,
		p.ExpectedSampleCount, p.ProcessingSampleCount, p.ProjectValue, p.Notes,
		p.StartDate, p.DueDate, p.CreatedByID, p.SalesRepID).
		Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, id int64) (*Project, error) {
	return scanProject(r.conn(ctx).QueryRow(ctx,
		`SELECT `+projectCols+` FROM projects WHERE id = $1`, id))
}

func (r *repoPG) GetByProjectID(ctx context.Context, projectID string) (*Project, error) {
	return scanProject(r.conn(ctx).QueryRow(ctx,
		`SELECT `+projectCols+` FROM projects WHERE project_id = $1`, projectID))
}

func (r *repoPG) Update(ctx context.Context, p *Project) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE projects SET name = $1, project_type = $2, client_id = $3,
			status = $4, tat = $5, expected_sample_count = $6,
			processing_sample_count = $7, project_value = $8, notes = $9,
			start_date = $10, due_date = $11, completed_date = $12,
			sales_rep_id = $13, updated_at = now()
		WHERE id = $14`,
		p.Name, p.ProjectType, p.ClientID, p.Status, p.TAT,
		p.ExpectedSampleCount, p.ProcessingSampleCount, p.ProjectValue, p.Notes,
		p.StartDate, p.DueDate, p.CompletedDate, p.SalesRepID, p.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, f ListFilter) ([]*Project, int, error) {
	where := ` WHERE status <> 'deleted'`
	args := []interface{}{}
	n := 0

	if f.Status != "" {
		n++
		where += ` AND status = $` + strconv.Itoa(n)
		args = append(args, f.Status)
	}
	if f.ClientID != 0 {
		n++
		where += ` AND client_id = $` + strconv.Itoa(n)
		args = append(args, f.ClientID)
	}
	if f.Search != "" {
		n++
		where += ` AND (project_id ILIKE $` + strconv.Itoa(n) + ` OR name ILIKE $` + strconv.Itoa(n) + `)`
		args = append(args, "%"+f.Search+"%")
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM projects`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := `SELECT ` + projectCols + ` FROM projects` + where +
		` ORDER BY created_at DESC LIMIT $` + strconv.Itoa(n+1) + ` OFFSET $` + strconv.Itoa(n+2)
	args = append(args, f.Limit, f.Offset)

	rows, err := r.conn(ctx).Query(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}

func (r *repoPG) MaxStandardNumber(ctx context.Context) (int, error) {
	var max int
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COALESCE(MAX(CAST(SUBSTRING(project_id FROM 5) AS INTEGER)), 0)
		FROM projects WHERE project_id ~ '^CMBP[0-9]{5}$'`).Scan(&max)
	return max, err
}

func (r *repoPG) AppendLog(ctx context.Context, log *Log) error {
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO project_logs (project_id, comment, log_type, created_by_id)
		VALUES ($1,$2,$3,$4)
		RETURNING id, created_at`,
		log.ProjectID, log.Comment, log.LogType, log.CreatedByID).
		Scan(&log.ID, &log.CreatedAt)
}

func (r *repoPG) GetLogs(ctx context.Context, projectID int64) ([]*Log, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, project_id, comment, log_type, created_by_id, created_at
		FROM project_logs WHERE project_id = $1 ORDER BY created_at, id`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []*Log
	for rows.Next() {
		var l Log
		if err := rows.Scan(&l.ID, &l.ProjectID, &l.Comment, &l.LogType,
			&l.CreatedByID, &l.CreatedAt); err != nil {
			return nil, err
		}
		logs = append(logs, &l)
	}
	return logs, rows.Err()
}

const attachmentCols = `id, project_id, filename, original_filename, file_path,
	file_size, file_type, uploaded_by_id, created_at`

func scanAttachment(row pgx.Row) (*Attachment, error) {
	var a Attachment
	err := row.Scan(&a.ID, &a.ProjectID, &a.Filename, &a.OriginalFilename,
		&a.FilePath, &a.FileSize, &a.FileType, &a.UploadedByID, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *repoPG) CreateAttachment(ctx context.Context, a *Attachment) error {
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO project_attachments (project_id, filename, original_filename,
			file_path, file_size, file_type, uploaded_by_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING id, created_at`,
		a.ProjectID, a.Filename, a.OriginalFilename, a.FilePath, a.FileSize,
		a.FileType, a.UploadedByID).
		Scan(&a.ID, &a.CreatedAt)
}

func (r *repoPG) GetAttachment(ctx context.Context, id int64) (*Attachment, error) {
	return scanAttachment(r.conn(ctx).QueryRow(ctx,
		`SELECT `+attachmentCols+` FROM project_attachments WHERE id = $1`, id))
}

func (r *repoPG) ListAttachments(ctx context.Context, projectID int64) ([]*Attachment, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+attachmentCols+` FROM project_attachments WHERE project_id = $1 ORDER BY created_at`,
		projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*Attachment
	for rows.Next() {
		a, err := scanAttachment(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

func (r *repoPG) DeleteAttachment(ctx context.Context, id int64) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM project_attachments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
