package sample

import (
	"context"
	"strconv"
	"strings"

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

func (r *repoPG) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return db.RunInTx(ctx, r.pool, fn)
}

// sampleCols joins the sample type name so routing decisions never need a
// second query.
const sampleCols = `s.id, s.barcode, s.client_sample_id, s.project_id,
	s.sample_type_id, st.name, s.sample_type_other, s.status,
	s.parent_sample_id, s.reprocess_type, s.reprocess_reason, s.reprocess_count,
	s.storage_unit, s.storage_shelf, s.storage_box, s.storage_position, s.storage_location_id,
	s.target_depth, s.well_location, s.due_date,
	s.received_date, s.accessioned_date, s.accessioned_by_id, s.accessioning_notes,
	s.has_flag, s.flag_abbreviation, s.flag_notes,
	s.has_discrepancy, s.discrepancy_notes, s.discrepancy_resolved,
	s.discrepancy_resolution_date, s.discrepancy_resolved_by_id,
	s.queue_priority, s.queue_notes, s.failed_stage, s.failure_reason, s.batch_id,
	s.extraction_plate_ref_id, s.extraction_plate_id, s.extraction_well_position,
	s.extraction_concentration,
	s.extraction_kit, s.extraction_lot, s.dna_concentration_ng_ul,
	s.library_prep_kit, s.sequencing_run_id, s.achieved_depth,
	s.created_at, s.updated_at`

const sampleFrom = ` FROM samples s LEFT JOIN sample_types st ON st.id = s.sample_type_id`

func scanSample(row pgx.Row) (*Sample, error) {
	var s Sample
	err := row.Scan(&s.ID, &s.Barcode, &s.ClientSampleID, &s.ProjectID,
		&s.SampleTypeID, &s.SampleTypeName, &s.SampleTypeOther, &s.Status,
		&s.ParentSampleID, &s.ReprocessType, &s.ReprocessReason, &s.ReprocessCount,
		&s.StorageUnit, &s.StorageShelf, &s.StorageBox, &s.StoragePosition, &s.StorageLocationID,
		&s.TargetDepth, &s.WellLocation, &s.DueDate,
		&s.ReceivedDate, &s.AccessionedDate, &s.AccessionedByID, &s.AccessioningNotes,
		&s.HasFlag, &s.FlagAbbreviation, &s.FlagNotes,
		&s.HasDiscrepancy, &s.DiscrepancyNotes, &s.DiscrepancyResolved,
		&s.DiscrepancyResolutionDate, &s.DiscrepancyResolvedByID,
		&s.QueuePriority, &s.QueueNotes, &s.FailedStage, &s.FailureReason, &s.BatchID,
		&s.ExtractionPlateRefID, &s.ExtractionPlateID, &s.ExtractionWellPosition,
		&s.ExtractionConcentration,
		&s.ExtractionKit, &s.ExtractionLot, &s.DNAConcentrationNgUl,
		&s.LibraryPrepKit, &s.SequencingRunID, &s.AchievedDepth,
		&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *repoPG) Create(ctx context.Context, s *Sample) error {
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO samples (barcode, client_sample_id, project_id, sample_type_id,
			sample_type_other, status, parent_sample_id, reprocess_type,
			reprocess_reason, reprocess_count, storage_unit, storage_shelf,
			storage_box, storage_position, storage_location_id, target_depth,
			well_location, due_date, received_date, queue_priority, queue_notes, batch_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22)
		RETURNING id, created_at, updated_at`,
		s.Barcode, s.ClientSampleID, s.ProjectID, s.SampleTypeID,
		s.SampleTypeOther, s.Status, s.ParentSampleID, s.ReprocessType,
		s.ReprocessReason, s.ReprocessCount, s.StorageUnit, s.StorageShelf,
		s.StorageBox, s.StoragePosition, s.StorageLocationID, s.TargetDepth,
		s.WellLocation, s.DueDate, s.ReceivedDate, s.QueuePriority, s.QueueNotes, s.BatchID).
		Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, id int64) (*Sample, error) {
	return scanSample(r.conn(ctx).QueryRow(ctx,
		`SELECT `+sampleCols+sampleFrom+` WHERE s.id = $1`, id))
}

func (r *repoPG) GetByBarcode(ctx context.Context, barcode string) (*Sample, error) {
	return scanSample(r.conn(ctx).QueryRow(ctx,
		`SELECT `+sampleCols+sampleFrom+` WHERE s.barcode = $1`, barcode))
}

func (r *repoPG) Update(ctx context.Context, s *Sample) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE samples SET client_sample_id = $1, sample_type_id = $2,
			sample_type_other = $3, status = $4, reprocess_type = $5,
			reprocess_reason = $6, reprocess_count = $7, storage_unit = $8,
			storage_shelf = $9, storage_box = $10, storage_position = $11,
			storage_location_id = $12, target_depth = $13, well_location = $14,
			due_date = $15, received_date = $16, accessioned_date = $17,
			accessioned_by_id = $18, accessioning_notes = $19, has_flag = $20,
			flag_abbreviation = $21, flag_notes = $22, has_discrepancy = $23,
			discrepancy_notes = $24, discrepancy_resolved = $25,
			discrepancy_resolution_date = $26, discrepancy_resolved_by_id = $27,
			queue_priority = $28, queue_notes = $29, failed_stage = $30,
			failure_reason = $31, batch_id = $32, extraction_plate_ref_id = $33,
			extraction_plate_id = $34, extraction_well_position = $35,
			extraction_concentration = $36, extraction_kit = $37,
			extraction_lot = $38, dna_concentration_ng_ul = $39,
			library_prep_kit = $40, sequencing_run_id = $41, achieved_depth = $42,
			updated_at = now()
		WHERE id = $43`,
		s.ClientSampleID, s.SampleTypeID, s.SampleTypeOther, s.Status,
		s.ReprocessType, s.ReprocessReason, s.ReprocessCount, s.StorageUnit,
		s.StorageShelf, s.StorageBox, s.StoragePosition, s.StorageLocationID,
		s.TargetDepth, s.WellLocation, s.DueDate, s.ReceivedDate,
		s.AccessionedDate, s.AccessionedByID, s.AccessioningNotes, s.HasFlag,
		s.FlagAbbreviation, s.FlagNotes, s.HasDiscrepancy, s.DiscrepancyNotes,
		s.DiscrepancyResolved, s.DiscrepancyResolutionDate, s.DiscrepancyResolvedByID,
		s.QueuePriority, s.QueueNotes, s.FailedStage, s.FailureReason, s.BatchID,
		s.ExtractionPlateRefID, s.ExtractionPlateID, s.ExtractionWellPosition,
		s.ExtractionConcentration, s.ExtractionKit, s.ExtractionLot,
		s.DNAConcentrationNgUl, s.LibraryPrepKit, s.SequencingRunID,
		s.AchievedDepth, s.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, f ListFilter) ([]*Sample, int, error) {
	where := ` WHERE s.status <> 'deleted'`
	args := []interface{}{}
	n := 0

	if f.ProjectID != 0 {
		n++
		where += ` AND s.project_id = $` + strconv.Itoa(n)
		args = append(args, f.ProjectID)
	}
	if f.Status != "" {
		n++
		where += ` AND s.status = $` + strconv.Itoa(n)
		args = append(args, f.Status)
	}
	if f.Search != "" {
		n++
		where += ` AND (s.barcode ILIKE $` + strconv.Itoa(n) + ` OR s.client_sample_id ILIKE $` + strconv.Itoa(n) + `)`
		args = append(args, "%"+f.Search+"%")
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*)`+sampleFrom+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := `SELECT ` + sampleCols + sampleFrom + where +
		` ORDER BY s.created_at DESC LIMIT $` + strconv.Itoa(n+1) + ` OFFSET $` + strconv.Itoa(n+2)
	args = append(args, f.Limit, f.Offset)
	return r.querySamples(ctx, q, args, total)
}

func (r *repoPG) BarcodeExists(ctx context.Context, barcode string) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM samples WHERE barcode = $1)`, barcode).Scan(&exists)
	return exists, err
}

func (r *repoPG) ListByStatuses(ctx context.Context, statuses []string, limit, offset int) ([]*Sample, int, error) {
	placeholders := make([]string, len(statuses))
	args := make([]interface{}, 0, len(statuses)+2)
	for i, st := range statuses {
		placeholders[i] = "$" + strconv.Itoa(i+1)
		args = append(args, st)
	}
	where := ` WHERE s.status IN (` + strings.Join(placeholders, ",") + `)`

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*)`+sampleFrom+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	n := len(statuses)
	q := `SELECT ` + sampleCols + sampleFrom + where +
		` ORDER BY s.queue_priority DESC, s.created_at ASC` +
		` LIMIT $` + strconv.Itoa(n+1) + ` OFFSET $` + strconv.Itoa(n+2)
	args = append(args, limit, offset)
	return r.querySamples(ctx, q, args, total)
}

func (r *repoPG) ListReprocessQueue(ctx context.Context, limit, offset int) ([]*Sample, int, error) {
	where := ` WHERE s.reprocess_count > 0 AND s.status NOT IN ('failed','cancelled','deleted','delivered')`

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*)`+sampleFrom+where).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := `SELECT ` + sampleCols + sampleFrom + where +
		` ORDER BY s.queue_priority DESC, s.created_at ASC LIMIT $1 OFFSET $2`
	return r.querySamples(ctx, q, []interface{}{limit, offset}, total)
}

func (r *repoPG) ListByPlate(ctx context.Context, plateRefID int64) ([]*Sample, error) {
	items, _, err := r.querySamples(ctx,
		`SELECT `+sampleCols+sampleFrom+` WHERE s.extraction_plate_ref_id = $1 ORDER BY s.extraction_well_position`,
		[]interface{}{plateRefID}, 0)
	return items, err
}

func (r *repoPG) querySamples(ctx context.Context, q string, args []interface{}, total int) ([]*Sample, int, error) {
	rows, err := r.conn(ctx).Query(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Sample
	for rows.Next() {
		s, err := scanSample(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, s)
	}
	return items, total, rows.Err()
}

func (r *repoPG) AppendLog(ctx context.Context, log *Log) error {
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO sample_logs (sample_id, comment, log_type, old_value, new_value, created_by_id)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING id, created_at`,
		log.SampleID, log.Comment, log.LogType, log.OldValue, log.NewValue, log.CreatedByID).
		Scan(&log.ID, &log.CreatedAt)
}

func (r *repoPG) GetLogs(ctx context.Context, sampleID int64) ([]*Log, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, sample_id, comment, log_type, old_value, new_value, created_by_id, created_at
		FROM sample_logs WHERE sample_id = $1 ORDER BY created_at, id`, sampleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []*Log
	for rows.Next() {
		var l Log
		if err := rows.Scan(&l.ID, &l.SampleID, &l.Comment, &l.LogType,
			&l.OldValue, &l.NewValue, &l.CreatedByID, &l.CreatedAt); err != nil {
			return nil, err
		}
		logs = append(logs, &l)
	}
	return logs, rows.Err()
}

const approvalCols = `id, sample_id, discrepancy_type, discrepancy_details,
	created_by_id, approved, approved_by_id, approval_reason, signature_meaning,
	decided_at, created_at`

func scanApproval(row pgx.Row) (*DiscrepancyApproval, error) {
	var a DiscrepancyApproval
	err := row.Scan(&a.ID, &a.SampleID, &a.DiscrepancyType, &a.DiscrepancyDetails,
		&a.CreatedByID, &a.Approved, &a.ApprovedByID, &a.ApprovalReason,
		&a.SignatureMeaning, &a.DecidedAt, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *repoPG) CreateApproval(ctx context.Context, a *DiscrepancyApproval) error {
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO discrepancy_approvals (sample_id, discrepancy_type,
			discrepancy_details, created_by_id)
		VALUES ($1,$2,$3,$4)
		RETURNING id, created_at`,
		a.SampleID, a.DiscrepancyType, a.DiscrepancyDetails, a.CreatedByID).
		Scan(&a.ID, &a.CreatedAt)
}

func (r *repoPG) GetApproval(ctx context.Context, id int64) (*DiscrepancyApproval, error) {
	return scanApproval(r.conn(ctx).QueryRow(ctx,
		`SELECT `+approvalCols+` FROM discrepancy_approvals WHERE id = $1`, id))
}

func (r *repoPG) ListApprovals(ctx context.Context, sampleID int64) ([]*DiscrepancyApproval, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+approvalCols+` FROM discrepancy_approvals WHERE sample_id = $1 ORDER BY created_at`,
		sampleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*DiscrepancyApproval
	for rows.Next() {
		a, err := scanApproval(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

func (r *repoPG) UpdateApproval(ctx context.Context, a *DiscrepancyApproval) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE discrepancy_approvals SET approved = $1, approved_by_id = $2,
			approval_reason = $3, signature_meaning = $4, decided_at = $5
		WHERE id = $6 AND approved IS NULL`,
		a.Approved, a.ApprovedByID, a.ApprovalReason, a.SignatureMeaning,
		a.DecidedAt, a.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

const approvalAttachmentCols = `id, approval_id, filename, original_filename,
	file_path, file_size, file_type, uploaded_by_id, created_at`

func scanApprovalAttachment(row pgx.Row) (*ApprovalAttachment, error) {
	var a ApprovalAttachment
	err := row.Scan(&a.ID, &a.ApprovalID, &a.Filename, &a.OriginalFilename,
		&a.FilePath, &a.FileSize, &a.FileType, &a.UploadedByID, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *repoPG) CreateApprovalAttachment(ctx context.Context, a *ApprovalAttachment) error {
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO discrepancy_attachments (approval_id, filename, original_filename,
			file_path, file_size, file_type, uploaded_by_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING id, created_at`,
		a.ApprovalID, a.Filename, a.OriginalFilename, a.FilePath, a.FileSize,
		a.FileType, a.UploadedByID).
		Scan(&a.ID, &a.CreatedAt)
}

func (r *repoPG) GetApprovalAttachment(ctx context.Context, id int64) (*ApprovalAttachment, error) {
	return scanApprovalAttachment(r.conn(ctx).QueryRow(ctx,
		`SELECT `+approvalAttachmentCols+` FROM discrepancy_attachments WHERE id = $1`, id))
}

func (r *repoPG) ListApprovalAttachments(ctx context.Context, approvalID int64) ([]*ApprovalAttachment, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+approvalAttachmentCols+` FROM discrepancy_attachments WHERE approval_id = $1 ORDER BY created_at`,
		approvalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*ApprovalAttachment
	for rows.Next() {
		a, err := scanApprovalAttachment(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}
