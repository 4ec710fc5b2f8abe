package plate

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

func (r *repoPG) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return db.RunInTx(ctx, r.pool, fn)
}

// plateCols carries live sample/control counts so list views never fan out.
const plateCols = `p.id, p.plate_id, p.plate_name, p.status,
	p.assigned_tech_id, p.assigned_date,
	p.extraction_method, p.lysis_method, p.extraction_lot,
	p.started_date, p.completed_date, p.notes,
	(SELECT COUNT(*) FROM plate_well_assignments w WHERE w.plate_ref_id = p.id AND NOT w.is_control),
	(SELECT COUNT(*) FROM control_samples c WHERE c.plate_ref_id = p.id),
	p.created_at, p.updated_at`

func scanPlate(row pgx.Row) (*Plate, error) {
	var p Plate
	err := row.Scan(&p.ID, &p.PlateID, &p.PlateName, &p.Status,
		&p.AssignedTechID, &p.AssignedDate,
		&p.ExtractionMethod, &p.LysisMethod, &p.ExtractionLot,
		&p.StartedDate, &p.CompletedDate, &p.Notes,
		&p.SampleCount, &p.ControlCount,
		&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *repoPG) Create(ctx context.Context, p *Plate) error {
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO extraction_plates (plate_id, plate_name, status,
			assigned_tech_id, assigned_date, extraction_method, lysis_method,
			extraction_lot, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING id, created_at, updated_at`,
		p.PlateID, p.PlateName, p.Status, p.AssignedTechID, p.AssignedDate,
		p.ExtractionMethod, p.LysisMethod, p.ExtractionLot, p.Notes).
		Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, id int64) (*Plate, error) {
	return scanPlate(r.conn(ctx).QueryRow(ctx,
		`SELECT `+plateCols+` FROM extraction_plates p WHERE p.id = $1`, id))
}

// GetByIDForUpdate needs FOR UPDATE OF p because plateCols subqueries touch
// other tables.
func (r *repoPG) GetByIDForUpdate(ctx context.Context, id int64) (*Plate, error) {
	return scanPlate(r.conn(ctx).QueryRow(ctx,
		`SELECT `+plateCols+` FROM extraction_plates p WHERE p.id = $1 FOR UPDATE OF p`, id))
}

func (r *repoPG) Update(ctx context.Context, p *Plate) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE extraction_plates SET plate_name = $1, status = $2,
			assigned_tech_id = $3, assigned_date = $4, extraction_method = $5,
			lysis_method = $6, extraction_lot = $7, started_date = $8,
			completed_date = $9, notes = $10, updated_at = now()
		WHERE id = $11`,
		p.PlateName, p.Status, p.AssignedTechID, p.AssignedDate,
		p.ExtractionMethod, p.LysisMethod, p.ExtractionLot, p.StartedDate,
		p.CompletedDate, p.Notes, p.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, f ListFilter) ([]*Plate, int, error) {
	where := ``
	args := []interface{}{}
	n := 0
	if f.Status != "" {
		n++
		where = ` WHERE p.status = $` + strconv.Itoa(n)
		args = append(args, f.Status)
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM extraction_plates p`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := `SELECT ` + plateCols + ` FROM extraction_plates p` + where +
		` ORDER BY p.created_at DESC LIMIT $` + strconv.Itoa(n+1) + ` OFFSET $` + strconv.Itoa(n+2)
	args = append(args, f.Limit, f.Offset)

	rows, err := r.conn(ctx).Query(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Plate
	for rows.Next() {
		p, err := scanPlate(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}

func (r *repoPG) CreateWell(ctx context.Context, w *WellAssignment) error {
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO plate_well_assignments (plate_ref_id, sample_id,
			well_position, well_row, well_column, is_control, control_type)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING id, created_at`,
		w.PlateRefID, w.SampleID, w.WellPosition, w.WellRow, w.WellColumn,
		w.IsControl, w.ControlType).
		Scan(&w.ID, &w.CreatedAt)
}

func (r *repoPG) DeleteWellBySample(ctx context.Context, plateRefID, sampleID int64) error {
	_, err := r.conn(ctx).Exec(ctx,
		`DELETE FROM plate_well_assignments WHERE plate_ref_id = $1 AND sample_id = $2`,
		plateRefID, sampleID)
	return err
}

func (r *repoPG) DeleteWellByPosition(ctx context.Context, plateRefID int64, position string) error {
	_, err := r.conn(ctx).Exec(ctx,
		`DELETE FROM plate_well_assignments WHERE plate_ref_id = $1 AND well_position = $2`,
		plateRefID, position)
	return err
}

func (r *repoPG) ListWells(ctx context.Context, plateRefID int64) ([]*WellAssignment, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, plate_ref_id, sample_id, well_position, well_row,
			well_column, is_control, control_type, created_at
		FROM plate_well_assignments
		WHERE plate_ref_id = $1 ORDER BY well_column, well_row`, plateRefID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*WellAssignment
	for rows.Next() {
		var w WellAssignment
		if err := rows.Scan(&w.ID, &w.PlateRefID, &w.SampleID, &w.WellPosition,
			&w.WellRow, &w.WellColumn, &w.IsControl, &w.ControlType, &w.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, &w)
	}
	return items, rows.Err()
}

const controlCols = `id, control_id, plate_ref_id, control_type, control_category,
	set_number, well_position, well_row, well_column, lot_number, expiration_date,
	supplier, product_name, input_volume, elution_volume, concentration,
	ratio_260_280, ratio_260_230, qc_pass, qc_notes, notes, created_at`

func scanControl(row pgx.Row) (*Control, error) {
	var c Control
	err := row.Scan(&c.ID, &c.ControlID, &c.PlateRefID, &c.ControlType,
		&c.ControlCategory, &c.SetNumber, &c.WellPosition, &c.WellRow,
		&c.WellColumn, &c.LotNumber, &c.ExpirationDate, &c.Supplier,
		&c.ProductName, &c.InputVolume, &c.ElutionVolume, &c.Concentration,
		&c.Ratio260280, &c.Ratio260230, &c.QCPass, &c.QCNotes, &c.Notes,
		&c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *repoPG) CreateControl(ctx context.Context, c *Control) error {
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO control_samples (control_id, plate_ref_id, control_type,
			control_category, set_number, well_position, well_row, well_column,
			lot_number, expiration_date, supplier, product_name, input_volume,
			elution_volume, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		RETURNING id, created_at`,
		c.ControlID, c.PlateRefID, c.ControlType, c.ControlCategory,
		c.SetNumber, c.WellPosition, c.WellRow, c.WellColumn, c.LotNumber,
		c.ExpirationDate, c.Supplier, c.ProductName, c.InputVolume,
		c.ElutionVolume, c.Notes).
		Scan(&c.ID, &c.CreatedAt)
}

func (r *repoPG) GetControlByControlID(ctx context.Context, plateRefID int64, controlID string) (*Control, error) {
	return scanControl(r.conn(ctx).QueryRow(ctx,
		`SELECT `+controlCols+` FROM control_samples WHERE plate_ref_id = $1 AND control_id = $2`,
		plateRefID, controlID))
}

func (r *repoPG) DeleteControl(ctx context.Context, id int64) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM control_samples WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *repoPG) ListControls(ctx context.Context, plateRefID int64) ([]*Control, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+controlCols+` FROM control_samples WHERE plate_ref_id = $1 ORDER BY well_column, well_row`,
		plateRefID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*Control
	for rows.Next() {
		c, err := scanControl(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

func (r *repoPG) CountControls(ctx context.Context, plateRefID int64, controlType, category string) (int, error) {
	var count int
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*) FROM control_samples
		WHERE plate_ref_id = $1 AND control_type = $2 AND control_category = $3`,
		plateRefID, controlType, category).Scan(&count)
	return count, err
}

func (r *repoPG) UpdateControl(ctx context.Context, c *Control) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE control_samples SET concentration = $1, ratio_260_280 = $2,
			ratio_260_230 = $3, qc_pass = $4, qc_notes = $5
		WHERE id = $6`,
		c.Concentration, c.Ratio260280, c.Ratio260230, c.QCPass, c.QCNotes, c.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
