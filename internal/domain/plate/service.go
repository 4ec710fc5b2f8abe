package plate

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/lims/lims/internal/domain/identity"
	"github.com/lims/lims/internal/domain/sample"
	"github.com/lims/lims/internal/platform/auth"
	"github.com/lims/lims/internal/platform/metrics"
)

// Actor identifies the authenticated user performing an operation.
type Actor struct {
	ID       *int64
	Username string
	Role     string
}

// TechDirectory resolves user ids for technician assignment. Satisfied by the
// identity service.
type TechDirectory interface {
	Get(ctx context.Context, id int64) (*identity.User, error)
}

type Service struct {
	repo    Repository
	samples sample.Repository
	techs   TechDirectory
	metrics *metrics.Collector
}

func NewService(repo Repository, samples sample.Repository, techs TechDirectory, collector *metrics.Collector) *Service {
	return &Service{repo: repo, samples: samples, techs: techs, metrics: collector}
}

const plateIDChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// generatePlateID builds ids like EXT-20250206-AB12.
func generatePlateID() string {
	suffix := make([]byte, 4)
	for i := range suffix {
		suffix[i] = plateIDChars[rand.Intn(len(plateIDChars))]
	}
	return fmt.Sprintf("EXT-%s-%s", time.Now().Format("20060102"), suffix)
}

func (s *Service) Create(ctx context.Context, in CreateInput) (*Plate, error) {
	p := &Plate{
		PlateID:          generatePlateID(),
		PlateName:        in.PlateName,
		Status:           StatusDraft,
		ExtractionMethod: in.ExtractionMethod,
		LysisMethod:      in.LysisMethod,
		ExtractionLot:    in.ExtractionLot,
		Notes:            in.Notes,
	}
	if in.AssignedTechID != nil {
		if err := s.checkTechRole(ctx, *in.AssignedTechID); err != nil {
			return nil, err
		}
		now := time.Now()
		p.AssignedTechID = in.AssignedTechID
		p.AssignedDate = &now
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*Plate, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, f ListFilter) ([]*Plate, int, error) {
	return s.repo.List(ctx, f)
}

func (s *Service) Update(ctx context.Context, id int64, in UpdateInput) (*Plate, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("plate not found")
	}
	if p.Status != StatusDraft {
		return nil, fmt.Errorf("can only edit plates in draft status")
	}

	if in.PlateName != nil {
		p.PlateName = *in.PlateName
	}
	if in.ExtractionMethod != nil {
		p.ExtractionMethod = in.ExtractionMethod
	}
	if in.LysisMethod != nil {
		p.LysisMethod = in.LysisMethod
	}
	if in.ExtractionLot != nil {
		p.ExtractionLot = in.ExtractionLot
	}
	if in.Notes != nil {
		p.Notes = in.Notes
	}
	if in.AssignedTechID != nil {
		if err := s.checkTechRole(ctx, *in.AssignedTechID); err != nil {
			return nil, err
		}
		now := time.Now()
		p.AssignedTechID = in.AssignedTechID
		p.AssignedDate = &now
	}
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// GetLayout builds the full 96-well grid with samples, controls and empties.
func (s *Service) GetLayout(ctx context.Context, id int64) (*Layout, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("plate not found")
	}
	samples, err := s.samples.ListByPlate(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	controls, err := s.repo.ListControls(ctx, p.ID)
	if err != nil {
		return nil, err
	}

	byPos := make(map[string]*sample.Sample, len(samples))
	for _, smp := range samples {
		if smp.ExtractionWellPosition != nil {
			byPos[*smp.ExtractionWellPosition] = smp
		}
	}
	ctrlByPos := make(map[string]*Control, len(controls))
	for _, c := range controls {
		ctrlByPos[c.WellPosition] = c
	}

	layout := &Layout{
		PlateID:      p.PlateID,
		PlateName:    p.PlateName,
		Status:       p.Status,
		Wells:        make([]LayoutWell, 0, TotalWells),
		SampleCount:  len(samples),
		ControlCount: len(controls),
		EmptyCount:   TotalWells - len(samples) - len(controls),
	}

	for row := 'A'; row <= 'H'; row++ {
		for col := 1; col <= 12; col++ {
			pos := fmt.Sprintf("%c%d", row, col)
			well := LayoutWell{
				Position:    pos,
				Row:         string(row),
				Column:      col,
				ContentType: "empty",
			}
			if smp, ok := byPos[pos]; ok {
				well.ContentType = "sample"
				well.SampleID = &smp.ID
				well.SampleBarcode = &smp.Barcode
				well.SampleType = smp.SampleTypeName
				well.ClientSampleID = smp.ClientSampleID
				well.Concentration = smp.ExtractionConcentration
			} else if c, ok := ctrlByPos[pos]; ok {
				well.ContentType = "control"
				well.ControlID = &c.ControlID
				well.ControlType = &c.ControlType
				well.ControlCategory = &c.ControlCategory
				well.Concentration = c.Concentration
			}
			layout.Wells = append(layout.Wells, well)
		}
	}
	return layout, nil
}

// AddSamples assigns samples to wells on a draft plate. The whole batch is
// checked and written inside one transaction: any bad sample or taken well
// rejects the entire request.
func (s *Service) AddSamples(ctx context.Context, plateID int64, req AddSamplesRequest, actor Actor) error {
	if len(req.SampleIDs) == 0 {
		return fmt.Errorf("sample_ids is required")
	}
	if len(req.Positions) > 0 && len(req.Positions) != len(req.SampleIDs) {
		return fmt.Errorf("number of positions must match number of samples")
	}

	return s.repo.InTx(ctx, func(ctx context.Context) error {
		p, err := s.repo.GetByIDForUpdate(ctx, plateID)
		if err != nil {
			return fmt.Errorf("plate not found")
		}
		if p.Status != StatusDraft {
			return fmt.Errorf("can only edit plates in draft status")
		}
		if p.SampleCount+len(req.SampleIDs) > MaxSampleWells {
			return fmt.Errorf("plate holds at most %d samples", MaxSampleWells)
		}

		occupied, err := s.occupiedPositions(ctx, p.ID)
		if err != nil {
			return err
		}

		positions := req.Positions
		if len(positions) == 0 {
			positions, err = autoFill(occupied, len(req.SampleIDs))
			if err != nil {
				return err
			}
		}

		for i, sampleID := range req.SampleIDs {
			pos := positions[i]
			row, col, err := ParsePosition(pos)
			if err != nil {
				return err
			}
			if occupied[pos] {
				return fmt.Errorf("well %s is already occupied", pos)
			}

			smp, err := s.samples.GetByID(ctx, sampleID)
			if err != nil {
				return fmt.Errorf("sample %d not found", sampleID)
			}
			if smp.Status != sample.StatusExtractionQueue {
				return fmt.Errorf("sample %s is not in the extraction queue", smp.Barcode)
			}
			if smp.ExtractionPlateRefID != nil {
				return fmt.Errorf("sample %s is already assigned to a plate", smp.Barcode)
			}
			if smp.Blocked() {
				return fmt.Errorf("sample %s has an unresolved discrepancy", smp.Barcode)
			}

			smp.ExtractionPlateRefID = &p.ID
			smp.ExtractionPlateID = &p.PlateID
			posCopy := pos
			smp.ExtractionWellPosition = &posCopy
			if err := s.samples.Update(ctx, smp); err != nil {
				return err
			}

			if err := s.repo.CreateWell(ctx, &WellAssignment{
				PlateRefID:   p.ID,
				SampleID:     &smp.ID,
				WellPosition: pos,
				WellRow:      row,
				WellColumn:   col,
			}); err != nil {
				return err
			}
			occupied[pos] = true
		}
		return nil
	})
}

func (s *Service) occupiedPositions(ctx context.Context, plateRefID int64) (map[string]bool, error) {
	occupied := make(map[string]bool)
	wells, err := s.repo.ListWells(ctx, plateRefID)
	if err != nil {
		return nil, err
	}
	for _, w := range wells {
		occupied[w.WellPosition] = true
	}
	controls, err := s.repo.ListControls(ctx, plateRefID)
	if err != nil {
		return nil, err
	}
	for _, c := range controls {
		occupied[c.WellPosition] = true
	}
	return occupied, nil
}

func autoFill(occupied map[string]bool, count int) ([]string, error) {
	out := make([]string, 0, count)
	for _, pos := range FillOrder() {
		if len(out) == count {
			break
		}
		if !occupied[pos] {
			out = append(out, pos)
		}
	}
	if len(out) < count {
		return nil, fmt.Errorf("not enough free wells on the plate")
	}
	return out, nil
}

// RemoveSample frees the sample's well and makes it assignable elsewhere.
func (s *Service) RemoveSample(ctx context.Context, plateID, sampleID int64, actor Actor) error {
	return s.repo.InTx(ctx, func(ctx context.Context) error {
		p, err := s.repo.GetByIDForUpdate(ctx, plateID)
		if err != nil {
			return fmt.Errorf("plate not found")
		}
		if p.Status != StatusDraft {
			return fmt.Errorf("can only edit plates in draft status")
		}

		smp, err := s.samples.GetByID(ctx, sampleID)
		if err != nil {
			return fmt.Errorf("sample not found")
		}
		if smp.ExtractionPlateRefID == nil || *smp.ExtractionPlateRefID != p.ID {
			return fmt.Errorf("sample is not on this plate")
		}

		smp.ExtractionPlateRefID = nil
		smp.ExtractionPlateID = nil
		smp.ExtractionWellPosition = nil
		if err := s.samples.Update(ctx, smp); err != nil {
			return err
		}
		return s.repo.DeleteWellBySample(ctx, p.ID, sampleID)
	})
}

// AddControls places a positive/negative control pair. The first two
// positions are used, positive first.
func (s *Service) AddControls(ctx context.Context, plateID int64, req ControlSetRequest, actor Actor) ([]*Control, error) {
	if req.ControlCategory != CategoryExtraction && req.ControlCategory != CategoryLibraryPrep {
		return nil, fmt.Errorf("unknown control category %q", req.ControlCategory)
	}
	if len(req.Positions) < 2 {
		return nil, fmt.Errorf("a control set needs at least 2 positions")
	}

	var created []*Control
	err := s.repo.InTx(ctx, func(ctx context.Context) error {
		p, err := s.repo.GetByIDForUpdate(ctx, plateID)
		if err != nil {
			return fmt.Errorf("plate not found")
		}
		if p.Status != StatusDraft {
			return fmt.Errorf("can only edit plates in draft status")
		}

		occupied, err := s.occupiedPositions(ctx, p.ID)
		if err != nil {
			return err
		}

		inputVolume := req.InputVolume
		if inputVolume == 0 {
			inputVolume = 250
		}
		elutionVolume := req.ElutionVolume
		if elutionVolume == 0 {
			elutionVolume = 100
		}

		for i, controlType := range []string{ControlPositive, ControlNegative} {
			pos := req.Positions[i]
			row, col, err := ParsePosition(pos)
			if err != nil {
				return err
			}
			if occupied[pos] {
				return fmt.Errorf("well %s is already occupied", pos)
			}

			existing, err := s.repo.CountControls(ctx, p.ID, controlType, req.ControlCategory)
			if err != nil {
				return err
			}
			c := &Control{
				ControlID:       controlID(p.PlateID, controlType, req.ControlCategory, existing),
				PlateRefID:      p.ID,
				ControlType:     controlType,
				ControlCategory: req.ControlCategory,
				SetNumber:       existing + 1,
				WellPosition:    pos,
				WellRow:         row,
				WellColumn:      col,
				LotNumber:       req.LotNumber,
				ExpirationDate:  req.ExpirationDate,
				Supplier:        req.Supplier,
				ProductName:     req.ProductName,
				InputVolume:     inputVolume,
				ElutionVolume:   elutionVolume,
				Notes:           req.Notes,
			}
			if err := s.repo.CreateControl(ctx, c); err != nil {
				return err
			}
			// Controls claim a well row too, so the position-unique
			// constraint covers samples and controls alike.
			ctrlType := controlType
			if err := s.repo.CreateWell(ctx, &WellAssignment{
				PlateRefID:   p.ID,
				WellPosition: pos,
				WellRow:      row,
				WellColumn:   col,
				IsControl:    true,
				ControlType:  &ctrlType,
			}); err != nil {
				return err
			}
			occupied[pos] = true
			created = append(created, c)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// controlID builds ids like EXT-PTC-AB12, then EXT-PTC-AB12-1 for repeats.
func controlID(plateCode, controlType, category string, existing int) string {
	parts := strings.Split(plateCode, "-")
	suffix := parts[len(parts)-1]

	prefix := "EXT"
	if category == CategoryLibraryPrep {
		prefix = "LP"
	}
	typeCode := "PTC"
	if controlType == ControlNegative {
		typeCode = "NTC"
	}

	base := fmt.Sprintf("%s-%s-%s", prefix, typeCode, suffix)
	if existing == 0 {
		return base
	}
	return fmt.Sprintf("%s-%d", base, existing)
}

func (s *Service) RemoveControl(ctx context.Context, plateID int64, ctrlID string, actor Actor) error {
	return s.repo.InTx(ctx, func(ctx context.Context) error {
		p, err := s.repo.GetByIDForUpdate(ctx, plateID)
		if err != nil {
			return fmt.Errorf("plate not found")
		}
		if p.Status != StatusDraft {
			return fmt.Errorf("can only edit plates in draft status")
		}
		c, err := s.repo.GetControlByControlID(ctx, p.ID, ctrlID)
		if err != nil {
			return fmt.Errorf("control not found on this plate")
		}
		if err := s.repo.DeleteControl(ctx, c.ID); err != nil {
			return err
		}
		return s.repo.DeleteWellByPosition(ctx, p.ID, c.WellPosition)
	})
}

func (s *Service) checkTechRole(ctx context.Context, techID int64) error {
	tech, err := s.techs.Get(ctx, techID)
	if err != nil {
		return fmt.Errorf("assigned technician not found")
	}
	if tech.Role != auth.RoleLabTech && tech.Role != auth.RoleLabManager {
		return fmt.Errorf("assigned technician must be a lab tech or lab manager")
	}
	return nil
}

// Finalize freezes the layout and hands the plate to a technician.
func (s *Service) Finalize(ctx context.Context, plateID, techID int64, actor Actor) (*Plate, error) {
	var p *Plate
	err := s.repo.InTx(ctx, func(ctx context.Context) error {
		var err error
		p, err = s.repo.GetByIDForUpdate(ctx, plateID)
		if err != nil {
			return fmt.Errorf("plate not found")
		}
		if p.Status != StatusDraft {
			return fmt.Errorf("can only finalize plates in draft status")
		}
		if p.SampleCount < 1 {
			return fmt.Errorf("plate must have at least 1 sample")
		}
		if p.ControlCount < 1 {
			return fmt.Errorf("plate must have at least 1 control")
		}
		if err := s.checkTechRole(ctx, techID); err != nil {
			return err
		}

		now := time.Now()
		p.Status = StatusFinalized
		p.AssignedTechID = &techID
		p.AssignedDate = &now
		return s.repo.Update(ctx, p)
	})
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.PlatesFinalizedTotal.Inc()
	}
	return p, nil
}

// Start begins extraction: the plate goes in_progress and every sample on it
// moves to in_extraction.
func (s *Service) Start(ctx context.Context, plateID int64, actor Actor) (*Plate, error) {
	var p *Plate
	err := s.repo.InTx(ctx, func(ctx context.Context) error {
		var err error
		p, err = s.repo.GetByIDForUpdate(ctx, plateID)
		if err != nil {
			return fmt.Errorf("plate not found")
		}
		if p.Status != StatusFinalized {
			return fmt.Errorf("can only start plates in finalized status")
		}

		now := time.Now()
		p.Status = StatusInProgress
		p.StartedDate = &now
		if err := s.repo.Update(ctx, p); err != nil {
			return err
		}

		samples, err := s.samples.ListByPlate(ctx, p.ID)
		if err != nil {
			return err
		}
		for _, smp := range samples {
			if err := s.moveSample(ctx, smp, sample.StatusInExtraction, actor); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Complete records per-well QC and moves every sample to extracted.
func (s *Service) Complete(ctx context.Context, plateID int64, qc map[string]WellQC, actor Actor) (*Plate, error) {
	var p *Plate
	err := s.repo.InTx(ctx, func(ctx context.Context) error {
		var err error
		p, err = s.repo.GetByIDForUpdate(ctx, plateID)
		if err != nil {
			return fmt.Errorf("plate not found")
		}
		if p.Status != StatusInProgress {
			return fmt.Errorf("can only complete plates in progress")
		}

		now := time.Now()
		p.Status = StatusCompleted
		p.CompletedDate = &now
		if err := s.repo.Update(ctx, p); err != nil {
			return err
		}

		samples, err := s.samples.ListByPlate(ctx, p.ID)
		if err != nil {
			return err
		}
		for _, smp := range samples {
			if smp.ExtractionWellPosition != nil {
				if data, ok := qc[*smp.ExtractionWellPosition]; ok {
					smp.ExtractionConcentration = data.Concentration
				}
			}
			if err := s.moveSample(ctx, smp, sample.StatusExtracted, actor); err != nil {
				return err
			}
		}

		controls, err := s.repo.ListControls(ctx, p.ID)
		if err != nil {
			return err
		}
		for _, c := range controls {
			data, ok := qc[c.WellPosition]
			if !ok {
				continue
			}
			c.Concentration = data.Concentration
			c.Ratio260280 = data.Ratio260280
			c.Ratio260230 = data.Ratio260230
			c.QCPass = data.Pass
			if err := s.repo.UpdateControl(ctx, c); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Fail marks an in-progress plate failed and fails every sample on it at the
// extraction stage. Spawning reprocess twins stays with the sample fail flow.
func (s *Service) Fail(ctx context.Context, plateID int64, reason string, actor Actor) (*Plate, error) {
	if reason == "" {
		return nil, fmt.Errorf("failure reason is required")
	}
	var p *Plate
	err := s.repo.InTx(ctx, func(ctx context.Context) error {
		var err error
		p, err = s.repo.GetByIDForUpdate(ctx, plateID)
		if err != nil {
			return fmt.Errorf("plate not found")
		}
		if !CanTransition(p.Status, StatusFailed) {
			return fmt.Errorf("cannot fail a plate in %s status", p.Status)
		}

		p.Status = StatusFailed
		note := reason
		if p.Notes != nil && *p.Notes != "" {
			note = *p.Notes + "\n" + reason
		}
		p.Notes = &note
		if err := s.repo.Update(ctx, p); err != nil {
			return err
		}

		samples, err := s.samples.ListByPlate(ctx, p.ID)
		if err != nil {
			return err
		}
		stage := "extraction"
		for _, smp := range samples {
			if smp.Status == sample.StatusFailed || smp.Status == sample.StatusCancelled {
				continue
			}
			old := smp.Status
			smp.Status = sample.StatusFailed
			smp.FailedStage = &stage
			smp.FailureReason = &reason
			if err := s.samples.Update(ctx, smp); err != nil {
				return err
			}
			if s.metrics != nil {
				s.metrics.SampleTransitionsTotal.WithLabelValues(sample.StatusFailed).Inc()
			}
			if err := s.samples.AppendLog(ctx, &sample.Log{
				SampleID:    smp.ID,
				Comment:     fmt.Sprintf("Failed with plate %s: %s", p.PlateID, reason),
				LogType:     "status_change",
				OldValue:    &old,
				NewValue:    &smp.Status,
				CreatedByID: actor.ID,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) moveSample(ctx context.Context, smp *sample.Sample, to string, actor Actor) error {
	if !sample.CanTransition(smp.Status, to) {
		return fmt.Errorf("sample %s cannot move from %s to %s", smp.Barcode, smp.Status, to)
	}
	if smp.Blocked() {
		return fmt.Errorf("sample %s has an unresolved discrepancy", smp.Barcode)
	}

	old := smp.Status
	smp.Status = to
	if err := s.samples.Update(ctx, smp); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.SampleTransitionsTotal.WithLabelValues(to).Inc()
	}
	return s.samples.AppendLog(ctx, &sample.Log{
		SampleID:    smp.ID,
		Comment:     fmt.Sprintf("Status changed from %s to %s", old, to),
		LogType:     "status_change",
		OldValue:    &old,
		NewValue:    &to,
		CreatedByID: actor.ID,
	})
}
