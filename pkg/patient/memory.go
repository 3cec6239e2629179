package patient

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/sentinel-health/copd-monitor/pkg/common/models"
)

// MemoryRepository keeps the roster in process. Every read and write copies,
// so callers never share slices with the store.
type MemoryRepository struct {
	mu       sync.RWMutex
	patients map[string]*models.PatientSnapshot
}

func NewMemoryRepository(seed ...*models.PatientSnapshot) *MemoryRepository {
	r := &MemoryRepository{patients: make(map[string]*models.PatientSnapshot)}
	for _, p := range seed {
		c := p.Clone()
		sortMeasurements(c.Measurements)
		r.patients[c.ID] = c
	}
	return r
}

func (r *MemoryRepository) GetSnapshot(_ context.Context, patientID string) (*models.PatientSnapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.patients[patientID]
	if !ok {
		return nil, ErrNotFound
	}
	return p.Clone(), nil
}

func (r *MemoryRepository) GetByCode(_ context.Context, code string) (*models.PatientSnapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.patients {
		if p.Code != "" && strings.EqualFold(p.Code, code) {
			return p.Clone(), nil
		}
	}
	return nil, ErrNotFound
}

func (r *MemoryRepository) List(_ context.Context) ([]*models.PatientSnapshot, error) {
	r.mu.RLock()
	out := make([]*models.PatientSnapshot, 0, len(r.patients))
	for _, p := range r.patients {
		out = append(out, p.Clone())
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *MemoryRepository) Save(_ context.Context, p *models.PatientSnapshot) error {
	c := p.Clone()
	sortMeasurements(c.Measurements)
	r.mu.Lock()
	r.patients[c.ID] = c
	r.mu.Unlock()
	return nil
}

func (r *MemoryRepository) AddMeasurement(_ context.Context, patientID string, m models.Measurement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.patients[patientID]
	if !ok {
		return ErrNotFound
	}
	p.Measurements = append(p.Measurements, m)
	sortMeasurements(p.Measurements)
	return nil
}

func (r *MemoryRepository) LogDose(_ context.Context, patientID string, dose models.MedicationDoseEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.patients[patientID]
	if !ok {
		return ErrNotFound
	}
	if dose.ID == "" {
		dose.ID = newID()
	}
	p.MedicationLog = append(p.MedicationLog, dose)
	return nil
}
