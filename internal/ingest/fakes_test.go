package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/parcelscope/api/internal/models"
	"github.com/parcelscope/api/internal/source"
)

// fakeParcelRepo is an in-memory ParcelRepository keyed by (county, pin).
// Batches containing failPIN are rejected wholesale to exercise the writer's
// split retry.
type fakeParcelRepo struct {
	mu      sync.Mutex
	parcels map[string]*models.Parcel
	ids     map[string]int64
	nextID  int64
	failPIN string
	median  *float64
	batches [][]string
}

func newFakeParcelRepo() *fakeParcelRepo {
	return &fakeParcelRepo{
		parcels: make(map[string]*models.Parcel),
		ids:     make(map[string]int64),
	}
}

func parcelKey(county, pin string) string {
	return county + "|" + pin
}

func (r *fakeParcelRepo) UpsertBatch(ctx context.Context, parcels []*models.Parcel) ([]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	pins := make([]string, 0, len(parcels))
	for _, p := range parcels {
		pins = append(pins, p.PIN)
	}
	r.batches = append(r.batches, pins)
	for _, p := range parcels {
		if r.failPIN != "" && p.PIN == r.failPIN {
			return nil, errors.New("batch rejected")
		}
	}

	ids := make([]int64, 0, len(parcels))
	for _, p := range parcels {
		key := parcelKey(p.County, p.PIN)
		id, ok := r.ids[key]
		if !ok {
			r.nextID++
			id = r.nextID
			r.ids[key] = id
		}
		stored := *p
		stored.ID = id
		r.parcels[key] = &stored
		ids = append(ids, id)
	}
	return ids, nil
}

func (r *fakeParcelRepo) FindByPIN(ctx context.Context, county, pin string) (*models.Parcel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.parcels[parcelKey(county, pin)]
	if !ok {
		return nil, nil
	}
	return p, nil
}

func (r *fakeParcelRepo) CountByCounty(ctx context.Context, county string) (int, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var total, withGeometry int
	for _, p := range r.parcels {
		if p.County != county {
			continue
		}
		total++
		if p.HasGeometry() {
			withGeometry++
		}
	}
	return total, withGeometry, nil
}

func (r *fakeParcelRepo) MedianLandValue(ctx context.Context, county string) (*float64, error) {
	return r.median, nil
}

func (r *fakeParcelRepo) MedianLandValuePerAcre(ctx context.Context, county string) (float64, error) {
	return 0, nil
}

func (r *fakeParcelRepo) ListForScoring(ctx context.Context, county string, limit int) ([]*models.Parcel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Parcel
	for _, p := range r.parcels {
		if p.County == county && p.Centroid != nil {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *fakeParcelRepo) CountiesWithParcels(ctx context.Context) (map[string]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[string]int)
	for _, p := range r.parcels {
		counts[p.County]++
	}
	return counts, nil
}

func (r *fakeParcelRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.parcels)
}

// fakeHistoryRepo is an in-memory HistoryRepository with the same
// (parcel_id, snapshot_date) idempotence as the real table.
type fakeHistoryRepo struct {
	mu        sync.Mutex
	snapshots map[string]models.HistorySnapshot
	failNext  bool
}

func newFakeHistoryRepo() *fakeHistoryRepo {
	return &fakeHistoryRepo{snapshots: make(map[string]models.HistorySnapshot)}
}

func (r *fakeHistoryRepo) RecordBatch(ctx context.Context, snapshots []models.HistorySnapshot) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failNext {
		r.failNext = false
		return 0, errors.New("history write rejected")
	}
	inserted := 0
	for _, s := range snapshots {
		key := fmt.Sprintf("%d|%s", s.ParcelID, s.SnapshotDate.Format("2006-01-02"))
		if _, ok := r.snapshots[key]; ok {
			continue
		}
		r.snapshots[key] = s
		inserted++
	}
	return inserted, nil
}

func (r *fakeHistoryRepo) ListByParcel(ctx context.Context, parcelID int64) ([]models.HistorySnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.HistorySnapshot
	for _, s := range r.snapshots {
		if s.ParcelID == parcelID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *fakeHistoryRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.snapshots)
}

// fakeJobRepo is an in-memory JobRepository that records every checkpointed
// cursor so tests can assert monotonicity.
type fakeJobRepo struct {
	mu      sync.Mutex
	jobs    map[string]models.IngestionJob
	cursors []int64
}

func newFakeJobRepo() *fakeJobRepo {
	return &fakeJobRepo{jobs: make(map[string]models.IngestionJob)}
}

func (r *fakeJobRepo) FindIncomplete(ctx context.Context, county string) (*models.IngestionJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, job := range r.jobs {
		if job.County == county && job.Status != models.JobStatusCompleted {
			j := job
			return &j, nil
		}
	}
	return nil, nil
}

func (r *fakeJobRepo) Create(ctx context.Context, job *models.IngestionJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job.StartedAt = time.Now()
	r.jobs[job.ID] = *job
	return nil
}

func (r *fakeJobRepo) UpdateProgress(ctx context.Context, job *models.IngestionJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[job.ID] = *job
	r.cursors = append(r.cursors, job.Cursor)
	return nil
}

func (r *fakeJobRepo) MarkCompleted(ctx context.Context, job *models.IngestionJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	done := time.Now()
	job.Status = models.JobStatusCompleted
	job.CompletedAt = &done
	r.jobs[job.ID] = *job
	return nil
}

func (r *fakeJobRepo) MarkFailed(ctx context.Context, job *models.IngestionJob, cause string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job.Status = models.JobStatusFailed
	job.LastError = &cause
	r.jobs[job.ID] = *job
	return nil
}

func (r *fakeJobRepo) Recent(ctx context.Context, limit int) ([]models.IngestionJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.IngestionJob
	for _, job := range r.jobs {
		out = append(out, job)
	}
	return out, nil
}

func (r *fakeJobRepo) get(id string) models.IngestionJob {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.jobs[id]
}

// fakeSourceClient replays a scripted sequence of pages and records the
// cursor of every request. advance, when set, moves the fake clock on each
// fetch so deadline behavior can be driven deterministically.
type fakeSourceClient struct {
	mu      sync.Mutex
	pages   []fakePage
	call    int
	cursors []int64
	clock   *clockwork.FakeClock
	advance time.Duration
}

type fakePage struct {
	page *source.Page
	err  error
}

func (c *fakeSourceClient) FetchPage(ctx context.Context, fm source.FieldMap, cursor int64, pageSize int) (*source.Page, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cursors = append(c.cursors, cursor)
	if c.clock != nil && c.advance > 0 {
		c.clock.Advance(c.advance)
	}

	if c.call >= len(c.pages) {
		return &source.Page{}, nil
	}
	p := c.pages[c.call]
	c.call++
	if p.err != nil {
		return nil, p.err
	}
	return p.page, nil
}

// feature builds a minimal valid source feature for tests.
func feature(seq int64, pin string) source.Feature {
	return source.Feature{
		Sequence: seq,
		Attributes: map[string]interface{}{
			"OBJECTID":     float64(seq),
			"PIN_NUM":      pin,
			"SITE_ADDRESS": "100 MAIN ST",
			"LAND_VAL":     float64(100000),
		},
		Geometry: []byte(`{"type":"Polygon","coordinates":[[[0,0],[100,0],[100,100],[0,100],[0,0]]]}`),
	}
}

func featurePage(maxSeq int64, features ...source.Feature) *source.Page {
	return &source.Page{Features: features, MaxSequence: maxSeq}
}
