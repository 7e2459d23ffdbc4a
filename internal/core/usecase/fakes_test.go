package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"property-import-service/internal/core/domain"
	"property-import-service/internal/core/port"

	"github.com/google/uuid"
)

type memLedger struct {
	mu         sync.Mutex
	entries    map[string]*domain.LedgerEntry
	heartbeats []int
}

func newMemLedger() *memLedger {
	return &memLedger{entries: map[string]*domain.LedgerEntry{}}
}

func (l *memLedger) Claim(_ context.Context, job domain.ImportJob, _ time.Duration) (*domain.LedgerEntry, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.entries[job.ID]; ok && e.State.InFlight() {
		cp := *e
		return &cp, false, nil
	}
	j := job
	l.entries[job.ID] = &domain.LedgerEntry{JobID: job.ID, State: domain.LedgerQueued, Job: &j}
	return nil, true, nil
}

func (l *memLedger) Release(_ context.Context, jobID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.entries[jobID]; ok && e.State == domain.LedgerQueued {
		delete(l.entries, jobID)
	}
	return nil
}

func (l *memLedger) Get(_ context.Context, jobID string) (*domain.LedgerEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[jobID]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	cp := *e
	return &cp, nil
}

func (l *memLedger) entry(jobID string) *domain.LedgerEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[jobID]
	if !ok {
		e = &domain.LedgerEntry{JobID: jobID}
		l.entries[jobID] = e
	}
	return e
}

func (l *memLedger) MarkProcessing(_ context.Context, job domain.ImportJob, _ time.Duration) error {
	e := l.entry(job.ID)
	j := job
	e.State, e.Job, e.Processed, e.Error = domain.LedgerProcessing, &j, 0, ""
	return nil
}

func (l *memLedger) Heartbeat(_ context.Context, jobID string, processed int, _ time.Duration) error {
	l.entry(jobID).Processed = processed
	l.mu.Lock()
	l.heartbeats = append(l.heartbeats, processed)
	l.mu.Unlock()
	return nil
}

func (l *memLedger) RecordError(_ context.Context, jobID string, reason string) error {
	l.entry(jobID).Error = reason
	return nil
}

func (l *memLedger) Complete(_ context.Context, jobID string, result domain.ImportResult, _ time.Duration) error {
	e := l.entry(jobID)
	e.State, e.Result, e.Processed = domain.LedgerCompleted, &result, result.Processed
	return nil
}

func (l *memLedger) Fail(_ context.Context, jobID string, reason string, _ time.Duration) error {
	e := l.entry(jobID)
	e.State, e.Error = domain.LedgerFailed, reason
	return nil
}

type memStorage struct {
	mu      sync.Mutex
	files   map[string][]byte
	readErr error // отдается после содержимого файла
}

type errReader struct{ err error }

func (r errReader) Read([]byte) (int, error) { return 0, r.err }

func newMemStorage() *memStorage { return &memStorage{files: map[string][]byte{}} }

func (s *memStorage) Save(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.files[key] = b
	s.mu.Unlock()
	return nil
}

func (s *memStorage) Open(_ context.Context, key string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.files[key]
	if !ok {
		return nil, domain.ErrSourceNotFound
	}
	if s.readErr != nil {
		return io.NopCloser(io.MultiReader(bytes.NewReader(b), errReader{s.readErr})), nil
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (s *memStorage) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.files, key)
	s.mu.Unlock()
	return nil
}

type memHistory struct {
	mu   sync.Mutex
	recs map[string]*domain.ImportJobRecord
}

func newMemHistory() *memHistory { return &memHistory{recs: map[string]*domain.ImportJobRecord{}} }

func (h *memHistory) Upsert(_ context.Context, job domain.ImportJob) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.recs[job.ID] = &domain.ImportJobRecord{Job: job, Status: domain.JobStatusQueued}
	return nil
}

func (h *memHistory) update(jobID string, fn func(*domain.ImportJobRecord)) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	r, ok := h.recs[jobID]
	if !ok {
		return domain.ErrJobNotFound
	}
	fn(r)
	return nil
}

func (h *memHistory) MarkRunning(_ context.Context, jobID string) error {
	return h.update(jobID, func(r *domain.ImportJobRecord) { r.Status = domain.JobStatusRunning })
}

func (h *memHistory) Finish(_ context.Context, jobID string, result domain.ImportResult) error {
	return h.update(jobID, func(r *domain.ImportJobRecord) {
		r.Status, r.Result = domain.JobStatusCompleted, &result
	})
}

func (h *memHistory) MarkFailed(_ context.Context, jobID string, reason string) error {
	return h.update(jobID, func(r *domain.ImportJobRecord) {
		r.Status, r.LastError = domain.JobStatusFailed, reason
	})
}

func (h *memHistory) FindByID(_ context.Context, jobID string) (*domain.ImportJobRecord, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	r, ok := h.recs[jobID]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	cp := *r
	return &cp, nil
}

func (h *memHistory) FindFailed(_ context.Context, limit int) ([]domain.ImportJob, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []domain.ImportJob
	for _, r := range h.recs {
		if r.Status == domain.JobStatusFailed && len(out) < limit {
			out = append(out, r.Job)
		}
	}
	return out, nil
}

func (h *memHistory) CountByStatus(_ context.Context) (domain.JobCounts, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	var c domain.JobCounts
	for _, r := range h.recs {
		switch r.Status {
		case domain.JobStatusQueued:
			c.Queued++
		case domain.JobStatusRunning:
			c.Running++
		case domain.JobStatusCompleted:
			c.Completed++
		case domain.JobStatusFailed:
			c.Failed++
		}
	}
	return c, nil
}

type memQueue struct {
	mu   sync.Mutex
	err  error
	jobs []domain.ImportJob
}

func (q *memQueue) Enqueue(_ context.Context, job domain.ImportJob) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

// memUpserter повторяет семантику ON CONFLICT (external_id, tenant_id) DO UPDATE
type memUpserter struct {
	mu      sync.Mutex
	commits []int
	rows    map[string]domain.PropertyDraft
	rowErr  func(domain.PropertyDraft) error
}

func newMemUpserter() *memUpserter { return &memUpserter{rows: map[string]domain.PropertyDraft{}} }

func (u *memUpserter) CommitBatch(_ context.Context, _ string, items []domain.BatchItem) domain.BatchOutcome {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.commits = append(u.commits, len(items))

	var out domain.BatchOutcome
	for _, it := range items {
		if u.rowErr != nil {
			if err := u.rowErr(it.Draft); err != nil {
				out.Failed++
				out.Errors = append(out.Errors, domain.FormatRowError(it.Ordinal, err.Error()))
				continue
			}
		}
		key := it.Draft.TenantID + "/" + it.Draft.ExternalID
		if _, ok := u.rows[key]; ok {
			out.Updated++
		} else {
			out.Inserted++
		}
		u.rows[key] = it.Draft
		out.Successful++
	}
	return out
}

// memCache ключи "<tenant>|<params>"
type memCache struct {
	mu    sync.Mutex
	pages map[string]*domain.PropertyPage
	err   error
	gets  int
}

func newMemCache() *memCache { return &memCache{pages: map[string]*domain.PropertyPage{}} }

func cacheKey(q domain.PropertyListQuery) string {
	return fmt.Sprintf("%s|%s|%s|%s|%d|%d", q.TenantID, q.Sector, q.Type, q.Status, q.Limit, q.Offset)
}

func (c *memCache) GetPage(_ context.Context, q domain.PropertyListQuery) (*domain.PropertyPage, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	p, ok := c.pages[cacheKey(q)]
	return p, ok, nil
}

func (c *memCache) SetPage(_ context.Context, q domain.PropertyListQuery, page *domain.PropertyPage, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pages[cacheKey(q)] = page
	return nil
}

func (c *memCache) InvalidateTenant(_ context.Context, tenantID string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return 0, c.err
	}
	n := 0
	for k := range c.pages {
		if tenantID == "" || keyTenant(k) == tenantID {
			delete(c.pages, k)
			n++
		}
	}
	return n, nil
}

func keyTenant(k string) string {
	tenant, _, _ := strings.Cut(k, "|")
	return tenant
}

type memMetrics struct {
	mu      sync.Mutex
	jobs    map[string]int
	rows    map[string]int
	batches int
	evicted int
}

func newMemMetrics() *memMetrics {
	return &memMetrics{jobs: map[string]int{}, rows: map[string]int{}}
}

func (m *memMetrics) JobFinished(outcome string) {
	m.mu.Lock()
	m.jobs[outcome]++
	m.mu.Unlock()
}

func (m *memMetrics) RowsProcessed(result string, n int) {
	m.mu.Lock()
	m.rows[result] += n
	m.mu.Unlock()
}

func (m *memMetrics) BatchCommitted(time.Duration, int) {
	m.mu.Lock()
	m.batches++
	m.mu.Unlock()
}

func (m *memMetrics) CacheKeysInvalidated(n int) {
	m.mu.Lock()
	m.evicted += n
	m.mu.Unlock()
}

type fakeInspector struct {
	stats port.QueueStats
	err   error
}

func (f fakeInspector) Inspect(context.Context) (port.QueueStats, error) { return f.stats, f.err }

type memPropertyRepo struct {
	listCalls int
	items     map[uuid.UUID]domain.Property
}

func (r *memPropertyRepo) List(_ context.Context, q domain.PropertyListQuery) (*domain.PropertyPage, error) {
	r.listCalls++
	page := &domain.PropertyPage{Items: []domain.Property{}, Limit: q.Limit, Offset: q.Offset}
	for _, p := range r.items {
		if p.TenantID == q.TenantID {
			page.Items = append(page.Items, p)
		}
	}
	page.Total = len(page.Items)
	return page, nil
}

func (r *memPropertyRepo) Update(_ context.Context, tenantID string, id uuid.UUID, patch domain.PropertyPatch) (*domain.Property, error) {
	p, ok := r.items[id]
	if !ok || p.TenantID != tenantID {
		return nil, domain.ErrPropertyNotFound
	}
	if patch.Title != nil {
		p.Title = *patch.Title
	}
	r.items[id] = p
	return &p, nil
}

func (r *memPropertyRepo) SoftDelete(_ context.Context, tenantID string, id uuid.UUID) error {
	p, ok := r.items[id]
	if !ok || p.TenantID != tenantID {
		return domain.ErrPropertyNotFound
	}
	delete(r.items, id)
	return nil
}

var errBroker = errors.New("broker unavailable")

// readSeekCloser для domain.Upload
type readSeekCloser struct {
	*bytes.Reader
}

func (readSeekCloser) Close() error { return nil }

func newUpload(name string, content []byte) domain.Upload {
	return domain.Upload{
		Name:        name,
		Size:        int64(len(content)),
		ContentType: "text/csv",
		Content:     readSeekCloser{bytes.NewReader(content)},
	}
}
