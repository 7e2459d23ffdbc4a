package rest

import (
	"context"
	"io"
	"sync"

	"property-import-service/internal/core/domain"
	"property-import-service/internal/core/port"

	"github.com/google/uuid"
)

type testLogger struct{}

func (testLogger) Info(string, port.Fields) {}
func (testLogger) Warn(string, port.Fields) {}
func (testLogger) Error(string, error, port.Fields) {}
func (testLogger) Debug(string, port.Fields) {}
func (l testLogger) WithFields(port.Fields) port.LoggerPort { return l }

// staticVerifier токен -> principal
type staticVerifier map[string]domain.Principal

func (v staticVerifier) Verify(_ context.Context, token string) (*domain.Principal, error) {
	p, ok := v[token]
	if !ok {
		return nil, domain.ErrTokenInvalid
	}
	return &p, nil
}

type fakeSubmit struct {
	mu       sync.Mutex
	seen     map[string]bool
	gotBody  string
	gotName  string
	tenantID string
	userID   string
	err      error
}

func (f *fakeSubmit) Submit(_ context.Context, u domain.Upload, tenantID, userID string) (*domain.Submission, error) {
	if f.err != nil {
		return nil, f.err
	}
	body, err := io.ReadAll(u.Content)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.seen == nil {
		f.seen = map[string]bool{}
	}
	f.gotBody, f.gotName, f.tenantID, f.userID = string(body), u.Name, tenantID, userID

	id := domain.Fingerprint(u.Name, u.Size, tenantID, userID)
	status := domain.SubmissionAccepted
	if f.seen[id] {
		status = domain.SubmissionDuplicate
	}
	f.seen[id] = true
	return &domain.Submission{JobID: id, Status: status, EstimatedRows: 2}, nil
}

type fakeStatus struct {
	views map[string]*domain.ImportStatusView
}

func (f *fakeStatus) Get(_ context.Context, jobID string) (*domain.ImportStatusView, error) {
	if v, ok := f.views[jobID]; ok {
		return v, nil
	}
	return nil, domain.ErrJobNotFound
}

type fakeStats struct{ stats domain.QueueStatsView }

func (f *fakeStats) Get(context.Context) (*domain.QueueStatsView, error) {
	s := f.stats
	return &s, nil
}

type fakeRetry struct{ gotLimit int }

func (f *fakeRetry) Retry(_ context.Context, limit int) (*domain.RetrySummary, error) {
	f.gotLimit = limit
	return &domain.RetrySummary{Found: 3, Requeued: 2}, nil
}

type fakeProperties struct {
	items     map[uuid.UUID]domain.Property
	lastQuery domain.PropertyListQuery
	lastPatch domain.PropertyPatch
}

func (f *fakeProperties) List(_ context.Context, q domain.PropertyListQuery) (*domain.PropertyPage, error) {
	f.lastQuery = q
	page := &domain.PropertyPage{Limit: q.Limit, Offset: q.Offset}
	for _, p := range f.items {
		if p.TenantID == q.TenantID {
			page.Items = append(page.Items, p)
		}
	}
	page.Total = len(page.Items)
	return page, nil
}

func (f *fakeProperties) Update(_ context.Context, tenantID string, id uuid.UUID, patch domain.PropertyPatch) (*domain.Property, error) {
	p, ok := f.items[id]
	if !ok || p.TenantID != tenantID {
		return nil, domain.ErrPropertyNotFound
	}
	f.lastPatch = patch
	if patch.Title != nil {
		p.Title = *patch.Title
	}
	if patch.Type != nil {
		p.Type = *patch.Type
	}
	f.items[id] = p
	return &p, nil
}

func (f *fakeProperties) Delete(_ context.Context, tenantID string, id uuid.UUID) error {
	p, ok := f.items[id]
	if !ok || p.TenantID != tenantID {
		return domain.ErrPropertyNotFound
	}
	delete(f.items, id)
	return nil
}

type recordedRequest struct {
	route, method string
	status        int
}

type fakeHTTPMetrics struct {
	mu   sync.Mutex
	reqs []recordedRequest
}

func (m *fakeHTTPMetrics) HTTPRequest(route, method string, status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reqs = append(m.reqs, recordedRequest{route, method, status})
}
