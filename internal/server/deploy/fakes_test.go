package deploy

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/guidesync/internal/common"
	"github.com/dmitrijs2005/guidesync/internal/logging"
	"github.com/dmitrijs2005/guidesync/internal/server/models"
	"github.com/dmitrijs2005/guidesync/internal/server/remote"
)

type nopLogger struct{}

func (nopLogger) Debug(context.Context, string, ...any) {}
func (nopLogger) Info(context.Context, string, ...any)  {}
func (nopLogger) Warn(context.Context, string, ...any)  {}
func (nopLogger) Error(context.Context, string, ...any) {}
func (l nopLogger) With(...any) logging.Logger          { return l }

type fakeTemplateRepo struct {
	templates map[string]*models.Template
}

func (f *fakeTemplateRepo) Create(_ context.Context, t *models.Template) error {
	f.templates[t.ID] = t
	return nil
}

func (f *fakeTemplateRepo) GetByID(_ context.Context, id string) (*models.Template, error) {
	t, ok := f.templates[id]
	if !ok {
		return nil, &common.NotFoundError{Kind: "template", ID: id}
	}
	return t, nil
}

func (f *fakeTemplateRepo) List(_ context.Context, _ common.ServiceType) ([]*models.Template, error) {
	out := make([]*models.Template, 0, len(f.templates))
	for _, t := range f.templates {
		out = append(out, t)
	}
	return out, nil
}

func (f *fakeTemplateRepo) Update(_ context.Context, t *models.Template) error {
	f.templates[t.ID] = t
	return nil
}

func (f *fakeTemplateRepo) SoftDelete(_ context.Context, id string) error {
	delete(f.templates, id)
	return nil
}

type fakeInstanceRepo struct {
	instances map[string]*models.Instance
}

func (f *fakeInstanceRepo) Create(_ context.Context, i *models.Instance) error {
	f.instances[i.ID] = i
	return nil
}

func (f *fakeInstanceRepo) GetByID(_ context.Context, id string) (*models.Instance, error) {
	i, ok := f.instances[id]
	if !ok {
		return nil, &common.NotFoundError{Kind: "instance", ID: id}
	}
	return i, nil
}

func (f *fakeInstanceRepo) List(_ context.Context) ([]*models.Instance, error) {
	out := make([]*models.Instance, 0, len(f.instances))
	for _, i := range f.instances {
		out = append(out, i)
	}
	return out, nil
}

func (f *fakeInstanceRepo) Update(_ context.Context, i *models.Instance) error {
	f.instances[i.ID] = i
	return nil
}

func (f *fakeInstanceRepo) Delete(_ context.Context, id string) error {
	delete(f.instances, id)
	return nil
}

// fakeClient scripts per-call errors and records every write. statusErr and
// formatsErr make the reachability probe and listing fail independently.
type fakeClient struct {
	mu sync.Mutex

	statusErr  error
	formatsErr error
	formats    []remote.CustomFormat

	// createErrs/updateErrs are consumed one per attempt, keyed by format
	// name, so tests can script "fail twice then succeed".
	createErrs map[string][]error
	updateErrs map[string][]error

	created []remote.CustomFormatSpec
	updated map[int64][]remote.CustomFormatSpec

	nextID int64
}

func newFakeClient(formats ...remote.CustomFormat) *fakeClient {
	return &fakeClient{
		formats:    formats,
		createErrs: map[string][]error{},
		updateErrs: map[string][]error{},
		updated:    map[int64][]remote.CustomFormatSpec{},
		nextID:     100,
	}
}

func (f *fakeClient) GetSystemStatus(context.Context) (*remote.SystemStatus, error) {
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	return &remote.SystemStatus{Version: "5.0.0", AppName: "Radarr"}, nil
}

func (f *fakeClient) GetCustomFormats(context.Context) ([]remote.CustomFormat, error) {
	if f.formatsErr != nil {
		return nil, f.formatsErr
	}
	return f.formats, nil
}

func (f *fakeClient) popErr(m map[string][]error, key string) error {
	errs := m[key]
	if len(errs) == 0 {
		return nil
	}
	err := errs[0]
	m[key] = errs[1:]
	return err
}

func (f *fakeClient) CreateCustomFormat(_ context.Context, spec *remote.CustomFormatSpec) (*remote.CustomFormat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.popErr(f.createErrs, spec.Name); err != nil {
		return nil, err
	}
	f.created = append(f.created, *spec)
	f.nextID++
	return &remote.CustomFormat{ID: f.nextID, Name: spec.Name}, nil
}

func (f *fakeClient) UpdateCustomFormat(_ context.Context, id int64, spec *remote.CustomFormatSpec) (*remote.CustomFormat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.popErr(f.updateErrs, spec.Name); err != nil {
		return nil, err
	}
	f.updated[id] = append(f.updated[id], *spec)
	return &remote.CustomFormat{ID: id, Name: spec.Name}, nil
}

func (f *fakeClient) GetQualityProfileSchema(context.Context) (json.RawMessage, error) {
	return json.RawMessage(`{}`), nil
}

func (f *fakeClient) CreateQualityProfile(context.Context, json.RawMessage) error { return nil }

func (f *fakeClient) UpdateQualityProfile(context.Context, int64, json.RawMessage) error { return nil }

type fakeClientFactory struct {
	client remote.InstanceClient
}

func (f *fakeClientFactory) ClientFor(*models.Instance) remote.InstanceClient { return f.client }

type fakeDeploymentRepo struct {
	mu        sync.Mutex
	histories map[string]*models.DeploymentHistory
}

func newFakeDeploymentRepo() *fakeDeploymentRepo {
	return &fakeDeploymentRepo{histories: map[string]*models.DeploymentHistory{}}
}

func (f *fakeDeploymentRepo) Create(_ context.Context, h *models.DeploymentHistory) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *h
	f.histories[h.ID] = &cp
	return nil
}

func (f *fakeDeploymentRepo) Finalize(_ context.Context, h *models.DeploymentHistory) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing, ok := f.histories[h.ID]
	if !ok {
		return &common.NotFoundError{Kind: "deployment", ID: h.ID}
	}
	if existing.CompletedAt != nil {
		return common.ErrorInternal
	}
	cp := *h
	f.histories[h.ID] = &cp
	return nil
}

func (f *fakeDeploymentRepo) GetByID(_ context.Context, id string) (*models.DeploymentHistory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	h, ok := f.histories[id]
	if !ok {
		return nil, &common.NotFoundError{Kind: "deployment", ID: id}
	}
	cp := *h
	return &cp, nil
}

func (f *fakeDeploymentRepo) ListByInstance(_ context.Context, instanceID string, _ int) ([]*models.DeploymentHistory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.DeploymentHistory
	for _, h := range f.histories {
		if h.InstanceID == instanceID {
			cp := *h
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeDeploymentRepo) MarkRolledBack(_ context.Context, id string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	h, ok := f.histories[id]
	if !ok {
		return &common.NotFoundError{Kind: "deployment", ID: id}
	}
	h.RolledBackAt = &at
	return nil
}

type fakeBackupStore struct {
	mu        sync.Mutex
	backups   map[string]*models.Backup
	nextID    int
	expires   *time.Time
	createErr error
}

func newFakeBackupStore() *fakeBackupStore {
	return &fakeBackupStore{backups: map[string]*models.Backup{}}
}

func (f *fakeBackupStore) CreateForInstance(_ context.Context, instanceID string, payload []byte) (*models.Backup, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.nextID++
	b := &models.Backup{
		ID:         fmt.Sprintf("backup-%d", f.nextID),
		InstanceID: instanceID,
		CreatedAt:  time.Now(),
		ExpiresAt:  f.expires,
		Payload:    payload,
	}
	f.backups[b.ID] = b
	return b, nil
}

func (f *fakeBackupStore) GetWithPayload(_ context.Context, id string) (*models.Backup, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.backups[id]
	if !ok {
		return nil, &common.NotFoundError{Kind: "backup", ID: id}
	}
	return b, nil
}
