package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/providencia/approvals/internal/application/port"
	"github.com/providencia/approvals/internal/domain/entity"
)

// In-memory repositories. Stored values are cloned on the way in and out so
// tests observe exactly what was persisted.

type memApprovalRepo struct {
	mu    sync.Mutex
	byID  map[string]*entity.ServiceApproval
	saves int
	err   error
}

func newMemApprovalRepo() *memApprovalRepo {
	return &memApprovalRepo{byID: make(map[string]*entity.ServiceApproval)}
}

func (m *memApprovalRepo) Save(ctx context.Context, a *entity.ServiceApproval) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.saves++
	m.byID[a.ID] = a.Clone()
	return nil
}

func (m *memApprovalRepo) SaveDecision(ctx context.Context, a *entity.ServiceApproval) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	current, ok := m.byID[a.ID]
	if !ok || !current.IsPending() {
		return port.ErrApprovalNotPending
	}
	m.saves++
	m.byID[a.ID] = a.Clone()
	return nil
}

func (m *memApprovalRepo) find(match func(*entity.ServiceApproval) bool) (*entity.ServiceApproval, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	for _, a := range m.byID {
		if match(a) {
			return a.Clone(), nil
		}
	}
	return nil, nil
}

func (m *memApprovalRepo) sorted(match func(*entity.ServiceApproval) bool) []*entity.ServiceApproval {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.ServiceApproval
	for _, a := range m.byID {
		if match(a) {
			out = append(out, a.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (m *memApprovalRepo) List(ctx context.Context) ([]*entity.ServiceApproval, error) {
	return m.sorted(func(*entity.ServiceApproval) bool { return true }), m.err
}

func (m *memApprovalRepo) GetByID(ctx context.Context, id string) (*entity.ServiceApproval, error) {
	return m.find(func(a *entity.ServiceApproval) bool { return a.ID == id })
}

func (m *memApprovalRepo) GetByToken(ctx context.Context, token string) (*entity.ServiceApproval, error) {
	return m.find(func(a *entity.ServiceApproval) bool { return a.Token == token })
}

func (m *memApprovalRepo) GetByVerificationHash(ctx context.Context, hash string) (*entity.ServiceApproval, error) {
	return m.find(func(a *entity.ServiceApproval) bool { return a.VerificationHash != "" && a.VerificationHash == hash })
}

func (m *memApprovalRepo) GetLatestByOrderID(ctx context.Context, orderID string) (*entity.ServiceApproval, error) {
	list := m.sorted(func(a *entity.ServiceApproval) bool { return a.ServiceOrderID == orderID })
	if len(list) == 0 {
		return nil, m.err
	}
	return list[0], m.err
}

func (m *memApprovalRepo) ListByOrderID(ctx context.Context, orderID string) ([]*entity.ServiceApproval, error) {
	return m.sorted(func(a *entity.ServiceApproval) bool { return a.ServiceOrderID == orderID }), m.err
}

func (m *memApprovalRepo) stored(id string) *entity.ServiceApproval {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.byID[id]; ok {
		return a.Clone()
	}
	return nil
}

// laggingTokenIndex serves GetByToken from the first snapshot it saw, like a
// secondary index that has not caught up with later writes
type laggingTokenIndex struct {
	*memApprovalRepo
	mu       sync.Mutex
	snapshot map[string]*entity.ServiceApproval
}

func newLaggingTokenIndex(repo *memApprovalRepo) *laggingTokenIndex {
	return &laggingTokenIndex{memApprovalRepo: repo, snapshot: make(map[string]*entity.ServiceApproval)}
}

func (l *laggingTokenIndex) GetByToken(ctx context.Context, token string) (*entity.ServiceApproval, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if a, ok := l.snapshot[token]; ok {
		return a.Clone(), nil
	}
	a, err := l.memApprovalRepo.GetByToken(ctx, token)
	if a != nil {
		l.snapshot[token] = a.Clone()
	}
	return a, err
}

type memSignatureRepo struct {
	mu   sync.Mutex
	byID map[string]entity.DigitalSignature
}

func newMemSignatureRepo() *memSignatureRepo {
	return &memSignatureRepo{byID: make(map[string]entity.DigitalSignature)}
}

func (m *memSignatureRepo) seed(id, approvalID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[id] = entity.DigitalSignature{ID: id, ServiceApprovalID: approvalID, SignedName: "Maria da Silva"}
}

func (m *memSignatureRepo) Create(ctx context.Context, sig *entity.DigitalSignature) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.byID[sig.ID]; exists {
		return fmt.Errorf("signature %s exists", sig.ID)
	}
	m.byID[sig.ID] = *sig
	return nil
}

func (m *memSignatureRepo) GetByID(ctx context.Context, id string) (*entity.DigitalSignature, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sig, ok := m.byID[id]; ok {
		return &sig, nil
	}
	return nil, nil
}

func (m *memSignatureRepo) GetByApprovalID(ctx context.Context, approvalID string) (*entity.DigitalSignature, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, sig := range m.byID {
		if sig.ServiceApprovalID == approvalID {
			s := sig
			return &s, nil
		}
	}
	return nil, nil
}

type memEvidenceRepo struct {
	mu   sync.Mutex
	byID map[string]entity.Evidence
}

func newMemEvidenceRepo() *memEvidenceRepo {
	return &memEvidenceRepo{byID: make(map[string]entity.Evidence)}
}

func (m *memEvidenceRepo) Create(ctx context.Context, ev *entity.Evidence) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[ev.ID] = *ev
	return nil
}

func (m *memEvidenceRepo) GetByID(ctx context.Context, id string) (*entity.Evidence, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ev, ok := m.byID[id]; ok {
		return &ev, nil
	}
	return nil, nil
}

type memOrderRepo struct {
	mu      sync.Mutex
	byID    map[string]entity.ServiceOrder
	updates int
	err     error

	// beforeUpdate runs before Update takes the lock
	beforeUpdate func()
}

func newMemOrderRepo(orders ...entity.ServiceOrder) *memOrderRepo {
	m := &memOrderRepo{byID: make(map[string]entity.ServiceOrder)}
	for _, o := range orders {
		m.byID[o.ID] = copyOrder(o)
	}
	return m
}

func copyOrder(o entity.ServiceOrder) entity.ServiceOrder {
	o.Items = append([]entity.OrderItem(nil), o.Items...)
	o.StatusHistory = append([]entity.StatusChange(nil), o.StatusHistory...)
	return o
}

func (m *memOrderRepo) Create(ctx context.Context, o *entity.ServiceOrder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[o.ID] = copyOrder(*o)
	return nil
}

func (m *memOrderRepo) GetByID(ctx context.Context, id string) (*entity.ServiceOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	o, ok := m.byID[id]
	if !ok {
		return nil, nil
	}
	c := copyOrder(o)
	return &c, nil
}

func (m *memOrderRepo) Update(ctx context.Context, o *entity.ServiceOrder) error {
	if m.beforeUpdate != nil {
		m.beforeUpdate()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates++
	m.byID[o.ID] = copyOrder(*o)
	return nil
}

func (m *memOrderRepo) stored(id string) entity.ServiceOrder {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copyOrder(m.byID[id])
}

type memCompanyRepo struct {
	byID map[string]entity.Company
	err  error
}

func (m *memCompanyRepo) Create(ctx context.Context, c *entity.Company) error {
	if m.byID == nil {
		m.byID = make(map[string]entity.Company)
	}
	m.byID[c.ID] = *c
	return nil
}

func (m *memCompanyRepo) GetByID(ctx context.Context, id string) (*entity.Company, error) {
	if m.err != nil {
		return nil, m.err
	}
	if c, ok := m.byID[id]; ok {
		return &c, nil
	}
	return nil, nil
}

// mockTxManager runs the function inline and counts invocations
type mockTxManager struct {
	calls int
}

func (m *mockTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	m.calls++
	return fn(ctx)
}

type memFileStorage struct {
	mu    sync.Mutex
	files map[string][]byte
}

func newMemFileStorage() *memFileStorage {
	return &memFileStorage{files: make(map[string][]byte)}
}

func (m *memFileStorage) Save(ctx context.Context, path string, content []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[path] = append([]byte(nil), content...)
	return nil
}

func (m *memFileStorage) Read(ctx context.Context, path string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.files[path]
	if !ok {
		return nil, fmt.Errorf("no file %s", path)
	}
	return c, nil
}

func (m *memFileStorage) Exists(ctx context.Context, path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.files[path]
	return ok
}

func (m *memFileStorage) Delete(ctx context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, path)
	return nil
}

func (m *memFileStorage) GetFullPath(relativePath string) string {
	return "/mem/" + relativePath
}

// recordingSink captures audit entries
type recordingSink struct {
	mu      sync.Mutex
	entries []entity.AuditEntry
}

func (r *recordingSink) Record(ctx context.Context, entry entity.AuditEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
}

func (r *recordingSink) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.Action
	}
	return out
}

func (r *recordingSink) last() entity.AuditEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.entries[len(r.entries)-1]
}

type mockLogger struct {
	mu    sync.Mutex
	warns []string
	errs  []string
}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{}) {}

func (m *mockLogger) Warn(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.warns = append(m.warns, msg)
}

func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs = append(m.errs, msg)
}

// sequence returns a generator of "<prefix>-1", "<prefix>-2", ...
func sequence(prefix string) func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}

// steppingClock advances one minute per call
func steppingClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	current := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t := current
		current = current.Add(time.Minute)
		return t
	}
}
