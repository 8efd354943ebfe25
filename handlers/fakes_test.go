package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"support-router/models"
)

var testNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

// memStore is an in-memory Store with the same lookup semantics as the
// database-backed ones.
type memStore struct {
	mu        sync.Mutex
	customers map[string]*models.Customer
	spamLogs  []models.SpamLog
	queryLogs []models.QueryLog
	brands    []models.Brand
	seq       int
}

func newMemStore() *memStore {
	return &memStore{customers: make(map[string]*models.Customer)}
}

func (s *memStore) put(c *models.Customer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *c
	s.customers[c.PSID] = &cp
}

func (s *memStore) get(psid string) *models.Customer {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.customers[psid]
	if !ok {
		return nil
	}
	cp := *c
	return &cp
}

func (s *memStore) GetCustomerByID(_ context.Context, psid string) (*models.Customer, error) {
	return s.get(psid), nil
}

func (s *memStore) CreateCustomer(_ context.Context, customer *models.Customer) (*models.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.customers[customer.PSID]; ok {
		return nil, fmt.Errorf("customer %s already exists", customer.PSID)
	}
	cp := *customer
	cp.CreatedAt, cp.UpdatedAt = testNow, testNow
	s.customers[customer.PSID] = &cp
	out := cp
	return &out, nil
}

func (s *memStore) UpdateCustomer(_ context.Context, psid string, update models.CustomerUpdate) (*models.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.customers[psid]
	if !ok {
		return nil, nil
	}
	if update.Name != nil {
		c.Name = *update.Name
	}
	if update.Phone != nil {
		c.Phone = *update.Phone
	}
	if update.Email != nil {
		c.Email = *update.Email
	}
	if update.Inquiry != nil {
		c.Inquiry = *update.Inquiry
	}
	if update.AIPaused != nil {
		c.AIPaused = *update.AIPaused
	}
	if update.LastHumanReplyAt != nil {
		at := *update.LastHumanReplyAt
		c.LastHumanReplyAt = &at
	}
	out := *c
	return &out, nil
}

func (s *memStore) PauseCustomer(ctx context.Context, psid, pageID string, at time.Time) (*models.Customer, error) {
	s.mu.Lock()
	if _, ok := s.customers[psid]; !ok {
		s.customers[psid] = &models.Customer{PSID: psid, PageID: pageID, CreatedAt: at}
	}
	s.mu.Unlock()
	return s.UpdateCustomer(ctx, psid, models.PauseUpdate(at))
}

func (s *memStore) AppendSpamLog(_ context.Context, entry *models.SpamLog) (*models.SpamLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	cp := *entry
	cp.ID = fmt.Sprintf("spam-%d", s.seq)
	cp.CreatedAt = testNow.Add(time.Duration(s.seq) * time.Second)
	s.spamLogs = append(s.spamLogs, cp)
	return &cp, nil
}

func (s *memStore) AppendQueryLog(_ context.Context, entry *models.QueryLog) (*models.QueryLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	cp := *entry
	cp.ID = fmt.Sprintf("query-%d", s.seq)
	s.queryLogs = append(s.queryLogs, cp)
	return &cp, nil
}

func (s *memStore) RecentSpamLogs(_ context.Context, psid string, limit int) ([]models.SpamLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.SpamLog
	for _, entry := range s.spamLogs {
		if entry.PSID == psid {
			out = append(out, entry)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memStore) BrandsByCategory(_ context.Context, category string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, b := range s.brands {
		if strings.Contains(strings.ToLower(b.Category), strings.ToLower(category)) {
			out = append(out, b.Name)
		}
	}
	return out, nil
}

// mockStore is used where a test needs to inject failures.
type mockStore struct {
	mock.Mock
}

func (m *mockStore) GetCustomerByID(ctx context.Context, psid string) (*models.Customer, error) {
	args := m.Called(ctx, psid)
	c, _ := args.Get(0).(*models.Customer)
	return c, args.Error(1)
}

func (m *mockStore) CreateCustomer(ctx context.Context, customer *models.Customer) (*models.Customer, error) {
	args := m.Called(ctx, customer)
	c, _ := args.Get(0).(*models.Customer)
	return c, args.Error(1)
}

func (m *mockStore) UpdateCustomer(ctx context.Context, psid string, update models.CustomerUpdate) (*models.Customer, error) {
	args := m.Called(ctx, psid, update)
	c, _ := args.Get(0).(*models.Customer)
	return c, args.Error(1)
}

func (m *mockStore) PauseCustomer(ctx context.Context, psid, pageID string, at time.Time) (*models.Customer, error) {
	args := m.Called(ctx, psid, pageID, at)
	c, _ := args.Get(0).(*models.Customer)
	return c, args.Error(1)
}

func (m *mockStore) AppendSpamLog(ctx context.Context, entry *models.SpamLog) (*models.SpamLog, error) {
	args := m.Called(ctx, entry)
	e, _ := args.Get(0).(*models.SpamLog)
	return e, args.Error(1)
}

func (m *mockStore) AppendQueryLog(ctx context.Context, entry *models.QueryLog) (*models.QueryLog, error) {
	args := m.Called(ctx, entry)
	e, _ := args.Get(0).(*models.QueryLog)
	return e, args.Error(1)
}

func (m *mockStore) RecentSpamLogs(ctx context.Context, psid string, limit int) ([]models.SpamLog, error) {
	args := m.Called(ctx, psid, limit)
	logs, _ := args.Get(0).([]models.SpamLog)
	return logs, args.Error(1)
}

func (m *mockStore) BrandsByCategory(ctx context.Context, category string) ([]string, error) {
	args := m.Called(ctx, category)
	brands, _ := args.Get(0).([]string)
	return brands, args.Error(1)
}

type sentMessage struct {
	To   string
	Text string
}

type recordingMessenger struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (m *recordingMessenger) Send(_ context.Context, recipientID, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMessage{To: recipientID, Text: text})
	return nil
}

func (m *recordingMessenger) messages() []sentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentMessage(nil), m.sent...)
}

type recordingSupport struct {
	mu     sync.Mutex
	alerts []string
	err    error
}

func (s *recordingSupport) Send(_ context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.alerts = append(s.alerts, text)
	return nil
}

func (s *recordingSupport) messages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.alerts...)
}

// fakeIntel answers classification prompts from canned JSON keyed by a
// substring of the prompt. A zero value behaves like an unavailable model.
type fakeIntel struct {
	reply     string
	replyOK   bool
	classify  map[string]string
	extracted models.ExtractedFields
	extractOK bool

	mu      sync.Mutex
	prompts []string
}

func (f *fakeIntel) TryGenerate(_ context.Context, prompt string) (string, bool) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()
	return f.reply, f.replyOK
}

func (f *fakeIntel) TryClassify(_ context.Context, prompt string, out interface{}) bool {
	for marker, payload := range f.classify {
		if strings.Contains(prompt, marker) {
			return json.Unmarshal([]byte(payload), out) == nil
		}
	}
	return false
}

func (f *fakeIntel) TryExtract(_ context.Context, _ string) (models.ExtractedFields, bool) {
	return f.extracted, f.extractOK
}

func (f *fakeIntel) generatedPrompts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.prompts...)
}

type memHistory struct {
	mu    sync.Mutex
	turns map[string][]models.Turn
}

func newMemHistory() *memHistory {
	return &memHistory{turns: make(map[string][]models.Turn)}
}

func (h *memHistory) Load(_ context.Context, psid string) ([]models.Turn, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]models.Turn(nil), h.turns[psid]...), nil
}

func (h *memHistory) Append(_ context.Context, psid string, turns ...models.Turn) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.turns[psid] = append(h.turns[psid], turns...)
	return nil
}

func (h *memHistory) Clear(_ context.Context, psid string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.turns, psid)
	return nil
}

type recordingFeed struct {
	mu      sync.Mutex
	results []models.RoutingResult
}

func (f *recordingFeed) Publish(result models.RoutingResult) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results = append(f.results, result)
}

var testProfile = BusinessProfile{Name: "Desert Sound", Description: "home theater, home automation and speakers"}

func mustHeuristic() *HeuristicClassifier {
	h, err := NewHeuristicClassifier(0.5, DefaultVocabulary())
	if err != nil {
		panic(err)
	}
	return h
}

func ptrTime(t time.Time) *time.Time { return &t }
