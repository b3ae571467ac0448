package service

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/evotags/evotags/internal/auth"
	"github.com/evotags/evotags/internal/domain"
	apperrors "github.com/evotags/evotags/pkg/errors"
)

const testBotToken = "123456:service-test-token"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testVerifier() auth.Verifier {
	return auth.NewSignedVerifier(testBotToken, 0)
}

func initDataFor(t *testing.T, id int64, firstName string) string {
	t.Helper()
	payload, err := auth.SignIdentity(testBotToken, &domain.PlatformIdentity{ID: id, FirstName: firstName}, time.Now())
	require.NoError(t, err)
	return payload
}

// ---------------------------------------------------------------------------
// testify mocks
// ---------------------------------------------------------------------------

type mockAccountRepository struct {
	mock.Mock
}

func (m *mockAccountRepository) Upsert(ctx context.Context, a *domain.Account) (*domain.Account, bool, error) {
	args := m.Called(ctx, a)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*domain.Account), args.Bool(1), args.Error(2)
}

func (m *mockAccountRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Account), args.Error(1)
}

func (m *mockAccountRepository) GetByPlatformID(ctx context.Context, platformID int64) (*domain.Account, error) {
	args := m.Called(ctx, platformID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Account), args.Error(1)
}

func (m *mockAccountRepository) List(ctx context.Context) ([]domain.Account, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Account), args.Error(1)
}

func (m *mockAccountRepository) DeletePlatformRange(ctx context.Context, min, max int64) (int64, error) {
	args := m.Called(ctx, min, max)
	return args.Get(0).(int64), args.Error(1)
}

type mockReviewRepository struct {
	mock.Mock
}

func (m *mockReviewRepository) Submit(ctx context.Context, r *domain.Review) (*domain.SubmitResult, error) {
	args := m.Called(ctx, r)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SubmitResult), args.Error(1)
}

func (m *mockReviewRepository) ListByTarget(ctx context.Context, targetID string) ([]domain.ReviewView, error) {
	args := m.Called(ctx, targetID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ReviewView), args.Error(1)
}

func (m *mockReviewRepository) Feed(ctx context.Context, limit int) ([]domain.FeedItem, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.FeedItem), args.Error(1)
}

func (m *mockReviewRepository) ReviewedTargets(ctx context.Context, authorID string) ([]string, error) {
	args := m.Called(ctx, authorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *mockReviewRepository) Exists(ctx context.Context, authorID, targetID string) (bool, error) {
	args := m.Called(ctx, authorID, targetID)
	return args.Bool(0), args.Error(1)
}

type mockFeedCache struct {
	mock.Mock
}

func (m *mockFeedCache) Get(ctx context.Context) ([]domain.FeedItem, int64, bool, error) {
	args := m.Called(ctx)
	gen := args.Get(1).(int64)
	if args.Get(0) == nil {
		return nil, gen, args.Bool(2), args.Error(3)
	}
	return args.Get(0).([]domain.FeedItem), gen, args.Bool(2), args.Error(3)
}

func (m *mockFeedCache) Set(ctx context.Context, gen int64, items []domain.FeedItem) error {
	return m.Called(ctx, gen, items).Error(0)
}

func (m *mockFeedCache) Invalidate(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) ReviewReceived(ctx context.Context, target *domain.Account, authorName, talents string) error {
	return m.Called(ctx, target, authorName, talents).Error(0)
}

type mockEvents struct {
	mock.Mock
}

func (m *mockEvents) PublishReviewSubmitted(ctx context.Context, targetID string, result *domain.SubmitResult) error {
	return m.Called(ctx, targetID, result).Error(0)
}

func (m *mockEvents) PublishAccountRegistered(ctx context.Context, account *domain.Account, created bool) error {
	return m.Called(ctx, account, created).Error(0)
}

// ---------------------------------------------------------------------------
// in-memory store
// ---------------------------------------------------------------------------

// memStore keeps accounts and reviews in memory under the multiple
// reviews per pair policy.
type memStore struct {
	mu       sync.Mutex
	accounts map[string]*domain.Account
	reviews  []domain.Review
}

func newMemStore() *memStore {
	return &memStore{accounts: map[string]*domain.Account{}}
}

func (s *memStore) add(a *domain.Account) *domain.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *a
	s.accounts[a.ID] = &cp
	return &cp
}

func (s *memStore) Upsert(_ context.Context, a *domain.Account) (*domain.Account, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.accounts {
		if existing.PlatformID == a.PlatformID {
			existing.FirstName, existing.LastName, existing.Username = a.FirstName, a.LastName, a.Username
			if a.PhotoURL != "" {
				existing.PhotoURL = a.PhotoURL
			}
			cp := *existing
			return &cp, false, nil
		}
	}
	cp := *a
	cp.ID = newUUID()
	cp.CreatedAt = time.Now().UTC()
	s.accounts[cp.ID] = &cp
	out := cp
	return &out, true, nil
}

func (s *memStore) GetByID(_ context.Context, id string) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.accounts[id]; ok {
		cp := *a
		return &cp, nil
	}
	return nil, apperrors.NotFound("account", id)
}

func (s *memStore) GetByPlatformID(_ context.Context, platformID int64) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if a.PlatformID == platformID {
			cp := *a
			return &cp, nil
		}
	}
	return nil, apperrors.NotFound("account", "platform")
}

func (s *memStore) List(_ context.Context) ([]domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *memStore) DeletePlatformRange(_ context.Context, min, max int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, a := range s.accounts {
		if a.PlatformID >= min && a.PlatformID <= max {
			delete(s.accounts, id)
			n++
		}
	}
	kept := s.reviews[:0]
	for _, r := range s.reviews {
		_, authorOK := s.accounts[r.AuthorID]
		_, targetOK := s.accounts[r.TargetID]
		if authorOK && targetOK {
			kept = append(kept, r)
		}
	}
	s.reviews = kept
	return n, nil
}

func (s *memStore) Submit(_ context.Context, r *domain.Review) (*domain.SubmitResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reviews = append(s.reviews, *r)
	return &domain.SubmitResult{ReviewID: r.ID}, nil
}

func (s *memStore) sorted() []domain.Review {
	out := append([]domain.Review(nil), s.reviews...)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func (s *memStore) ListByTarget(_ context.Context, targetID string) ([]domain.ReviewView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	views := []domain.ReviewView{}
	for _, r := range s.sorted() {
		if r.TargetID == targetID {
			views = append(views, domain.ReviewView{ID: r.ID, TalentsAnswer: r.TalentsAnswer, ClientAnswer: r.ClientAnswer, CreatedAt: r.CreatedAt})
		}
	}
	return views, nil
}

func (s *memStore) Feed(_ context.Context, limit int) ([]domain.FeedItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := []domain.FeedItem{}
	for _, r := range s.sorted() {
		if len(items) == limit {
			break
		}
		t := s.accounts[r.TargetID]
		items = append(items, domain.FeedItem{
			ID: r.ID, TalentsAnswer: r.TalentsAnswer, ClientAnswer: r.ClientAnswer, CreatedAt: r.CreatedAt,
			Target: domain.FeedTarget{ID: t.ID, DisplayName: t.DisplayName(), FirstName: t.FirstName, LastName: t.LastName, PhotoURL: t.PhotoURL},
		})
	}
	return items, nil
}

func (s *memStore) ReviewedTargets(_ context.Context, authorID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := map[string]bool{}
	var out []string
	for _, r := range s.reviews {
		if r.AuthorID == authorID && !seen[r.TargetID] {
			seen[r.TargetID] = true
			out = append(out, r.TargetID)
		}
	}
	return out, nil
}

func (s *memStore) Exists(_ context.Context, authorID, targetID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.reviews {
		if r.AuthorID == authorID && r.TargetID == targetID {
			return true, nil
		}
	}
	return false, nil
}
