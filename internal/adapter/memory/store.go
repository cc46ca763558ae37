package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/pscheid92/insightpulse/internal/domain"
)

// Store implements domain.InsightRepository and domain.UserRepository.
type Store struct {
	mu       sync.RWMutex
	users    map[uuid.UUID]domain.User
	insights map[string]domain.Insight
	history  map[string][]domain.InsightSnapshot
}

func NewStore() *Store {
	return &Store{
		users:    make(map[uuid.UUID]domain.User),
		insights: make(map[string]domain.Insight),
		history:  make(map[string][]domain.InsightSnapshot),
	}
}

// PutUser inserts or replaces a user. A zero ID is filled in.
func (s *Store) PutUser(user domain.User) domain.User {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	s.mu.Lock()
	s.users[user.ID] = user
	s.mu.Unlock()
	return user
}

// PutInsight plays the role of the external ingestion job.
func (s *Store) PutInsight(insight domain.Insight) {
	if insight.ID == uuid.Nil {
		insight.ID = uuid.New()
	}
	s.mu.Lock()
	if existing, ok := s.insights[insight.Industry]; ok {
		insight.ID = existing.ID
	}
	s.insights[insight.Industry] = insight
	s.mu.Unlock()
}

// History returns a copy of the recorded snapshots, oldest first.
func (s *Store) History(industry string) []domain.InsightSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.history[industry])
}

func (s *Store) GetByID(_ context.Context, userID uuid.UUID) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[userID]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return &user, nil
}

func (s *Store) GetByExternalID(_ context.Context, externalAuthID string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, user := range s.users {
		if user.ExternalAuthID == externalAuthID {
			return &user, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (s *Store) GetUserIndustry(ctx context.Context, userID uuid.UUID) (string, error) {
	user, err := s.GetByID(ctx, userID)
	if err != nil {
		return "", err
	}
	if user.Industry == nil || *user.Industry == "" {
		return "", domain.ErrNoIndustryAssigned
	}
	return *user.Industry, nil
}

func (s *Store) GetInsight(_ context.Context, industry string) (*domain.Insight, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	insight, ok := s.insights[industry]
	if !ok {
		return nil, domain.ErrUnknownIndustry
	}
	return &insight, nil
}

func (s *Store) GetLatestHistory(_ context.Context, industry string) (*domain.InsightSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := s.history[industry]
	if len(rows) == 0 {
		return nil, domain.ErrNoHistory
	}
	latest := rows[len(rows)-1]
	return &latest, nil
}

func (s *Store) AppendHistory(_ context.Context, industry string, snapshot domain.InsightSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.insights[industry]; !ok {
		return domain.ErrUnknownIndustry
	}
	s.history[industry] = append(s.history[industry], snapshot)
	return nil
}

func (s *Store) ListIndustries(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	industries := make([]string, 0, len(s.insights))
	for industry := range s.insights {
		industries = append(industries, industry)
	}
	slices.Sort(industries)
	return industries, nil
}
