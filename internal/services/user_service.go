package services

import (
	"context"
	"strings"
	"unicode/utf8"

	"factory-ops/internal/domain/user"
	"factory-ops/internal/repository"
	apperrors "factory-ops/pkg/errors"
)

const maxSearchResults = 20

type UserService struct {
	repo repository.UserRepository
}

func NewUserService(repo repository.UserRepository) *UserService {
	return &UserService{repo: repo}
}

// Search returns public profiles of active users matching query.
func (s *UserService) Search(ctx context.Context, query string, limit int) ([]user.Profile, error) {
	query = strings.TrimSpace(query)
	if utf8.RuneCountInString(query) < 2 {
		return nil, apperrors.ErrInvalidInput
	}
	if limit <= 0 || limit > maxSearchResults {
		limit = maxSearchResults
	}
	users, err := s.repo.SearchUsers(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	profiles := make([]user.Profile, 0, len(users))
	for _, u := range users {
		profiles = append(profiles, u.Profile())
	}
	return profiles, nil
}
