package server

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/daniela/compliance-reviewer/internal/config"
	"github.com/daniela/compliance-reviewer/internal/store"
)

// AuditorService provides business logic for auditor authentication.
type AuditorService struct {
	store          store.Store
	passwordConfig *config.PasswordConfig
}

// NewAuditorService creates an AuditorService with the given dependencies.
func NewAuditorService(st store.Store, passwordConfig *config.PasswordConfig) *AuditorService {
	return &AuditorService{
		store:          st,
		passwordConfig: passwordConfig,
	}
}

// Register creates a new auditor account.
func (s *AuditorService) Register(ctx context.Context, email, password string) (*store.Auditor, error) {
	existing, err := s.store.GetAuditorByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to check email existence: %w", err)
	}
	if existing != nil {
		return nil, &ErrEmailAlreadyExists{Email: email}
	}

	hash, err := s.passwordConfig.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	auditor := store.Auditor{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.store.CreateAuditor(ctx, auditor); err != nil {
		return nil, fmt.Errorf("failed to create auditor: %w", err)
	}

	return &auditor, nil
}

// Login authenticates an auditor. A missing account and a wrong password
// produce the same error.
func (s *AuditorService) Login(ctx context.Context, email, password string) (*store.Auditor, error) {
	auditor, err := s.store.GetAuditorByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to get auditor by email: %w", err)
	}
	if auditor == nil {
		return nil, &ErrInvalidCredentials{}
	}
	if !s.passwordConfig.VerifyPassword(password, auditor.PasswordHash) {
		return nil, &ErrInvalidCredentials{}
	}
	return auditor, nil
}
