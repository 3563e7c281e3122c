package mocks

import (
	"context"

	"chronicle-server/internal/models"
	"chronicle-server/internal/repository"

	"github.com/stretchr/testify/mock"
)

var (
	_ repository.AuditRepository   = (*AuditRepository)(nil)
	_ repository.JournalRepository = (*JournalRepository)(nil)
)

// Mock AuditRepository
type AuditRepository struct {
	mock.Mock
}

func (m *AuditRepository) Create(ctx context.Context, entry *models.AuditEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

// Mock JournalRepository
type JournalRepository struct {
	mock.Mock
}

func (m *JournalRepository) Create(ctx context.Context, entry *models.JournalEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}
