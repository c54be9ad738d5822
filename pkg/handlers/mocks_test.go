package handlers

import (
	"context"

	"github.com/google/uuid"

	"github.com/siapepi/audit-engine/pkg/models"
	"github.com/siapepi/audit-engine/pkg/services"
)

// mockCycleService is a configurable mock for handler tests.
type mockCycleService struct {
	cycle       *models.AuditCycle
	cycles      []*models.AuditCycle
	unit        *models.UnitAudit
	units       []*models.UnitAudit
	instruments []*models.InstrumentDetail
	err         error
}

func (m *mockCycleService) CreateCycle(ctx context.Context, cycle *models.AuditCycle) error {
	if m.err != nil {
		return m.err
	}
	cycle.ID = uuid.New()
	cycle.Status = models.CycleStatusPlanning
	return nil
}

func (m *mockCycleService) ListCycles(ctx context.Context) ([]*models.AuditCycle, error) {
	return m.cycles, m.err
}

func (m *mockCycleService) UpdateCycleStatus(ctx context.Context, cycleID uuid.UUID, target models.CycleStatus) (*models.AuditCycle, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.cycle, nil
}

func (m *mockCycleService) ActivateUnit(ctx context.Context, cycleID uuid.UUID, params *services.ActivateUnitParams) (*models.UnitAudit, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.unit, nil
}

func (m *mockCycleService) GetUnitAudit(ctx context.Context, unitAuditID uuid.UUID) (*models.UnitAudit, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.unit, nil
}

func (m *mockCycleService) ListUnitAudits(ctx context.Context, cycleID uuid.UUID) ([]*models.UnitAudit, error) {
	return m.units, m.err
}

func (m *mockCycleService) GetUnitInstruments(ctx context.Context, unitAuditID uuid.UUID) ([]*models.InstrumentDetail, error) {
	return m.instruments, m.err
}

func (m *mockCycleService) OverrideUnitStatus(ctx context.Context, unitAuditID uuid.UUID, target models.UnitAuditStatus) error {
	return m.err
}

var _ services.CycleService = (*mockCycleService)(nil)

// mockDocumentService is a configurable mock for handler tests.
type mockDocumentService struct {
	doc *models.AuditDocument
	err error

	lastAction *services.DocumentActionInput
}

func (m *mockDocumentService) CreateDocument(ctx context.Context, unitAuditID uuid.UUID) (*models.AuditDocument, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.doc, nil
}

func (m *mockDocumentService) GetDocument(ctx context.Context, documentID uuid.UUID) (*models.AuditDocument, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.doc, nil
}

func (m *mockDocumentService) GetDocumentByUnit(ctx context.Context, unitAuditID uuid.UUID) (*models.AuditDocument, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.doc, nil
}

func (m *mockDocumentService) Act(ctx context.Context, documentID uuid.UUID, input *services.DocumentActionInput) (*models.AuditDocument, error) {
	m.lastAction = input
	if m.err != nil {
		return nil, m.err
	}
	return m.doc, nil
}

var _ services.DocumentService = (*mockDocumentService)(nil)

// mockSubmissionService is a configurable mock for handler tests.
type mockSubmissionService struct {
	view *services.SubmissionView
	err  error
}

func (m *mockSubmissionService) SaveResponse(ctx context.Context, instrumentID uuid.UUID, answerText, evidenceLink string) error {
	return m.err
}

func (m *mockSubmissionService) GetSubmission(ctx context.Context, unitAuditID uuid.UUID) (*services.SubmissionView, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.view, nil
}

func (m *mockSubmissionService) UpdateSubmission(ctx context.Context, unitAuditID uuid.UUID, target models.SubmissionStatus) (*services.SubmissionView, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.view, nil
}

var _ services.SubmissionService = (*mockSubmissionService)(nil)
