package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/siapepi/audit-engine/pkg/apperrors"
	"github.com/siapepi/audit-engine/pkg/database"
	"github.com/siapepi/audit-engine/pkg/models"
)

// DocumentRepository provides data access for administrative audit documents.
type DocumentRepository interface {
	// Create inserts the document. Returns apperrors.ErrConflict when the
	// unit already has one (unique unit_audit_id).
	Create(ctx context.Context, doc *models.AuditDocument) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.AuditDocument, error)
	GetByUnitAudit(ctx context.Context, unitAuditID uuid.UUID) (*models.AuditDocument, error)

	// Update persists the document's mutable fields, conditional on the row
	// still being in expectedStatus. A stale write affects no rows and
	// surfaces as apperrors.ErrConflict.
	Update(ctx context.Context, doc *models.AuditDocument, expectedStatus models.DocumentStatus) error
}

type documentRepository struct{}

// NewDocumentRepository creates a new DocumentRepository.
func NewDocumentRepository() DocumentRepository {
	return &documentRepository{}
}

var _ DocumentRepository = (*documentRepository)(nil)

func (r *documentRepository) Create(ctx context.Context, doc *models.AuditDocument) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return fmt.Errorf("no database scope in context")
	}

	now := time.Now()
	doc.CreatedAt = now
	doc.UpdatedAt = now
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	if doc.Status == "" {
		doc.Status = models.DocumentStatusDraft
	}

	contentJSON, revisionJSON, historyJSON, err := marshalDocumentJSON(doc)
	if err != nil {
		return err
	}
	sig1, sig2, sigAuditee, err := marshalSignatures(doc)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO audit_documents (
			id, unit_audit_id, status, content, revision_count, revision_history,
			auditor1_signature, auditor2_signature, auditee_signature,
			history_log, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err = scope.Querier().Exec(ctx, query,
		doc.ID, doc.UnitAuditID, doc.Status, contentJSON, doc.RevisionCount, revisionJSON,
		sig1, sig2, sigAuditee, historyJSON, doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return apperrors.ErrConflict
		}
		return fmt.Errorf("failed to create audit document: %w", err)
	}

	return nil
}

func (r *documentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.AuditDocument, error) {
	return r.getOne(ctx, `WHERE id = $1`, id)
}

func (r *documentRepository) GetByUnitAudit(ctx context.Context, unitAuditID uuid.UUID) (*models.AuditDocument, error) {
	return r.getOne(ctx, `WHERE unit_audit_id = $1`, unitAuditID)
}

func (r *documentRepository) getOne(ctx context.Context, where string, args ...any) (*models.AuditDocument, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	query := `
		SELECT id, unit_audit_id, status, content, revision_count, revision_history,
		       auditor1_signature, auditor2_signature, auditee_signature,
		       history_log, created_at, updated_at
		FROM audit_documents ` + where

	doc, err := scanDocument(scope.Querier().QueryRow(ctx, query, args...))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return doc, nil
}

func (r *documentRepository) Update(ctx context.Context, doc *models.AuditDocument, expectedStatus models.DocumentStatus) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return fmt.Errorf("no database scope in context")
	}

	_, revisionJSON, historyJSON, err := marshalDocumentJSON(doc)
	if err != nil {
		return err
	}
	sig1, sig2, sigAuditee, err := marshalSignatures(doc)
	if err != nil {
		return err
	}

	doc.UpdatedAt = time.Now()

	// Content is a frozen snapshot and is deliberately not in the SET list.
	query := `
		UPDATE audit_documents
		SET status = $1, revision_count = $2, revision_history = $3,
		    auditor1_signature = $4, auditor2_signature = $5, auditee_signature = $6,
		    history_log = $7, updated_at = $8
		WHERE id = $9 AND status = $10`

	tag, err := scope.Querier().Exec(ctx, query,
		doc.Status, doc.RevisionCount, revisionJSON,
		sig1, sig2, sigAuditee, historyJSON, doc.UpdatedAt,
		doc.ID, expectedStatus,
	)
	if err != nil {
		return fmt.Errorf("failed to update audit document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrConflict
	}
	return nil
}

func marshalDocumentJSON(doc *models.AuditDocument) (content, revisions, history []byte, err error) {
	content, err = json.Marshal(doc.Content)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to marshal document content: %w", err)
	}
	if doc.RevisionHistory == nil {
		doc.RevisionHistory = []models.RevisionEntry{}
	}
	revisions, err = json.Marshal(doc.RevisionHistory)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to marshal revision history: %w", err)
	}
	if doc.HistoryLog == nil {
		doc.HistoryLog = []models.HistoryEntry{}
	}
	history, err = json.Marshal(doc.HistoryLog)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to marshal history log: %w", err)
	}
	return content, revisions, history, nil
}

func marshalSignatures(doc *models.AuditDocument) (sig1, sig2, auditee []byte, err error) {
	marshal := func(s *models.Signature) ([]byte, error) {
		if s == nil {
			return nil, nil
		}
		return json.Marshal(s)
	}
	if sig1, err = marshal(doc.Auditor1Signature); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to marshal signature: %w", err)
	}
	if sig2, err = marshal(doc.Auditor2Signature); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to marshal signature: %w", err)
	}
	if auditee, err = marshal(doc.AuditeeSignature); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to marshal signature: %w", err)
	}
	return sig1, sig2, auditee, nil
}

func scanDocument(row pgx.Row) (*models.AuditDocument, error) {
	var d models.AuditDocument
	var contentJSON, revisionJSON, historyJSON []byte
	var sig1, sig2, sigAuditee []byte

	err := row.Scan(&d.ID, &d.UnitAuditID, &d.Status, &contentJSON, &d.RevisionCount, &revisionJSON,
		&sig1, &sig2, &sigAuditee, &historyJSON, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan audit document: %w", err)
	}

	if err := json.Unmarshal(contentJSON, &d.Content); err != nil {
		return nil, fmt.Errorf("failed to unmarshal document content: %w", err)
	}
	if err := json.Unmarshal(revisionJSON, &d.RevisionHistory); err != nil {
		return nil, fmt.Errorf("failed to unmarshal revision history: %w", err)
	}
	if err := json.Unmarshal(historyJSON, &d.HistoryLog); err != nil {
		return nil, fmt.Errorf("failed to unmarshal history log: %w", err)
	}

	unmarshalSig := func(data []byte) (*models.Signature, error) {
		if len(data) == 0 {
			return nil, nil
		}
		var s models.Signature
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("failed to unmarshal signature: %w", err)
		}
		return &s, nil
	}
	if d.Auditor1Signature, err = unmarshalSig(sig1); err != nil {
		return nil, err
	}
	if d.Auditor2Signature, err = unmarshalSig(sig2); err != nil {
		return nil, err
	}
	if d.AuditeeSignature, err = unmarshalSig(sigAuditee); err != nil {
		return nil, err
	}

	return &d, nil
}
