package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/siapepi/audit-engine/pkg/apperrors"
	"github.com/siapepi/audit-engine/pkg/auth"
	"github.com/siapepi/audit-engine/pkg/database"
	"github.com/siapepi/audit-engine/pkg/models"
	"github.com/siapepi/audit-engine/pkg/narrative"
	"github.com/siapepi/audit-engine/pkg/repositories"
)

// summaryTimeout bounds how long document creation waits for the narrative
// summarizer before falling back to the placeholder.
const summaryTimeout = 20 * time.Second

// DocumentAction payload for the actions endpoint.
type DocumentActionInput struct {
	Action        models.DocumentAction `json:"action"`
	Justification string                `json:"justification,omitempty"`
}

// DocumentService owns the administrative document workflow closing a
// unit's audit: content snapshot, bounded revisions, and signatures.
type DocumentService interface {
	// CreateDocument snapshots the finalized unit into a draft document.
	// At most one document exists per unit.
	CreateDocument(ctx context.Context, unitAuditID uuid.UUID) (*models.AuditDocument, error)

	GetDocument(ctx context.Context, documentID uuid.UUID) (*models.AuditDocument, error)
	GetDocumentByUnit(ctx context.Context, unitAuditID uuid.UUID) (*models.AuditDocument, error)

	// Act applies one workflow action. Transition legality comes from the
	// status table in pkg/models; every applied action appends to the
	// history log.
	Act(ctx context.Context, documentID uuid.UUID, input *DocumentActionInput) (*models.AuditDocument, error)
}

type documentService struct {
	documents   repositories.DocumentRepository
	units       repositories.UnitAuditRepository
	instruments repositories.InstrumentRepository
	evaluations repositories.EvaluationRepository
	summarizer  narrative.Summarizer
	activity    ActivityService
	logger      *zap.Logger
}

// NewDocumentService creates a new DocumentService. summarizer may be nil
// when no narrative endpoint is configured; the placeholder is used instead.
func NewDocumentService(
	documents repositories.DocumentRepository,
	units repositories.UnitAuditRepository,
	instruments repositories.InstrumentRepository,
	evaluations repositories.EvaluationRepository,
	summarizer narrative.Summarizer,
	activity ActivityService,
	logger *zap.Logger,
) DocumentService {
	return &documentService{
		documents:   documents,
		units:       units,
		instruments: instruments,
		evaluations: evaluations,
		summarizer:  summarizer,
		activity:    activity,
		logger:      logger.Named("document-service"),
	}
}

var _ DocumentService = (*documentService)(nil)

func (s *documentService) CreateDocument(ctx context.Context, unitAuditID uuid.UUID) (*models.AuditDocument, error) {
	unit, err := s.units.GetByID(ctx, unitAuditID)
	if err != nil {
		return nil, fmt.Errorf("get unit audit: %w", err)
	}
	if unit == nil {
		return nil, apperrors.ErrNotFound
	}

	claims, _ := auth.GetClaims(ctx)
	if claims == nil || (!unit.IsAssignedAuditor(claims.Subject) && !claims.HasRole(auth.RoleAdmin)) {
		return nil, apperrors.Validationf("only an assigned auditor or an administrator may create the document")
	}
	if unit.Status != models.UnitAuditStatusFinalized {
		return nil, apperrors.Statef("unit_status",
			"the audit document can only be drawn up for a finalized unit, not %s", unit.Status)
	}

	content, err := s.buildContent(ctx, unit)
	if err != nil {
		return nil, err
	}

	doc := &models.AuditDocument{
		UnitAuditID: unit.ID,
		Status:      models.DocumentStatusDraft,
		Content:     *content,
	}
	doc.AppendHistory(claims.Subject, auth.GetUserNameFromContext(ctx), "created the audit document", time.Now())

	if err := s.documents.Create(ctx, doc); err != nil {
		return nil, err
	}

	s.activity.Record(ctx, unit.ID, models.ActivityActionDocumentCreated, "")
	s.logger.Info("Audit document created",
		zap.String("unit_audit_id", unit.ID.String()),
		zap.String("document_id", doc.ID.String()))
	return doc, nil
}

// buildContent freezes the unit's result into the document snapshot. The
// narrative summary is best-effort; the placeholder keeps creation moving.
func (s *documentService) buildContent(ctx context.Context, unit *models.UnitAudit) (*models.DocumentContent, error) {
	instruments, err := s.instruments.ListByUnitAudit(ctx, unit.ID)
	if err != nil {
		return nil, err
	}
	evaluations, err := s.evaluations.ListByUnitAudit(ctx, unit.ID)
	if err != nil {
		return nil, err
	}

	evalsByInstrument := make(map[uuid.UUID][]*models.Evaluation)
	for _, eval := range evaluations {
		evalsByInstrument[eval.InstrumentID] = append(evalsByInstrument[eval.InstrumentID], eval)
	}

	// Per-standard mean over the pair means of each instrument's desk scores.
	sums := make(map[string]float64)
	counts := make(map[string]int)
	var order []string
	rejected := 0
	for _, inst := range instruments {
		var scoreSum float64
		var scoreCount int
		for _, eval := range evalsByInstrument[inst.ID] {
			if eval.IsComplete && eval.Score != nil {
				scoreSum += float64(*eval.Score)
				scoreCount++
			}
			if eval.IsComplete && eval.Status == models.EvaluationStatusRejected {
				rejected++
			}
		}
		if scoreCount == 0 {
			continue
		}
		if _, seen := counts[inst.StandardCode]; !seen {
			order = append(order, inst.StandardCode)
		}
		sums[inst.StandardCode] += scoreSum / float64(scoreCount)
		counts[inst.StandardCode]++
	}

	summary := make([]models.StandardScore, 0, len(order))
	for _, code := range order {
		summary = append(summary, models.StandardScore{
			StandardCode: code,
			Score:        sums[code] / float64(counts[code]),
		})
	}

	overall := 0.0
	if unit.FinalScore != nil {
		overall = *unit.FinalScore
	}
	predicate := models.PredicateFor(overall)

	text := narrative.PlaceholderSummary(unit.UnitName)
	if s.summarizer != nil {
		sctx, cancel := context.WithTimeout(ctx, summaryTimeout)
		defer cancel()
		generated, err := s.summarizer.SummarizeUnitAudit(sctx, narrative.SummaryRequest{
			UnitName:        unit.UnitName,
			OverallScore:    overall,
			Predicate:       predicate,
			InstrumentCount: len(instruments),
			RejectedCount:   rejected,
		})
		if err != nil {
			s.logger.Warn("Falling back to placeholder summary",
				zap.String("unit_audit_id", unit.ID.String()),
				zap.Error(err))
		} else {
			text = generated
		}
	}

	return &models.DocumentContent{
		UnitName:         unit.UnitName,
		OverallScore:     overall,
		Predicate:        predicate,
		ScoreSummary:     summary,
		NarrativeSummary: text,
		Auditor1Name:     unit.Auditor1ID,
		Auditor2Name:     unit.Auditor2ID,
		AuditeeName:      unit.UnitName,
	}, nil
}

func (s *documentService) GetDocument(ctx context.Context, documentID uuid.UUID) (*models.AuditDocument, error) {
	doc, err := s.documents.GetByID(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	if doc == nil {
		return nil, apperrors.ErrNotFound
	}
	return doc, nil
}

func (s *documentService) GetDocumentByUnit(ctx context.Context, unitAuditID uuid.UUID) (*models.AuditDocument, error) {
	doc, err := s.documents.GetByUnitAudit(ctx, unitAuditID)
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	if doc == nil {
		return nil, apperrors.ErrNotFound
	}
	return doc, nil
}

func (s *documentService) Act(ctx context.Context, documentID uuid.UUID, input *DocumentActionInput) (*models.AuditDocument, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	var doc *models.AuditDocument
	var activityAction string
	err := scope.WithTx(ctx, func(ctx context.Context) error {
		var err error
		doc, err = s.documents.GetByID(ctx, documentID)
		if err != nil {
			return fmt.Errorf("get document: %w", err)
		}
		if doc == nil {
			return apperrors.ErrNotFound
		}
		unit, err := s.units.GetByID(ctx, doc.UnitAuditID)
		if err != nil {
			return fmt.Errorf("get unit audit: %w", err)
		}
		if unit == nil {
			return apperrors.ErrNotFound
		}

		claims, _ := auth.GetClaims(ctx)
		if claims == nil {
			return apperrors.Validationf("authentication required")
		}

		from := doc.Status
		next, legal := from.NextStatus(input.Action)
		if !legal {
			return apperrors.Statef("document_status",
				"action %s is not legal while the document is %s", input.Action, from)
		}

		now := time.Now()
		actorName := auth.GetUserNameFromContext(ctx)

		switch input.Action {
		case models.DocumentActionSend:
			if !unit.IsAssignedAuditor(claims.Subject) {
				return apperrors.Validationf("only an assigned auditor may send the document")
			}
			doc.AppendHistory(claims.Subject, actorName, "sent the document to the auditee", now)
			activityAction = models.ActivityActionDocumentSent

		case models.DocumentActionAgree:
			if auth.GetUnitIDFromContext(ctx) != unit.UnitID {
				return apperrors.Validationf("only the unit's auditee may agree to the document")
			}
			if doc.AuditeeSignature == nil {
				doc.AuditeeSignature = &models.Signature{
					SignedBy: claims.Subject,
					Name:     actorName,
					SignedAt: now,
				}
			}
			doc.AppendHistory(claims.Subject, actorName, "agreed to the document", now)
			activityAction = models.ActivityActionDocumentAgreed

		case models.DocumentActionRequestRevision:
			if auth.GetUnitIDFromContext(ctx) != unit.UnitID {
				return apperrors.Validationf("only the unit's auditee may request a revision")
			}
			if input.Justification == "" {
				return apperrors.Validationf("a revision request requires a justification")
			}
			if !doc.CanRequestRevision() {
				return apperrors.Statef("revision_cap",
					"the revision cap of %d has been reached; the document can only be agreed to", models.MaxRevisionRequests)
			}
			doc.RevisionCount++
			doc.RevisionHistory = append(doc.RevisionHistory, models.RevisionEntry{
				RequestedBy:   claims.Subject,
				Justification: input.Justification,
				RequestedAt:   now,
			})
			doc.AppendHistory(claims.Subject, actorName, "requested a revision", now)
			activityAction = models.ActivityActionRevisionRequested

		case models.DocumentActionSign:
			slot, err := doc.SignatureSlot(unit, claims.Subject)
			if err != nil {
				return apperrors.Validationf("only an assigned auditor may sign the document")
			}
			if *slot != nil {
				// Idempotent: the existing signature stands untouched.
				return nil
			}
			*slot = &models.Signature{
				SignedBy: claims.Subject,
				Name:     actorName,
				SignedAt: now,
			}
			doc.AppendHistory(claims.Subject, actorName, "signed the document", now)
			activityAction = models.ActivityActionDocumentSigned
			if doc.BothAuditorsSigned() {
				next = models.DocumentStatusFinalized
				doc.AppendHistory(claims.Subject, actorName, "document finalized", now)
			}
		}

		doc.Status = next
		return s.documents.Update(ctx, doc, from)
	})
	if err != nil {
		return nil, err
	}

	if activityAction != "" {
		s.activity.Record(ctx, doc.UnitAuditID, activityAction, string(input.Action))
	}
	return doc, nil
}
