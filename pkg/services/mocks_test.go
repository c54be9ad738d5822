package services

import (
	"context"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/siapepi/audit-engine/pkg/apperrors"
	"github.com/siapepi/audit-engine/pkg/auth"
	"github.com/siapepi/audit-engine/pkg/database"
	"github.com/siapepi/audit-engine/pkg/models"
	"github.com/siapepi/audit-engine/pkg/narrative"
	"github.com/siapepi/audit-engine/pkg/repositories"
)

// ============================================================================
// Context helpers
// ============================================================================

// scopeCtx returns a context carrying a detached database scope, enough for
// services whose repositories are mocked.
func scopeCtx() context.Context {
	return database.SetScope(context.Background(), database.NewDetachedScope())
}

func withClaims(claims *auth.Claims) context.Context {
	return context.WithValue(scopeCtx(), auth.ClaimsKey, claims)
}

func auditorClaims(userID string) *auth.Claims {
	return &auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: userID},
		Name:             userID,
		Roles:            []string{auth.RoleAuditor},
	}
}

func adminClaims(userID string) *auth.Claims {
	return &auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: userID},
		Name:             userID,
		Roles:            []string{auth.RoleAdmin},
	}
}

func auditeeClaims(userID string, unitID uuid.UUID) *auth.Claims {
	return &auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: userID},
		Name:             userID,
		Roles:            []string{auth.RoleAuditee},
		UnitID:           unitID.String(),
	}
}

// ============================================================================
// Repository mocks
// ============================================================================

type mockCycleRepo struct {
	cycles map[uuid.UUID]*models.AuditCycle
}

func newMockCycleRepo() *mockCycleRepo {
	return &mockCycleRepo{cycles: make(map[uuid.UUID]*models.AuditCycle)}
}

func (m *mockCycleRepo) Create(ctx context.Context, cycle *models.AuditCycle) error {
	if cycle.ID == uuid.Nil {
		cycle.ID = uuid.New()
	}
	stored := *cycle
	m.cycles[cycle.ID] = &stored
	return nil
}

func (m *mockCycleRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.AuditCycle, error) {
	c, ok := m.cycles[id]
	if !ok {
		return nil, nil
	}
	copied := *c
	return &copied, nil
}

func (m *mockCycleRepo) List(ctx context.Context) ([]*models.AuditCycle, error) {
	var result []*models.AuditCycle
	for _, c := range m.cycles {
		copied := *c
		result = append(result, &copied)
	}
	return result, nil
}

func (m *mockCycleRepo) UpdateStatus(ctx context.Context, id uuid.UUID, from, to models.CycleStatus) error {
	c, ok := m.cycles[id]
	if !ok || c.Status != from {
		return apperrors.ErrConflict
	}
	c.Status = to
	return nil
}

type mockUnitAuditRepo struct {
	units map[uuid.UUID]*models.UnitAudit
}

func newMockUnitAuditRepo() *mockUnitAuditRepo {
	return &mockUnitAuditRepo{units: make(map[uuid.UUID]*models.UnitAudit)}
}

func (m *mockUnitAuditRepo) Create(ctx context.Context, unit *models.UnitAudit) error {
	if unit.ID == uuid.Nil {
		unit.ID = uuid.New()
	}
	stored := *unit
	m.units[unit.ID] = &stored
	return nil
}

func (m *mockUnitAuditRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.UnitAudit, error) {
	u, ok := m.units[id]
	if !ok {
		return nil, nil
	}
	copied := *u
	return &copied, nil
}

func (m *mockUnitAuditRepo) GetByCycleAndUnit(ctx context.Context, cycleID, unitID uuid.UUID) (*models.UnitAudit, error) {
	for _, u := range m.units {
		if u.CycleID == cycleID && u.UnitID == unitID {
			copied := *u
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *mockUnitAuditRepo) ListByCycle(ctx context.Context, cycleID uuid.UUID) ([]*models.UnitAudit, error) {
	var result []*models.UnitAudit
	for _, u := range m.units {
		if u.CycleID == cycleID {
			copied := *u
			result = append(result, &copied)
		}
	}
	return result, nil
}

func (m *mockUnitAuditRepo) UpdateStatus(ctx context.Context, id uuid.UUID, from, to models.UnitAuditStatus) error {
	u, ok := m.units[id]
	if !ok || u.Status != from {
		return apperrors.ErrConflict
	}
	u.Status = to
	return nil
}

func (m *mockUnitAuditRepo) OverrideStatus(ctx context.Context, id uuid.UUID, to models.UnitAuditStatus) error {
	u, ok := m.units[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	u.Status = to
	return nil
}

func (m *mockUnitAuditRepo) UpdateSubmissionStatus(ctx context.Context, id uuid.UUID, from []models.SubmissionStatus, to models.SubmissionStatus) error {
	u, ok := m.units[id]
	if !ok {
		return apperrors.ErrConflict
	}
	for _, f := range from {
		if u.SubmissionStatus == f {
			u.SubmissionStatus = to
			return nil
		}
	}
	return apperrors.ErrConflict
}

func (m *mockUnitAuditRepo) Finalize(ctx context.Context, id uuid.UUID, finalScore float64) error {
	u, ok := m.units[id]
	if !ok || u.Status != models.UnitAuditStatusFieldAudit {
		return apperrors.ErrConflict
	}
	u.Status = models.UnitAuditStatusFinalized
	u.FinalScore = &finalScore
	return nil
}

type mockInstrumentRepo struct {
	instruments []*models.Instrument
}

func newMockInstrumentRepo() *mockInstrumentRepo {
	return &mockInstrumentRepo{}
}

func (m *mockInstrumentRepo) CreateBatch(ctx context.Context, instruments []*models.Instrument) error {
	for _, inst := range instruments {
		if inst.ID == uuid.Nil {
			inst.ID = uuid.New()
		}
		stored := *inst
		m.instruments = append(m.instruments, &stored)
	}
	return nil
}

func (m *mockInstrumentRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Instrument, error) {
	for _, inst := range m.instruments {
		if inst.ID == id {
			copied := *inst
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *mockInstrumentRepo) ListByUnitAudit(ctx context.Context, unitAuditID uuid.UUID) ([]*models.Instrument, error) {
	var result []*models.Instrument
	for _, inst := range m.instruments {
		if inst.UnitAuditID == unitAuditID {
			copied := *inst
			result = append(result, &copied)
		}
	}
	return result, nil
}

func (m *mockInstrumentRepo) UpdateResponse(ctx context.Context, id uuid.UUID, answerText, evidenceLink string) error {
	for _, inst := range m.instruments {
		if inst.ID == id {
			inst.AnswerText = answerText
			inst.EvidenceLink = evidenceLink
			return nil
		}
	}
	return apperrors.ErrNotFound
}

func (m *mockInstrumentRepo) CountMissingResponses(ctx context.Context, unitAuditID uuid.UUID) (int, error) {
	missing := 0
	for _, inst := range m.instruments {
		if inst.UnitAuditID == unitAuditID && !inst.HasResponse() {
			missing++
		}
	}
	return missing, nil
}

type mockEvaluationRepo struct {
	instruments *mockInstrumentRepo
	evaluations []*models.Evaluation
}

func newMockEvaluationRepo(instruments *mockInstrumentRepo) *mockEvaluationRepo {
	return &mockEvaluationRepo{instruments: instruments}
}

func (m *mockEvaluationRepo) CreateBatch(ctx context.Context, evaluations []*models.Evaluation) error {
	for _, eval := range evaluations {
		if eval.ID == uuid.Nil {
			eval.ID = uuid.New()
		}
		stored := *eval
		m.evaluations = append(m.evaluations, &stored)
	}
	return nil
}

func (m *mockEvaluationRepo) GetByInstrumentAndAuditor(ctx context.Context, instrumentID uuid.UUID, auditorID string) (*models.Evaluation, error) {
	for _, eval := range m.evaluations {
		if eval.InstrumentID == instrumentID && eval.AuditorID == auditorID {
			copied := *eval
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *mockEvaluationRepo) ListByInstrument(ctx context.Context, instrumentID uuid.UUID) ([]*models.Evaluation, error) {
	var result []*models.Evaluation
	for _, eval := range m.evaluations {
		if eval.InstrumentID == instrumentID {
			copied := *eval
			result = append(result, &copied)
		}
	}
	return result, nil
}

func (m *mockEvaluationRepo) ListByUnitAudit(ctx context.Context, unitAuditID uuid.UUID) ([]*models.Evaluation, error) {
	var result []*models.Evaluation
	for _, eval := range m.evaluations {
		inst, _ := m.instruments.GetByID(ctx, eval.InstrumentID)
		if inst != nil && inst.UnitAuditID == unitAuditID {
			copied := *eval
			result = append(result, &copied)
		}
	}
	return result, nil
}

func (m *mockEvaluationRepo) UpdateSlot(ctx context.Context, eval *models.Evaluation) error {
	for _, stored := range m.evaluations {
		if stored.InstrumentID == eval.InstrumentID && stored.AuditorID == eval.AuditorID {
			if stored.IsComplete {
				return apperrors.ErrConflict
			}
			stored.Status = eval.Status
			stored.Score = eval.Score
			stored.Note = eval.Note
			stored.RejectionNote = eval.RejectionNote
			stored.IsComplete = eval.IsComplete
			return nil
		}
	}
	return apperrors.ErrConflict
}

type mockFieldVerificationRepo struct {
	instruments   *mockInstrumentRepo
	verifications map[uuid.UUID]*models.FieldVerification
}

func newMockFieldVerificationRepo(instruments *mockInstrumentRepo) *mockFieldVerificationRepo {
	return &mockFieldVerificationRepo{
		instruments:   instruments,
		verifications: make(map[uuid.UUID]*models.FieldVerification),
	}
}

func (m *mockFieldVerificationRepo) Upsert(ctx context.Context, fv *models.FieldVerification) error {
	if existing, ok := m.verifications[fv.InstrumentID]; ok {
		fv.ID = existing.ID
	} else if fv.ID == uuid.Nil {
		fv.ID = uuid.New()
	}
	stored := *fv
	m.verifications[fv.InstrumentID] = &stored
	return nil
}

func (m *mockFieldVerificationRepo) GetByInstrument(ctx context.Context, instrumentID uuid.UUID) (*models.FieldVerification, error) {
	fv, ok := m.verifications[instrumentID]
	if !ok {
		return nil, nil
	}
	copied := *fv
	return &copied, nil
}

func (m *mockFieldVerificationRepo) ListByUnitAudit(ctx context.Context, unitAuditID uuid.UUID) ([]*models.FieldVerification, error) {
	var result []*models.FieldVerification
	for _, fv := range m.verifications {
		inst, _ := m.instruments.GetByID(ctx, fv.InstrumentID)
		if inst != nil && inst.UnitAuditID == unitAuditID {
			copied := *fv
			result = append(result, &copied)
		}
	}
	return result, nil
}

type mockDocumentRepo struct {
	documents map[uuid.UUID]*models.AuditDocument
}

func newMockDocumentRepo() *mockDocumentRepo {
	return &mockDocumentRepo{documents: make(map[uuid.UUID]*models.AuditDocument)}
}

func (m *mockDocumentRepo) Create(ctx context.Context, doc *models.AuditDocument) error {
	for _, existing := range m.documents {
		if existing.UnitAuditID == doc.UnitAuditID {
			return apperrors.ErrConflict
		}
	}
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	stored := *doc
	m.documents[doc.ID] = &stored
	return nil
}

func (m *mockDocumentRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.AuditDocument, error) {
	doc, ok := m.documents[id]
	if !ok {
		return nil, nil
	}
	copied := *doc
	return &copied, nil
}

func (m *mockDocumentRepo) GetByUnitAudit(ctx context.Context, unitAuditID uuid.UUID) (*models.AuditDocument, error) {
	for _, doc := range m.documents {
		if doc.UnitAuditID == unitAuditID {
			copied := *doc
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *mockDocumentRepo) Update(ctx context.Context, doc *models.AuditDocument, expectedStatus models.DocumentStatus) error {
	stored, ok := m.documents[doc.ID]
	if !ok || stored.Status != expectedStatus {
		return apperrors.ErrConflict
	}
	updated := *doc
	m.documents[doc.ID] = &updated
	return nil
}

type mockActivityRepo struct {
	entries []*models.ActivityEntry
}

func newMockActivityRepo() *mockActivityRepo {
	return &mockActivityRepo{}
}

func (m *mockActivityRepo) Append(ctx context.Context, entry *models.ActivityEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	stored := *entry
	m.entries = append(m.entries, &stored)
	return nil
}

func (m *mockActivityRepo) ListByUnitAudit(ctx context.Context, unitAuditID uuid.UUID, limit int) ([]*models.ActivityEntry, error) {
	var result []*models.ActivityEntry
	for _, e := range m.entries {
		if e.UnitAuditID == unitAuditID {
			copied := *e
			result = append(result, &copied)
		}
	}
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// lastAction returns the most recently recorded action for a unit, or "".
func (m *mockActivityRepo) lastAction(unitAuditID uuid.UUID) string {
	for i := len(m.entries) - 1; i >= 0; i-- {
		if m.entries[i].UnitAuditID == unitAuditID {
			return m.entries[i].Action
		}
	}
	return ""
}

var (
	_ repositories.CycleRepository             = (*mockCycleRepo)(nil)
	_ repositories.UnitAuditRepository         = (*mockUnitAuditRepo)(nil)
	_ repositories.InstrumentRepository        = (*mockInstrumentRepo)(nil)
	_ repositories.EvaluationRepository        = (*mockEvaluationRepo)(nil)
	_ repositories.FieldVerificationRepository = (*mockFieldVerificationRepo)(nil)
	_ repositories.DocumentRepository          = (*mockDocumentRepo)(nil)
	_ repositories.ActivityRepository          = (*mockActivityRepo)(nil)
)

// ============================================================================
// Narrative mock
// ============================================================================

type mockSummarizer struct {
	summary string
	err     error
	calls   int
}

func (m *mockSummarizer) SummarizeUnitAudit(ctx context.Context, req narrative.SummaryRequest) (string, error) {
	m.calls++
	return m.summary, m.err
}

var _ narrative.Summarizer = (*mockSummarizer)(nil)

// ============================================================================
// Workflow fixture
// ============================================================================

// workflowFixture wires every service against the in-memory repositories so
// tests can drive a unit through the whole audit workflow.
type workflowFixture struct {
	cycleRepo    *mockCycleRepo
	unitRepo     *mockUnitAuditRepo
	instRepo     *mockInstrumentRepo
	evalRepo     *mockEvaluationRepo
	fieldRepo    *mockFieldVerificationRepo
	documentRepo *mockDocumentRepo
	activityRepo *mockActivityRepo
	summarizer   *mockSummarizer

	cycles      CycleService
	submissions SubmissionService
	evaluations EvaluationService
	fieldAudit  FieldAuditService
	documents   DocumentService
}

func newWorkflowFixture() *workflowFixture {
	f := &workflowFixture{
		cycleRepo:    newMockCycleRepo(),
		unitRepo:     newMockUnitAuditRepo(),
		instRepo:     newMockInstrumentRepo(),
		documentRepo: newMockDocumentRepo(),
		activityRepo: newMockActivityRepo(),
		summarizer:   &mockSummarizer{summary: "generated summary"},
	}
	f.evalRepo = newMockEvaluationRepo(f.instRepo)
	f.fieldRepo = newMockFieldVerificationRepo(f.instRepo)

	logger := zap.NewNop()
	activity := NewActivityService(f.activityRepo, logger)
	f.cycles = NewCycleService(f.cycleRepo, f.unitRepo, f.instRepo, f.evalRepo, f.fieldRepo, activity, logger)
	f.submissions = NewSubmissionService(f.unitRepo, f.instRepo, activity, logger)
	f.evaluations = NewEvaluationService(f.unitRepo, f.instRepo, f.evalRepo, activity, logger)
	f.fieldAudit = NewFieldAuditService(f.unitRepo, f.instRepo, f.evalRepo, f.fieldRepo, activity, logger)
	f.documents = NewDocumentService(f.documentRepo, f.unitRepo, f.instRepo, f.evalRepo, f.summarizer, activity, logger)
	return f
}

// seedUnit creates a unit audit with the given stage and submission status,
// plus instrumentCount instruments each carrying two empty evaluation slots
// for auditor-1 and auditor-2.
func (f *workflowFixture) seedUnit(status models.UnitAuditStatus, submission models.SubmissionStatus, instrumentCount int) *models.UnitAudit {
	ctx := context.Background()

	unit := &models.UnitAudit{
		CycleID:          uuid.New(),
		UnitID:           uuid.New(),
		UnitName:         "Engineering Faculty",
		Auditor1ID:       "auditor-1",
		Auditor2ID:       "auditor-2",
		Status:           status,
		SubmissionStatus: submission,
	}
	if err := f.unitRepo.Create(ctx, unit); err != nil {
		panic(err)
	}

	for i := 0; i < instrumentCount; i++ {
		inst := &models.Instrument{
			UnitAuditID:  unit.ID,
			StandardCode: "STD-" + string(rune('A'+i)),
			Question:     "Is the standard met?",
			Auditor1ID:   unit.Auditor1ID,
			Auditor2ID:   unit.Auditor2ID,
		}
		if err := f.instRepo.CreateBatch(ctx, []*models.Instrument{inst}); err != nil {
			panic(err)
		}
		evals := []*models.Evaluation{
			{InstrumentID: inst.ID, AuditorID: unit.Auditor1ID, Status: models.EvaluationStatusMissing},
			{InstrumentID: inst.ID, AuditorID: unit.Auditor2ID, Status: models.EvaluationStatusMissing},
		}
		if err := f.evalRepo.CreateBatch(ctx, evals); err != nil {
			panic(err)
		}
	}
	return unit
}

// unitInstruments returns the seeded instruments of a unit in creation order.
func (f *workflowFixture) unitInstruments(unitAuditID uuid.UUID) []*models.Instrument {
	instruments, _ := f.instRepo.ListByUnitAudit(context.Background(), unitAuditID)
	return instruments
}

// completeEvaluation marks one auditor's slot complete directly in storage.
func (f *workflowFixture) completeEvaluation(instrumentID uuid.UUID, auditorID string, status models.EvaluationStatus, score *int) {
	for _, eval := range f.evalRepo.evaluations {
		if eval.InstrumentID == instrumentID && eval.AuditorID == auditorID {
			eval.Status = status
			eval.Score = score
			if status == models.EvaluationStatusRejected {
				eval.RejectionNote = "evidence not acceptable"
			}
			eval.IsComplete = true
			return
		}
	}
	panic("evaluation slot not found")
}

func intPtr(v int) *int { return &v }
