package service

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable/internal/dto"
	"github.com/noah-isme/sma-timetable/internal/models"
	"github.com/noah-isme/sma-timetable/internal/scheduler"
	appErrors "github.com/noah-isme/sma-timetable/pkg/errors"
)

type timetableRepository interface {
	CreateRun(ctx context.Context, exec sqlx.ExtContext, run *models.TimetableRun) error
	InsertSessions(ctx context.Context, exec sqlx.ExtContext, runID string, sessions []models.TimetableSession) error
	List(ctx context.Context, filter models.TimetableRunFilter) ([]models.TimetableRun, int, error)
	FindByID(ctx context.Context, id string) (*models.TimetableRun, error)
	ListSessions(ctx context.Context, runID string) ([]models.TimetableSession, error)
	UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.TimetableRunStatus) error
	Delete(ctx context.Context, exec sqlx.ExtContext, id string) error
}

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type reportCache interface {
	Lookup(ctx context.Context, fingerprint string) (scheduler.Report, bool)
	Store(ctx context.Context, fingerprint string, report scheduler.Report)
	Purge(ctx context.Context) error
}

type timetableExporter interface {
	Export(proposal TimetableProposal, query dto.ExportTimetableQuery) (*dto.ExportFile, error)
}

// TimetableConfig governs generation and proposal retention.
type TimetableConfig struct {
	ProposalTTL     time.Duration
	MaxPlacements   int
	CoreSubjects    []string
	CoreSessions    int
	DefaultSessions int
	// Week options applied when a request leaves them out.
	MaxDaysPerWeek int
	BalanceLoad    bool
	PreferFiveDays bool
}

// TimetableProposal is a generated timetable kept in memory until it is
// saved or expires.
type TimetableProposal struct {
	ID          string
	Fingerprint string
	Input       scheduler.Input
	Report      scheduler.Report
	Cached      bool
	CreatedAt   time.Time
}

// TimetableService runs the engine on request payloads, keeps proposals and
// persists saved runs.
type TimetableService struct {
	repo      timetableRepository
	tx        txProvider
	cache     reportCache
	exporter  timetableExporter
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       TimetableConfig
	policy    *scheduler.CoreSubjectPolicy
	engine    *scheduler.Engine
	store     *proposalStore
	now       func() time.Time
}

// NewTimetableService wires timetable dependencies. A nil cache disables
// report caching; a nil exporter uses the default renderers.
func NewTimetableService(
	repo timetableRepository,
	tx txProvider,
	cache reportCache,
	exporter timetableExporter,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg TimetableConfig,
) *TimetableService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ProposalTTL <= 0 {
		cfg.ProposalTTL = 30 * time.Minute
	}
	if cfg.MaxDaysPerWeek == 0 {
		cfg.MaxDaysPerWeek = 5
	}
	if len(cfg.CoreSubjects) == 0 {
		cfg.CoreSubjects = scheduler.DefaultCoreSubjects()
	}
	if exporter == nil {
		exporter = NewTimetableExportService(TimetableExportConfig{}, nil, nil, nil, nil)
	}
	policy := scheduler.NewCoreSubjectPolicy(cfg.CoreSubjects, cfg.CoreSessions, cfg.DefaultSessions)
	return &TimetableService{
		repo:      repo,
		tx:        tx,
		cache:     cache,
		exporter:  exporter,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
		policy:    policy,
		engine:    scheduler.NewEngine(policy, logger.Named("scheduler"), scheduler.EngineConfig{MaxPlacements: cfg.MaxPlacements}),
		store:     newProposalStore(cfg.ProposalTTL),
		now:       time.Now,
	}
}

// Generate runs the engine for the payload and stores the result as a
// proposal. Reports are cached by input fingerprint. An input the engine
// rejects yields UNPROCESSABLE_INPUT carrying the engine's reason.
func (s *TimetableService) Generate(ctx context.Context, req dto.GenerateTimetableRequest) (*dto.TimetableProposalResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid timetable generation payload")
	}

	input := s.toEngineInput(req)
	policy, engine := s.engineFor(req.CorePolicy)
	fingerprint, err := fingerprintInput(input, policy)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fingerprint timetable input")
	}

	var report scheduler.Report
	cached := false
	if s.cache != nil {
		report, cached = s.cache.Lookup(ctx, fingerprint)
	}
	if !cached {
		start := time.Now()
		report = engine.Generate(input)
		s.metrics.ObserveGeneration(report, time.Since(start))
		if !report.HasFatal() && s.cache != nil {
			s.cache.Store(ctx, fingerprint, report)
		}
	}

	if report.HasFatal() {
		return nil, appErrors.Clone(appErrors.ErrUnprocessable, report.Conflicts[0])
	}

	proposal := TimetableProposal{
		ID:          uuid.NewString(),
		Fingerprint: fingerprint,
		Input:       input,
		Report:      report,
		Cached:      cached,
		CreatedAt:   s.now().UTC(),
	}
	s.store.Save(proposal)

	s.logger.Info("timetable proposal created",
		zap.String("proposal_id", proposal.ID),
		zap.String("fingerprint", fingerprint),
		zap.Bool("cached", cached),
		zap.Int("assignments", len(report.Assignments)),
	)
	return s.proposalResponse(proposal), nil
}

// GetProposal returns an unexpired proposal.
func (s *TimetableService) GetProposal(ctx context.Context, id string) (*dto.TimetableProposalResponse, error) {
	proposal, ok := s.store.Get(id)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "proposal not found or expired")
	}
	return s.proposalResponse(proposal), nil
}

// Save persists a conflict-free proposal as a draft run with its sessions.
func (s *TimetableService) Save(ctx context.Context, req dto.SaveTimetableRequest) (string, error) {
	if err := s.validator.Struct(req); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid save timetable payload")
	}
	proposal, ok := s.store.Get(req.ProposalID)
	if !ok {
		return "", appErrors.Clone(appErrors.ErrNotFound, "proposal not found or expired")
	}
	if len(proposal.Report.Conflicts) > 0 {
		return "", appErrors.Clone(appErrors.ErrConflict, "proposal contains unresolved conflicts")
	}
	if s.tx == nil {
		return "", appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}

	warnings, marshalErr := json.Marshal(proposal.Report.Warnings)
	if marshalErr != nil {
		return "", appErrors.Wrap(marshalErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode timetable warnings")
	}

	start := time.Now()
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	run := &models.TimetableRun{
		Fingerprint:     proposal.Fingerprint,
		MaxDaysPerWeek:  proposal.Input.MaxDaysPerWeek,
		BalanceLoad:     proposal.Input.BalanceLoad,
		PreferFiveDays:  proposal.Input.PreferFiveDays,
		AssignmentCount: len(proposal.Report.Assignments),
		Conflicts:       types.JSONText(`[]`),
		Warnings:        types.JSONText(warnings),
		Status:          models.TimetableRunStatusDraft,
	}
	if err = s.repo.CreateRun(ctx, tx, run); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create timetable run")
		return "", err
	}

	sessions := lo.Map(proposal.Report.Assignments, func(a scheduler.SessionAssignment, _ int) models.TimetableSession {
		return models.TimetableSession{
			GroupID:    a.GroupID,
			SubjectID:  a.SubjectID,
			TeacherID:  a.TeacherID,
			DayIndex:   a.Day,
			SlotIndex:  a.Slot,
			WeekParity: string(a.Parity),
		}
	})
	if err = s.repo.InsertSessions(ctx, tx, run.ID, sessions); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist timetable sessions")
		return "", err
	}

	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit timetable transaction")
		return "", err
	}
	s.metrics.ObserveDBQuery("save_timetable", time.Since(start))

	s.store.Delete(req.ProposalID)
	s.logger.Info("timetable run saved", zap.String("run_id", run.ID), zap.Int("sessions", len(sessions)))
	return run.ID, nil
}

// List returns saved runs, newest first.
func (s *TimetableService) List(ctx context.Context, query dto.TimetableRunQuery) ([]models.TimetableRun, *models.Pagination, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid timetable query")
	}
	page := query.Page
	if page <= 0 {
		page = 1
	}
	size := query.PageSize
	if size <= 0 {
		size = 20
	}
	filter := models.TimetableRunFilter{Page: page, PageSize: size}
	if query.Status != "" {
		status := models.TimetableRunStatus(query.Status)
		filter.Status = &status
	}

	start := time.Now()
	runs, total, err := s.repo.List(ctx, filter)
	s.metrics.ObserveDBQuery("list_timetables", time.Since(start))
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list timetables")
	}
	return runs, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns a saved run with its sessions.
func (s *TimetableService) Get(ctx context.Context, id string) (*models.TimetableRunDetail, error) {
	run, err := s.findRun(ctx, id)
	if err != nil {
		return nil, err
	}
	sessions, err := s.repo.ListSessions(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list timetable sessions")
	}
	return &models.TimetableRunDetail{TimetableRun: *run, Sessions: sessions}, nil
}

// Publish moves a draft run to PUBLISHED.
func (s *TimetableService) Publish(ctx context.Context, id string) error {
	run, err := s.findRun(ctx, id)
	if err != nil {
		return err
	}
	if run.Status == models.TimetableRunStatusPublished {
		return appErrors.Clone(appErrors.ErrPublished, "timetable already published")
	}
	if err := s.repo.UpdateStatus(ctx, nil, id, models.TimetableRunStatusPublished); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "timetable not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to publish timetable")
	}
	s.logger.Info("timetable published", zap.String("run_id", id))
	return nil
}

// Delete removes a draft run and its sessions.
func (s *TimetableService) Delete(ctx context.Context, id string) error {
	run, err := s.findRun(ctx, id)
	if err != nil {
		return err
	}
	if run.Status != models.TimetableRunStatusDraft {
		return appErrors.Clone(appErrors.ErrConflict, "only draft timetables can be deleted")
	}
	if s.tx == nil {
		return appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = s.repo.Delete(ctx, tx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = appErrors.Clone(appErrors.ErrNotFound, "timetable not found")
			return err
		}
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete timetable")
		return err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit timetable transaction")
		return err
	}
	return nil
}

// Export renders an unexpired proposal in the requested format.
func (s *TimetableService) Export(ctx context.Context, proposalID string, query dto.ExportTimetableQuery) (*dto.ExportFile, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid export query")
	}
	proposal, ok := s.store.Get(proposalID)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "proposal not found or expired")
	}
	return s.exporter.Export(proposal, query)
}

// PurgeCache drops every cached generation report. Stored proposals are kept.
func (s *TimetableService) PurgeCache(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	if err := s.cache.Purge(ctx); err != nil {
		return err
	}
	s.logger.Info("report cache purged")
	return nil
}

func (s *TimetableService) findRun(ctx context.Context, id string) (*models.TimetableRun, error) {
	if id == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "timetable id is required")
	}
	run, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "timetable not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable")
	}
	return run, nil
}

// engineFor returns the configured engine, or a one-off engine when the
// request overrides the core policy.
func (s *TimetableService) engineFor(override *dto.CorePolicyRequest) (*scheduler.CoreSubjectPolicy, *scheduler.Engine) {
	if override == nil {
		return s.policy, s.engine
	}
	core := s.policy.Core()
	if len(override.Subjects) > 0 {
		core = override.Subjects
	}
	coreSessions, defaultSessions := s.policy.Counts()
	if override.CoreSessions > 0 {
		coreSessions = override.CoreSessions
	}
	if override.DefaultSessions > 0 {
		defaultSessions = override.DefaultSessions
	}
	policy := scheduler.NewCoreSubjectPolicy(core, coreSessions, defaultSessions)
	return policy, scheduler.NewEngine(policy, s.logger.Named("scheduler"), scheduler.EngineConfig{MaxPlacements: s.cfg.MaxPlacements})
}

func (s *TimetableService) proposalResponse(proposal TimetableProposal) *dto.TimetableProposalResponse {
	return &dto.TimetableProposalResponse{
		ProposalID:   proposal.ID,
		Fingerprint:  proposal.Fingerprint,
		Cached:       proposal.Cached,
		CreatedAt:    proposal.CreatedAt,
		ExpiresAt:    proposal.CreatedAt.Add(s.cfg.ProposalTTL),
		Report:       proposal.Report,
		TeacherLoads: proposal.Report.TeacherLoads(proposal.Input.Teachers),
	}
}

func (s *TimetableService) toEngineInput(req dto.GenerateTimetableRequest) scheduler.Input {
	in := scheduler.Input{
		Teachers: lo.Map(req.Teachers, func(t dto.TeacherRequest, _ int) scheduler.Teacher {
			return scheduler.Teacher{ID: t.ID, Name: t.Name, Subjects: t.Subjects, WeeklyCap: t.WeeklyHours}
		}),
		Groups: lo.Map(req.Groups, func(g dto.GroupRequest, _ int) scheduler.Group {
			return scheduler.Group{ID: g.ID, Name: g.Name, Subjects: g.Subjects}
		}),
		Subjects: lo.Map(req.Subjects, func(sub dto.SubjectRequest, _ int) scheduler.Subject {
			return scheduler.Subject{ID: sub.ID, Name: sub.Name, ShortName: sub.ShortName}
		}),
		TimeSlots: lo.Map(req.TimeSlots, func(ts dto.TimeSlotRequest, _ int) scheduler.TimeSlot {
			return scheduler.TimeSlot{Position: ts.Position, StartTime: ts.StartTime, EndTime: ts.EndTime, DurationMinutes: ts.Duration}
		}),
		MaxDaysPerWeek: s.cfg.MaxDaysPerWeek,
		BalanceLoad:    s.cfg.BalanceLoad,
		PreferFiveDays: s.cfg.PreferFiveDays,
	}
	if req.MaxDaysPerWeek != nil {
		in.MaxDaysPerWeek = *req.MaxDaysPerWeek
	}
	if req.BalanceLoad != nil {
		in.BalanceLoad = *req.BalanceLoad
	}
	if req.PreferFiveDays != nil {
		in.PreferFiveDays = *req.PreferFiveDays
	}
	return in
}

type fingerprintPayload struct {
	Input           scheduler.Input `json:"input"`
	CoreSubjects    []string        `json:"coreSubjects"`
	CoreSessions    int             `json:"coreSessions"`
	DefaultSessions int             `json:"defaultSessions"`
}

// fingerprintInput hashes the engine input together with the session policy.
// Equal fingerprints always produce equal reports.
func fingerprintInput(input scheduler.Input, policy *scheduler.CoreSubjectPolicy) (string, error) {
	coreSessions, defaultSessions := policy.Counts()
	payload, err := json.Marshal(fingerprintPayload{
		Input:           input,
		CoreSubjects:    policy.Core(),
		CoreSessions:    coreSessions,
		DefaultSessions: defaultSessions,
	})
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:]), nil
}

type proposalStore struct {
	ttl   time.Duration
	now   func() time.Time
	mu    sync.RWMutex
	items map[string]TimetableProposal
}

func newProposalStore(ttl time.Duration) *proposalStore {
	return &proposalStore{
		ttl:   ttl,
		now:   time.Now,
		items: make(map[string]TimetableProposal),
	}
}

func (s *proposalStore) Save(proposal TimetableProposal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()
	s.items[proposal.ID] = proposal
}

func (s *proposalStore) Get(id string) (TimetableProposal, bool) {
	s.mu.RLock()
	proposal, ok := s.items[id]
	s.mu.RUnlock()
	if !ok {
		return TimetableProposal{}, false
	}
	if s.now().Sub(proposal.CreatedAt) > s.ttl {
		s.Delete(id)
		return TimetableProposal{}, false
	}
	return proposal, true
}

func (s *proposalStore) Delete(id string) {
	s.mu.Lock()
	delete(s.items, id)
	s.mu.Unlock()
}

// sweepLocked drops expired proposals. Caller holds the write lock.
func (s *proposalStore) sweepLocked() {
	now := s.now()
	for id, proposal := range s.items {
		if now.Sub(proposal.CreatedAt) > s.ttl {
			delete(s.items, id)
		}
	}
}
