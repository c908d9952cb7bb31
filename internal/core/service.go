package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultJobTimeout is the maximum duration of one Import call.
const DefaultJobTimeout = 10 * time.Minute

// ErrJobMismatch is returned when a resumed job is used for another tenant or kind.
var ErrJobMismatch = errors.New("job belongs to another tenant or import kind")

// ServiceConfig configures a Service.
type ServiceConfig struct {
	MaxConcurrentRuns int
	MaxWaitTime       time.Duration
	JobTimeout        time.Duration
	Templates         *TemplateSet
}

// Service provides the import operations to transports.
type Service struct {
	store      Store
	limiter    *RunLimiter
	templates  *TemplateSet
	jobTimeout time.Duration

	mu   sync.Mutex
	jobs map[string]*importJob
}

// importJob is the resumable state of one import.
type importJob struct {
	ictx      ImportContext
	cache     *ResolutionCache
	result    ImportResult
	updatedAt time.Time
}

// ImportRequest asks the service to build and run an import.
// A known JobID resumes that job from its stored position.
type ImportRequest struct {
	Tenant string     `json:"tenant"`
	Kind   Kind       `json:"kind"`
	JobID  string     `json:"jobId,omitempty"`
	Spec   ImportSpec `json:"spec"`
}

// NewService creates a new Service instance.
func NewService(store Store, cfg ServiceConfig) *Service {
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = DefaultJobTimeout
	}
	if cfg.Templates == nil {
		cfg.Templates = NewTemplateSet()
	}

	return &Service{
		store:      store,
		limiter:    NewRunLimiter(cfg.MaxConcurrentRuns, cfg.MaxWaitTime),
		templates:  cfg.Templates,
		jobTimeout: cfg.JobTimeout,
		jobs:       make(map[string]*importJob),
	}
}

// Importers returns information about all registered importers.
func (s *Service) Importers() []DefinitionInfo {
	defs := All()
	infos := make([]DefinitionInfo, len(defs))
	for i, def := range defs {
		infos[i] = def.Info
	}
	return infos
}

// ImportersByGroup returns importers organized by group.
func (s *Service) ImportersByGroup() map[string][]DefinitionInfo {
	result := make(map[string][]DefinitionInfo)
	for _, group := range Groups() {
		for _, def := range ByGroup(group) {
			result[group] = append(result[group], def.Info)
		}
	}
	return result
}

// Columns returns the mapping paths accepted by kind.
func (s *Service) Columns(kind Kind) ([]ColumnInfo, error) {
	def, err := Require(kind)
	if err != nil {
		return nil, err
	}
	return def.Columns(), nil
}

// Templates returns the loaded import templates.
func (s *Service) Templates() *TemplateSet {
	return s.templates
}

// SpecFromTemplate builds an ImportSpec from a saved template and raw rows
// whose first row holds the column headers.
func (s *Service) SpecFromTemplate(kind Kind, name string, rows [][]any) (ImportSpec, error) {
	t, err := s.templates.Get(kind, name)
	if err != nil {
		return ImportSpec{}, err
	}
	if len(rows) == 0 {
		return ImportSpec{Mapping: t.Mapping, Options: t.Options}, nil
	}

	headers := make([]string, len(rows[0]))
	for i, cell := range rows[0] {
		headers[i] = CleanCell(cellText(cell))
	}
	return ImportSpec{
		Mapping: t.MappingFor(headers),
		Rows:    rows[1:],
		Options: t.Options,
	}, nil
}

// Build validates spec and returns the pending records for kind.
func (s *Service) Build(kind Kind, spec ImportSpec) ([]*PendingRecord, BuildStats, error) {
	def, err := Require(kind)
	if err != nil {
		return nil, BuildStats{}, err
	}
	return BuildWithStats(def, spec)
}

// Preview builds spec and predicts the outcome of each record without writing.
func (s *Service) Preview(ctx context.Context, tenant string, kind Kind, spec ImportSpec) (*PreviewResponse, error) {
	def, err := Require(kind)
	if err != nil {
		return nil, err
	}
	return Preview(ctx, s.store, def, spec, tenant)
}

// Import builds and runs an import. Runs of one tenant are serialized.
//
// The returned result is cumulative over every call made for the job. When
// the run is interrupted the result is returned together with the error and
// the job can be resumed by repeating the request with the same JobID.
func (s *Service) Import(ctx context.Context, req ImportRequest) (ImportResult, error) {
	def, err := Require(req.Kind)
	if err != nil {
		return ImportResult{}, err
	}
	if req.Tenant == "" {
		return ImportResult{}, fmt.Errorf("tenant is required")
	}

	// Build before taking a run slot; it is pure and may be slow
	records, stats, err := BuildWithStats(def, req.Spec)
	if err != nil {
		return ImportResult{}, err
	}

	job, err := s.job(req)
	if err != nil {
		return ImportResult{}, err
	}

	if err := s.limiter.Acquire(ctx, req.Tenant); err != nil {
		return ImportResult{}, err
	}
	defer s.limiter.Release(req.Tenant)

	runCtx, cancel := context.WithTimeout(ctx, s.jobTimeout)
	defer cancel()

	// Runs of one job are serialized by the tenant lock held above
	s.mu.Lock()
	ictx := job.ictx
	s.mu.Unlock()

	logger := slog.With(
		"job_id", ictx.JobID,
		"tenant", req.Tenant,
		"kind", req.Kind,
	)
	if ip := GetIPAddressFromContext(ctx); ip != "" {
		logger = logger.With("remote_ip", ip)
	}
	logger.Info("import started",
		"rows", stats.Rows,
		"records", stats.Records,
		"excluded", stats.Excluded,
	)

	runner := NewRunner(s.store).WithCache(job.cache)
	res, runErr := runner.Run(runCtx, def, records, &ictx)

	s.mu.Lock()
	job.ictx = ictx
	job.updatedAt = time.Now()
	job.result.NumCreated += res.NumCreated
	job.result.NumUpdated += res.NumUpdated
	job.result.NumFailed += res.NumFailed
	job.result.Failures = append(job.result.Failures, res.Failures...)
	job.result.Position = ictx.Position
	job.result.RowPosition = ictx.RowPosition
	job.result.Duration += res.Duration
	out := job.result
	out.Failures = append([]RowFailure(nil), job.result.Failures...)
	s.mu.Unlock()

	if runErr != nil {
		logger.Warn("import interrupted",
			"position", out.Position,
			"records", len(records),
			"error", runErr,
		)
		return out, runErr
	}

	logger.Info("import completed",
		"created", out.NumCreated,
		"updated", out.NumUpdated,
		"failed", out.NumFailed,
		"references_created", job.cache.Created(),
		"duration_ms", res.Duration.Milliseconds(),
	)
	return out, nil
}

// job returns the state for req, creating a new job when JobID is unknown or blank.
func (s *Service) job(req ImportRequest) (*importJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if req.JobID != "" {
		if j, ok := s.jobs[req.JobID]; ok {
			if j.ictx.Tenant != req.Tenant || j.ictx.Kind != req.Kind {
				return nil, ErrJobMismatch
			}
			return j, nil
		}
	}

	id := req.JobID
	if id == "" {
		id = uuid.New().String()
	}
	j := &importJob{
		ictx:  ImportContext{JobID: id, Tenant: req.Tenant, Kind: req.Kind},
		cache: NewResolutionCache(),
		result: ImportResult{
			JobID:    id,
			Kind:     req.Kind,
			Tenant:   req.Tenant,
			Failures: []RowFailure{},
		},
		updatedAt: time.Now(),
	}
	s.jobs[id] = j
	return j, nil
}

// Job returns the cursor of a known job.
func (s *Service) Job(jobID string) (ImportContext, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[jobID]
	if !ok {
		return ImportContext{}, false
	}
	return j.ictx, true
}

// ForgetJob drops the stored state of a job.
func (s *Service) ForgetJob(jobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, jobID)
}

// forgetJobsBefore drops jobs idle since cutoff and returns how many were dropped.
func (s *Service) forgetJobsBefore(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id, j := range s.jobs {
		if j.updatedAt.Before(cutoff) {
			delete(s.jobs, id)
			n++
		}
	}
	return n
}

// RunStatus returns the run limiter's state.
func (s *Service) RunStatus() RunLimiterStatus {
	return s.limiter.Status()
}

// Shutdown waits for active runs to finish or ctx to expire.
func (s *Service) Shutdown(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}
