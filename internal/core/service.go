package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"
)

// DefaultLatency is the simulated network delay applied before login and
// record submissions.
const DefaultLatency = time.Second

// Operation names reported to metrics, traces and audit entries.
const (
	OpLogin          = "login"
	OpLogout         = "logout"
	OpCreateEmployee = "create_employee"
	OpUpdateEmployee = "update_employee"
	OpDeleteEmployee = "delete_employee"
	OpUploadImage    = "upload_image"
)

var opActions = map[string]struct {
	entity EntityType
	action Action
}{
	OpLogin:          {EntitySession, ActionCreate},
	OpLogout:         {EntitySession, ActionDelete},
	OpCreateEmployee: {EntityEmployee, ActionCreate},
	OpUpdateEmployee: {EntityEmployee, ActionUpdate},
	OpDeleteEmployee: {EntityEmployee, ActionDelete},
	OpUploadImage:    {EntityEmployee, ActionUpdate},
}

// ErrImagesDisabled is returned by UploadImage when no encoder is configured.
var ErrImagesDisabled = errors.New("image uploads are not configured")

// Service wires the record store and session gate with validation,
// simulated latency and instrumentation.
type Service struct {
	store   *RecordStore
	gate    *SessionGate
	images  *ImageEncoder
	logger  *zap.Logger
	metrics MetricsRecorder
	tracer  Tracer
	audit   AuditRecorder
	latency time.Duration
	now     func() time.Time
}

// ServiceOption customises a Service.
type ServiceOption func(*Service)

// WithLogger sets the service logger.
func WithLogger(logger *zap.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetricsRecorder sets the metrics sink.
func WithMetricsRecorder(m MetricsRecorder) ServiceOption {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithTracer sets the tracer.
func WithTracer(t Tracer) ServiceOption {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithAuditRecorder sets the audit sink.
func WithAuditRecorder(a AuditRecorder) ServiceOption {
	return func(s *Service) {
		if a != nil {
			s.audit = a
		}
	}
}

// WithLatency overrides the simulated delay. Zero disables it.
func WithLatency(d time.Duration) ServiceOption {
	return func(s *Service) {
		if d >= 0 {
			s.latency = d
		}
	}
}

// WithImageEncoder enables image uploads.
func WithImageEncoder(e *ImageEncoder) ServiceOption {
	return func(s *Service) { s.images = e }
}

// WithServiceClock overrides the clock used for audit timestamps.
func WithServiceClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService constructs a service over a loaded store and restored gate.
func NewService(store *RecordStore, gate *SessionGate, opts ...ServiceOption) *Service {
	s := &Service{
		store:   store,
		gate:    gate,
		logger:  zap.NewNop(),
		metrics: noopMetricsRecorder{},
		tracer:  noopTracer{},
		audit:   noopAuditRecorder{},
		latency: DefaultLatency,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("service")
	if s.images != nil {
		store.addCommitObserver(s.releaseImages)
	}
	return s
}

// releaseImages deletes blob images that a committed delete or update left
// unreferenced. Failures are logged; the mutation has already been saved.
func (s *Service) releaseImages(ctx context.Context, changes []Change, roster []Employee) {
	var stale []string
	for _, c := range changes {
		if c.Entity != EntityEmployee || c.Before == nil {
			continue
		}
		old := c.Before.ProfileImage
		if _, ok := BlobKey(old); !ok {
			continue
		}
		if c.After != nil && c.After.ProfileImage == old {
			continue
		}
		stale = append(stale, old)
	}
	if len(stale) == 0 {
		return
	}
	inUse := make(map[string]struct{}, len(roster))
	for _, e := range roster {
		inUse[e.ProfileImage] = struct{}{}
	}
	for _, payload := range stale {
		if _, ok := inUse[payload]; ok {
			continue
		}
		if _, err := s.images.Discard(ctx, payload); err != nil {
			s.logger.Warn("release image failed", zap.String("image", payload), zap.Error(err))
			continue
		}
		inUse[payload] = struct{}{}
		s.logger.Debug("image released", zap.String("image", payload))
	}
}

// NewInMemoryService returns a loaded service over in-memory storage with
// the default rules and no latency. Intended for tests and demos.
func NewInMemoryService(ctx context.Context, opts ...ServiceOption) *Service {
	store := NewRecordStore(nil, WithRulesEngine(NewDefaultRulesEngine()))
	store.Load(ctx)
	gate := NewSessionGate(nil, nil)
	return NewService(store, gate, append([]ServiceOption{WithLatency(0)}, opts...)...)
}

// Store returns the underlying record store.
func (s *Service) Store() *RecordStore { return s.store }

// Gate returns the session gate.
func (s *Service) Gate() *SessionGate { return s.gate }

// Images returns the image encoder, nil when uploads are disabled.
func (s *Service) Images() *ImageEncoder { return s.images }

// Latency returns the simulated delay.
func (s *Service) Latency() time.Duration { return s.latency }

func (s *Service) wait(ctx context.Context) error {
	if s.latency <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(s.latency)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// instrument runs fn inside a span and reports metrics, audit and logs.
func (s *Service) instrument(ctx context.Context, op string, fn func(ctx context.Context) (string, error)) error {
	started := time.Now()
	ctx, span := s.tracer.Start(ctx, op)
	entityID, err := fn(ctx)
	elapsed := time.Since(started)
	span.End(err)
	s.metrics.Observe(ctx, op, err == nil, elapsed)
	s.recordAudit(ctx, op, entityID, elapsed, err)
	if err != nil {
		s.logger.Debug("operation failed", zap.String("operation", op), zap.String("entity_id", entityID), zap.Error(err))
	} else {
		s.logger.Debug("operation completed", zap.String("operation", op), zap.String("entity_id", entityID), zap.Duration("duration", elapsed))
	}
	return err
}

func (s *Service) recordAudit(ctx context.Context, op, entityID string, d time.Duration, err error) {
	meta, ok := opActions[op]
	if !ok {
		return
	}
	entry := AuditEntry{
		Operation: op,
		Entity:    meta.entity,
		Action:    meta.action,
		EntityID:  entityID,
		Actor:     ActorFromContext(ctx),
		Status:    AuditStatusSuccess,
		Duration:  d,
		Timestamp: s.now().UTC(),
	}
	if err != nil {
		entry.Status = AuditStatusError
		entry.Error = err.Error()
	}
	s.audit.Record(ctx, entry)
}

// Login validates the credentials, waits the simulated latency and opens
// the session. Any non-empty pair is accepted.
func (s *Service) Login(ctx context.Context, username, password string) (User, error) {
	var user User
	err := s.instrument(ctx, OpLogin, func(ctx context.Context) (string, error) {
		if err := ValidateLogin(username, password); err != nil {
			return username, err
		}
		if err := s.wait(ctx); err != nil {
			return username, err
		}
		var err error
		user, err = s.gate.Login(ctx, username)
		return username, err
	})
	return user, err
}

// Logout closes the session.
func (s *Service) Logout(ctx context.Context) error {
	current, _ := s.gate.Current()
	return s.instrument(ctx, OpLogout, func(ctx context.Context) (string, error) {
		return current.Username, s.gate.Logout(ctx)
	})
}

// CurrentUser returns the session and whether one exists.
func (s *Service) CurrentUser() (User, bool) { return s.gate.Current() }

// validateFields checks fields; the input is stored exactly as given.
func validateFields(fields EmployeeFields) (EmployeeFields, error) {
	if errs := ValidateEmployee(fields); !errs.Valid() {
		return fields, ValidationError{Errors: errs}
	}
	return fields, nil
}

// CreateEmployee validates fields, waits the simulated latency and adds the
// employee.
func (s *Service) CreateEmployee(ctx context.Context, fields EmployeeFields) (Employee, Result, error) {
	var (
		created Employee
		res     Result
	)
	err := s.instrument(ctx, OpCreateEmployee, func(ctx context.Context) (string, error) {
		checked, err := validateFields(fields)
		if err != nil {
			return "", err
		}
		if err := s.wait(ctx); err != nil {
			return "", err
		}
		created, res, err = s.store.Add(ctx, checked)
		return created.ID, err
	})
	return created, res, err
}

// UpdateEmployee validates fields, waits the simulated latency and replaces
// the employee's fields. A missing id yields ErrNotFound.
func (s *Service) UpdateEmployee(ctx context.Context, id string, fields EmployeeFields) (Employee, Result, error) {
	var (
		updated Employee
		res     Result
	)
	err := s.instrument(ctx, OpUpdateEmployee, func(ctx context.Context) (string, error) {
		checked, err := validateFields(fields)
		if err != nil {
			return id, err
		}
		if err := s.wait(ctx); err != nil {
			return id, err
		}
		var found bool
		updated, found, res, err = s.store.Update(ctx, id, checked)
		if err != nil {
			return id, err
		}
		if !found {
			return id, ErrNotFound{Entity: EntityEmployee, ID: id}
		}
		return id, nil
	})
	return updated, res, err
}

// DeleteEmployee waits the simulated latency and removes the employee. A
// missing id yields ErrNotFound.
func (s *Service) DeleteEmployee(ctx context.Context, id string) (Result, error) {
	var res Result
	err := s.instrument(ctx, OpDeleteEmployee, func(ctx context.Context) (string, error) {
		if err := s.wait(ctx); err != nil {
			return id, err
		}
		var (
			found bool
			err   error
		)
		found, res, err = s.store.Remove(ctx, id)
		if err != nil {
			return id, err
		}
		if !found {
			return id, ErrNotFound{Entity: EntityEmployee, ID: id}
		}
		return id, nil
	})
	return res, err
}

// Employee returns the employee with id.
func (s *Service) Employee(id string) (Employee, error) {
	e, ok := s.store.Get(id)
	if !ok {
		return Employee{}, ErrNotFound{Entity: EntityEmployee, ID: id}
	}
	return e, nil
}

// ListEmployees returns the filtered roster view.
func (s *Service) ListEmployees(c Criteria) []Employee {
	return FilterEmployees(s.store.List(), c)
}

// Summary counts the whole roster.
func (s *Service) Summary() Summary {
	return Summarize(s.store.List())
}

// PruneImages deletes stored profile images no employee references, such
// as uploads that were never attached, and returns the removed keys.
func (s *Service) PruneImages(ctx context.Context) ([]string, error) {
	if s.images == nil {
		return nil, ErrImagesDisabled
	}
	list := s.store.List()
	inUse := make([]string, 0, len(list))
	for _, e := range list {
		if e.ProfileImage != "" {
			inUse = append(inUse, e.ProfileImage)
		}
	}
	removed, err := s.images.Prune(ctx, inUse)
	if err != nil {
		return removed, err
	}
	if len(removed) > 0 {
		s.logger.Info("pruned images", zap.Int("count", len(removed)))
	}
	return removed, nil
}

// UploadImage encodes an uploaded image into a profile image payload.
func (s *Service) UploadImage(ctx context.Context, r io.Reader, contentType string) (string, error) {
	if s.images == nil {
		return "", ErrImagesDisabled
	}
	var payload string
	err := s.instrument(ctx, OpUploadImage, func(ctx context.Context) (string, error) {
		var err error
		payload, err = s.images.Encode(ctx, r, contentType)
		if err != nil {
			return "", fmt.Errorf("encode image: %w", err)
		}
		return "", nil
	})
	return payload, err
}
