package core

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"roster/internal/infra/persistence/memory"
	"roster/pkg/domain"
)

// LoadSource reports where the roster came from during Load.
type LoadSource string

const (
	// LoadFromStorage means the persisted employees entry was used.
	LoadFromStorage LoadSource = "storage"
	// LoadFromSeed means no employees entry existed.
	LoadFromSeed LoadSource = "seed"
	// LoadFromSeedAfterError means the entry was corrupt and has been
	// replaced by the seed.
	LoadFromSeedAfterError LoadSource = "seed_after_error"
	// LoadFromSeedUnreadable means reading the entry failed. The seed is
	// shown but not persisted, and the entry is read again before the
	// first mutation.
	LoadFromSeedUnreadable LoadSource = "seed_unreadable"
)

// ErrEmployeesUnavailable is returned by mutations while the persisted
// roster cannot be read.
var ErrEmployeesUnavailable = errors.New("employees unavailable")

// RecordStore owns the ordered employee collection and its persisted copy.
// Every committed mutation rewrites the full collection to the employees entry.
type RecordStore struct {
	mu        sync.RWMutex
	storage   DurableStorage
	engine    *RulesEngine
	logger    *zap.Logger
	notifier  Notifier
	nowFn     func() time.Time
	employees []Employee
	lastID    int64
	observers []CommitObserver
	// unverified is set while the in-memory roster is a seed standing in
	// for an entry that could not be read.
	unverified bool
}

// CommitObserver is called with the changes of every transaction whose
// result was persisted, along with the committed roster. It runs under the
// store lock and must not call back into the store.
type CommitObserver func(ctx context.Context, changes []Change, roster []Employee)

// StoreOption customises a RecordStore.
type StoreOption func(*RecordStore)

// WithRulesEngine evaluates engine over every transaction's changes.
func WithRulesEngine(engine *RulesEngine) StoreOption {
	return func(s *RecordStore) { s.engine = engine }
}

// WithStoreLogger sets the logger used for persistence and rule diagnostics.
func WithStoreLogger(logger *zap.Logger) StoreOption {
	return func(s *RecordStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithNotifier sets the receiver of success notifications.
func WithNotifier(n Notifier) StoreOption {
	return func(s *RecordStore) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithCommitObserver registers fn to see persisted changes.
func WithCommitObserver(fn CommitObserver) StoreOption {
	return func(s *RecordStore) { s.addCommitObserver(fn) }
}

func (s *RecordStore) addCommitObserver(fn CommitObserver) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	s.observers = append(s.observers, fn)
	s.mu.Unlock()
}

// WithClock overrides the clock used for identity generation.
func WithClock(now func() time.Time) StoreOption {
	return func(s *RecordStore) {
		if now != nil {
			s.nowFn = now
		}
	}
}

// NewRecordStore constructs an empty store over storage. A nil storage keeps
// the roster in process memory only. Call Load before use.
func NewRecordStore(storage DurableStorage, opts ...StoreOption) *RecordStore {
	if storage == nil {
		storage = memory.NewStore()
	}
	s := &RecordStore{
		storage:   storage,
		logger:    zap.NewNop(),
		notifier:  noopNotifier{},
		nowFn:     time.Now,
		employees: []Employee{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("record_store")
	return s
}

// Load reads the employees entry, falling back to the seed roster when it is
// absent, unreadable or corrupt. It never fails; the source is reported so
// callers can log it. Only an absent or corrupt entry is overwritten with the
// seed; after a read error the stored roster is left untouched.
func (s *RecordStore) Load(ctx context.Context) LoadSource {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.unverified = false
	source := LoadFromStorage
	payload, ok, err := s.storage.GetItem(ctx, domain.KeyEmployees)
	switch {
	case err != nil:
		s.logger.Warn("read employees failed, showing seed", zap.Error(err))
		source = LoadFromSeedUnreadable
	case !ok || payload == "":
		source = LoadFromSeed
	default:
		list, derr := DecodeEmployees(payload)
		if derr != nil {
			s.logger.Warn("corrupt employees payload, using seed", zap.Error(derr))
			source = LoadFromSeedAfterError
			break
		}
		s.setEmployees(list)
	}
	switch source {
	case LoadFromSeedUnreadable:
		s.setEmployees(SeedEmployees())
		s.unverified = true
	case LoadFromSeed, LoadFromSeedAfterError:
		s.setEmployees(SeedEmployees())
		if perr := s.persistLocked(ctx); perr != nil {
			s.logger.Warn("persist seed failed", zap.Error(perr))
		}
	}
	s.logger.Debug("roster loaded", zap.String("source", string(source)), zap.Int("count", len(s.employees)))
	return source
}

// verifyLocked re-reads the employees entry after a failed Load. A readable
// entry replaces the stand-in seed; an absent or corrupt one keeps it.
func (s *RecordStore) verifyLocked(ctx context.Context) error {
	if !s.unverified {
		return nil
	}
	payload, ok, err := s.storage.GetItem(ctx, domain.KeyEmployees)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrEmployeesUnavailable, err)
	}
	s.unverified = false
	if !ok || payload == "" {
		return nil
	}
	list, derr := DecodeEmployees(payload)
	if derr != nil {
		s.logger.Warn("corrupt employees payload, keeping seed", zap.Error(derr))
		return nil
	}
	s.logger.Info("employees readable again, replacing seed", zap.Int("count", len(list)))
	s.setEmployees(list)
	return nil
}

func (s *RecordStore) setEmployees(list []Employee) {
	s.employees = list
	s.lastID = 0
	for _, e := range list {
		if n, err := strconv.ParseInt(e.ID, 10, 64); err == nil && n > s.lastID {
			s.lastID = n
		}
	}
}

// Transaction is a mutable copy of the roster used inside RunInTransaction.
type Transaction struct {
	store     *RecordStore
	employees []Employee
	changes   []Change
	now       time.Time
	lastID    int64
}

type transactionView struct {
	employees []Employee
}

func (v transactionView) ListEmployees() []Employee {
	return append([]Employee(nil), v.employees...)
}

func (v transactionView) FindEmployee(id string) (Employee, bool) {
	for _, e := range v.employees {
		if e.ID == id {
			return e, true
		}
	}
	return Employee{}, false
}

// RunInTransaction executes fn against a copy of the roster. After a failed
// Load the stored entry is read again first and the transaction fails with
// ErrEmployeesUnavailable while it stays unreadable. When fn records
// changes, the rules engine evaluates them, a blocking violation aborts, and
// otherwise the copy is committed and the full collection persisted. A
// persistence failure is returned but the committed state is kept.
func (s *RecordStore) RunInTransaction(ctx context.Context, fn func(tx *Transaction) error) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.verifyLocked(ctx); err != nil {
		return Result{}, err
	}
	tx := &Transaction{
		store:     s,
		employees: append([]Employee(nil), s.employees...),
		now:       s.nowFn(),
		lastID:    s.lastID,
	}
	if err := fn(tx); err != nil {
		return Result{}, err
	}
	if len(tx.changes) == 0 {
		return Result{}, nil
	}

	var result Result
	if s.engine != nil {
		res, err := s.engine.Evaluate(ctx, transactionView{employees: tx.employees}, tx.changes)
		if err != nil {
			return Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, RuleViolationError{Result: res}
		}
		for _, v := range res.Violations {
			s.logger.Warn("rule violation",
				zap.String("rule", v.Rule),
				zap.String("severity", string(v.Severity)),
				zap.String("entity_id", v.EntityID),
				zap.String("message", v.Message))
		}
	}

	s.employees = tx.employees
	s.lastID = tx.lastID
	if err := s.persistLocked(ctx); err != nil {
		s.logger.Error("persist employees failed", zap.Error(err))
		return result, err
	}
	for _, observe := range s.observers {
		observe(ctx, tx.changes, s.employees)
	}
	return result, nil
}

func (s *RecordStore) persistLocked(ctx context.Context) error {
	payload, err := EncodeEmployees(s.employees)
	if err != nil {
		return err
	}
	if err := s.storage.SetItem(ctx, domain.KeyEmployees, payload); err != nil {
		return fmt.Errorf("persist employees: %w", err)
	}
	return nil
}

func (tx *Transaction) recordChange(change Change) {
	tx.changes = append(tx.changes, change)
}

func (tx *Transaction) indexOf(id string) int {
	for i, e := range tx.employees {
		if e.ID == id {
			return i
		}
	}
	return -1
}

// nextID derives an identity from the transaction clock in milliseconds,
// bumping past the last issued identity and any existing one.
func (tx *Transaction) nextID() string {
	candidate := tx.now.UnixMilli()
	if candidate <= tx.lastID {
		candidate = tx.lastID + 1
	}
	for tx.indexOf(strconv.FormatInt(candidate, 10)) >= 0 {
		candidate++
	}
	tx.lastID = candidate
	return strconv.FormatInt(candidate, 10)
}

// Create appends a new employee with a fresh identity.
func (tx *Transaction) Create(fields EmployeeFields) Employee {
	created := Employee{ID: tx.nextID()}.WithFields(fields)
	tx.employees = append(tx.employees, created)
	after := created
	tx.recordChange(Change{Entity: EntityEmployee, Action: ActionCreate, After: &after})
	return created
}

// Update replaces every non-identity field of id in place. It reports false
// when id is absent.
func (tx *Transaction) Update(id string, fields EmployeeFields) (Employee, bool) {
	idx := tx.indexOf(id)
	if idx < 0 {
		return Employee{}, false
	}
	before := tx.employees[idx]
	updated := before.WithFields(fields)
	tx.employees[idx] = updated
	after := updated
	tx.recordChange(Change{Entity: EntityEmployee, Action: ActionUpdate, Before: &before, After: &after})
	return updated, true
}

// Delete removes id, reporting whether it existed.
func (tx *Transaction) Delete(id string) bool {
	idx := tx.indexOf(id)
	if idx < 0 {
		return false
	}
	before := tx.employees[idx]
	tx.employees = append(tx.employees[:idx:idx], tx.employees[idx+1:]...)
	tx.recordChange(Change{Entity: EntityEmployee, Action: ActionDelete, Before: &before})
	return true
}

// Find returns the employee with id from the transaction copy.
func (tx *Transaction) Find(id string) (Employee, bool) {
	if idx := tx.indexOf(id); idx >= 0 {
		return tx.employees[idx], true
	}
	return Employee{}, false
}

// Add appends a new employee built from fields and persists the roster.
// Fields are stored as given; validate them first.
func (s *RecordStore) Add(ctx context.Context, fields EmployeeFields) (Employee, Result, error) {
	var created Employee
	res, err := s.RunInTransaction(ctx, func(tx *Transaction) error {
		created = tx.Create(fields)
		return nil
	})
	if err != nil {
		return Employee{}, res, err
	}
	s.notify(ctx, MsgEmployeeAdded, created.ID)
	return created, res, nil
}

// Update replaces the non-identity fields of id. A missing id is a no-op
// reported through found=false.
func (s *RecordStore) Update(ctx context.Context, id string, fields EmployeeFields) (Employee, bool, Result, error) {
	var (
		updated Employee
		found   bool
	)
	res, err := s.RunInTransaction(ctx, func(tx *Transaction) error {
		updated, found = tx.Update(id, fields)
		return nil
	})
	if err != nil || !found {
		return Employee{}, found, res, err
	}
	s.notify(ctx, MsgEmployeeUpdated, id)
	return updated, true, res, nil
}

// Remove deletes id. A missing id is a no-op reported through found=false.
func (s *RecordStore) Remove(ctx context.Context, id string) (bool, Result, error) {
	var found bool
	res, err := s.RunInTransaction(ctx, func(tx *Transaction) error {
		found = tx.Delete(id)
		return nil
	})
	if err != nil || !found {
		return found, res, err
	}
	s.notify(ctx, MsgEmployeeDeleted, id)
	return true, res, nil
}

func (s *RecordStore) notify(ctx context.Context, msg, id string) {
	s.notifier.Notify(ctx, Notification{Level: NotifySuccess, Message: msg, EntityID: id})
}

// List returns a copy of the ordered collection.
func (s *RecordStore) List() []Employee {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Employee, len(s.employees))
	copy(out, s.employees)
	return out
}

// Get returns the employee with id.
func (s *RecordStore) Get(id string) (Employee, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.employees {
		if e.ID == id {
			return e, true
		}
	}
	return Employee{}, false
}

// Storage returns the durable storage backing the store.
func (s *RecordStore) Storage() DurableStorage {
	return s.storage
}
