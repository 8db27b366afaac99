//go:build !integration

package use_cases

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ledgerdesk/internal/application/dto"
	portsout "ledgerdesk/internal/application/ports/out"
	valueobjects "ledgerdesk/internal/domain/value_objects"
	apperrors "ledgerdesk/internal/shared_kernel/errors"
)

type stubFactory struct {
	mu sync.Mutex

	createErr   error
	openErr     error
	closeErr    error
	ensureErr   error
	created     bool
	state       valueobjects.SchemaState
	stateErr    error
	applyErrs   map[string]error
	counts      map[string]int64
	countErrs   map[string]error
	atomic      bool
	onOpen      func(ctx context.Context)
	panicOnOpen bool

	calls       stubCalls
	openHandles int
}

type stubCalls struct {
	handlesCreated int
	opens          int
	closes         int
	ensureCalls    int
	stateCalls     int
	applied        []string
	applyAttempts  []string
	counted        []string
	maxOpenHandles int
}

func newStubFactory() *stubFactory {
	return &stubFactory{atomic: true}
}

func (f *stubFactory) CreateHandle(context.Context) (portsout.PersistenceHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls.handlesCreated++
	if f.createErr != nil {
		return nil, f.createErr
	}

	return &stubHandle{factory: f}, nil
}

func (f *stubFactory) Describe() portsout.PersistenceFactoryInfo {
	return portsout.PersistenceFactoryInfo{
		Provider:         "stub",
		Target:           "stub:0/ledgerdesk",
		AtomicMigrations: f.atomic,
	}
}

func (f *stubFactory) snapshot() stubCalls {
	f.mu.Lock()
	defer f.mu.Unlock()

	calls := f.calls
	calls.applied = append([]string(nil), f.calls.applied...)
	calls.applyAttempts = append([]string(nil), f.calls.applyAttempts...)
	calls.counted = append([]string(nil), f.calls.counted...)
	return calls
}

type stubHandle struct {
	factory *stubFactory
	opened  bool
}

func (h *stubHandle) Open(ctx context.Context) error {
	f := h.factory
	if f.onOpen != nil {
		f.onOpen(ctx)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.panicOnOpen {
		panic("driver exploded")
	}

	f.calls.opens++
	if f.openErr != nil {
		return f.openErr
	}

	h.opened = true
	f.openHandles++
	if f.openHandles > f.calls.maxOpenHandles {
		f.calls.maxOpenHandles = f.openHandles
	}

	return nil
}

func (h *stubHandle) Close() error {
	f := h.factory
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls.closes++
	if h.opened {
		h.opened = false
		f.openHandles--
	}

	return f.closeErr
}

func (h *stubHandle) EnsureSchemaCreated(context.Context) (bool, error) {
	f := h.factory
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls.ensureCalls++
	if f.ensureErr != nil {
		return false, f.ensureErr
	}

	return f.created, nil
}

func (h *stubHandle) PendingMigrations(context.Context) (valueobjects.SchemaState, error) {
	f := h.factory
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls.stateCalls++
	if f.stateErr != nil {
		return valueobjects.SchemaState{}, f.stateErr
	}

	state := f.state
	state.Pending = nil
	appliedSet := map[string]struct{}{}
	for _, id := range f.calls.applied {
		appliedSet[id] = struct{}{}
	}
	for _, migration := range f.state.Pending {
		if _, done := appliedSet[migration.String()]; !done {
			state.Pending = append(state.Pending, migration)
		}
	}

	return state, nil
}

func (h *stubHandle) ApplyMigration(_ context.Context, id string) error {
	f := h.factory
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls.applyAttempts = append(f.calls.applyAttempts, id)
	if err := f.applyErrs[id]; err != nil {
		return err
	}

	f.calls.applied = append(f.calls.applied, id)
	return nil
}

func (h *stubHandle) Count(_ context.Context, table string) (int64, error) {
	f := h.factory
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls.counted = append(f.calls.counted, table)
	if err := f.countErrs[table]; err != nil {
		return 0, err
	}

	return f.counts[table], nil
}

type recordedLog struct {
	level string
	msg   string
	err   error
}

type recordingLogger struct {
	mu      sync.Mutex
	entries []recordedLog
}

func (l *recordingLogger) Info(msg string, _ ...any) {
	l.record("info", msg, nil)
}

func (l *recordingLogger) Error(msg string, err error, _ ...any) {
	l.record("error", msg, err)
}

func (l *recordingLogger) Fatal(msg string, err error) {
	l.record("fatal", msg, err)
}

func (l *recordingLogger) Flush() error {
	return nil
}

func (l *recordingLogger) record(level, msg string, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = append(l.entries, recordedLog{level: level, msg: msg, err: err})
}

func (l *recordingLogger) messages(level string) []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	var messages []string
	for _, entry := range l.entries {
		if entry.level == level {
			messages = append(messages, entry.msg)
		}
	}

	return messages
}

type recordingObserver struct {
	mu       sync.Mutex
	stages   []valueobjects.BootstrapStage
	failed   []valueobjects.BootstrapStage
	states   []valueobjects.SchemaState
	outcomes []dto.BootstrapOutcome
}

func (o *recordingObserver) ObserveStage(stage valueobjects.BootstrapStage, _ time.Duration, appErr *apperrors.AppError) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.stages = append(o.stages, stage)
	if appErr != nil {
		o.failed = append(o.failed, stage)
	}
}

func (o *recordingObserver) ObserveSchemaState(state valueobjects.SchemaState) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.states = append(o.states, state)
}

func (o *recordingObserver) ObserveOutcome(outcome dto.BootstrapOutcome) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.outcomes = append(o.outcomes, outcome)
}

type fixedClock struct {
	now time.Time
}

func (c fixedClock) NowUTC() time.Time {
	return c.now
}

func pendingMigrations(names ...string) []valueobjects.MigrationID {
	migrations := make([]valueobjects.MigrationID, 0, len(names))
	for index, name := range names {
		migrations = append(migrations, valueobjects.NewMigrationID(uint(index+1), name))
	}

	return migrations
}

func migrationID(version uint, name string) string {
	return fmt.Sprintf("%04d_%s", version, name)
}
