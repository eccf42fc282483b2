package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/example/qr-pointage/internal/attendance"
	"github.com/example/qr-pointage/internal/geofence"
	"github.com/example/qr-pointage/internal/persistence"
	"github.com/example/qr-pointage/internal/scan"
)

// MaxCommentLength bounds record comments, in characters.
const MaxCommentLength = 500

// MaxHistoryDays bounds History requests.
const MaxHistoryDays = 366

// RecordRepository captures the record store operations needed by the attendance service.
type RecordRepository interface {
	GetRecordForDay(ctx context.Context, userID string, date attendance.Date) (Record, error)
	GetRecord(ctx context.Context, id string) (Record, error)
	ListRecordsByUser(ctx context.Context, userID string, query RecordQuery) ([]Record, error)
	InsertRecord(ctx context.Context, record Record) (Record, error)
	UpdateRecord(ctx context.Context, id string, patch RecordPatch) (Record, error)
}

// RoleResolver reports the current role of a user.
type RoleResolver interface {
	RoleOf(ctx context.Context, userID string) (Role, error)
}

// PayloadDecoder validates raw QR strings.
type PayloadDecoder interface {
	Decode(raw string) (scan.Payload, error)
}

// MaxClientSkew is the clock difference between a scan payload timestamp and
// the server above which the scan is logged as a warning. The server clock
// always decides the recorded times.
const MaxClientSkew = 2 * time.Minute

// AttendanceSettings tunes the attendance service.
type AttendanceSettings struct {
	// Location is the business time zone that decides the calendar day of a scan.
	Location        *time.Location
	Zone            geofence.Zone
	GeofenceEnabled bool
	// StoreTimeout bounds every record store call; zero disables the bound.
	StoreTimeout time.Duration
	HistoryDays  int
	// CacheTTL enables listing caching when positive.
	CacheTTL time.Duration
}

// AttendanceService processes scans and manages the review of attendance records.
type AttendanceService struct {
	records      RecordRepository
	roles        RoleResolver
	decoder      PayloadDecoder
	idGenerator  func() string
	now          func() time.Time
	location     *time.Location
	zone         geofence.Zone
	geofence     bool
	storeTimeout time.Duration
	historyDays  int
	cache        *recordCache
	logger       *slog.Logger
}

// NewAttendanceService constructs an attendance service with the provided dependencies.
func NewAttendanceService(records RecordRepository, roles RoleResolver, decoder PayloadDecoder, idGenerator func() string, now func() time.Time, settings AttendanceSettings) *AttendanceService {
	return NewAttendanceServiceWithLogger(records, roles, decoder, idGenerator, now, settings, nil)
}

// NewAttendanceServiceWithLogger constructs an attendance service with a specified logger.
func NewAttendanceServiceWithLogger(records RecordRepository, roles RoleResolver, decoder PayloadDecoder, idGenerator func() string, now func() time.Time, settings AttendanceSettings, logger *slog.Logger) *AttendanceService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	if settings.Location == nil {
		settings.Location = time.UTC
	}
	if settings.HistoryDays <= 0 {
		settings.HistoryDays = 7
	}
	svc := &AttendanceService{
		records:      records,
		roles:        roles,
		decoder:      decoder,
		idGenerator:  idGenerator,
		now:          now,
		location:     settings.Location,
		zone:         geofence.NewZone(settings.Zone.Center, settings.Zone.Tolerance),
		geofence:     settings.GeofenceEnabled,
		storeTimeout: settings.StoreTimeout,
		historyDays:  settings.HistoryDays,
		logger:       defaultLogger(logger),
	}
	if settings.CacheTTL > 0 {
		svc.cache = newRecordCache(settings.CacheTTL, 0, now)
	}
	return svc
}

func (s *AttendanceService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "AttendanceService", operation, attrs...)
}

func (s *AttendanceService) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.storeTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.storeTimeout)
}

func (s *AttendanceService) today() attendance.Date {
	return attendance.DateOf(s.now(), s.location)
}

// Scan registers an entry or exit for the principal from a decoded QR string.
func (s *AttendanceService) Scan(ctx context.Context, params ScanParams) (result ScanResult, err error) {
	if s == nil {
		err = fmt.Errorf("AttendanceService is nil")
		return
	}
	if s.records == nil || s.decoder == nil {
		err = fmt.Errorf("attendance service not configured")
		return
	}

	logger := s.loggerWith(ctx, "Scan", "principal_id", params.Principal.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "scan rejected", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With(
			"record_id", result.Record.ID,
			"status", result.Record.Status,
			"checked_in", result.CheckedIn,
		).InfoContext(ctx, "scan recorded")
	}()

	if params.Principal.UserID == "" {
		err = ErrUnauthorized
		return
	}

	var payload scan.Payload
	payload, err = s.decoder.Decode(params.Payload)
	if err != nil {
		if errors.Is(err, scan.ErrInvalidPayload) {
			err = fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		return
	}

	if err = s.checkLocation(params.Location); err != nil {
		return
	}

	now := s.now()
	today := attendance.DateOf(now, s.location)
	if payload.Timestamp != nil {
		skew := now.Sub(*payload.Timestamp)
		logger = logger.With("client_skew", skew.String())
		if skew > MaxClientSkew || skew < -MaxClientSkew {
			logger.WarnContext(ctx, "scan payload clock differs from server clock", "client_timestamp", payload.Timestamp.UTC())
		}
	}

	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()

	var current *Record
	existing, getErr := s.records.GetRecordForDay(storeCtx, params.Principal.UserID, today)
	switch {
	case getErr == nil:
		current = &existing
	case isNotFound(getErr):
	default:
		err = mapRecordRepoError(getErr)
		return
	}

	var transition attendance.Transition
	transition, err = attendance.NextTransition(attendance.StateOf(current), payload.Kind)
	if err != nil {
		err = mapTransitionError(err)
		return
	}

	var record Record
	switch transition {
	case attendance.TransitionEntry:
		record, err = s.records.InsertRecord(storeCtx, Record{
			ID:        s.idGenerator(),
			UserID:    params.Principal.UserID,
			Date:      today,
			EntryTime: &now,
			Status:    transition.Status(),
			Location:  params.Location,
			Site:      payload.Site,
			CreatedAt: now,
			UpdatedAt: now,
		})
	case attendance.TransitionExit:
		if !now.After(*current.EntryTime) {
			err = fieldError("exit_time", "exit time must be after entry time")
			return
		}
		status := transition.Status()
		record, err = s.records.UpdateRecord(storeCtx, current.ID, RecordPatch{
			ExitTime:  &now,
			Status:    &status,
			UpdatedAt: now,
		})
	}
	if err != nil {
		err = mapRecordRepoError(err)
		return
	}

	s.cache.InvalidateUser(params.Principal.UserID)
	result = ScanResult{
		Record:     record,
		Transition: transition,
		CheckedIn:  record.Open(),
	}
	return
}

// CheckZone reports whether point lies inside the authorized zone. The
// mobile client calls it before opening the camera.
func (s *AttendanceService) CheckZone(ctx context.Context, point *geofence.Point) (ZoneCheck, error) {
	if s == nil {
		return ZoneCheck{}, fmt.Errorf("AttendanceService is nil")
	}
	check := ZoneCheck{Enabled: s.geofence, Zone: s.zone}
	err := s.checkLocation(point)
	switch {
	case err == nil:
		check.Inside = true
	case errors.Is(err, ErrOutOfZone):
	default:
		return ZoneCheck{}, err
	}
	s.loggerWith(ctx, "CheckZone").DebugContext(ctx, "zone checked", "inside", check.Inside, "enabled", check.Enabled)
	return check, nil
}

func (s *AttendanceService) checkLocation(point *geofence.Point) error {
	if point != nil && !point.Valid() {
		return fieldError("location", "coordinates are out of range")
	}
	if !s.geofence {
		return nil
	}
	if point == nil {
		return ErrPermissionDenied
	}
	if !s.zone.Contains(*point) {
		return ErrOutOfZone
	}
	return nil
}

// TodayStatus derives the principal's status for the current business day.
func (s *AttendanceService) TodayStatus(ctx context.Context, principal Principal) (status TodayStatus, err error) {
	if s == nil {
		err = fmt.Errorf("AttendanceService is nil")
		return
	}
	if principal.UserID == "" {
		err = ErrUnauthorized
		return
	}

	today := s.today()
	var records []Record
	records, err = s.list(ctx, principal.UserID, RecordQuery{Filter: RecordFilterAll, Since: today})
	if err != nil {
		s.loggerWith(ctx, "TodayStatus", "principal_id", principal.UserID).
			ErrorContext(ctx, "failed to derive status", "error", err, "error_kind", ErrorKind(err))
		return
	}

	status = TodayStatus{
		Date:      today,
		Status:    attendance.DeriveTodayStatus(records, today),
		CheckedIn: attendance.IsCurrentlyCheckedIn(records, today),
	}
	if record, ok := attendance.RecordForDay(records, today); ok {
		status.Record = &record
	}
	return
}

// ListRecords lists records of the principal, or of another user for managers.
func (s *AttendanceService) ListRecords(ctx context.Context, params ListRecordsParams) (records []Record, err error) {
	if s == nil {
		err = fmt.Errorf("AttendanceService is nil")
		return
	}

	target := strings.TrimSpace(params.UserID)
	if target == "" {
		target = params.Principal.UserID
	}

	logger := s.loggerWith(ctx, "ListRecords",
		"principal_id", params.Principal.UserID,
		"user_id", target,
		"filter", params.Filter,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to list records", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("count", len(records)).DebugContext(ctx, "records listed")
	}()

	if params.Principal.UserID == "" {
		err = ErrUnauthorized
		return
	}
	if target != params.Principal.UserID {
		var manager bool
		if manager, err = s.isManager(ctx, params.Principal); err != nil {
			return
		}
		if !manager {
			err = ErrUnauthorized
			return
		}
	}

	filter := params.Filter
	if filter == "" {
		filter = RecordFilterAll
	}
	if _, parseErr := ParseRecordFilter(string(filter)); parseErr != nil {
		err = fieldError("filter", "filter must be all, pending or validated")
		return
	}

	records, err = s.list(ctx, target, RecordQuery{Filter: filter, Since: params.Since})
	return
}

// History groups the principal's records of the last days by day, most
// recent first. A non positive days uses the configured default.
func (s *AttendanceService) History(ctx context.Context, principal Principal, days int) (history []attendance.Day, err error) {
	if s == nil {
		err = fmt.Errorf("AttendanceService is nil")
		return
	}
	if principal.UserID == "" {
		err = ErrUnauthorized
		return
	}
	if days <= 0 {
		days = s.historyDays
	}
	if days > MaxHistoryDays {
		err = fieldError("days", fmt.Sprintf("days must not exceed %d", MaxHistoryDays))
		return
	}

	since := s.today().AddDays(-(days - 1))
	var records []Record
	records, err = s.list(ctx, principal.UserID, RecordQuery{Filter: RecordFilterAll, Since: since})
	if err != nil {
		s.loggerWith(ctx, "History", "principal_id", principal.UserID).
			ErrorContext(ctx, "failed to load history", "error", err, "error_kind", ErrorKind(err))
		return
	}
	history = attendance.GroupByDay(records, days)
	return
}

// GetRecord returns a record to its owner or to a manager.
func (s *AttendanceService) GetRecord(ctx context.Context, principal Principal, id string) (Record, error) {
	if s == nil {
		return Record{}, fmt.Errorf("AttendanceService is nil")
	}
	record, err := s.loadVisible(ctx, principal, id)
	if err != nil {
		s.loggerWith(ctx, "GetRecord", "principal_id", principal.UserID, "record_id", id).
			ErrorContext(ctx, "failed to get record", "error", err, "error_kind", ErrorKind(err))
		return Record{}, err
	}
	return record, nil
}

// UpdateComment sets the comment of a record and marks it modified.
func (s *AttendanceService) UpdateComment(ctx context.Context, params UpdateCommentParams) (record Record, err error) {
	if s == nil {
		err = fmt.Errorf("AttendanceService is nil")
		return
	}

	logger := s.loggerWith(ctx, "UpdateComment",
		"principal_id", params.Principal.UserID,
		"record_id", params.RecordID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update comment", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "comment updated")
	}()

	comment := strings.TrimSpace(params.Comment)
	switch {
	case comment == "":
		err = fieldError("comment", "comment is required")
		return
	case utf8.RuneCountInString(comment) > MaxCommentLength:
		err = fieldError("comment", fmt.Sprintf("comment must be at most %d characters", MaxCommentLength))
		return
	}

	var current Record
	if current, err = s.loadVisible(ctx, params.Principal, params.RecordID); err != nil {
		return
	}
	if current.Status == attendance.StatusValidated {
		err = ErrAlreadyValidated
		return
	}

	status := attendance.StatusModified
	record, err = s.update(ctx, current, RecordPatch{
		Comment:   &comment,
		Status:    &status,
		UpdatedAt: s.now(),
	})
	return
}

// SubmitRecord moves a closed record of the principal to pending validation.
func (s *AttendanceService) SubmitRecord(ctx context.Context, principal Principal, id string) (record Record, err error) {
	if s == nil {
		err = fmt.Errorf("AttendanceService is nil")
		return
	}

	logger := s.loggerWith(ctx, "SubmitRecord", "principal_id", principal.UserID, "record_id", id)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to submit record", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "record submitted")
	}()

	var current Record
	if current, err = s.loadVisible(ctx, principal, id); err != nil {
		return
	}
	switch {
	case current.UserID != principal.UserID:
		err = ErrUnauthorized
		return
	case current.Status == attendance.StatusValidated:
		err = ErrAlreadyValidated
		return
	case !current.Closed():
		err = ErrRecordOpen
		return
	case current.Status == attendance.StatusPending:
		record = current
		return
	}

	status := attendance.StatusPending
	record, err = s.update(ctx, current, RecordPatch{Status: &status, UpdatedAt: s.now()})
	return
}

// ValidateRecord marks a closed record as validated by the principal, who
// must currently hold the manager role.
func (s *AttendanceService) ValidateRecord(ctx context.Context, principal Principal, id string) (record Record, err error) {
	if s == nil {
		err = fmt.Errorf("AttendanceService is nil")
		return
	}

	logger := s.loggerWith(ctx, "ValidateRecord", "principal_id", principal.UserID, "record_id", id)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to validate record", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("user_id", record.UserID).InfoContext(ctx, "record validated")
	}()

	var manager bool
	if manager, err = s.isManager(ctx, principal); err != nil {
		return
	}
	if !manager {
		err = ErrUnauthorized
		return
	}

	var current Record
	if current, err = s.load(ctx, id); err != nil {
		return
	}
	if current.Status == attendance.StatusValidated {
		err = ErrAlreadyValidated
		return
	}
	if !current.Closed() {
		err = ErrRecordOpen
		return
	}

	now := s.now()
	status := attendance.StatusValidated
	validator := principal.UserID
	record, err = s.update(ctx, current, RecordPatch{
		Status:      &status,
		ValidatedBy: &validator,
		ValidatedAt: &now,
		UpdatedAt:   now,
	})
	return
}

func (s *AttendanceService) isManager(ctx context.Context, principal Principal) (bool, error) {
	if principal.UserID == "" {
		return false, nil
	}
	if s.roles == nil {
		return principal.IsManager(), nil
	}
	role, err := s.roles.RoleOf(ctx, principal.UserID)
	if err != nil {
		if isNotFound(err) {
			return false, ErrUnauthorized
		}
		return false, err
	}
	return role == RoleManager, nil
}

func (s *AttendanceService) load(ctx context.Context, id string) (Record, error) {
	if s.records == nil {
		return Record{}, fmt.Errorf("record repository not configured")
	}
	if strings.TrimSpace(id) == "" {
		return Record{}, ErrNotFound
	}
	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()

	record, err := s.records.GetRecord(storeCtx, id)
	if err != nil {
		return Record{}, mapRecordRepoError(err)
	}
	return record, nil
}

// loadVisible loads a record the principal owns or, for managers, any record.
func (s *AttendanceService) loadVisible(ctx context.Context, principal Principal, id string) (Record, error) {
	if principal.UserID == "" {
		return Record{}, ErrUnauthorized
	}
	record, err := s.load(ctx, id)
	if err != nil {
		return Record{}, err
	}
	if record.UserID == principal.UserID {
		return record, nil
	}
	manager, err := s.isManager(ctx, principal)
	if err != nil {
		return Record{}, err
	}
	if !manager {
		return Record{}, ErrUnauthorized
	}
	return record, nil
}

func (s *AttendanceService) update(ctx context.Context, current Record, patch RecordPatch) (Record, error) {
	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()

	record, err := s.records.UpdateRecord(storeCtx, current.ID, patch)
	if err != nil {
		return Record{}, mapRecordRepoError(err)
	}
	s.cache.InvalidateUser(current.UserID)
	return record, nil
}

func (s *AttendanceService) list(ctx context.Context, userID string, query RecordQuery) ([]Record, error) {
	if s.records == nil {
		return nil, fmt.Errorf("record repository not configured")
	}

	key := recordCacheKey(userID, query)
	if cached, ok := s.cache.Get(key); ok {
		return cached, nil
	}

	generation := s.cache.Generation(userID)
	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()

	records, err := s.records.ListRecordsByUser(storeCtx, userID, query)
	if err != nil {
		return nil, mapRecordRepoError(err)
	}
	attendance.SortByDateDesc(records)
	s.cache.Store(key, userID, generation, records)
	return records, nil
}

func mapTransitionError(err error) error {
	switch {
	case errors.Is(err, attendance.ErrDayClosed):
		return fmt.Errorf("%w: %v", ErrAlreadyClosed, err)
	case errors.Is(err, attendance.ErrAlreadyCheckedIn):
		return fmt.Errorf("%w: %v", ErrAlreadyExists, err)
	case errors.Is(err, attendance.ErrNotCheckedIn):
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return err
}

func mapRecordRepoError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound), errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, ErrAlreadyExists), errors.Is(err, persistence.ErrDuplicate):
		return ErrAlreadyExists
	case errors.Is(err, persistence.ErrForeignKeyViolation):
		return ErrUnauthorized
	case errors.Is(err, persistence.ErrConstraintViolation):
		return fieldError("record", "record violates a storage constraint")
	}
	return err
}
