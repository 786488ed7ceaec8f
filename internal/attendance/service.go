package attendance

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/presensync/presensync/backend/go-services/internal/config"
	"github.com/presensync/presensync/backend/go-services/internal/models"
	"github.com/presensync/presensync/backend/go-services/internal/store"
	"github.com/presensync/presensync/backend/go-services/pkg/logger"
	"github.com/presensync/presensync/backend/go-services/pkg/metrics"
)

var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrSessionNotActive = errors.New("session is not active")
	ErrNotStarted       = errors.New("session has not started yet")
	ErrEnded            = errors.New("session has ended")
	ErrQRExpired        = errors.New("QR code expired")
	ErrBadTimestamp     = errors.New("invalid QR timestamp")
	ErrAlreadyMarked    = errors.New("attendance already marked for this session")
	ErrInvalidSession   = errors.New("invalid session")
)

const defaultDurationMinutes = 60

// NewSession is a teacher's request to open an attendance session for one
// of their classes.
type NewSession struct {
	ClassID      string   `json:"classId" binding:"required"`
	Duration     int      `json:"duration" binding:"required,gt=0"`
	DurationUnit string   `json:"durationUnit" binding:"omitempty,oneof=min hrs"`
	StartTime    string   `json:"startTime"`
	ClassroomLat *float64 `json:"classroomLat"`
	ClassroomLon *float64 `json:"classroomLon"`
}

// QRPayload is what the teacher's screen encodes into the QR code.
type QRPayload struct {
	SessionID    string   `json:"sessionId"`
	Timestamp    int64    `json:"timestamp"`
	ClassID      string   `json:"classId"`
	ClassName    string   `json:"className"`
	TeacherID    string   `json:"teacherId"`
	ClassroomLat *float64 `json:"classroomLat"`
	ClassroomLon *float64 `json:"classroomLon"`
}

// MarkRequest is a student's scan of a QR code.
type MarkRequest struct {
	SessionID           string  `json:"sessionId" binding:"required"`
	Timestamp           string  `json:"timestamp" binding:"required"`
	Latitude            float64 `json:"latitude"`
	Longitude           float64 `json:"longitude"`
	FaceMatchConfidence float64 `json:"faceMatchConfidence"`
	IPAddress           string  `json:"ipAddress"`
	ClassID             string  `json:"classId"`
	ClassName           string  `json:"className"`
	TeacherID           string  `json:"teacherId" binding:"required"`
}

// MarkResult is the stored record plus the non-fatal checks.
type MarkResult struct {
	Record   *models.AttendanceRecord `json:"record"`
	Warnings []string                 `json:"warnings,omitempty"`
}

type Service struct {
	store store.Store
	cfg   config.AttendanceConfig
	now   func() time.Time
}

func NewService(s store.Store, cfg config.AttendanceConfig) *Service {
	if cfg.QRLiveness <= 0 {
		cfg.QRLiveness = 300 * time.Second
	}
	if cfg.SessionGrace <= 0 {
		cfg.SessionGrace = 5 * time.Minute
	}
	if cfg.GPSRadiusMeters <= 0 {
		cfg.GPSRadiusMeters = 200
	}
	return &Service{store: s, cfg: cfg, now: time.Now}
}

// CreateSession opens an active session owned by teacherUID and returns it
// together with the initial QR payload. The class must belong to the teacher;
// its roster size is the session's student total.
func (s *Service) CreateSession(ctx context.Context, teacherUID string, req NewSession) (*models.AttendanceSession, *QRPayload, error) {
	if req.Duration <= 0 || req.ClassID == "" {
		return nil, nil, ErrInvalidSession
	}
	if req.DurationUnit == "" {
		req.DurationUnit = "min"
	}
	if (req.ClassroomLat == nil) != (req.ClassroomLon == nil) {
		return nil, nil, fmt.Errorf("%w: classroom coordinates need both lat and lon", ErrInvalidSession)
	}
	now := s.now()
	start := now
	if req.StartTime != "" {
		t, err := models.ParseTimestamp(req.StartTime)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: start time: %v", ErrInvalidSession, err)
		}
		start = t
	}
	class, err := s.GetClass(ctx, teacherUID, req.ClassID)
	if err != nil {
		return nil, nil, err
	}
	total := len(class.Students)
	sess := &models.AttendanceSession{
		ID:            uuid.NewString(),
		ClassID:       class.ID,
		ClassName:     class.Name,
		TeacherID:     teacherUID,
		Duration:      req.Duration,
		DurationUnit:  req.DurationUnit,
		StartTime:     models.Timestamp(start),
		CreatedAt:     models.Timestamp(now),
		Status:        models.SessionActive,
		TotalStudents: total,
		TotalAbsent:   total,
		ClassroomLat:  req.ClassroomLat,
		ClassroomLon:  req.ClassroomLon,
	}
	if err := s.store.Set(ctx, store.SessionPath(teacherUID, sess.ID), sess.Fields(), false); err != nil {
		return nil, nil, fmt.Errorf("create session: %w", err)
	}
	logger.Infof("attendance: session %s opened by %s for class %s", sess.ID, teacherUID, sess.ClassID)
	return sess, s.payload(sess, now), nil
}

func (s *Service) payload(sess *models.AttendanceSession, at time.Time) *QRPayload {
	return &QRPayload{
		SessionID:    sess.ID,
		Timestamp:    at.UnixMilli(),
		ClassID:      sess.ClassID,
		ClassName:    sess.ClassName,
		TeacherID:    sess.TeacherID,
		ClassroomLat: sess.ClassroomLat,
		ClassroomLon: sess.ClassroomLon,
	}
}

// GetSession loads a session of teacherUID.
func (s *Service) GetSession(ctx context.Context, teacherUID, id string) (*models.AttendanceSession, error) {
	data, err := s.store.Get(ctx, store.SessionPath(teacherUID, id))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return models.SessionFromFields(id, data), nil
}

// RefreshQR issues a fresh QR payload for an active session.
func (s *Service) RefreshQR(ctx context.Context, teacherUID, id string) (*QRPayload, error) {
	sess, err := s.GetSession(ctx, teacherUID, id)
	if err != nil {
		return nil, err
	}
	if sess.Status != models.SessionActive {
		return nil, ErrSessionNotActive
	}
	return s.payload(sess, s.now()), nil
}

// ListSessions returns the sessions of teacherUID, most recent first.
func (s *Service) ListSessions(ctx context.Context, teacherUID string) ([]*models.AttendanceSession, error) {
	docs, err := s.store.List(ctx, store.SessionsCollection(teacherUID), nil)
	if err != nil {
		return nil, err
	}
	out := make([]*models.AttendanceSession, 0, len(docs))
	for _, d := range docs {
		out = append(out, models.SessionFromFields(d.ID, d.Data))
	}
	sortSessions(out)
	return out, nil
}

// EndSession closes the session and stores the final attendance totals.
func (s *Service) EndSession(ctx context.Context, teacherUID, id string) (*models.AttendanceSession, error) {
	sess, err := s.GetSession(ctx, teacherUID, id)
	if err != nil {
		return nil, err
	}
	records, err := s.SessionRecords(ctx, id)
	if err != nil {
		return nil, err
	}
	sess.Status = models.SessionEnded
	sess.EndTime = models.Timestamp(s.now())
	sess.TotalPresent = len(records)
	sess.TotalAbsent = sess.TotalStudents - sess.TotalPresent
	if sess.TotalAbsent < 0 {
		sess.TotalAbsent = 0
	}
	err = s.store.Update(ctx, store.SessionPath(teacherUID, id), models.Fields{
		"status":       sess.Status,
		"endTime":      sess.EndTime,
		"totalPresent": sess.TotalPresent,
		"totalAbsent":  sess.TotalAbsent,
	})
	if err != nil {
		return nil, fmt.Errorf("end session: %w", err)
	}
	logger.Infof("attendance: session %s ended, %d present", id, sess.TotalPresent)
	return sess, nil
}

// SessionRecords returns every attendance record of a session.
func (s *Service) SessionRecords(ctx context.Context, sessionID string) ([]*models.AttendanceRecord, error) {
	return s.records(ctx, store.Filter{"sessionId": sessionID})
}

// StudentRecords returns every attendance record of a student.
func (s *Service) StudentRecords(ctx context.Context, studentID string) ([]*models.AttendanceRecord, error) {
	return s.records(ctx, store.Filter{"studentId": studentID})
}

func (s *Service) records(ctx context.Context, f store.Filter) ([]*models.AttendanceRecord, error) {
	docs, err := s.store.List(ctx, store.AttendanceRecordsCollection, f)
	if err != nil {
		return nil, err
	}
	out := make([]*models.AttendanceRecord, 0, len(docs))
	for _, d := range docs {
		out = append(out, models.RecordFromFields(d.ID, d.Data))
	}
	sortRecords(out)
	return out, nil
}

// RecordID is the id of a student's record in a session; one record per pair.
func RecordID(sessionID, studentID string) string {
	return sessionID + "_" + studentID
}

// parseQRTimestamp accepts RFC 3339 strings and epoch milliseconds.
func parseQRTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms), nil
	}
	t, err := models.ParseTimestamp(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrBadTimestamp, s)
	}
	return t, nil
}

// Mark records the attendance of student for the scanned session. The QR
// code must be fresh, the session active and within its time window, and
// the student not yet marked. Being far from the classroom is only a warning.
func (s *Service) Mark(ctx context.Context, student *models.UserProfile, req MarkRequest) (*MarkResult, error) {
	res, err := s.mark(ctx, student, req)
	result := "ok"
	if err != nil {
		result = "rejected"
	}
	metrics.AttendanceMarks.WithLabelValues(result).Inc()
	return res, err
}

func (s *Service) mark(ctx context.Context, student *models.UserProfile, req MarkRequest) (*MarkResult, error) {
	now := s.now()
	qrAt, err := parseQRTimestamp(req.Timestamp)
	if err != nil {
		return nil, err
	}
	if age := now.Sub(qrAt); age > s.cfg.QRLiveness {
		return nil, fmt.Errorf("%w: %.1f seconds old", ErrQRExpired, age.Seconds())
	}

	sess, err := s.GetSession(ctx, req.TeacherID, req.SessionID)
	if err != nil {
		return nil, err
	}
	if sess.Status != models.SessionActive {
		return nil, fmt.Errorf("%w: status %q", ErrSessionNotActive, sess.Status)
	}
	start, err := models.ParseTimestamp(sess.StartTime)
	if err != nil {
		return nil, fmt.Errorf("%w: start time %q", ErrInvalidSession, sess.StartTime)
	}
	length := sess.Length()
	if sess.Duration <= 0 {
		length = defaultDurationMinutes * time.Minute
	}
	end := start.Add(length)
	if now.Before(start.Add(-s.cfg.SessionGrace)) {
		return nil, ErrNotStarted
	}
	if now.After(end.Add(s.cfg.SessionGrace)) {
		return nil, ErrEnded
	}

	out := &MarkResult{}
	var distance float64
	if sess.ClassroomLat != nil && sess.ClassroomLon != nil {
		distance = Haversine(*sess.ClassroomLat, *sess.ClassroomLon, req.Latitude, req.Longitude)
		if distance > s.cfg.GPSRadiusMeters {
			logger.Warnf("attendance: student %s is %.2fm from classroom of session %s", student.UID, distance, sess.ID)
			out.Warnings = append(out.Warnings, fmt.Sprintf("outside classroom range: %.0fm", distance))
		}
	} else {
		logger.Warnf("attendance: session %s has no classroom coordinates, skipping GPS check", sess.ID)
	}

	name := student.FullName
	if name == "" {
		name = "Unknown Student"
	}
	rollNo := student.RollNo
	if rollNo == "" {
		rollNo = "N/A"
	}
	classID, className := req.ClassID, req.ClassName
	if classID == "" {
		classID = sess.ClassID
	}
	if className == "" {
		className = sess.ClassName
	}
	rec := &models.AttendanceRecord{
		ID:                  RecordID(sess.ID, student.UID),
		SessionID:           sess.ID,
		ClassID:             classID,
		ClassName:           className,
		TeacherID:           sess.TeacherID,
		StudentID:           student.UID,
		StudentName:         name,
		StudentRollNo:       rollNo,
		Timestamp:           models.Timestamp(now),
		Status:              "present",
		VerifiedLatitude:    req.Latitude,
		VerifiedLongitude:   req.Longitude,
		FaceMatchConfidence: req.FaceMatchConfidence,
		IPAddress:           req.IPAddress,
		QRTimestamp:         models.Timestamp(qrAt),
		DistanceMeters:      distance,
	}
	if err := s.store.Create(ctx, store.AttendanceRecordPath(rec.ID), rec.Fields()); err != nil {
		if errors.Is(err, store.ErrExists) {
			return nil, ErrAlreadyMarked
		}
		return nil, fmt.Errorf("create attendance record: %w", err)
	}
	logger.Infof("attendance: student %s marked present in session %s", student.UID, sess.ID)
	out.Record = rec
	return out, nil
}
