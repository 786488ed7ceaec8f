package models

import "time"

// Session statuses.
const (
	SessionActive = "active"
	SessionEnded  = "ended"
)

// AttendanceSession is a teacher-owned session stored at users/<teacherUid>/sessions/<id>.
type AttendanceSession struct {
	ID            string   `json:"id"`
	ClassID       string   `json:"classId"`
	ClassName     string   `json:"className"`
	TeacherID     string   `json:"teacherId"`
	Duration      int      `json:"duration"`
	DurationUnit  string   `json:"durationUnit"`
	StartTime     string   `json:"startTime"`
	EndTime       string   `json:"endTime,omitempty"`
	CreatedAt     string   `json:"createdAt"`
	Status        string   `json:"status"`
	TotalStudents int      `json:"totalStudents"`
	TotalPresent  int      `json:"totalPresent"`
	TotalAbsent   int      `json:"totalAbsent"`
	ClassroomLat  *float64 `json:"classroomLat,omitempty"`
	ClassroomLon  *float64 `json:"classroomLon,omitempty"`
}

// Length returns the configured session length; "hrs" counts hours, anything else minutes.
func (s *AttendanceSession) Length() time.Duration {
	d := time.Duration(s.Duration) * time.Minute
	if s.DurationUnit == "hrs" {
		d *= 60
	}
	return d
}

func (s *AttendanceSession) Fields() Fields {
	m := Fields{
		"classId":       s.ClassID,
		"className":     s.ClassName,
		"teacherId":     s.TeacherID,
		"duration":      s.Duration,
		"durationUnit":  s.DurationUnit,
		"startTime":     s.StartTime,
		"createdAt":     s.CreatedAt,
		"status":        s.Status,
		"totalStudents": s.TotalStudents,
		"totalPresent":  s.TotalPresent,
		"totalAbsent":   s.TotalAbsent,
	}
	if s.EndTime != "" {
		m["endTime"] = s.EndTime
	}
	if s.ClassroomLat != nil && s.ClassroomLon != nil {
		m["classroomLat"] = *s.ClassroomLat
		m["classroomLon"] = *s.ClassroomLon
	}
	return m
}

func SessionFromFields(id string, m Fields) *AttendanceSession {
	return &AttendanceSession{
		ID:            id,
		ClassID:       getString(m, "classId"),
		ClassName:     getString(m, "className"),
		TeacherID:     getString(m, "teacherId"),
		Duration:      getInt(m, "duration"),
		DurationUnit:  getString(m, "durationUnit"),
		StartTime:     getString(m, "startTime"),
		EndTime:       getString(m, "endTime"),
		CreatedAt:     getString(m, "createdAt"),
		Status:        getString(m, "status"),
		TotalStudents: getInt(m, "totalStudents"),
		TotalPresent:  getInt(m, "totalPresent"),
		TotalAbsent:   getInt(m, "totalAbsent"),
		ClassroomLat:  getFloatPtr(m, "classroomLat"),
		ClassroomLon:  getFloatPtr(m, "classroomLon"),
	}
}

// AttendanceRecord is stored at public/data/attendanceRecords/<id>.
type AttendanceRecord struct {
	ID                  string  `json:"id"`
	SessionID           string  `json:"sessionId"`
	ClassID             string  `json:"classId"`
	ClassName           string  `json:"className"`
	TeacherID           string  `json:"teacherId"`
	StudentID           string  `json:"studentId"`
	StudentName         string  `json:"studentName"`
	StudentRollNo       string  `json:"studentRollNo"`
	Timestamp           string  `json:"timestamp"`
	Status              string  `json:"status"`
	VerifiedLatitude    float64 `json:"verifiedLatitude"`
	VerifiedLongitude   float64 `json:"verifiedLongitude"`
	FaceMatchConfidence float64 `json:"faceMatchConfidence"`
	IPAddress           string  `json:"ipAddress"`
	QRTimestamp         string  `json:"qrTimestamp"`
	DistanceMeters      float64 `json:"distanceMeters"`
}

func (r *AttendanceRecord) Fields() Fields {
	return Fields{
		"sessionId":           r.SessionID,
		"classId":             r.ClassID,
		"className":           r.ClassName,
		"teacherId":           r.TeacherID,
		"studentId":           r.StudentID,
		"studentName":         r.StudentName,
		"studentRollNo":       r.StudentRollNo,
		"timestamp":           r.Timestamp,
		"status":              r.Status,
		"verifiedLatitude":    r.VerifiedLatitude,
		"verifiedLongitude":   r.VerifiedLongitude,
		"faceMatchConfidence": r.FaceMatchConfidence,
		"ipAddress":           r.IPAddress,
		"qrTimestamp":         r.QRTimestamp,
		"distanceMeters":      r.DistanceMeters,
	}
}

func RecordFromFields(id string, m Fields) *AttendanceRecord {
	return &AttendanceRecord{
		ID:                  id,
		SessionID:           getString(m, "sessionId"),
		ClassID:             getString(m, "classId"),
		ClassName:           getString(m, "className"),
		TeacherID:           getString(m, "teacherId"),
		StudentID:           getString(m, "studentId"),
		StudentName:         getString(m, "studentName"),
		StudentRollNo:       getString(m, "studentRollNo"),
		Timestamp:           getString(m, "timestamp"),
		Status:              getString(m, "status"),
		VerifiedLatitude:    getFloat(m, "verifiedLatitude"),
		VerifiedLongitude:   getFloat(m, "verifiedLongitude"),
		FaceMatchConfidence: getFloat(m, "faceMatchConfidence"),
		IPAddress:           getString(m, "ipAddress"),
		QRTimestamp:         getString(m, "qrTimestamp"),
		DistanceMeters:      getFloat(m, "distanceMeters"),
	}
}
