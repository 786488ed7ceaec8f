package store

import (
	"strings"
)

// Collections and documents used by the service.
const (
	PublicProfilesCollection    = "public/data/allUserProfiles"
	AttendanceRecordsCollection = "public/data/attendanceRecords"
	privateProfileDoc           = "userProfile"
)

// PrivateProfilePath is the owner-only profile copy.
func PrivateProfilePath(uid string) string {
	return "users/" + uid + "/profile/" + privateProfileDoc
}

// PublicProfilePath is the administrator-readable mirror.
func PublicProfilePath(uid string) string {
	return PublicProfilesCollection + "/" + uid
}

func NotificationsCollection(uid string) string {
	return "users/" + uid + "/notifications"
}

func NotificationPath(uid, id string) string {
	return NotificationsCollection(uid) + "/" + id
}

func SessionsCollection(teacherUID string) string {
	return "users/" + teacherUID + "/sessions"
}

func SessionPath(teacherUID, id string) string {
	return SessionsCollection(teacherUID) + "/" + id
}

// ClassesCollection holds the classes a teacher manages.
func ClassesCollection(teacherUID string) string {
	return "users/" + teacherUID + "/classes"
}

func ClassPath(teacherUID, id string) string {
	return ClassesCollection(teacherUID) + "/" + id
}

func AttendanceRecordPath(id string) string {
	return AttendanceRecordsCollection + "/" + id
}

// SplitPath returns the parent collection and id of a document path.
func SplitPath(path string) (collection, id string, err error) {
	segs := strings.Split(strings.Trim(path, "/"), "/")
	if len(segs) < 2 || len(segs)%2 != 0 {
		return "", "", ErrInvalidPath
	}
	for _, s := range segs {
		if s == "" {
			return "", "", ErrInvalidPath
		}
	}
	return strings.Join(segs[:len(segs)-1], "/"), segs[len(segs)-1], nil
}

func validCollection(collection string) bool {
	segs := strings.Split(strings.Trim(collection, "/"), "/")
	if len(segs)%2 != 1 {
		return false
	}
	for _, s := range segs {
		if s == "" {
			return false
		}
	}
	return true
}

func cleanPath(p string) string { return strings.Trim(p, "/") }
