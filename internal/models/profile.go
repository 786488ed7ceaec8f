package models

import "github.com/presensync/presensync/backend/go-services/internal/roles"

// UserProfile is the application-level record describing a user's role and
// attributes. It is stored twice: a private copy and a public mirror.
type UserProfile struct {
	UID            string    `json:"uid"`
	Email          string    `json:"email,omitempty"`
	FullName       string    `json:"fullName,omitempty"`
	DisplayName    string    `json:"displayName,omitempty"`
	Role           string    `json:"role,omitempty"`
	CreatedAt      string    `json:"createdAt,omitempty"`
	Phone          string    `json:"phone,omitempty"`
	Department     string    `json:"department,omitempty"`
	Subject        string    `json:"subject,omitempty"`
	EmployeeID     string    `json:"employeeId,omitempty"`
	RollNo         string    `json:"rollNo,omitempty"`
	Theme          string    `json:"theme,omitempty"`
	Notifications  *bool     `json:"notifications,omitempty"`
	FaceDescriptor []float64 `json:"faceDescriptor,omitempty"`
	PhotoKey       string    `json:"photoKey,omitempty"`
}

// ResolvedRole returns the profile role when it belongs to the closed set.
func (p *UserProfile) ResolvedRole() (roles.Role, bool) {
	if p == nil {
		return "", false
	}
	return roles.Parse(p.Role)
}

// Fields returns the non-empty fields of the profile. Absent values are left
// out so merge-writes never clobber data held by the other copy.
func (p *UserProfile) Fields() Fields {
	m := Fields{}
	put := func(k, v string) {
		if v != "" {
			m[k] = v
		}
	}
	put("uid", p.UID)
	put("email", p.Email)
	put("fullName", p.FullName)
	put("displayName", p.DisplayName)
	put("role", p.Role)
	put("createdAt", p.CreatedAt)
	put("phone", p.Phone)
	put("department", p.Department)
	put("subject", p.Subject)
	put("employeeId", p.EmployeeID)
	put("rollNo", p.RollNo)
	put("theme", p.Theme)
	put("photoKey", p.PhotoKey)
	if p.Notifications != nil {
		m["notifications"] = *p.Notifications
	}
	if len(p.FaceDescriptor) > 0 {
		fd := make([]float64, len(p.FaceDescriptor))
		copy(fd, p.FaceDescriptor)
		m["faceDescriptor"] = fd
	}
	return m
}

// ProfileFromFields decodes a stored profile document.
func ProfileFromFields(m Fields) *UserProfile {
	if m == nil {
		return nil
	}
	p := &UserProfile{
		UID:            getString(m, "uid"),
		Email:          getString(m, "email"),
		FullName:       getString(m, "fullName"),
		DisplayName:    getString(m, "displayName"),
		Role:           getString(m, "role"),
		CreatedAt:      getString(m, "createdAt"),
		Phone:          getString(m, "phone"),
		Department:     getString(m, "department"),
		Subject:        getString(m, "subject"),
		EmployeeID:     getString(m, "employeeId"),
		RollNo:         getString(m, "rollNo"),
		Theme:          getString(m, "theme"),
		PhotoKey:       getString(m, "photoKey"),
		FaceDescriptor: getFloats(m, "faceDescriptor"),
	}
	if _, ok := m["notifications"]; ok {
		b := getBool(m, "notifications")
		p.Notifications = &b
	}
	return p
}

// ProfileUpdate carries the user-editable profile fields. Nil means unchanged.
// uid, email, role and createdAt are not editable through it.
type ProfileUpdate struct {
	FullName      *string `json:"fullName"`
	DisplayName   *string `json:"displayName"`
	Phone         *string `json:"phone"`
	Department    *string `json:"department"`
	Subject       *string `json:"subject"`
	EmployeeID    *string `json:"employeeId"`
	RollNo        *string `json:"rollNo"`
	Theme         *string `json:"theme"`
	Notifications *bool   `json:"notifications"`
}

// Fields returns the partial document for an update-write.
func (u *ProfileUpdate) Fields() Fields {
	m := Fields{}
	set := func(k string, v *string) {
		if v != nil {
			m[k] = *v
		}
	}
	set("fullName", u.FullName)
	set("displayName", u.DisplayName)
	set("phone", u.Phone)
	set("department", u.Department)
	set("subject", u.Subject)
	set("employeeId", u.EmployeeID)
	set("rollNo", u.RollNo)
	set("theme", u.Theme)
	if u.Notifications != nil {
		m["notifications"] = *u.Notifications
	}
	return m
}
