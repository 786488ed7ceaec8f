package models

// RosterEntry is one student on a class roster.
type RosterEntry struct {
	Name   string `json:"name" binding:"required"`
	RollNo string `json:"rollNo" binding:"required"`
	Batch  string `json:"batch,omitempty"`
}

// Class is a teacher-owned class stored at users/<teacherUid>/classes/<id>.
type Class struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Year      string        `json:"year"`
	Batch     string        `json:"batch"`
	Section   string        `json:"section"`
	TeacherID string        `json:"teacherId"`
	Students  []RosterEntry `json:"students"`
	CreatedAt string        `json:"createdAt"`
}

func (c *Class) Fields() Fields {
	students := make([]interface{}, 0, len(c.Students))
	for _, s := range c.Students {
		students = append(students, map[string]interface{}{"name": s.Name, "rollNo": s.RollNo, "batch": s.Batch})
	}
	return Fields{
		"name":      c.Name,
		"year":      c.Year,
		"batch":     c.Batch,
		"section":   c.Section,
		"teacherId": c.TeacherID,
		"students":  students,
		"createdAt": c.CreatedAt,
	}
}

func ClassFromFields(id string, m Fields) *Class {
	c := &Class{
		ID:        id,
		Name:      getString(m, "name"),
		Year:      getString(m, "year"),
		Batch:     getString(m, "batch"),
		Section:   getString(m, "section"),
		TeacherID: getString(m, "teacherId"),
		CreatedAt: getString(m, "createdAt"),
		Students:  []RosterEntry{},
	}
	list, _ := m["students"].([]interface{})
	for _, x := range list {
		var f Fields
		switch v := x.(type) {
		case Fields:
			f = v
		default:
			continue
		}
		c.Students = append(c.Students, RosterEntry{
			Name:   getString(f, "name"),
			RollNo: getString(f, "rollNo"),
			Batch:  getString(f, "batch"),
		})
	}
	return c
}
