package attendance

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/presensync/presensync/backend/go-services/internal/models"
	"github.com/presensync/presensync/backend/go-services/internal/store"
	"github.com/presensync/presensync/backend/go-services/pkg/logger"
)

var (
	ErrClassNotFound   = errors.New("class not found")
	ErrClassExists     = errors.New("class already exists")
	ErrDuplicateRollNo = errors.New("roll number listed twice")
	ErrInvalidClass    = errors.New("invalid class")
)

// NewClass is a teacher's request to create a class with its roster.
type NewClass struct {
	Year     string               `json:"year" binding:"required"`
	Batch    string               `json:"batch" binding:"required"`
	Section  string               `json:"section" binding:"required"`
	Students []models.RosterEntry `json:"students" binding:"dive"`
}

// ClassName is the display name of a class, e.g. CS3-A.
func ClassName(year, section string) string {
	return "CS" + strings.TrimSpace(year) + "-" + strings.ToUpper(strings.TrimSpace(section))
}

// classID derives the document id from the name, so a name exists once per teacher.
func classID(name string) string {
	return strings.ToLower(name)
}

// CreateClass stores a class owned by teacherUID. Every student gets the
// batch of the class.
func (s *Service) CreateClass(ctx context.Context, teacherUID string, req NewClass) (*models.Class, error) {
	year, batch, section := strings.TrimSpace(req.Year), strings.TrimSpace(req.Batch), strings.TrimSpace(req.Section)
	if year == "" || batch == "" || section == "" || strings.ContainsAny(year+section, "/") {
		return nil, ErrInvalidClass
	}
	seen := make(map[string]bool, len(req.Students))
	students := make([]models.RosterEntry, 0, len(req.Students))
	for _, st := range req.Students {
		name, roll := strings.TrimSpace(st.Name), strings.TrimSpace(st.RollNo)
		if name == "" || roll == "" {
			return nil, fmt.Errorf("%w: student name and roll number cannot be empty", ErrInvalidClass)
		}
		if seen[roll] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateRollNo, roll)
		}
		seen[roll] = true
		students = append(students, models.RosterEntry{Name: name, RollNo: roll, Batch: batch})
	}

	name := ClassName(year, section)
	c := &models.Class{
		ID:        classID(name),
		Name:      name,
		Year:      year,
		Batch:     batch,
		Section:   section,
		TeacherID: teacherUID,
		Students:  students,
		CreatedAt: models.Timestamp(s.now()),
	}
	if err := s.store.Create(ctx, store.ClassPath(teacherUID, c.ID), c.Fields()); err != nil {
		if errors.Is(err, store.ErrExists) {
			return nil, fmt.Errorf("%w: %s", ErrClassExists, name)
		}
		return nil, fmt.Errorf("create class: %w", err)
	}
	logger.Infof("attendance: class %s created by %s with %d students", name, teacherUID, len(students))
	return c, nil
}

// GetClass loads a class of teacherUID.
func (s *Service) GetClass(ctx context.Context, teacherUID, id string) (*models.Class, error) {
	if id == "" || strings.Contains(id, "/") {
		return nil, ErrClassNotFound
	}
	data, err := s.store.Get(ctx, store.ClassPath(teacherUID, id))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrClassNotFound
		}
		return nil, err
	}
	return models.ClassFromFields(id, data), nil
}

// ListClasses returns the classes of teacherUID by name.
func (s *Service) ListClasses(ctx context.Context, teacherUID string) ([]*models.Class, error) {
	docs, err := s.store.List(ctx, store.ClassesCollection(teacherUID), nil)
	if err != nil {
		return nil, err
	}
	out := make([]*models.Class, 0, len(docs))
	for _, d := range docs {
		out = append(out, models.ClassFromFields(d.ID, d.Data))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// DeleteClass removes the class and its roster. Past sessions keep their copy
// of the class name.
func (s *Service) DeleteClass(ctx context.Context, teacherUID, id string) error {
	if _, err := s.GetClass(ctx, teacherUID, id); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, store.ClassPath(teacherUID, id)); err != nil {
		return fmt.Errorf("delete class: %w", err)
	}
	logger.Infof("attendance: class %s deleted by %s", id, teacherUID)
	return nil
}
