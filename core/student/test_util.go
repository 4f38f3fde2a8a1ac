package student

import (
	"context"
	"sync"
)

// DirectoryMock is a map-backed Directory for tests and local development.
type DirectoryMock struct {
	mu       sync.RWMutex
	students map[string]Student
}

var _ Directory = (*DirectoryMock)(nil)

func NewDirectoryMock(students ...Student) *DirectoryMock {
	dir := &DirectoryMock{students: make(map[string]Student, len(students))}
	for _, s := range students {
		dir.students[s.ID] = s
	}
	return dir
}

func (d *DirectoryMock) Add(s Student) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.students[s.ID] = s
}

func (d *DirectoryMock) GetStudent(_ context.Context, id string) (Student, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if s, ok := d.students[id]; ok {
		return s, nil
	}
	return Student{}, ErrNotFound
}

func (d *DirectoryMock) ClassRoster(_ context.Context, classID string) ([]Student, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	roster := make([]Student, 0)
	for _, s := range d.students {
		if s.ClassID == classID {
			roster = append(roster, s)
		}
	}
	return roster, nil
}
