// Package student defines the boundary to the (external) student directory.
// The ledger only needs roster resolution and contact snapshots; directory
// CRUD lives elsewhere.
package student

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("student not found")

type Student struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	ClassID  string `json:"class_id"`
	CampusID string `json:"campus_id"`
}

// Directory resolves class rosters and student details.
type Directory interface {
	GetStudent(ctx context.Context, id string) (Student, error)
	// ClassRoster returns all active students enrolled in the given class.
	ClassRoster(ctx context.Context, classID string) ([]Student, error)
}
