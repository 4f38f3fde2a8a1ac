package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/karo/core/student"
)

type studentDirectory struct {
	db *sqlx.DB
}

var _ student.Directory = (*studentDirectory)(nil) // interface compliance check

func NewStudentDirectory(db *sqlx.DB) student.Directory {
	return &studentDirectory{db: db}
}

type studentRow struct {
	ID       string `db:"id"`
	Name     string `db:"name"`
	Email    string `db:"email"`
	ClassID  string `db:"class_id"`
	CampusID string `db:"campus_id"`
}

func (r studentRow) toStudent() student.Student {
	return student.Student{
		ID:       r.ID,
		Name:     r.Name,
		Email:    r.Email,
		ClassID:  r.ClassID,
		CampusID: r.CampusID,
	}
}

func (dir *studentDirectory) GetStudent(ctx context.Context, id string) (student.Student, error) {
	var row studentRow
	err := dir.db.GetContext(ctx, &row, `SELECT * FROM student WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return student.Student{}, student.ErrNotFound
	}
	if err != nil {
		return student.Student{}, errors.Wrap(err, "getting student")
	}
	return row.toStudent(), nil
}

func (dir *studentDirectory) ClassRoster(ctx context.Context, classID string) ([]student.Student, error) {
	var rows []studentRow
	if err := dir.db.SelectContext(ctx, &rows, `SELECT * FROM student WHERE class_id = $1 ORDER BY id`, classID); err != nil {
		return nil, errors.Wrap(err, "listing class roster")
	}
	students := make([]student.Student, 0, len(rows))
	for _, row := range rows {
		students = append(students, row.toStudent())
	}
	return students, nil
}
