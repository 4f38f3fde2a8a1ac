package dummydb

import (
	"context"

	"github.com/trezcool/karo/core/campus"
)

type campusRepository struct {
	db *campusTable
}

var _ campus.Repository = (*campusRepository)(nil) // interface compliance check

func NewCampusRepository(db *DB) campus.Repository {
	return &campusRepository{db: db.campus}
}

// SeedCampus registers a campus; tests use it in place of migrations.
func SeedCampus(db *DB, c campus.Campus) {
	db.campus.Lock()
	defer db.campus.Unlock()
	cp := c
	db.campus.table[c.ID] = &cp
}

func (repo *campusRepository) GetCampus(_ context.Context, id string) (campus.Campus, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if c, ok := repo.db.table[id]; ok {
		return *c, nil
	}
	return campus.Campus{}, campus.ErrNotFound
}
