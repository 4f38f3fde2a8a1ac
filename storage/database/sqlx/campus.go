package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/karo/core/campus"
)

type campusRepository struct {
	db *sqlx.DB
}

var _ campus.Repository = (*campusRepository)(nil) // interface compliance check

func NewCampusRepository(db *sqlx.DB) campus.Repository {
	return &campusRepository{db: db}
}

type campusRow struct {
	ID                   string    `db:"id"`
	Name                 string    `db:"name"`
	Address              string    `db:"address"`
	Gateway              string    `db:"gateway"`
	GatewayKeyID         string    `db:"gateway_key_id"`
	GatewaySecret        string    `db:"gateway_secret"`
	GatewayWebhookSecret string    `db:"gateway_webhook_secret"`
	CreatedAt            time.Time `db:"created_at"`
	UpdatedAt            time.Time `db:"updated_at"`
}

func (repo *campusRepository) GetCampus(ctx context.Context, id string) (campus.Campus, error) {
	var row campusRow
	err := repo.db.GetContext(ctx, &row, `SELECT * FROM campus WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return campus.Campus{}, campus.ErrNotFound
	}
	if err != nil {
		return campus.Campus{}, errors.Wrap(err, "getting campus")
	}
	return campus.Campus{
		ID:                   row.ID,
		Name:                 row.Name,
		Address:              row.Address,
		Gateway:              row.Gateway,
		GatewayKeyID:         row.GatewayKeyID,
		GatewaySecret:        row.GatewaySecret,
		GatewayWebhookSecret: row.GatewayWebhookSecret,
	}, nil
}
