package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	clientdomain "github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/client/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB *gorm.DB
}

type Repository struct {
	db *gorm.DB
}

func New(p Params) clientdomain.Repository {
	return &Repository{db: p.DB}
}

func (r *Repository) ListActive(ctx context.Context) ([]clientdomain.Client, error) {
	var clients []clientdomain.Client
	err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Order("id ASC").
		Find(&clients).Error
	return clients, err
}

func (r *Repository) GetByID(ctx context.Context, id snowflake.ID) (clientdomain.Client, error) {
	var client clientdomain.Client
	err := r.db.WithContext(ctx).First(&client, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return clientdomain.Client{}, clientdomain.ErrClientNotFound
		}
		return clientdomain.Client{}, err
	}
	return client, nil
}
