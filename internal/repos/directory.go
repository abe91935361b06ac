package repos

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/emilythestrangee/reddit-clone/voteledger/internal/models"
	"github.com/emilythestrangee/reddit-clone/voteledger/internal/votes"
)

// Directory answers voter/content liveness from the users, posts and
// comments tables.
type Directory struct {
	db *gorm.DB
}

var _ votes.Directory = (*Directory)(nil)

func NewDirectory(db *gorm.DB) *Directory {
	return &Directory{db: db}
}

func (d *Directory) GetActiveUser(ctx context.Context, id int) error {
	var n int64
	err := d.db.WithContext(ctx).Model(&models.User{}).Where("id = ? AND is_active", id).Count(&n).Error
	if err != nil {
		return fmt.Errorf("lookup user %d: %w", id, err)
	}
	if n == 0 {
		return votes.ErrUserNotFound
	}
	return nil
}

func (d *Directory) GetActiveContent(ctx context.Context, ref votes.ContentRef) error {
	var model interface{}
	switch ref.Kind {
	case votes.KindPost:
		model = &models.Post{}
	case votes.KindComment:
		model = &models.Comment{}
	default:
		return votes.ErrInvalidContentKind
	}

	var n int64
	err := d.db.WithContext(ctx).Model(model).Where("id = ? AND is_active", ref.ID).Count(&n).Error
	if err != nil {
		return fmt.Errorf("lookup %s: %w", ref, err)
	}
	if n == 0 {
		return votes.ErrContentNotFound
	}
	return nil
}
