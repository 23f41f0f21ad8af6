package storage

import (
	"context"
	"errors"
	"fmt"

	"bansync/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BanRepository handles database operations for BanRecord
type BanRepository struct {
	db *gorm.DB
}

// NewBanRepository creates a new BanRepository
func NewBanRepository(db *gorm.DB) *BanRepository {
	return &BanRepository{db: db}
}

// MigrateTable ensures the bans_data table and its columns exist
func (r *BanRepository) MigrateTable() error {
	return r.db.AutoMigrate(&models.BanRecord{})
}

func postColumn(p models.Platform) (clause.Column, error) {
	name, ok := p.PostColumn()
	if !ok {
		return clause.Column{}, fmt.Errorf("unknown platform %q", string(p))
	}
	return clause.Column{Name: name}, nil
}

// first returns nil, nil when the query matches nothing.
func first(tx *gorm.DB) (*models.BanRecord, error) {
	var record models.BanRecord
	if err := tx.First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

// Create inserts a new BanRecord
func (r *BanRepository) Create(ctx context.Context, record *models.BanRecord) error {
	if record.Status == "" {
		record.Status = models.DecisionPending
	}
	return r.db.WithContext(ctx).Create(record).Error
}

// GetByID returns the record with the given id
func (r *BanRepository) GetByID(ctx context.Context, id uint) (*models.BanRecord, error) {
	return first(r.db.WithContext(ctx).Where("id = ?", id))
}

// GetLatest returns the most recently created record
func (r *BanRepository) GetLatest(ctx context.Context) (*models.BanRecord, error) {
	return first(r.db.WithContext(ctx).Order("id DESC"))
}

// GetNewerThan returns all records with id > id in ascending id order
func (r *BanRepository) GetNewerThan(ctx context.Context, id uint) ([]*models.BanRecord, error) {
	var records []*models.BanRecord
	err := r.db.WithContext(ctx).Where("id > ?", id).Order("id ASC").Find(&records).Error
	return records, err
}

// GetBySubject returns the newest (or oldest) record for a banned subject
func (r *BanRepository) GetBySubject(ctx context.Context, subject string, newestFirst bool) (*models.BanRecord, error) {
	order := clause.OrderByColumn{Column: clause.Column{Name: "id"}, Desc: newestFirst}
	return first(r.db.WithContext(ctx).Where("banned = ?", subject).Order(order))
}

// GetByPlatformPost returns the record announced by postID on platform p
func (r *BanRepository) GetByPlatformPost(ctx context.Context, p models.Platform, postID int64) (*models.BanRecord, error) {
	col, err := postColumn(p)
	if err != nil {
		return nil, err
	}
	return first(r.db.WithContext(ctx).Where(clause.Eq{Column: col, Value: postID}))
}

// GetNeedingPost returns pending records without a post on platform p
func (r *BanRepository) GetNeedingPost(ctx context.Context, p models.Platform) ([]*models.BanRecord, error) {
	col, err := postColumn(p)
	if err != nil {
		return nil, err
	}
	var records []*models.BanRecord
	err = r.db.WithContext(ctx).
		Where("status = ?", models.DecisionPending).
		Where(clause.Eq{Column: col, Value: nil}).
		Order("id ASC").
		Find(&records).Error
	return records, err
}

// GetNeedingStatusUpdate returns decided records whose post on platform p
// has not yet been updated
func (r *BanRepository) GetNeedingStatusUpdate(ctx context.Context, p models.Platform) ([]*models.BanRecord, error) {
	col, err := postColumn(p)
	if err != nil {
		return nil, err
	}
	var records []*models.BanRecord
	err = r.db.WithContext(ctx).
		Where("status <> ?", models.DecisionPending).
		Where(clause.Gt{Column: col, Value: models.NoPost}).
		Order("id ASC").
		Find(&records).Error
	return records, err
}

func (r *BanRepository) update(ctx context.Context, id uint, values map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&models.BanRecord{}).Where("id = ?", id).Updates(values).Error
}

// Decide moves a pending record to the settled decision d in one
// conditional update. It reports false when id is unknown or the record was
// already decided; a settled status never changes.
func (r *BanRepository) Decide(ctx context.Context, id uint, d models.Decision) (bool, error) {
	if !d.Settled() {
		return false, fmt.Errorf("cannot decide ban %d as %q", id, string(d))
	}
	result := r.db.WithContext(ctx).Model(&models.BanRecord{}).
		Where("id = ? AND status = ?", id, models.DecisionPending).
		Updates(map[string]interface{}{
			"status":   d,
			"unbanned": d == models.DecisionRejected,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// Confirm approves a pending ban. Unknown or already decided ids are a no-op.
func (r *BanRepository) Confirm(ctx context.Context, id uint) error {
	_, err := r.Decide(ctx, id, models.DecisionApproved)
	return err
}

// Deny rejects a pending ban and marks the subject unbanned. Unknown or
// already decided ids are a no-op.
func (r *BanRepository) Deny(ctx context.Context, id uint) error {
	_, err := r.Decide(ctx, id, models.DecisionRejected)
	return err
}

// AttachPost stores the primary post id for platform p
func (r *BanRepository) AttachPost(ctx context.Context, p models.Platform, id uint, postID int64) error {
	col, err := postColumn(p)
	if err != nil {
		return err
	}
	return r.update(ctx, id, map[string]interface{}{col.Name: postID})
}

// AttachSecondaryPost stores the Telegram comment post id
func (r *BanRepository) AttachSecondaryPost(ctx context.Context, id uint, postID int64) error {
	return r.update(ctx, id, map[string]interface{}{"tg_post_c": postID})
}

// ClearPosts sets every platform post to the NoPost sentinel
func (r *BanRepository) ClearPosts(ctx context.Context, id uint) error {
	values := make(map[string]interface{}, len(models.Platforms))
	for _, p := range models.Platforms {
		col, _ := p.PostColumn()
		values[col] = models.NoPost
	}
	return r.update(ctx, id, values)
}

// Count returns the number of stored records
func (r *BanRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.BanRecord{}).Count(&count).Error
	return count, err
}
