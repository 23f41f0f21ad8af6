package service

import (
	"context"
	"errors"
	"fmt"

	"bansync/internal/logger"
	"bansync/internal/models"
	"bansync/internal/storage"
)

var (
	ErrUnknownPlatform = errors.New("unknown platform")
	ErrInvalidPostID   = errors.New("post id must not be negative")
)

// BanService is the record lifecycle API used by event consumers and
// moderators. Every call is a single-row round trip; unknown ids are no-ops.
type BanService struct {
	repo *storage.BanRepository
}

func NewBanService(repo *storage.BanRepository) *BanService {
	return &BanService{repo: repo}
}

// Bootstrap creates or upgrades the bans_data table. It must succeed before
// any synchronizer is started.
func (s *BanService) Bootstrap() error {
	if err := s.repo.MigrateTable(); err != nil {
		return fmt.Errorf("error migrating bans_data table: %w", err)
	}
	return nil
}

func checkPlatform(p models.Platform) error {
	if _, ok := p.PostColumn(); !ok {
		return fmt.Errorf("%w: %q", ErrUnknownPlatform, string(p))
	}
	return nil
}

// Create registers a new pending ban request.
func (s *BanService) Create(ctx context.Context, subject, issuer, reason string) (*models.BanRecord, error) {
	record := &models.BanRecord{
		Subject: subject,
		Issuer:  issuer,
		Reason:  reason,
		Status:  models.DecisionPending,
	}
	if err := s.repo.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("error creating ban record: %w", err)
	}
	logger.Infof("Created ban record %d for %s", record.ID, subject)
	return record, nil
}

func (s *BanService) Get(ctx context.Context, id uint) (*models.BanRecord, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *BanService) GetLatestBySubject(ctx context.Context, subject string) (*models.BanRecord, error) {
	return s.repo.GetBySubject(ctx, subject, true)
}

func (s *BanService) GetFirstBySubject(ctx context.Context, subject string) (*models.BanRecord, error) {
	return s.repo.GetBySubject(ctx, subject, false)
}

func (s *BanService) GetByPlatformPost(ctx context.Context, p models.Platform, postID int64) (*models.BanRecord, error) {
	if err := checkPlatform(p); err != nil {
		return nil, err
	}
	return s.repo.GetByPlatformPost(ctx, p, postID)
}

// Decide settles a pending ban request as d. It reports whether the
// decision was applied; a request that is unknown or already decided is
// left unchanged.
func (s *BanService) Decide(ctx context.Context, id uint, d models.Decision) (bool, error) {
	applied, err := s.repo.Decide(ctx, id, d)
	if err != nil {
		return false, fmt.Errorf("error deciding ban record %d: %w", id, err)
	}
	if applied {
		logger.Infof("Ban record %d %s", id, d)
	} else {
		logger.Debugf("Ban record %d not pending, %s ignored", id, d)
	}
	return applied, nil
}

// Confirm approves the ban request.
func (s *BanService) Confirm(ctx context.Context, id uint) error {
	_, err := s.Decide(ctx, id, models.DecisionApproved)
	return err
}

// Deny rejects the ban request and lifts the ban.
func (s *BanService) Deny(ctx context.Context, id uint) error {
	_, err := s.Decide(ctx, id, models.DecisionRejected)
	return err
}

// AttachPost records the post announcing ban id on platform p. This is what
// stops the record from being reported as needing a post.
func (s *BanService) AttachPost(ctx context.Context, p models.Platform, id uint, postID int64) error {
	if err := checkPlatform(p); err != nil {
		return err
	}
	if postID < 0 {
		return ErrInvalidPostID
	}
	if err := s.repo.AttachPost(ctx, p, id, postID); err != nil {
		return fmt.Errorf("error attaching %s post to ban record %d: %w", p, id, err)
	}
	return nil
}

// AttachSecondaryPost records the Telegram comment posted under the announcement.
func (s *BanService) AttachSecondaryPost(ctx context.Context, id uint, postID int64) error {
	if postID < 0 {
		return ErrInvalidPostID
	}
	if err := s.repo.AttachSecondaryPost(ctx, id, postID); err != nil {
		return fmt.Errorf("error attaching comment post to ban record %d: %w", id, err)
	}
	return nil
}

// ClearPost marks the post on platform p as finished so the record is no
// longer reported as needing a status update.
func (s *BanService) ClearPost(ctx context.Context, p models.Platform, id uint) error {
	if err := checkPlatform(p); err != nil {
		return err
	}
	if err := s.repo.AttachPost(ctx, p, id, models.NoPost); err != nil {
		return fmt.Errorf("error clearing %s post of ban record %d: %w", p, id, err)
	}
	return nil
}

// ClearPosts marks the posts on every platform as finished.
func (s *BanService) ClearPosts(ctx context.Context, id uint) error {
	if err := s.repo.ClearPosts(ctx, id); err != nil {
		return fmt.Errorf("error clearing posts of ban record %d: %w", id, err)
	}
	return nil
}
