package models

import "time"

// NoPost marks a platform post column as deliberately empty, as opposed to
// NULL which means no post has been attempted yet.
const NoPost int64 = -1

// BanRecord is one moderation case and the posts announcing it.
// Column names follow the bans_data table shared with the intake bots.
type BanRecord struct {
	ID              uint      `gorm:"primaryKey;autoIncrement"`
	Subject         string    `gorm:"column:banned;size:255;index"`
	Issuer          string    `gorm:"column:by;size:255"`
	Reason          string    `gorm:"type:text"`
	Status          Decision  `gorm:"column:status;size:9;not null;default:waiting;index"`
	Unbanned        bool      `gorm:"default:false"`
	VKPost          *int64    `gorm:"column:vk_post"`
	TelegramPost    *int64    `gorm:"column:tg_post"`
	TelegramComment *int64    `gorm:"column:tg_post_c"`
	Created         time.Time `gorm:"column:created;autoCreateTime"`
}

func (BanRecord) TableName() string {
	return "bans_data"
}

// Confirmed is the legacy tri-state view of Status: nil while pending.
func (r *BanRecord) Confirmed() *bool {
	var v bool
	switch r.Status {
	case DecisionApproved:
		v = true
	case DecisionRejected:
		v = false
	default:
		return nil
	}
	return &v
}

// Post returns the primary post id for p, or nil if none was attached.
func (r *BanRecord) Post(p Platform) *int64 {
	switch p {
	case PlatformVK:
		return r.VKPost
	case PlatformTelegram:
		return r.TelegramPost
	}
	return nil
}

// SetPost stores postID as the primary post for p on the in-memory copy.
func (r *BanRecord) SetPost(p Platform, postID int64) {
	id := postID
	switch p {
	case PlatformVK:
		r.VKPost = &id
	case PlatformTelegram:
		r.TelegramPost = &id
	}
}
