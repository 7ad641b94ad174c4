package db

import "time"

const (
	InteractionView   = "view"
	InteractionLike   = "like"
	InteractionRating = "rating"
)

// Interaction 记录访客对内容的浏览、点赞与评分。
// like/rating 每个 (内容, 身份) 至多一条；view 每个身份每小时至多一条。
type Interaction struct {
	ID          uint   `gorm:"primaryKey"`
	ContentType string `gorm:"size:20;not null;index:idx_interaction_target,priority:1"`
	ContentID   uint   `gorm:"not null;index:idx_interaction_target,priority:2"`
	Kind        string `gorm:"size:10;not null;index:idx_interaction_target,priority:3"`
	IPHash      string `gorm:"size:64;index"`
	UserID      *uint  `gorm:"index"`
	Value       int    `gorm:"not null;default:1"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TableName 指定自定义表名。
func (Interaction) TableName() string {
	return "interactions"
}
