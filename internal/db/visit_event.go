package db

import (
	"time"

	"gorm.io/datatypes"
)

// VisitEvent 记录站点访问，只追加不修改。IdentityHash 为客户端 IP 的哈希，不保存明文 IP。
type VisitEvent struct {
	ID           uint              `gorm:"primaryKey"`
	IdentityHash string            `gorm:"size:64;not null;index"`
	Page         string            `gorm:"size:500"`
	OccurredAt   time.Time         `gorm:"not null;index"`
	Metadata     datatypes.JSONMap `gorm:"type:json"`
	CreatedAt    time.Time
}

// TableName 指定自定义表名。
func (VisitEvent) TableName() string {
	return "visit_events"
}
