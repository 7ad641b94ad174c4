// Package dedup 提供"窗口内首次出现才计数"的去重缓存。
//
// 缓存只是建议性的：条目丢失或过期只会导致多计，不会少计。
// 调用方在缓存不可用时仍需完成内容计数自增。
package dedup

import (
	"context"
	"fmt"
	"time"
)

// ViewWindow 是内容浏览记录的滚动去重窗口。
const ViewWindow = time.Hour

// Cache 判断某个键在窗口内是否首次出现。首次返回 true 并标记该键直到窗口结束。
type Cache interface {
	ShouldRecord(ctx context.Context, key string, window time.Duration) (bool, error)
}

// Pinger 由可探活的后端实现，用于健康检查。
type Pinger interface {
	Ping(ctx context.Context) error
}

// UntilEndOfDay 返回 now 所在时区当天剩余的时长，临近午夜时更短。
func UntilEndOfDay(now time.Time) time.Duration {
	year, month, day := now.Date()
	next := time.Date(year, month, day+1, 0, 0, 0, 0, now.Location())
	return next.Sub(now)
}

// VisitKey 生成站点访问的去重键，按身份与日期区分。
func VisitKey(identityHash string, now time.Time) string {
	return fmt.Sprintf("visit:%s:%s", identityHash, now.Format("2006-01-02"))
}

// ViewKey 生成内容浏览的去重键。
func ViewKey(contentType string, contentID uint, identityHash string) string {
	return fmt.Sprintf("view:%s:%d:%s", contentType, contentID, identityHash)
}

// NoopCache 总是返回"未见过"，用于关闭去重或模拟缓存丢失。
type NoopCache struct{}

// ShouldRecord 总是允许记录。
func (NoopCache) ShouldRecord(context.Context, string, time.Duration) (bool, error) {
	return true, nil
}
