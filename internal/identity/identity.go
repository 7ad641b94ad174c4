// Package identity 从请求头推导访客的伪匿名身份。
//
// 转发头按部署拓扑隐式信任，不校验来源：部署时必须在可信边缘终止 TLS，
// 并剥离或覆盖 CF-Connecting-IP / X-Forwarded-For / X-Real-IP。
// 无法保证这一点时，将 TrustForwardedHeaders 关闭，只使用传输层对端地址。
package identity

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net"
	"net/http"
	"strings"
)

const (
	HeaderCFConnectingIP = "CF-Connecting-IP"
	HeaderForwardedFor   = "X-Forwarded-For"
	HeaderRealIP         = "X-Real-IP"

	unknownIP       = "unknown"
	redactedHashLen = 12
)

// Identity 是每个请求在边界处解析一次的身份上下文。
// 点赞/评分的"是否已操作"判断同时检查 IPHash 与 UserID，任一命中即视为同一身份。
type Identity struct {
	IPHash string
	UserID *uint
}

// HasUser 表示请求携带已登录用户。
func (i Identity) HasUser() bool {
	return i.UserID != nil && *i.UserID > 0
}

// Valid 表示身份至少包含 IP 哈希。
func (i Identity) Valid() bool {
	return i.IPHash != ""
}

// Resolver 负责客户端 IP 解析与哈希。
type Resolver struct {
	salt           []byte
	trustForwarded bool
}

// NewResolver 创建 Resolver。salt 用于 HMAC，避免哈希被彩虹表反查。
func NewResolver(salt string, trustForwarded bool) *Resolver {
	return &Resolver{salt: []byte(salt), trustForwarded: trustForwarded}
}

// ClientIP 按优先级返回客户端 IP：CDN 头 → 负载均衡转发头首项 → 反向代理真实 IP 头 → 对端地址。
func (r *Resolver) ClientIP(header http.Header, remoteAddr string) string {
	if r.trustForwarded && header != nil {
		if ip := strings.TrimSpace(header.Get(HeaderCFConnectingIP)); ip != "" {
			return ip
		}
		if forwarded := header.Get(HeaderForwardedFor); forwarded != "" {
			first, _, _ := strings.Cut(forwarded, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
		if ip := strings.TrimSpace(header.Get(HeaderRealIP)); ip != "" {
			return ip
		}
	}

	addr := strings.TrimSpace(remoteAddr)
	if addr == "" {
		return unknownIP
	}
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

// Hash 返回 IP 的十六进制 HMAC-SHA256。
func (r *Resolver) Hash(ip string) string {
	mac := hmac.New(sha256.New, r.salt)
	mac.Write([]byte(ip))
	return hex.EncodeToString(mac.Sum(nil))
}

// Resolve 解析请求并组装 Identity。
func (r *Resolver) Resolve(req *http.Request, userID *uint) Identity {
	if req == nil {
		return Identity{IPHash: r.Hash(unknownIP), UserID: userID}
	}
	return Identity{
		IPHash: r.Hash(r.ClientIP(req.Header, req.RemoteAddr)),
		UserID: userID,
	}
}

// Redact 截断哈希用于后台展示。
func Redact(hash string) string {
	if len(hash) <= redactedHashLen {
		return hash
	}
	return hash[:redactedHashLen] + "..."
}
