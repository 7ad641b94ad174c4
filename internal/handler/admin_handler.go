package handler

import (
	"errors"
	"net/http"

	"github.com/gardenpress/engagement/internal/db"
	"github.com/gardenpress/engagement/internal/identity"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

const (
	sessionUserIDKey   = "user_id"
	sessionUsernameKey = "username"
	identityContextKey = "__identity"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login 校验管理员账号并写入会话。
func (a *API) Login(c *gin.Context) {
	var req loginRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := db.Authenticate(c.Request.Context(), a.db, req.Username, req.Password)
	if err != nil {
		if !errors.Is(err, db.ErrInvalidCredentials) {
			a.requestLogger(c).WithError(err).Error("admin login failed")
		}
		respondError(c, http.StatusUnauthorized, "用户名或密码错误")
		return
	}

	session := sessions.Default(c)
	session.Set(sessionUserIDKey, user.ID)
	session.Set(sessionUsernameKey, user.Username)
	if err := session.Save(); err != nil {
		a.requestLogger(c).WithError(err).Error("save session failed")
		respondError(c, http.StatusInternalServerError, "会话保存失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "登录成功", "username": user.Username})
}

// Logout 清除会话。
func (a *API) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	if err := session.Save(); err != nil {
		a.requestLogger(c).WithError(err).Warn("clear session failed")
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "已退出登录"})
}

// AuthRequired 是一个简单的认证中间件
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if sessionUserID(c) == nil {
			respondError(c, http.StatusUnauthorized, "请先登录")
			c.Abort()
			return
		}
		c.Next()
	}
}

// ResolveIdentity 在请求边界解析一次身份，后续处理器从上下文读取。
func (a *API) ResolveIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(identityContextKey, a.resolver.Resolve(c.Request, sessionUserID(c)))
		c.Next()
	}
}

func (a *API) currentIdentity(c *gin.Context) identity.Identity {
	if cached, ok := c.Get(identityContextKey); ok {
		if who, ok := cached.(identity.Identity); ok {
			return who
		}
	}
	return a.resolver.Resolve(c.Request, sessionUserID(c))
}

func sessionUserID(c *gin.Context) *uint {
	if _, ok := c.Get(sessions.DefaultKey); !ok {
		return nil
	}

	var id uint
	switch value := sessions.Default(c).Get(sessionUserIDKey).(type) {
	case uint:
		id = value
	case int:
		id = uint(value)
	case int64:
		id = uint(value)
	case float64:
		id = uint(value)
	default:
		return nil
	}
	if id == 0 {
		return nil
	}
	return &id
}
