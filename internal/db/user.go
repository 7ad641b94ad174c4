package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// ErrInvalidCredentials 表示用户名不存在或密码不匹配，两者对外不区分。
var ErrInvalidCredentials = errors.New("invalid credentials")

// User 是可以查看访客明细和调整运营目标的后台账号。
type User struct {
	gorm.Model
	Username    string `gorm:"size:64;uniqueIndex;not null"`
	Password    string `gorm:"not null" json:"-"`
	LastLoginAt *time.Time
}

// EnsureUser 在账号缺失时创建管理员，已存在则保持原密码不变。用户名或密码为空时跳过。
func EnsureUser(gdb *gorm.DB, username, password string) error {
	name := strings.TrimSpace(username)
	if name == "" || strings.TrimSpace(password) == "" {
		return nil
	}
	if gdb == nil {
		return errors.New("database not initialized")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	var user User
	return gdb.Where(User{Username: name}).
		Attrs(User{Password: string(hashed)}).
		FirstOrCreate(&user).Error
}

// Authenticate 校验账号密码，成功后记录登录时间。
func Authenticate(ctx context.Context, gdb *gorm.DB, username, password string) (User, error) {
	var user User
	err := gdb.WithContext(ctx).Where("username = ?", strings.TrimSpace(username)).First(&user).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return User{}, ErrInvalidCredentials
	case err != nil:
		return User{}, fmt.Errorf("load admin: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
		return User{}, ErrInvalidCredentials
	}

	now := time.Now().UTC()
	if err := gdb.WithContext(ctx).Model(&user).UpdateColumn("last_login_at", now).Error; err != nil {
		return User{}, fmt.Errorf("record login: %w", err)
	}
	user.LastLoginAt = &now
	return user, nil
}
