// Package users 用户账户业务逻辑与 HTTP 接口
//
// Service 负责注册、登录和账户 CRUD，所有领域失败以哨兵错误返回，
// 由 HTTP 边界统一映射为状态码，业务层不做字符串比较。
package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"users-admin/internal/apiserver/auth"
	"users-admin/internal/shared/model"
)

var (
	// ErrUserNotFound 目标用户不存在
	ErrUserNotFound = errors.New("user not found")
	// ErrEmailTaken 邮箱已被注册
	ErrEmailTaken = errors.New("user with this email already exists")
	// ErrInvalidCredentials 登录失败，不区分邮箱不存在与密码错误
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// Store 用户存储接口
// 所有方法为原子单记录操作，"不存在"以 (nil, nil) 表示
type Store interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	UpdateUserByID(ctx context.Context, id int64, patch model.UserUpdate) (*model.User, error)
	DeleteUserByID(ctx context.Context, id int64) (*model.User, error)
	ListUsers(ctx context.Context) ([]*model.User, error)
}

// Service 用户账户操作
type Service struct {
	store Store
	cfg   auth.Config
}

// NewService 创建用户服务
func NewService(store Store, cfg auth.Config) *Service {
	return &Service{store: store, cfg: cfg}
}

// List 列出所有用户
func (s *Service) List(ctx context.Context) ([]*model.User, error) {
	return s.store.ListUsers(ctx)
}

// GetByID 按 ID 查找用户
func (s *Service) GetByID(ctx context.Context, id int64) (*model.User, error) {
	user, err := s.store.GetUserByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get user %d: %w", id, err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// Update 按补丁更新用户，只应用非 nil 字段，始终刷新 updated_at
// 先做显式存在性检查，不从空更新结果反推 NotFound
func (s *Service) Update(ctx context.Context, id int64, patch model.UserUpdate) (*model.User, error) {
	existing, err := s.store.GetUserByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get user %d: %w", id, err)
	}
	if existing == nil {
		return nil, ErrUserNotFound
	}

	user, err := s.store.UpdateUserByID(ctx, id, patch)
	if err != nil {
		return nil, fmt.Errorf("update user %d: %w", id, err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// Delete 删除用户并返回删除前的记录
func (s *Service) Delete(ctx context.Context, id int64) (*model.User, error) {
	user, err := s.store.DeleteUserByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("delete user %d: %w", id, err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// Register 注册新用户
// 先检查邮箱是否已存在，再计算密码哈希入库；明文密码不落库不记日志
func (s *Service) Register(ctx context.Context, name, email, password string, role model.UserRole) (*model.User, error) {
	if role == "" {
		role = model.UserRoleUser
	}

	existing, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	}
	if existing != nil {
		return nil, ErrEmailTaken
	}

	hash, err := auth.HashPassword(s.cfg, password)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	user := &model.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// Authenticate 校验邮箱和密码
// 邮箱不存在与密码错误返回同一个错误，避免账户枚举
func (s *Service) Authenticate(ctx context.Context, email, password string) (*model.User, error) {
	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if user == nil || !auth.CheckPassword(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}
