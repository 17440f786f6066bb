package repository

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
	"time"

	"users-admin/internal/shared/model"
)

const userColumns = "id, name, email, password_hash, role, created_at, updated_at"

func scanUser(row interface{ Scan(dest ...any) error }) (*model.User, error) {
	u := &model.User{}
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash,
		&u.Role, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return u, nil
}

// CreateUser 创建用户，数据库生成自增 ID 并回填到 user.ID
func (s *Store) CreateUser(ctx context.Context, user *model.User) error {
	return s.db.QueryRowContext(ctx, s.rebind(
		`INSERT INTO users (name, email, password_hash, role, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id`),
		user.Name, user.Email, user.PasswordHash,
		user.Role, user.CreatedAt, user.UpdatedAt,
	).Scan(&user.ID)
}

// GetUserByEmail 通过邮箱查找用户，不存在时返回 (nil, nil)
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT `+userColumns+` FROM users WHERE email = $1`), email)
	user, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return user, err
}

// GetUserByID 通过 ID 查找用户，不存在时返回 (nil, nil)
func (s *Store) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT `+userColumns+` FROM users WHERE id = $1`), id)
	user, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return user, err
}

// UpdateUserByID 按补丁更新用户，只更新非 nil 字段，始终刷新 updated_at
// 不存在时返回 (nil, nil)
func (s *Store) UpdateUserByID(ctx context.Context, id int64, patch model.UserUpdate) (*model.User, error) {
	sets := []string{}
	args := []any{}
	n := 1

	appendSet := func(column string, value any) {
		sets = append(sets, column+" = $"+strconv.Itoa(n))
		args = append(args, value)
		n++
	}

	if patch.Name != nil {
		appendSet("name", *patch.Name)
	}
	if patch.Email != nil {
		appendSet("email", *patch.Email)
	}
	if patch.Role != nil {
		appendSet("role", *patch.Role)
	}
	appendSet("updated_at", time.Now().UTC())

	args = append(args, id)
	query := `UPDATE users SET ` + strings.Join(sets, ", ") + ` WHERE id = $` + strconv.Itoa(n)

	res, err := s.db.ExecContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, nil
	}
	return s.GetUserByID(ctx, id)
}

// DeleteUserByID 删除用户并返回删除前的记录，不存在时返回 (nil, nil)
func (s *Store) DeleteUserByID(ctx context.Context, id int64) (*model.User, error) {
	user, err := s.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, nil
	}
	if _, err := s.db.ExecContext(ctx, s.rebind(
		`DELETE FROM users WHERE id = $1`), id); err != nil {
		return nil, err
	}
	return user, nil
}

// ListUsers 列出所有用户
func (s *Store) ListUsers(ctx context.Context) ([]*model.User, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT `+userColumns+` FROM users ORDER BY created_at DESC`))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []*model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
