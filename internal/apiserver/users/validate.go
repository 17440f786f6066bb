package users

import (
	"regexp"
	"strconv"
	"strings"

	"users-admin/internal/shared/model"
)

// FieldError 单个字段的校验错误
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// parseUserID 解析路径参数中的用户 ID，必须为正整数
func parseUserID(raw string) (int64, []FieldError) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, []FieldError{{Field: "id", Message: "ID must be a positive integer"}}
	}
	return id, nil
}

// updateUserRequest PUT /users/{id} 请求体
// 指针字段区分"未提供"与"提供了空值"
type updateUserRequest struct {
	Name  *string `json:"name"`
	Email *string `json:"email"`
	Role  *string `json:"role"`
}

// validate 校验更新载荷并转换为领域补丁
// 每个字段独立校验；完全为空的载荷被拒绝
func (req *updateUserRequest) validate() (model.UserUpdate, []FieldError) {
	var patch model.UserUpdate
	var errs []FieldError

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		switch {
		case name == "":
			errs = append(errs, FieldError{Field: "name", Message: "Name cannot be empty"})
		case len(name) > 255:
			errs = append(errs, FieldError{Field: "name", Message: "Name must be 255 characters or less"})
		default:
			patch.Name = &name
		}
	}

	if req.Email != nil {
		email := strings.TrimSpace(*req.Email)
		if !emailRegex.MatchString(email) {
			errs = append(errs, FieldError{Field: "email", Message: "Email must be valid"})
		} else {
			patch.Email = &email
		}
	}

	if req.Role != nil {
		role := model.UserRole(strings.TrimSpace(*req.Role))
		if !role.Valid() {
			errs = append(errs, FieldError{Field: "role", Message: "Role must be either user or admin"})
		} else {
			patch.Role = &role
		}
	}

	if len(errs) > 0 {
		return model.UserUpdate{}, errs
	}
	if req.Name == nil && req.Email == nil && req.Role == nil {
		return model.UserUpdate{}, []FieldError{{Field: "body", Message: "At least one field must be provided"}}
	}
	return patch, nil
}

// registerRequest POST /auth/register 请求体
type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role,omitempty"`
}

// validate 校验注册载荷
func (req *registerRequest) validate() []FieldError {
	var errs []FieldError

	if strings.TrimSpace(req.Name) == "" {
		errs = append(errs, FieldError{Field: "name", Message: "Name is required"})
	} else if len(req.Name) > 255 {
		errs = append(errs, FieldError{Field: "name", Message: "Name must be 255 characters or less"})
	}

	if !emailRegex.MatchString(strings.TrimSpace(req.Email)) {
		errs = append(errs, FieldError{Field: "email", Message: "Email must be valid"})
	}

	if len(req.Password) < 8 {
		errs = append(errs, FieldError{Field: "password", Message: "Password must be at least 8 characters"})
	}

	if req.Role != "" && !model.UserRole(req.Role).Valid() {
		errs = append(errs, FieldError{Field: "role", Message: "Role must be either user or admin"})
	}

	return errs
}
