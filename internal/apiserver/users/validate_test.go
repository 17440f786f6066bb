package users

import (
	"testing"

	"users-admin/internal/shared/model"
)

func strptr(s string) *string { return &s }

func TestParseUserID(t *testing.T) {
	tests := []struct {
		raw    string
		wantID int64
		wantOK bool
	}{
		{"1", 1, true},
		{"42", 42, true},
		{" 7 ", 7, true},
		{"0", 0, false},
		{"-1", 0, false},
		{"abc", 0, false},
		{"1.5", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		id, errs := parseUserID(tt.raw)
		if tt.wantOK {
			if len(errs) != 0 {
				t.Errorf("parseUserID(%q) errs = %v, want none", tt.raw, errs)
			}
			if id != tt.wantID {
				t.Errorf("parseUserID(%q) = %d, want %d", tt.raw, id, tt.wantID)
			}
		} else if len(errs) == 0 {
			t.Errorf("parseUserID(%q) should fail", tt.raw)
		}
	}
}

func TestUpdateRequestValidate(t *testing.T) {
	tests := []struct {
		name      string
		req       updateUserRequest
		wantField string // 期望报错的字段，空表示校验通过
	}{
		{"valid name", updateUserRequest{Name: strptr("Alice")}, ""},
		{"valid email", updateUserRequest{Email: strptr("a@example.com")}, ""},
		{"valid role", updateUserRequest{Role: strptr("admin")}, ""},
		{"all fields", updateUserRequest{Name: strptr("A"), Email: strptr("a@example.com"), Role: strptr("user")}, ""},
		{"empty payload", updateUserRequest{}, "body"},
		{"empty name", updateUserRequest{Name: strptr("   ")}, "name"},
		{"bad email", updateUserRequest{Email: strptr("not-an-email")}, "email"},
		{"bad role", updateUserRequest{Role: strptr("superuser")}, "role"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			patch, errs := tt.req.validate()
			if tt.wantField == "" {
				if len(errs) != 0 {
					t.Fatalf("validate() errs = %v, want none", errs)
				}
				if patch.Empty() {
					t.Error("validate() returned empty patch for valid request")
				}
				return
			}
			if len(errs) == 0 {
				t.Fatal("validate() should fail")
			}
			if errs[0].Field != tt.wantField {
				t.Errorf("validate() field = %q, want %q", errs[0].Field, tt.wantField)
			}
		})
	}
}

func TestUpdateRequestValidateTrimsAndConverts(t *testing.T) {
	req := updateUserRequest{Name: strptr("  Alice  "), Role: strptr("admin")}
	patch, errs := req.validate()
	if len(errs) != 0 {
		t.Fatalf("validate() errs = %v", errs)
	}
	if *patch.Name != "Alice" {
		t.Errorf("name = %q, want trimmed", *patch.Name)
	}
	if *patch.Role != model.UserRoleAdmin {
		t.Errorf("role = %q, want admin", *patch.Role)
	}
	if !patch.RoleChange() {
		t.Error("RoleChange() should be true when role is set")
	}
}

func TestRegisterRequestValidate(t *testing.T) {
	tests := []struct {
		name      string
		req       registerRequest
		wantField string
	}{
		{"valid", registerRequest{Name: "Alice", Email: "a@example.com", Password: "supersecret"}, ""},
		{"valid with role", registerRequest{Name: "Alice", Email: "a@example.com", Password: "supersecret", Role: "admin"}, ""},
		{"missing name", registerRequest{Email: "a@example.com", Password: "supersecret"}, "name"},
		{"bad email", registerRequest{Name: "Alice", Email: "nope", Password: "supersecret"}, "email"},
		{"short password", registerRequest{Name: "Alice", Email: "a@example.com", Password: "short"}, "password"},
		{"bad role", registerRequest{Name: "Alice", Email: "a@example.com", Password: "supersecret", Role: "root"}, "role"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := tt.req.validate()
			if tt.wantField == "" {
				if len(errs) != 0 {
					t.Fatalf("validate() errs = %v, want none", errs)
				}
				return
			}
			if len(errs) == 0 {
				t.Fatal("validate() should fail")
			}
			if errs[0].Field != tt.wantField {
				t.Errorf("validate() field = %q, want %q", errs[0].Field, tt.wantField)
			}
		})
	}
}
