package rowmap

import (
	"github.com/krapi-cms/krapi-core/internal/domain/repository"
)

// AdminUser mapea una fila de admin_users.
func AdminUser(row map[string]any) repository.AdminUser {
	return repository.AdminUser{
		ID:           String(row["id"]),
		Username:     String(row["username"]),
		Email:        String(row["email"]),
		PasswordHash: String(row["password_hash"]),
		Role:         repository.AdminRole(String(row["role"])),
		AccessLevel:  repository.AccessLevel(String(row["access_level"])),
		Permissions:  StringSlice(row["permissions"]),
		Active:       Bool(row["active"]),
		APIKey:       OptString(row["api_key"]),
		LastLogin:    OptTime(row["last_login"]),
		LoginCount:   Int(row["login_count"]),
		CreatedAt:    Time(row["created_at"]),
		UpdatedAt:    Time(row["updated_at"]),
	}
}

// Session mapea una fila de sessions.
func Session(row map[string]any) repository.Session {
	return repository.Session{
		ID:           String(row["id"]),
		Token:        String(row["token"]),
		UserID:       String(row["user_id"]),
		ProjectID:    OptString(row["project_id"]),
		Type:         repository.SessionType(String(row["type"])),
		Scopes:       StringSlice(row["scopes"]),
		Metadata:     Object(row["metadata"]),
		IPAddress:    OptString(row["ip_address"]),
		UserAgent:    OptString(row["user_agent"]),
		IsActive:     Bool(row["is_active"]),
		Consumed:     Bool(row["consumed"]),
		ConsumedAt:   OptTime(row["consumed_at"]),
		CreatedAt:    Time(row["created_at"]),
		ExpiresAt:    Time(row["expires_at"]),
		LastActivity: OptTime(row["last_activity"]),
	}
}

// Sessions mapea varias filas de sessions. Nunca retorna nil.
func Sessions(rows []map[string]any) []repository.Session {
	out := make([]repository.Session, 0, len(rows))
	for _, r := range rows {
		out = append(out, Session(r))
	}
	return out
}

// ActivityLogEntry mapea una fila de activity_logs.
func ActivityLogEntry(row map[string]any) repository.ActivityLogEntry {
	return repository.ActivityLogEntry{
		ID:           String(row["id"]),
		UserID:       String(row["user_id"]),
		ProjectID:    OptString(row["project_id"]),
		Action:       String(row["action"]),
		ResourceType: String(row["resource_type"]),
		ResourceID:   OptString(row["resource_id"]),
		Severity:     OptString(row["severity"]),
		Details:      Object(row["details"]),
		IPAddress:    OptString(row["ip_address"]),
		Timestamp:    Time(row["timestamp"]),
	}
}

// Project mapea una fila de projects.
func Project(row map[string]any) repository.Project {
	return repository.Project{
		ID:        String(row["id"]),
		Name:      String(row["name"]),
		Active:    Bool(row["active"]),
		DBDriver:  String(row["db_driver"]),
		DBDSN:     String(row["db_dsn"]),
		CreatedAt: Time(row["created_at"]),
	}
}
