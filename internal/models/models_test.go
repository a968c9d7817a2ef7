package models

import (
	"reflect"
	"strings"
	"testing"
)

// gormTag extracts the gorm tag from a struct field.
func gormTag(t *testing.T, typ reflect.Type, fieldName string) string {
	t.Helper()
	f, ok := typ.FieldByName(fieldName)
	if !ok {
		t.Fatalf("%s.%s: field not found", typ.Name(), fieldName)
	}
	return f.Tag.Get("gorm")
}

// assertGormTag checks that a struct field's gorm tag contains the expected value.
func assertGormTag(t *testing.T, typ reflect.Type, fieldName, expected string) {
	t.Helper()
	tag := gormTag(t, typ, fieldName)
	if !strings.Contains(tag, expected) {
		t.Errorf("%s.%s gorm tag = %q, want to contain %q", typ.Name(), fieldName, tag, expected)
	}
}

// assertFieldType checks that a struct field has the expected Go type.
func assertFieldType(t *testing.T, typ reflect.Type, fieldName, expectedType string) {
	t.Helper()
	f, ok := typ.FieldByName(fieldName)
	if !ok {
		t.Fatalf("%s.%s: field not found", typ.Name(), fieldName)
	}
	got := f.Type.String()
	if got != expectedType {
		t.Errorf("%s.%s type = %q, want %q", typ.Name(), fieldName, got, expectedType)
	}
}

func TestEscalation_Fields(t *testing.T) {
	typ := reflect.TypeOf(Escalation{})

	assertGormTag(t, typ, "ID", "primaryKey")
	assertGormTag(t, typ, "ID", "autoIncrement")
	assertGormTag(t, typ, "TicketRef", "not null")
	assertGormTag(t, typ, "TicketRef", "index")
	assertGormTag(t, typ, "ProblemSummary", "type:text")
	assertGormTag(t, typ, "Checklist", "type:json")
	assertGormTag(t, typ, "MarkdownOutput", "type:text")
	assertGormTag(t, typ, "Status", "size:16")
	assertGormTag(t, typ, "Status", "default:draft")
	assertGormTag(t, typ, "Status", "index")

	assertFieldType(t, typ, "ID", "int64")
	assertFieldType(t, typ, "TemplateID", "*int64")
	assertFieldType(t, typ, "LLMSummary", "*string")
	assertFieldType(t, typ, "MarkdownOutput", "*string")
	assertFieldType(t, typ, "PostedAt", "*time.Time")
	assertFieldType(t, typ, "CreatedAt", "time.Time")
	assertFieldType(t, typ, "UpdatedAt", "time.Time")
}

func TestEscalation_AuditRelation(t *testing.T) {
	typ := reflect.TypeOf(Escalation{})

	assertGormTag(t, typ, "AuditLog", "foreignKey:EscalationID")
	assertGormTag(t, typ, "AuditLog", "OnDelete:CASCADE")
	assertFieldType(t, typ, "AuditLog", "[]models.AuditLogEntry")
}

func TestAuditLogEntry_Fields(t *testing.T) {
	typ := reflect.TypeOf(AuditLogEntry{})

	assertGormTag(t, typ, "ID", "primaryKey")
	assertGormTag(t, typ, "EscalationID", "not null")
	assertGormTag(t, typ, "EscalationID", "index")
	assertGormTag(t, typ, "Action", "size:32")
	assertGormTag(t, typ, "Action", "not null")

	assertFieldType(t, typ, "Details", "*string")
	assertFieldType(t, typ, "CreatedAt", "time.Time")

	if got := (AuditLogEntry{}).TableName(); got != "audit_log" {
		t.Errorf("TableName() = %q, want %q", got, "audit_log")
	}
}

func TestRemoteConfig_TableName(t *testing.T) {
	if got := (RemoteConfig{}).TableName(); got != "remote_config" {
		t.Errorf("TableName() = %q, want %q", got, "remote_config")
	}
}
