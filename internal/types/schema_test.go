package types

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func strPtr(s string) *string { return &s }

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	return db
}

// The schema must migrate cleanly on SQLite as well as Postgres: column
// defaults stay out of the gorm tags, ids come from the BeforeCreate hooks.
func TestModelsMigrateOnSQLite(t *testing.T) {
	db := openTestDB(t)
	err := db.AutoMigrate(
		&Document{},
		&EmissionRecord{},
		&VerificationBatch{},
		&MonetizationPathway{},
		&DeviceSession{},
		&AuditEvent{},
		&AICallLog{},
	)
	if err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}

	for _, table := range []string{
		"documents",
		"emissions",
		"carbon_verifications",
		"monetization_pathways",
		"device_sessions",
		"audit_events",
		"ai_call_logs",
	} {
		if !db.Migrator().HasTable(table) {
			t.Fatalf("table %s missing after migration", table)
		}
	}

	doc := &Document{
		ContentHash: "abc123",
		MimeType:    "application/pdf",
		Extraction:  []byte(`{}`),
		SessionID:   strPtr("sess-schema"),
	}
	if err := db.Create(doc).Error; err != nil {
		t.Fatalf("create document: %v", err)
	}
	if doc.ID == uuid.Nil {
		t.Fatalf("BeforeCreate did not assign an id")
	}
}

// One document row per (content hash, owner): the partial unique indexes
// reject a second insert for the same bytes under the same session or user.
func TestDocumentHashUniquePerOwner(t *testing.T) {
	db := openTestDB(t)
	if err := db.AutoMigrate(&Document{}); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}

	mk := func(sessionID *string, userID *uuid.UUID) *Document {
		return &Document{
			ContentHash: "samehash",
			MimeType:    "application/pdf",
			Extraction:  []byte(`{}`),
			SessionID:   sessionID,
			UserID:      userID,
		}
	}

	uid := uuid.New()
	if err := db.Create(mk(strPtr("sess-a"), nil)).Error; err != nil {
		t.Fatalf("first session row: %v", err)
	}
	if err := db.Create(mk(strPtr("sess-a"), nil)).Error; err == nil {
		t.Fatalf("second row for same (hash, session) should violate the unique index")
	}
	// a different owner may hold the same hash
	if err := db.Create(mk(strPtr("sess-b"), nil)).Error; err != nil {
		t.Fatalf("other session row: %v", err)
	}
	if err := db.Create(mk(nil, &uid)).Error; err != nil {
		t.Fatalf("user row: %v", err)
	}
	if err := db.Create(mk(nil, &uid)).Error; err == nil {
		t.Fatalf("second row for same (hash, user) should violate the unique index")
	}
}
