package db

import (
	"path/filepath"
	"testing"

	"github.com/daryatsv/chapel/internal/models"
)

func TestDSN(t *testing.T) {
	got := DSN("root", "127.0.0.1", 3306, "chapel")
	want := "root@tcp(127.0.0.1:3306)/chapel?parseTime=true"
	if got != want {
		t.Errorf("DSN = %q, want %q", got, want)
	}
}

func TestConnectSQLiteAndMigrate(t *testing.T) {
	gdb, err := ConnectSQLite(filepath.Join(t.TempDir(), "chapel.db"))
	if err != nil {
		t.Fatalf("ConnectSQLite: %v", err)
	}
	if err := AutoMigrate(gdb); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}

	for _, m := range AllModels() {
		if !gdb.Migrator().HasTable(m) {
			t.Errorf("missing table for %T", m)
		}
	}
}

func TestReset(t *testing.T) {
	gdb, err := ConnectSQLite(":memory:")
	if err != nil {
		t.Fatalf("ConnectSQLite: %v", err)
	}
	if err := AutoMigrate(gdb); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}

	if err := gdb.Create(&models.User{ID: 1, Handle: "alice"}).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}

	if err := Reset(gdb); err != nil {
		t.Fatalf("Reset: %v", err)
	}

	var count int64
	gdb.Model(&models.User{}).Count(&count)
	if count != 0 {
		t.Errorf("users after reset = %d, want 0", count)
	}
	if !gdb.Migrator().HasTable(&models.Marriage{}) {
		t.Error("tables should be re-created after reset")
	}
}
