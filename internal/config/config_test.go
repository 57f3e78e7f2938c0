package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("DB_DRIVER", "")
	t.Setenv("STORE_DRIVER", "")
	t.Setenv("DATABASE_URL", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.AI.ChunkSize != 50 {
		t.Errorf("Expected chunk size 50, got %d", cfg.AI.ChunkSize)
	}
	if cfg.Export.PagesPerFile != 50 {
		t.Errorf("Expected 50 pages per file, got %d", cfg.Export.PagesPerFile)
	}
	if cfg.Export.ScaleFactor != 2 {
		t.Errorf("Expected scale factor 2, got %v", cfg.Export.ScaleFactor)
	}
	if cfg.Database.Driver != "postgres" || cfg.Store.Driver != "sql" {
		t.Errorf("Expected postgres/sql drivers, got %s/%s", cfg.Database.Driver, cfg.Store.Driver)
	}
	if cfg.JWT.AccessExpiry != 15*time.Minute {
		t.Errorf("Expected 15m access expiry, got %v", cfg.JWT.AccessExpiry)
	}
}

func TestLoadRequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	if _, err := Load(); err == nil {
		t.Fatal("Expected error without JWT_SECRET")
	}
}

func TestLoadOfflineSkipsSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	cfg, err := LoadOffline()
	if err != nil {
		t.Fatalf("Expected offline load without JWT_SECRET, got %v", err)
	}
	if cfg.AI.ChunkSize != 50 {
		t.Errorf("Expected chunk size 50, got %d", cfg.AI.ChunkSize)
	}
}

func TestLoadRejectsBadChunkSize(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("AI_CHUNK_SIZE", "0")
	if _, err := Load(); err == nil {
		t.Fatal("Expected error for zero chunk size")
	}
}

func TestLoadRejectsUnknownStore(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("STORE_DRIVER", "redis")
	if _, err := Load(); err == nil {
		t.Fatal("Expected error for unknown store driver")
	}
}

func TestBuildDSN(t *testing.T) {
	tests := []struct {
		driver   string
		expected string
	}{
		{"mysql", "root:pw@tcp(db:3306)/cards?charset=utf8mb4&parseTime=True&loc=Local"},
		{"postgres", "host=db port=3306 user=root password=pw dbname=cards sslmode=disable"},
		{"sqlite", "cards.db"},
	}

	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			if got := buildDSN(tt.driver, "db", "3306", "root", "pw", "cards", "cards.db"); got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestSplitList(t *testing.T) {
	got := splitList(" http://a.test, ,http://b.test ")
	if len(got) != 2 || got[0] != "http://a.test" || got[1] != "http://b.test" {
		t.Errorf("Unexpected origins: %v", got)
	}
}
