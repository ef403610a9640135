package store

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// NewTestDB opens a fresh, private in-memory database for a single test,
// following the setupTestDB helper convention used across this codebase's
// gateway service tests.
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := OpenMemory(dsn)
	if err != nil {
		t.Fatalf("store: open test db: %v", err)
	}
	return db
}
