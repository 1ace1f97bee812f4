package all

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"rowcore/internal/storage"
)

func TestAllKindsRegistered(t *testing.T) {
	assert.Equal(t, []string{"mongo", "mssql", "mysql", "postgres", "sqlite"}, storage.ListKinds())
}
