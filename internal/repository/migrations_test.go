package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMigrations_ordered(t *testing.T) {
	for i, m := range migrations {
		assert.Equal(t, i+1, m.Version, "migration %d out of sequence", i)
		assert.NotEmpty(t, m.Description)
		assert.NotEmpty(t, m.SQL)
	}

	assert.Equal(t, len(migrations), latestVersion())
}
