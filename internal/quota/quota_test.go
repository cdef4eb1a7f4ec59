package quota

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOperatorQuota(t *testing.T) {
	q := &OperatorQuota{ScanQuota: 2}

	assert.True(t, q.CanScan())
	assert.NoError(t, q.IncrementUsed())
	assert.NoError(t, q.IncrementUsed())

	assert.False(t, q.CanScan())
	assert.ErrorIs(t, q.IncrementUsed(), ErrQuotaExceeded)
	assert.Equal(t, 2, q.Used())
	assert.Equal(t, 2, q.Quota())
}
