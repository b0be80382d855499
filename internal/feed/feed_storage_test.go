package feed

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VitaminP8/forum/internal/errs"
)

func TestPeriod_Duration(t *testing.T) {
	d, err := PeriodWeek.Duration()
	require.NoError(t, err)
	assert.Equal(t, 7*24*time.Hour, d)

	d, err = PeriodYear.Duration()
	require.NoError(t, err)
	assert.Equal(t, 365*24*time.Hour, d)

	_, err = Period("bogus").Duration()
	assert.ErrorIs(t, err, errs.ErrInvalidInput)
}
