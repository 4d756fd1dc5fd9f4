package quota

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheck(t *testing.T) {
	v := NewValidator(Limits{MaxAreas: 5, MaxPerArea: 50, MaxTotal: 150})

	tests := []struct {
		name      string
		areas     int
		perArea   int
		wantErr   bool
		wantLimit string
	}{
		{name: "within limits", areas: 3, perArea: 50},
		{name: "exactly total", areas: 5, perArea: 30},
		{name: "too many areas", areas: 6, perArea: 10, wantErr: true, wantLimit: "areas"},
		{name: "per area too large", areas: 1, perArea: 51, wantErr: true, wantLimit: "max_per_area"},
		{name: "product too large", areas: 4, perArea: 40, wantErr: true, wantLimit: "total_results"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Check(tt.areas, tt.perArea)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrQuotaExceeded))

			var qe *Error
			require.True(t, errors.As(err, &qe))
			assert.Equal(t, tt.wantLimit, qe.Limit)
		})
	}
}

func TestNewValidatorDefaults(t *testing.T) {
	v := NewValidator(Limits{})
	assert.Equal(t, DefaultLimits(), v.Limits())
}

func TestErrorMessage(t *testing.T) {
	err := &Error{Limit: "areas", Got: 7, Max: 5}
	assert.Equal(t, "quota exceeded: areas 7 > 5", err.Error())
}
