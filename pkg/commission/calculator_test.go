package commission

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrderCommission(t *testing.T) {
	tests := []struct {
		name       string
		orderCents int64
		rateBps    int64
		want       int64
	}{
		{"ten percent", 10000, 1000, 1000},
		{"rounds half up", 125, 1000, 13},   // 12.5 -> 13
		{"rounds down", 124, 1000, 12},      // 12.4 -> 12
		{"small order small rate", 99, 100, 1}, // 0.99 -> 1
		{"zero order", 0, 1000, 0},
		{"negative order", -500, 1000, 0},
		{"zero rate", 10000, 0, 0},
		{"full rate", 10000, 10000, 10000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, OrderCommission(tt.orderCents, tt.rateBps))
		})
	}
}

func TestFlatAmounts(t *testing.T) {
	assert.Equal(t, int64(50), Reward(50))
	assert.Equal(t, int64(0), Reward(0))
	assert.Equal(t, int64(500), CouponCommission(500))
	assert.Equal(t, int64(200), ReferrerBonusCredits)
}
