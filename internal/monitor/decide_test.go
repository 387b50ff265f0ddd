package monitor

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		code int
		err  error
		want Status
	}{
		{200, nil, StatusUp},
		{301, nil, StatusUp},
		{399, nil, StatusUp},
		{199, nil, StatusDown},
		{400, nil, StatusDown},
		{503, nil, StatusDown},
		{200, errors.New("timeout"), StatusDown},
		{0, errors.New("no such host"), StatusDown},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Classify(tc.code, tc.err), "code=%d err=%v", tc.code, tc.err)
	}
}

func TestDecide(t *testing.T) {
	cases := []struct {
		name       string
		persisted  Status
		classified Status
		next       Status
		alert      AlertKind
		write      bool
	}{
		{"unknown to up is silent", StatusUnknown, StatusUp, StatusUnknown, AlertNone, false},
		{"up to up", StatusUp, StatusUp, StatusUp, AlertNone, false},
		{"unknown to down", StatusUnknown, StatusDown, StatusDown, AlertDown, true},
		{"up to down", StatusUp, StatusDown, StatusDown, AlertDown, true},
		{"down to down", StatusDown, StatusDown, StatusDown, AlertNone, false},
		{"down to up", StatusDown, StatusUp, StatusUp, AlertUp, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			next, alert, write := Decide(tc.persisted, tc.classified)
			assert.Equal(t, tc.next, next)
			assert.Equal(t, tc.alert, alert)
			assert.Equal(t, tc.write, write)
		})
	}
}

func TestExpiresWithin(t *testing.T) {
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	day := 24 * time.Hour

	assert.True(t, ExpiresWithin(now.Add(day), now, 2))
	assert.True(t, ExpiresWithin(now.Add(2*day), now, 2), "upper bound is inclusive")
	assert.False(t, ExpiresWithin(now.Add(3*day), now, 2))
	assert.False(t, ExpiresWithin(now, now, 2), "lower bound is exclusive")
	assert.False(t, ExpiresWithin(now.Add(-day), now, 2))
}

func TestDaysRemainingFloors(t *testing.T) {
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, 1, DaysRemaining(now.Add(47*time.Hour), now))
	assert.Equal(t, 0, DaysRemaining(now.Add(23*time.Hour), now))
	assert.Equal(t, 2, DaysRemaining(now.Add(48*time.Hour), now))
	assert.Equal(t, StatusUnknown, ParseStatus("weird"))
	assert.Equal(t, StatusDown, ParseStatus("down"))
}
