package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"uptimeninja/internal/task/scheduler"
	logx "uptimeninja/pkg/logx"
)

func scheduleNames(s *scheduler.Service) []string {
	var names []string
	for _, it := range s.Schedules() {
		names = append(names, it.Name)
	}
	return names
}

func TestApplySchedulesReplacesOnlyChangedSweeps(t *testing.T) {
	a := &App{log: logx.Nop(), sched: scheduler.New(scheduler.Config{Enabled: true}, logx.Nop(), nil)}

	require.NoError(t, a.applySchedules(schedules{Liveness: "@every 1m", Certificate: "0 0 * * *", WindowDays: 2}))
	assert.Equal(t, []string{scheduleLiveness, scheduleCertificates}, scheduleNames(a.sched))
	assert.Equal(t, int64(2), a.window.Load())

	// Window only: nothing is re-registered.
	require.NoError(t, a.applySchedules(schedules{Liveness: "@every 1m", Certificate: "0 0 * * *", WindowDays: 7}))
	assert.Equal(t, []string{scheduleLiveness, scheduleCertificates}, scheduleNames(a.sched))
	assert.Equal(t, int64(7), a.window.Load())

	// Liveness only: the certificate entry stays put.
	require.NoError(t, a.applySchedules(schedules{Liveness: "@every 2m", Certificate: "0 0 * * *", WindowDays: 7}))
	assert.Equal(t, []string{scheduleCertificates, scheduleLiveness}, scheduleNames(a.sched))
	infos := a.sched.Schedules()
	assert.Equal(t, "@every 2m0s", infos[1].Spec)

	assert.Error(t, a.applySchedules(schedules{Liveness: "soon", Certificate: "0 0 * * *", WindowDays: 7}))
	assert.Equal(t, "@every 2m", a.sweeps.Liveness)
}
