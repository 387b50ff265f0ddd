package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"uptimeninja/internal/config"
)

func decode(t *testing.T, yaml string) *config.Config {
	t.Helper()
	cfg, err := config.Decode("config.yaml", []byte(yaml))
	require.NoError(t, err)
	return cfg
}

const minimalYAML = `
telegram:
  token: "123:abc"
`

func TestMinimalConfigDefaults(t *testing.T) {
	cfg := decode(t, minimalYAML)
	require.NoError(t, validate(cfg))

	sc, err := mapStorageConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", sc.Driver)
	assert.Equal(t, defaultSQLitePath, sc.Path)
	assert.Equal(t, time.Second, sc.BusyTimeout)

	mc, err := mapMonitorConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, mc.ProbeTimeout)
	assert.Equal(t, 10*time.Second, mc.CertTimeout)

	sw, err := mapSchedules(cfg)
	require.NoError(t, err)
	assert.Equal(t, schedules{Liveness: "@every 1m", Certificate: "0 0 * * *", WindowDays: 2}, sw)

	schedCfg, err := mapSchedulerConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, "UTC", schedCfg.Timezone)
	assert.True(t, schedCfg.Enabled, "sweeps run without a scheduler section")

	nc, err := mapNotifierConfig(cfg)
	require.NoError(t, err)
	assert.True(t, nc.Enabled)

	cc, err := mapConversationConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, 60*time.Second, cc.SessionTimeout)

	oc, err := mapOpsConfig(cfg)
	require.NoError(t, err)
	assert.False(t, oc.Enabled)
	assert.Equal(t, "127.0.0.1:9090", oc.Addr)
}

func TestLoggingOperatorTarget(t *testing.T) {
	cfg := decode(t, `
telegram:
  token: "x"
  group_log: "-100123"
logging:
  level: info
  telegram:
    enabled: true
    thread_id: 7
`)
	lc, err := mapLoggingConfig(cfg)
	require.NoError(t, err)
	assert.True(t, lc.Operator.Enabled)
	assert.Equal(t, int64(-100123), lc.Operator.ChatID)
	assert.Equal(t, 7, lc.Operator.ThreadID)
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]string{
		"missing token": `
scheduler:
  enabled: true
`,
		"bad poll timeout": `
telegram:
  token: "x"
  poll_timeout: soon
`,
		"operator without group": `
telegram:
  token: "x"
logging:
  telegram:
    enabled: true
`,
		"non numeric group": `
telegram:
  token: "x"
  group_log: "ops"
`,
		"postgres without dsn": `
telegram:
  token: "x"
storage:
  driver: postgres
`,
		"unknown driver": `
telegram:
  token: "x"
storage:
  driver: mongo
`,
		"bad liveness schedule": `
telegram:
  token: "x"
monitor:
  liveness_schedule: "every: nope"
`,
		"negative window": `
telegram:
  token: "x"
monitor:
  expiry_window_days: -1
`,
		"bad timezone": `
telegram:
  token: "x"
scheduler:
  timezone: Mars/Olympus
`,
		"bad session timeout": `
telegram:
  token: "x"
conversation:
  session_timeout: "1 minute"
`,
		"public ops without token": `
telegram:
  token: "x"
ops:
  enabled: true
  addr: "0.0.0.0:9090"
`,
		"smtp without host": `
telegram:
  token: "x"
email:
  provider: smtp
  from: bot@example.com
`,
		"unknown email provider": `
telegram:
  token: "x"
email:
  provider: pigeon
`,
	}
	for name, yaml := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, validate(decode(t, yaml)))
		})
	}
}

func TestPostgresMapping(t *testing.T) {
	cfg := decode(t, `
telegram:
  token: "x"
storage:
  driver: postgres
  dsn: "postgres://bot@localhost/uptime?sslmode=disable"
  max_open_conns: 4
`)
	sc, err := mapStorageConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, "postgres", sc.Driver)
	assert.Equal(t, 4, sc.MaxOpenConns)
}

func TestExplicitNotifierSection(t *testing.T) {
	cfg := decode(t, `
telegram:
  token: "x"
notifier:
  enabled: false
  workers: 3
  send_timeout: 2s
`)
	nc, err := mapNotifierConfig(cfg)
	require.NoError(t, err)
	assert.False(t, nc.Enabled)
	assert.Equal(t, 3, nc.Workers)
	assert.Equal(t, 2*time.Second, nc.SendTimeout)
}

func TestSchedulerEnabledFlag(t *testing.T) {
	cases := []struct {
		name string
		yaml string
		want bool
	}{
		{"section without flag", `
telegram:
  token: "x"
scheduler:
  timezone: UTC
`, true},
		{"explicitly disabled", `
telegram:
  token: "x"
scheduler:
  enabled: false
`, false},
	}
	for _, tc := range cases {
		sc, err := mapSchedulerConfig(decode(t, tc.yaml))
		require.NoError(t, err, tc.name)
		assert.Equal(t, tc.want, sc.Enabled, tc.name)
	}
}
