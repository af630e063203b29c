package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestFromViperDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	cfg := fromViper(v)

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, "@every 1m", cfg.Notifications.Schedule)
	assert.Equal(t, time.Hour, cfg.Notifications.TimeWaitThreshold)
	assert.Equal(t, 17, cfg.Notifications.TimeLimitHour)
	assert.Equal(t, 30*time.Minute, cfg.Support.Cooldown)
	assert.Equal(t, 10*time.Second, cfg.Agent.MaxFixAge)
	assert.Equal(t, 20*time.Second, cfg.Agent.FixTimeout)
	assert.True(t, cfg.Agent.HighAccuracy)
	assert.Equal(t, time.Local, cfg.Notifications.Location())
}

func TestFromViperOverrides(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("TIME_LIMIT_HOUR", 42)
	v.Set("SUPPORT_COOLDOWN", "not-a-duration")
	v.Set("NOTIFICATION_SUBSCRIBERS", " sup@example.com, ,ops@example.com ")
	v.Set("TIMEZONE", "UTC")

	cfg := fromViper(v)

	assert.Equal(t, 17, cfg.Notifications.TimeLimitHour)
	assert.Equal(t, 30*time.Minute, cfg.Support.Cooldown)
	assert.Equal(t, []string{"sup@example.com", "ops@example.com"}, cfg.Notifications.Subscribers)
	assert.Equal(t, time.UTC, cfg.Notifications.Location())
}
