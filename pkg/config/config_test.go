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
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.True(t, cfg.Scheduler.Enabled)
	assert.Equal(t, 30*time.Minute, cfg.Scheduler.ProposalTTL)
	assert.Equal(t, 10*time.Minute, cfg.Scheduler.CacheTTL)
	assert.Equal(t, 10000, cfg.Scheduler.MaxPlacements)
	assert.Equal(t, []string{"math", "physics", "chemistry", "history", "literature", "english"}, cfg.Scheduler.CoreSubjects)
	assert.Equal(t, 3, cfg.Scheduler.CoreSessions)
	assert.Equal(t, 2, cfg.Scheduler.DefaultSessions)
	assert.Equal(t, 6, cfg.Scheduler.MaxDaysPerWeek)
	assert.True(t, cfg.Scheduler.PreferFiveDays)
	assert.Equal(t, 18, cfg.Scheduler.TermWeeks)
	assert.Nil(t, cfg.CORS.AllowedOrigins)
}

func TestFromViperOverrides(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("SCHEDULER_CORE_SUBJECTS", " math , art ,")
	v.Set("SCHEDULER_PROPOSAL_TTL", "not-a-duration")
	v.Set("SCHEDULER_MAX_DAYS_PER_WEEK", 7)
	v.Set("ALLOWED_ORIGINS", "http://a.test, http://b.test")

	cfg := fromViper(v)

	assert.Equal(t, []string{"math", "art"}, cfg.Scheduler.CoreSubjects)
	assert.Equal(t, 30*time.Minute, cfg.Scheduler.ProposalTTL)
	assert.Equal(t, 6, cfg.Scheduler.MaxDaysPerWeek)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORS.AllowedOrigins)
}

func TestParseDuration(t *testing.T) {
	assert.Equal(t, time.Minute, parseDuration("", time.Minute))
	assert.Equal(t, 2*time.Second, parseDuration("2s", time.Minute))
}
