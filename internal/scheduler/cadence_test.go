package scheduler_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/gigharvest/internal/plugin"
	"github.com/jonesrussell/gigharvest/internal/scheduler"
)

func TestResolveCadence(t *testing.T) {
	tests := []struct {
		name            string
		meta            plugin.Metadata
		overrideMinutes int
		jobIndex        int
		staggerMinutes  int
		want            time.Duration
	}{
		{
			name: "plugin minutes",
			meta: plugin.Metadata{Name: "a", ScheduleMinutes: 90},
			want: 90 * time.Minute,
		},
		{
			name:            "override beats plugin minutes",
			meta:            plugin.Metadata{Name: "a", ScheduleMinutes: 90},
			overrideMinutes: 15,
			want:            15 * time.Minute,
		},
		{
			name:            "override beats cron",
			meta:            plugin.Metadata{Name: "a", Schedule: "0 * * * *"},
			overrideMinutes: 15,
			want:            15 * time.Minute,
		},
		{
			name: "hourly cron",
			meta: plugin.Metadata{Name: "a", Schedule: "0 * * * *"},
			want: time.Hour,
		},
		{
			name:           "stagger offset per job index",
			meta:           plugin.Metadata{Name: "a", ScheduleMinutes: 60},
			jobIndex:       3,
			staggerMinutes: 2,
			want:           66 * time.Minute,
		},
		{
			name:           "index zero gets no stagger",
			meta:           plugin.Metadata{Name: "a", ScheduleMinutes: 60},
			jobIndex:       0,
			staggerMinutes: 5,
			want:           60 * time.Minute,
		},
		{
			name: "floor stops hot loops",
			meta: plugin.Metadata{Name: "a", ScheduleMinutes: 0},
			want: time.Minute,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := scheduler.ResolveCadence(&tt.meta, tt.overrideMinutes, tt.jobIndex, tt.staggerMinutes)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveCadenceInvalidCron(t *testing.T) {
	meta := plugin.Metadata{Name: "broken", Schedule: "not a cron"}
	_, err := scheduler.ResolveCadence(&meta, 0, 0, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")
}
