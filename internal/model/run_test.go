package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_MarkStage(t *testing.T) {
	r := &Run{}
	assert.False(t, r.StageDone(StageSearch))

	first := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r.MarkStage(StageSearch, first)
	r.MarkStage(StageSearch, first.Add(time.Hour))
	require.Len(t, r.Stages, 1)
	assert.True(t, r.StageDone(StageSearch))
	assert.Equal(t, first, r.Stages[0].CompletedAt, "first marker kept")
	assert.False(t, r.StageDone(StageAds))
}

func TestRun_AddError(t *testing.T) {
	r := &Run{}
	r.AddError(StageError{Stage: StageAds, Kind: "provider_timeout", Lead: "Acme"})
	r.AddError(StageError{Stage: StageAI, Kind: "provider_error", Lead: "Beta"})
	assert.Equal(t, 2, r.Stats.Errors)
	assert.Equal(t, StageAI, r.Errors[1].Stage)
}

func TestAreaStats_Count(t *testing.T) {
	var a AreaStats
	a.Count(&Lead{Classification: ClassificationHot, WhatsApp: "+55"})
	a.Count(&Lead{Classification: ClassificationWarm, Website: "https://x"})
	a.Count(&Lead{Classification: ClassificationCool, Website: "https://y"})
	a.Count(&Lead{Classification: ClassificationCold})

	assert.Equal(t, 4, a.Total)
	assert.Equal(t, 1, a.Hot)
	assert.Equal(t, 1, a.Warm)
	assert.Equal(t, 1, a.Cool)
	assert.Equal(t, 1, a.Cold)
	assert.Equal(t, 1, a.WithWhatsApp)
	assert.Equal(t, 2, a.NoWebsite)
}
