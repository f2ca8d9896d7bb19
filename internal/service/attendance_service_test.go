package service

import (
	"schoolhub_backend/internal/config"
	"schoolhub_backend/internal/model"
	"schoolhub_backend/internal/util"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var campus = &model.Location{
	Name:         "Main Campus",
	Latitude:     52.520008,
	Longitude:    13.404954,
	RadiusMeters: 150,
}

var attendanceCfg = &config.AttendanceConfig{
	LateGraceMinutes: 15,
	ClassStartHour:   8,
}

func TestEvaluateCheckInInsideFence(t *testing.T) {
	at := time.Date(2025, 3, 10, 7, 55, 0, 0, time.UTC)

	// ~50 m east of the campus point.
	distance, status, err := evaluateCheckIn(campus, 52.520008, 13.405689, at, attendanceCfg)
	require.NoError(t, err)
	assert.Equal(t, model.AttendancePresent, status)
	assert.InDelta(t, 50, distance, 5)
}

func TestEvaluateCheckInOutsideFence(t *testing.T) {
	at := time.Date(2025, 3, 10, 7, 55, 0, 0, time.UTC)

	// ~1.1 km away.
	_, _, err := evaluateCheckIn(campus, 52.530008, 13.404954, at, attendanceCfg)
	require.ErrorIs(t, err, util.ErrOutsideGeofence)
}

func TestEvaluateCheckInLateness(t *testing.T) {
	onTime := time.Date(2025, 3, 10, 8, 10, 0, 0, time.UTC)
	_, status, err := evaluateCheckIn(campus, campus.Latitude, campus.Longitude, onTime, attendanceCfg)
	require.NoError(t, err)
	assert.Equal(t, model.AttendancePresent, status)

	// Exactly at the grace boundary still counts as present.
	boundary := time.Date(2025, 3, 10, 8, 15, 0, 0, time.UTC)
	_, status, err = evaluateCheckIn(campus, campus.Latitude, campus.Longitude, boundary, attendanceCfg)
	require.NoError(t, err)
	assert.Equal(t, model.AttendancePresent, status)

	late := time.Date(2025, 3, 10, 8, 16, 0, 0, time.UTC)
	_, status, err = evaluateCheckIn(campus, campus.Latitude, campus.Longitude, late, attendanceCfg)
	require.NoError(t, err)
	assert.Equal(t, model.AttendanceLate, status)
}
