package registry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRecordHeartbeatMarksConnected(t *testing.T) {
	r := New(300*time.Second, 180*time.Second)
	reconnected := r.RecordHeartbeat(1001, time.Now().UTC(), 50*time.Millisecond)
	assert.False(t, reconnected)
	assert.True(t, r.IsConnected(1001))
}

func TestSweepDetectsDisconnect(t *testing.T) {
	r := New(300*time.Second, 180*time.Second)
	past := time.Now().UTC().Add(-10 * time.Minute)
	r.RecordHeartbeat(1001, past, 10*time.Millisecond)

	transitions := r.Sweep(time.Now().UTC())
	assert.Len(t, transitions, 1)
	assert.Equal(t, "MT5_DISCONNECT", transitions[0].Event)
	assert.False(t, r.IsConnected(1001))
}

func TestSweepDetectsReconnect(t *testing.T) {
	r := New(300*time.Second, 180*time.Second)
	past := time.Now().UTC().Add(-10 * time.Minute)
	r.RecordHeartbeat(1001, past, 10*time.Millisecond)
	r.Sweep(time.Now().UTC())

	r.RecordHeartbeat(1001, time.Now().UTC(), 10*time.Millisecond)
	transitions := r.Sweep(time.Now().UTC())
	assert.Len(t, transitions, 1)
	assert.Equal(t, "MT5_RECONNECT", transitions[0].Event)
}

func TestTickStaleWithNoTicksEver(t *testing.T) {
	r := New(300*time.Second, 180*time.Second)
	r.RecordHeartbeat(1001, time.Now().UTC(), 10*time.Millisecond)
	assert.True(t, r.TickStale(1001, time.Now().UTC()))
}

func TestHealthScoreUnknownAccountIsZero(t *testing.T) {
	r := New(300*time.Second, 180*time.Second)
	assert.Equal(t, 0.0, r.HealthScore(9999))
}
