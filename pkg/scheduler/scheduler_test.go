package scheduler_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vaishnaviprints/printlogic/pkg/scheduler"
)

func TestScheduleFiresAfterDeadline(t *testing.T) {
	dq := scheduler.NewQueue[string](1)
	defer dq.Close()

	require.NoError(t, dq.Schedule("order_1", "payload", time.Now().Add(20*time.Millisecond)))

	select {
	case entry := <-dq.Out():
		assert.Equal(t, "order_1", entry.ID)
		assert.Equal(t, "payload", entry.Value)
	case <-time.After(2 * time.Second):
		t.Fatal("entry never fired")
	}
}

func TestCancelPreventsDelivery(t *testing.T) {
	dq := scheduler.NewQueue[string](1)
	defer dq.Close()

	require.NoError(t, dq.Schedule("order_1", "payload", time.Now().Add(50*time.Millisecond)))
	assert.True(t, dq.Cancel("order_1"))
	assert.False(t, dq.Cancel("order_1"))

	select {
	case entry := <-dq.Out():
		t.Fatalf("cancelled entry fired: %+v", entry)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestScheduleReplacesExistingEntry(t *testing.T) {
	dq := scheduler.NewQueue[string](2)
	defer dq.Close()

	require.NoError(t, dq.Schedule("order_1", "first", time.Now().Add(30*time.Millisecond)))
	require.NoError(t, dq.Schedule("order_1", "second", time.Now().Add(60*time.Millisecond)))

	select {
	case entry := <-dq.Out():
		assert.Equal(t, "second", entry.Value)
	case <-time.After(2 * time.Second):
		t.Fatal("entry never fired")
	}

	select {
	case entry := <-dq.Out():
		t.Fatalf("replaced entry fired: %+v", entry)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestEarlierEntryFiresFirst(t *testing.T) {
	dq := scheduler.NewQueue[string](2)
	defer dq.Close()

	require.NoError(t, dq.Schedule("late", "late", time.Now().Add(80*time.Millisecond)))
	require.NoError(t, dq.Schedule("early", "early", time.Now().Add(20*time.Millisecond)))

	select {
	case entry := <-dq.Out():
		assert.Equal(t, "early", entry.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("entry never fired")
	}
}

func TestScheduleAfterCloseFails(t *testing.T) {
	dq := scheduler.NewQueue[string](1)
	dq.Close()

	assert.Error(t, dq.Schedule("order_1", "payload", time.Now()))
}
