package sched

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func mkTask(slot, pid, counter, priority int) *Task {
	return &Task{Slot: slot, Pid: pid, State: Running, Counter: counter, Priority: priority}
}

func TestScheduleSelectsGreatestCounter(t *testing.T) {
	tb := NewTable(8)
	t1 := mkTask(1, 1, 5, 2)
	t2 := mkTask(2, 2, 9, 2)
	require.True(t, tb.AllocSlot(t1))
	require.True(t, tb.AllocSlot(t2))

	picked := tb.Schedule()
	require.Equal(t, t2, picked)
}

func TestScheduleTieBreaksOnHigherSlot(t *testing.T) {
	tb := NewTable(8)
	t1 := mkTask(1, 1, 5, 2)
	t2 := mkTask(2, 2, 5, 2)
	require.True(t, tb.AllocSlot(t1))
	require.True(t, tb.AllocSlot(t2))

	picked := tb.Schedule()
	require.Equal(t, t2, picked)
}

func TestScheduleRebucketsWhenAllCountersZero(t *testing.T) {
	tb := NewTable(8)
	t1 := mkTask(1, 1, 0, 3)
	require.True(t, tb.AllocSlot(t1))
	tb.tasks[0].Counter = 0 // idle task also exhausted

	picked := tb.Schedule()
	require.NotNil(t, picked)
	// Rebucket law: counter_after <= priority + counter_before/2.
	require.LessOrEqual(t, picked.Counter, picked.Priority+0/2)
	require.GreaterOrEqual(t, picked.Counter, 1)
}

func TestSleepOnRestoresPreviousHeadToRunning(t *testing.T) {
	tb := NewTable(8)
	a := mkTask(1, 1, 3, 1)
	b := mkTask(2, 2, 3, 1)
	require.True(t, tb.AllocSlot(a))
	require.True(t, tb.AllocSlot(b))

	wq := &WaitQueue{}
	tb.SleepOn(wq, a)
	require.Equal(t, a, wq.Head)

	tb.SleepOn(wq, b)
	require.Equal(t, b, wq.Head)
	require.Equal(t, Running, a.State)
}

func TestWakeUpTransitionsHeadAndClearsQueue(t *testing.T) {
	tb := NewTable(8)
	a := mkTask(1, 1, 3, 1)
	require.True(t, tb.AllocSlot(a))

	wq := &WaitQueue{}
	tb.SleepOn(wq, a)
	require.Equal(t, Uninterruptible, a.State)

	WakeUp(wq)
	require.Equal(t, Running, a.State)
	require.Nil(t, wq.Head)
}

func TestWakeUpOnlyAffectsCurrentHeadAfterSupplant(t *testing.T) {
	// Documents the invariant interruptible_sleep_on's loop relies on:
	// once a later sleeper supplants the head, a wake_up only resurrects
	// that later sleeper — the earlier one is truncated from the queue
	// (spec.md §8's "LIFO with truncation" open-question decision).
	tb := NewTable(8)
	a := mkTask(1, 1, 3, 1)
	b := mkTask(2, 2, 3, 1)
	require.True(t, tb.AllocSlot(a))
	require.True(t, tb.AllocSlot(b))

	wq := &WaitQueue{}
	tb.SleepOn(wq, a)
	tb.SleepOn(wq, b) // supplants a at the head

	WakeUp(wq)
	require.Equal(t, Running, b.State)
	require.Nil(t, wq.Head)
}

func TestDoTimerPreemptsOnlyInUserModeWhenExhausted(t *testing.T) {
	tb := NewTable(8)
	a := mkTask(1, 1, 1, 2)
	require.True(t, tb.AllocSlot(a))
	tb.current = 1

	tb.DoTimer(true)
	require.Equal(t, int64(1), a.Utime)
	// The counter hit 0 in user mode, so Schedule ran and rebucketed it
	// to 0/2 + priority.
	require.Equal(t, 2, a.Counter)
}

func TestCheckAlarmsSetsSigAlrmOnExpiry(t *testing.T) {
	tb := NewTable(8)
	a := mkTask(1, 1, 5, 1)
	a.AlarmTick = 1
	require.True(t, tb.AllocSlot(a))
	tb.current = 1

	tb.DoTimer(false)
	require.NotZero(t, a.Signal&sigAlrmBit)
	require.Zero(t, a.AlarmTick)
}
