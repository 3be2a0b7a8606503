package resource

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAllocateWithinCapacity(t *testing.T) {
	m := NewManager(nil)
	m.RegisterPool("api_quota", 5)

	alloc, err := m.Allocate(context.Background(), []Requirement{{Type: "api_quota", Amount: 3}}, 0.5, "tool_a")
	require.NoError(t, err)
	require.Equal(t, uint32(2), poolOf(t, m, "api_quota").Available())

	m.Release(alloc)
	require.Equal(t, uint32(5), poolOf(t, m, "api_quota").Available())
}

func TestAllocateThenReleaseRestoresAvailability(t *testing.T) {
	m := NewManager(nil)
	m.RegisterPool("handles", 10)
	before := poolOf(t, m, "handles").Available()

	alloc, err := m.Allocate(context.Background(), []Requirement{{Type: "handles", Amount: 4}}, 1, "x")
	require.NoError(t, err)
	m.Release(alloc)

	require.Equal(t, before, poolOf(t, m, "handles").Available())
}

func TestReleaseIdempotent(t *testing.T) {
	m := NewManager(nil)
	m.RegisterPool("handles", 2)
	alloc, err := m.Allocate(context.Background(), []Requirement{{Type: "handles", Amount: 2}}, 1, "x")
	require.NoError(t, err)

	m.Release(alloc)
	avail := poolOf(t, m, "handles").Available()
	m.Release(alloc)
	require.Equal(t, avail, poolOf(t, m, "handles").Available())
}

func TestAllocateTimesOutWhenExhausted(t *testing.T) {
	m := NewManager(nil)
	m.RegisterPool("slots", 1)

	held, err := m.Allocate(context.Background(), []Requirement{{Type: "slots", Amount: 1}}, 1, "holder")
	require.NoError(t, err)
	defer m.Release(held)

	tight := 20 * time.Millisecond
	_, err = m.Allocate(context.Background(), []Requirement{{Type: "slots", Amount: 1, AllocationTimeout: &tight}}, 0.5, "waiter")
	require.Error(t, err)
}

func TestAllocatePriorityOrdering(t *testing.T) {
	m := NewManager(nil)
	m.RegisterPool("slots", 1)

	held, err := m.Allocate(context.Background(), []Requirement{{Type: "slots", Amount: 1}}, 1, "holder")
	require.NoError(t, err)

	order := make(chan string, 2)
	done := make(chan struct{})
	go func() {
		_, err := m.Allocate(context.Background(), []Requirement{{Type: "slots", Amount: 1}}, 0.1, "low")
		require.NoError(t, err)
		order <- "low"
		done <- struct{}{}
	}()
	time.Sleep(10 * time.Millisecond)
	go func() {
		alloc, err := m.Allocate(context.Background(), []Requirement{{Type: "slots", Amount: 1}}, 0.9, "high")
		require.NoError(t, err)
		order <- "high"
		m.Release(alloc)
	}()
	time.Sleep(10 * time.Millisecond)

	m.Release(held)

	first := <-order
	require.Equal(t, "high", first)
	<-done
}

func TestUnknownPoolRejected(t *testing.T) {
	m := NewManager(nil)
	_, err := m.Allocate(context.Background(), []Requirement{{Type: "ghost", Amount: 1}}, 0.5, "x")
	require.Error(t, err)
}

func poolOf(t *testing.T, m *Manager, resourceType string) *Pool {
	t.Helper()
	p, err := m.pool(resourceType)
	require.NoError(t, err)
	return p
}
