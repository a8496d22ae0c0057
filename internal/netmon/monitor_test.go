package netmon

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMonitorDefaultsToOnline(t *testing.T) {
	m := NewMonitor()
	assert.True(t, m.IsOnline())
}

func TestMonitorTransitions(t *testing.T) {
	m := NewMonitor()

	m.SetOnline(false)
	assert.False(t, m.IsOnline())

	m.SetOnline(true)
	assert.True(t, m.IsOnline())
}

func TestMonitorNotifiesOnTransitionOnly(t *testing.T) {
	m := NewMonitor()

	var events []bool
	m.Subscribe(func(online bool) {
		events = append(events, online)
	})

	m.SetOnline(true) // already online, no event
	m.SetOnline(false)
	m.SetOnline(false) // no change, no event
	m.SetOnline(true)

	assert.Equal(t, []bool{false, true}, events)
}

func TestMonitorUnsubscribe(t *testing.T) {
	m := NewMonitor()

	calls := 0
	unsubscribe := m.Subscribe(func(bool) { calls++ })

	m.SetOnline(false)
	unsubscribe()
	m.SetOnline(true)

	assert.Equal(t, 1, calls)
}
