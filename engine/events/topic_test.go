package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopic_PublishOrderAndUnsubscribe(t *testing.T) {
	topic := NewTopic[int]()
	var got []string

	unsubA := topic.Subscribe(func(v int) { got = append(got, "a") })
	topic.Subscribe(func(v int) { got = append(got, "b") })
	require.Equal(t, 2, topic.Len())

	topic.Publish(1)
	assert.Equal(t, []string{"a", "b"}, got)

	unsubA()
	unsubA()
	assert.Equal(t, 1, topic.Len())

	got = nil
	topic.Publish(2)
	assert.Equal(t, []string{"b"}, got)
}

func TestTopic_HandlerMayUnsubscribeDuringPublish(t *testing.T) {
	topic := NewTopic[string]()
	calls := 0
	var unsub func()
	unsub = topic.Subscribe(func(string) {
		calls++
		unsub()
	})

	topic.Publish("x")
	topic.Publish("y")
	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, topic.Len())
}

func TestNewBus_AllTopicsReady(t *testing.T) {
	bus := NewBus()
	var names []string
	bus.LayerAdded.Subscribe(func(e LayerChanged) { names = append(names, e.Name) })
	bus.LayerAdded.Publish(LayerChanged{Name: "layer_0"})

	assert.Equal(t, []string{"layer_0"}, names)
	assert.NotNil(t, bus.Warnings)
	assert.NotNil(t, bus.ComputeDone)
	assert.NotNil(t, bus.Picked)
	assert.NotNil(t, bus.ConfigApplied)
	assert.NotNil(t, bus.LayerRemoved)
}
