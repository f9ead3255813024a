package common

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMapper(t *testing.T) {
	lengths := Mapper([]string{"a", "bb", ""}, func(s string) int { return len(s) })
	assert.Equal(t, []int{1, 2, 0}, lengths)
}

func TestFilter(t *testing.T) {
	tokens := Filter([]string{"t1", "", "  ", "t2"}, func(s string) bool { return strings.TrimSpace(s) != "" })
	assert.Equal(t, []string{"t1", "t2"}, tokens)
	assert.Empty(t, Filter([]string{}, func(string) bool { return true }))
}

func TestFirstSegment(t *testing.T) {
	assert.Equal(t, "Sensor", FirstSegment("Sensor_A", "_"))
	assert.Equal(t, "Kitchen", FirstSegment("Kitchen_B_2", "_"))
	assert.Equal(t, "NoSuffix", FirstSegment("NoSuffix", "_"))
	assert.Equal(t, "", FirstSegment("_lead", "_"))
}
