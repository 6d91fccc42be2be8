package ai

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(""))

	short := EstimateTokens("hello world")
	assert.Greater(t, short, 0)
	assert.Less(t, short, 10)

	long := EstimateTokens(strings.Repeat("func main() { return }\n", 200))
	assert.Greater(t, long, short)
}
