package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		score float64
		want  string
	}{
		{0, ExtremeFear},
		{24, ExtremeFear},
		{25, Fear},
		{46, Fear},
		{47, Neutral},
		{50, Neutral},
		{54, Neutral},
		{55, Greed},
		{75, Greed},
		{76, ExtremeGreed},
		{100, ExtremeGreed},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.score), "score=%v", tt.score)
	}
}
