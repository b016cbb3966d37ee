package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"smart-menu-go/internal/model"
)

func TestRoute(t *testing.T) {
	const heavyThreshold = 3

	tests := []struct {
		name string
		cls  model.ClassificationResult
		mem  MemoryPresence
		want model.Tier
	}{
		{
			name: "greeting without profile goes light",
			cls:  model.ClassificationResult{Type: model.QueryGreeting, Complexity: 1, Signals: []string{SignalGreeting}},
			mem:  MemoryPresence{},
			want: model.TierLight,
		},
		{
			name: "greeting with profile is not light",
			cls:  model.ClassificationResult{Type: model.QueryGreeting, Complexity: 1, Signals: []string{SignalGreeting}},
			mem:  MemoryPresence{HasProfile: true},
			want: model.TierMemoryAware,
		},
		{
			name: "simple menu query without history goes light",
			cls:  model.ClassificationResult{Type: model.QueryMenu, Complexity: 1, Signals: []string{SignalMenu}},
			mem:  MemoryPresence{},
			want: model.TierLight,
		},
		{
			name: "menu query with history needs memory",
			cls:  model.ClassificationResult{Type: model.QueryMenu, Complexity: 1, Signals: []string{SignalMenu}},
			mem:  MemoryPresence{HasHistory: true},
			want: model.TierMemoryAware,
		},
		{
			name: "clarification need always goes heavy",
			cls:  model.ClassificationResult{Type: model.QueryFollowUp, Complexity: 1, Signals: []string{SignalBackReference}},
			mem:  MemoryPresence{NeedsClarify: true},
			want: model.TierHeavy,
		},
		{
			name: "personal reference goes heavy",
			cls:  model.ClassificationResult{Type: model.QueryGeneral, Complexity: 2, Signals: []string{SignalPersonal}},
			mem:  MemoryPresence{},
			want: model.TierHeavy,
		},
		{
			name: "multi part request goes heavy",
			cls:  model.ClassificationResult{Type: model.QueryRecommendation, Complexity: 2, Signals: []string{SignalRecommendation, SignalMultiPart}},
			mem:  MemoryPresence{},
			want: model.TierHeavy,
		},
		{
			name: "dietary combined with other signals goes heavy",
			cls:  model.ClassificationResult{Type: model.QueryDietary, Complexity: 2, Signals: []string{SignalDietary, SignalRecommendation}},
			mem:  MemoryPresence{},
			want: model.TierHeavy,
		},
		{
			name: "lone dietary signal stays memory aware",
			cls:  model.ClassificationResult{Type: model.QueryDietary, Complexity: 1, Signals: []string{SignalDietary}},
			mem:  MemoryPresence{},
			want: model.TierMemoryAware,
		},
		{
			name: "complexity at threshold goes heavy",
			cls:  model.ClassificationResult{Type: model.QueryGeneral, Complexity: 3, Signals: []string{SignalPrice, SignalMultiQuestion, SignalLongMessage}},
			mem:  MemoryPresence{},
			want: model.TierHeavy,
		},
		{
			name: "moderate complexity defaults to memory aware",
			cls:  model.ClassificationResult{Type: model.QueryGeneral, Complexity: 2},
			mem:  MemoryPresence{HasHistory: true},
			want: model.TierMemoryAware,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Route(tt.cls, tt.mem, heavyThreshold)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRoute_Deterministic(t *testing.T) {
	cls := Classify("I'm vegetarian, what do you recommend?")
	mem := MemoryPresence{HasHistory: true}

	first := Route(cls, mem, 3)
	second := Route(cls, mem, 3)
	assert.Equal(t, first, second)
}

func TestNextSaferTier(t *testing.T) {
	next, ok := NextSaferTier(model.TierHeavy)
	assert.True(t, ok)
	assert.Equal(t, model.TierMemoryAware, next)

	next, ok = NextSaferTier(model.TierMemoryAware)
	assert.True(t, ok)
	assert.Equal(t, model.TierLight, next)

	_, ok = NextSaferTier(model.TierLight)
	assert.False(t, ok)
}
