package chronicle

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	storyCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chronicle_story_cache_total",
			Help: "Story artifact lookups by result (hit, miss, unreadable, skipped).",
		},
		[]string{"result"},
	)
	storyGenerationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chronicle_story_generations_total",
			Help: "Chapter story invocations by outcome and failed stage.",
		},
		[]string{"outcome", "stage"},
	)
	storyScenesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chronicle_story_quests_truncated_total",
			Help: "Completed quests left out of stories because of the scene budget.",
		},
	)
)
