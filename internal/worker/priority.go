package worker

import (
	"sort"
	"time"

	"github.com/hellhack-ui/HoloPass/internal/models"
	"github.com/hellhack-ui/HoloPass/internal/types"
)

// jobPriority ranks actions within a batch. Higher runs first.
func jobPriority(action types.StampJobAction) int {
	switch action {
	case types.JobMintPassport:
		return 2
	case types.JobAddStamp:
		return 1
	default:
		return 0
	}
}

// PrioritizeJobs orders a claimed batch so every mint runs before any stamp
// mirror. A stamp claimed in the same batch as its owner's mint then finds the
// passport already on chain. Ties keep claim order.
func PrioritizeJobs(jobs []*models.StampJob) []*models.StampJob {
	out := make([]*models.StampJob, len(jobs))
	copy(out, jobs)
	sort.SliceStable(out, func(i, j int) bool {
		return jobPriority(out[i].Action) > jobPriority(out[j].Action)
	})
	return out
}

// Backoff returns the delay before attempt+1, doubling from base and capped at max
func Backoff(attempt int, base, max time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= max {
			return max
		}
	}
	if d > max {
		return max
	}
	return d
}
