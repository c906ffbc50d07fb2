package retry

import "time"

// backoffMinutes is the delay schedule indexed by attempt number.
// Attempts past the schedule stay on the flat tail.
var backoffMinutes = map[int]int{
	1: 1,
	2: 3,
	3: 7,
	4: 15,
}

const backoffTailMinutes = 15

// Backoff returns the delay to impose before the given attempt number.
// Deterministic, no jitter: concurrency is bounded by the per-recipient
// lock, not by stampede risk across recipients.
func Backoff(attemptNo int) time.Duration {
	if m, ok := backoffMinutes[attemptNo]; ok {
		return time.Duration(m) * time.Minute
	}
	return backoffTailMinutes * time.Minute
}
