package typing

import "time"

// Int63n is the random source for randomized delays. *math/rand.Rand satisfies it.
type Int63n interface {
	Int63n(n int64) int64
}

// Delay is a fixed delay when Max <= Min, otherwise uniform in [Min, Max).
type Delay struct {
	Min time.Duration
	Max time.Duration
}

// Next 返回本次回复前的等待时长。
func (d Delay) Next(rng Int63n) time.Duration {
	if d.Min < 0 {
		d.Min = 0
	}
	if d.Max <= d.Min || rng == nil {
		return d.Min
	}
	return d.Min + time.Duration(rng.Int63n(int64(d.Max-d.Min)))
}

// Scale multiplies both bounds; a factor <= 0 disables the delay.
func (d Delay) Scale(factor float64) Delay {
	if factor <= 0 {
		return Delay{}
	}
	return Delay{
		Min: time.Duration(float64(d.Min) * factor),
		Max: time.Duration(float64(d.Max) * factor),
	}
}
