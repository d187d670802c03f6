package engine

import "math"

// rng is a splitmix64 stream. Each car gets a fresh stream per tick, derived
// from the race seed, so simulations replay identically for a given seed
// regardless of goroutine scheduling or car iteration order.
type rng struct {
	state uint64
}

func newRNG(seed uint64) *rng {
	return &rng{state: seed}
}

// carTickRNG derives the deterministic stream for one car on one tick.
func carTickRNG(seed uint64, carIdx, tick int) *rng {
	mixed := seed ^ (uint64(carIdx)+1)*0x9E3779B97F4A7C15 ^ (uint64(tick)+1)*0xBF58476D1CE4E5B9
	return newRNG(mixed)
}

func (r *rng) next() uint64 {
	r.state += 0x9E3779B97F4A7C15
	z := r.state
	z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
	z = (z ^ (z >> 27)) * 0x94D049BB133111EB
	return z ^ (z >> 31)
}

// float64 returns a uniform value in [0, 1).
func (r *rng) float64() float64 {
	return float64(r.next()>>11) / (1 << 53)
}

// intn returns a uniform value in [0, n).
func (r *rng) intn(n int) int {
	return int(r.next() % uint64(n))
}

// SelectionStrategy names an action selection policy.
type SelectionStrategy string

const (
	// SelectBest always takes the highest-valued action, lowest index on
	// ties. Fully deterministic, used for evaluation races.
	SelectBest SelectionStrategy = "best"
	// SelectRandom ignores learned values entirely.
	SelectRandom SelectionStrategy = "random"
	// SelectEpsilonGreedy explores uniformly with probability epsilon.
	SelectEpsilonGreedy SelectionStrategy = "epsilon_greedy"
	// SelectSoftmax samples actions in proportion to exp(Q/temperature).
	SelectSoftmax SelectionStrategy = "softmax"
	// SelectEpsilonDecay is epsilon-greedy with epsilon shrinking as the
	// car accumulates races, annealing from exploration to exploitation.
	SelectEpsilonDecay SelectionStrategy = "epsilon_decay"
)

// ParseStrategy converts a strategy name, defaulting to epsilon-greedy.
func ParseStrategy(s string) SelectionStrategy {
	switch SelectionStrategy(s) {
	case SelectBest, SelectRandom, SelectEpsilonGreedy, SelectSoftmax, SelectEpsilonDecay:
		return SelectionStrategy(s)
	}
	return SelectEpsilonGreedy
}

// Selector turns a Q-row into an action under a fixed policy.
type Selector struct {
	Strategy SelectionStrategy
	// Epsilon is the exploration rate for epsilon-greedy, and the initial
	// rate for epsilon-decay.
	Epsilon float64
	// Temperature scales softmax sharpness. Higher is more uniform.
	Temperature float64
	// DecayRate and MinEpsilon drive epsilon-decay:
	// effective = max(MinEpsilon, Epsilon * DecayRate^racesSeen).
	DecayRate  float64
	MinEpsilon float64
	// RacesSeen is how many races the car had completed before this one.
	RacesSeen int
}

// DefaultSelector returns the training policy used when a race request
// does not specify one.
func DefaultSelector() Selector {
	return Selector{
		Strategy:    SelectEpsilonGreedy,
		Epsilon:     0.2,
		Temperature: 10,
		DecayRate:   0.995,
		MinEpsilon:  0.02,
	}
}

// Select picks an action for one Q-row. The rng is consumed only by
// stochastic strategies; SelectBest never touches it.
func (s Selector) Select(q [ActionCount]int, r *rng) Action {
	switch s.Strategy {
	case SelectRandom:
		return Action(r.intn(ActionCount))
	case SelectEpsilonGreedy:
		if r.float64() < s.Epsilon {
			return Action(r.intn(ActionCount))
		}
		return bestAction(q)
	case SelectEpsilonDecay:
		eps := s.Epsilon * math.Pow(s.DecayRate, float64(s.RacesSeen))
		if eps < s.MinEpsilon {
			eps = s.MinEpsilon
		}
		if r.float64() < eps {
			return Action(r.intn(ActionCount))
		}
		return bestAction(q)
	case SelectSoftmax:
		return softmaxAction(q, s.Temperature, r)
	default:
		return bestAction(q)
	}
}

func bestAction(q [ActionCount]int) Action {
	best := 0
	for i := 1; i < ActionCount; i++ {
		if q[i] > q[best] {
			best = i
		}
	}
	return Action(best)
}

func softmaxAction(q [ActionCount]int, temperature float64, r *rng) Action {
	if temperature <= 0 {
		temperature = 1
	}
	// Subtracting the max keeps the exponentials in range. Q-values are
	// bounded to [-100, 100] so overflow cannot happen anyway, but the
	// subtraction also makes the distribution invariant to shifts.
	maxQ := q[0]
	for _, v := range q[1:] {
		if v > maxQ {
			maxQ = v
		}
	}
	var weights [ActionCount]float64
	var total float64
	for i, v := range q {
		w := math.Exp(float64(v-maxQ) / temperature)
		weights[i] = w
		total += w
	}
	target := r.float64() * total
	for i, w := range weights {
		target -= w
		if target < 0 {
			return Action(i)
		}
	}
	return Action(ActionCount - 1)
}
