package engine

import "math"

// maxRow returns the largest value in a Q-row.
func maxRow(q [ActionCount]int) int {
	best := q[0]
	for _, v := range q[1:] {
		if v > best {
			best = v
		}
	}
	return best
}

// NextQ computes one Q-learning step:
//
//	Q' = clamp((1-alpha)*Q + alpha*(reward + gamma*maxNext), -100, 100)
//
// maxNext is the best value of the successor state's row, or 0 on terminal
// transitions. Values round to the nearest integer before clamping, so the
// table stays integral and bounded no matter how long training runs.
func NextQ(current, reward, maxNext int, terminal bool) int {
	future := 0.0
	if !terminal {
		future = Gamma * float64(maxNext)
	}
	next := (1-Alpha)*float64(current) + Alpha*(float64(reward)+future)
	rounded := int(math.Round(next))
	if rounded > MaxQValue {
		return MaxQValue
	}
	if rounded < MinQValue {
		return MinQValue
	}
	return rounded
}

// ApplyUpdates folds one car's update batch into that car's table of
// Q-rows; callers group BuildUpdates output by CarID first. Rows
// materialize on first touch as all zeros. Updates apply in order;
// within one batch an earlier update's write is visible to a later
// update's successor lookup, matching single-race sequential learning.
func ApplyUpdates(table map[StateHash][ActionCount]int, updates []QUpdate, numbers RewardNumbers) {
	for _, u := range updates {
		row := table[u.StateHash]
		maxNext := 0
		terminal := u.NextStateHash == nil
		if !terminal {
			maxNext = maxRow(table[*u.NextStateHash])
		}
		row[u.Action] = NextQ(row[u.Action], numbers.Value(u.Reward), maxNext, terminal)
		table[u.StateHash] = row
	}
}
