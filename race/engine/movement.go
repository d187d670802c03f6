package engine

// actionDelta returns the unit direction for an action. Stay is (0, 0).
func actionDelta(a Action) (int, int) {
	switch a {
	case ActionUp:
		return 0, -1
	case ActionDown:
		return 0, 1
	case ActionLeft:
		return -1, 0
	case ActionRight:
		return 1, 0
	}
	return 0, 0
}

// intendedTarget resolves where an action would land the car. Moves are a
// single atomic jump of speed tiles; intermediate tiles are flown over and
// never inspected. ok is false when the landing tile is off the grid or
// blocks movement, in which case the car holds its position and the tick
// records a wall hit.
func intendedTarget(track *Track, x, y int, a Action, speed int) (Position, bool) {
	dx, dy := actionDelta(a)
	if dx == 0 && dy == 0 {
		return Position{X: x, Y: y}, true
	}
	if speed < 1 {
		speed = 1
	}
	tx, ty := x+dx*speed, y+dy*speed
	if !track.InBounds(tx, ty) {
		return Position{X: x, Y: y}, false
	}
	if track.TileAt(tx, ty).Properties.BlocksMovement {
		return Position{X: x, Y: y}, false
	}
	return Position{X: tx, Y: ty}, true
}
