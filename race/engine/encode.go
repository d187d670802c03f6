package engine

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
)

// StateHash is the hex form of the sha256 digest of an encoded observation.
// It is the key for Q-table rows.
type StateHash string

// EncodingMode selects how much of the neighborhood survives encoding.
type EncodingMode int

const (
	// EncodingExact folds exact speed modifiers and exact distance field
	// values into the hash. Maximum state resolution, slowest convergence.
	EncodingExact EncodingMode = iota
	// EncodingReduced buckets speeds into slow/normal/boost and distances
	// into closer/equal/farther relative to the occupied tile. Far smaller
	// state space, faster convergence.
	EncodingReduced
)

func (m EncodingMode) String() string {
	if m == EncodingReduced {
		return "reduced"
	}
	return "exact"
}

// ParseEncodingMode converts a mode name to its value, defaulting to exact.
func ParseEncodingMode(s string) EncodingMode {
	if s == "reduced" {
		return EncodingReduced
	}
	return EncodingExact
}

const offGridMarker = 0xFF

// EncodeState hashes a car's local observation: the 3x3 neighborhood
// centered on (x, y) plus the occupied tile's distance field value. Two
// cars on the same tile of the same track always produce the same hash,
// which is what lets Q-tables transfer between races and tracks.
func EncodeState(track *Track, x, y int, mode EncodingMode) StateHash {
	// 9 tiles * 7 bytes worst case, plus mode and center progress.
	buf := make([]byte, 0, 64)
	buf = append(buf, byte(mode))

	center := track.TileAt(x, y)
	buf = binary.BigEndian.AppendUint32(buf, uint32(int32(center.ProgressTowardsFinish)))

	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			nx, ny := x+dx, y+dy
			if !track.InBounds(nx, ny) {
				buf = append(buf, offGridMarker)
				continue
			}
			tile := track.TileAt(nx, ny)
			buf = appendTile(buf, tile, center.ProgressTowardsFinish, mode)
		}
	}

	sum := sha256.Sum256(buf)
	return StateHash(hex.EncodeToString(sum[:]))
}

func appendTile(buf []byte, tile *TrackTile, centerProgress int, mode EncodingMode) []byte {
	props := tile.Properties
	var flags byte
	if props.BlocksMovement {
		flags |= 1 << 0
	}
	if props.SkipNextTurn {
		flags |= 1 << 1
	}
	if props.IsFinish {
		flags |= 1 << 2
	}
	if props.IsStart {
		flags |= 1 << 3
	}
	buf = append(buf, flags)

	if mode == EncodingExact {
		buf = append(buf, byte(int8(props.SpeedModifier)), byte(int8(props.Damage)))
		return binary.BigEndian.AppendUint32(buf, uint32(int32(tile.ProgressTowardsFinish)))
	}

	buf = append(buf, speedClass(props.SpeedModifier))
	return append(buf, progressClass(tile.ProgressTowardsFinish, centerProgress))
}

func speedClass(speed int) byte {
	switch {
	case speed < DefaultSpeed:
		return 0
	case speed == DefaultSpeed:
		return 1
	default:
		return 2
	}
}

func progressClass(progress, centerProgress int) byte {
	switch {
	case progress == unreachable:
		return 3
	case progress < centerProgress:
		return 0
	case progress == centerProgress:
		return 1
	default:
		return 2
	}
}
