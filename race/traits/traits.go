// Package traits derives cosmetic car traits from a car id. Generation is
// pure: the same id always rolls the same car, so traits never need to be
// stored and can be recomputed anywhere.
package traits

import (
	"crypto/sha256"
	"encoding/binary"
)

// Traits is the full cosmetic loadout of one car.
type Traits struct {
	CarID       string `json:"car_id"`
	Chassis     string `json:"chassis"`
	Color       string `json:"color"`
	Livery      string `json:"livery"`
	Wheels      string `json:"wheels"`
	Spoiler     string `json:"spoiler"`
	RarityScore int    `json:"rarity_score"`
	Rarity      string `json:"rarity"`
}

// option is one weighted roll outcome. Higher weight means more common;
// the rarity points scale inversely with the weight band.
type option struct {
	name   string
	weight int
	points int
}

var chassisOptions = []option{
	{"roadster", 40, 0},
	{"coupe", 30, 1},
	{"muscle", 18, 2},
	{"formula", 9, 4},
	{"prototype", 3, 8},
}

var colorOptions = []option{
	{"crimson", 22, 0},
	{"cobalt", 22, 0},
	{"jet black", 18, 1},
	{"arctic white", 18, 1},
	{"racing green", 10, 2},
	{"sunburst orange", 6, 4},
	{"chrome", 4, 8},
}

var liveryOptions = []option{
	{"plain", 35, 0},
	{"twin stripe", 25, 1},
	{"checkered", 18, 2},
	{"flames", 12, 3},
	{"lightning", 7, 5},
	{"gold leaf", 3, 9},
}

var wheelOptions = []option{
	{"steel", 40, 0},
	{"alloy", 32, 1},
	{"low profile", 18, 3},
	{"magnesium", 10, 6},
}

var spoilerOptions = []option{
	{"none", 45, 0},
	{"ducktail", 28, 1},
	{"gt wing", 19, 3},
	{"active aero", 8, 7},
}

// Rarity bands by total points across all rolls.
const (
	rarityRareAt      = 8
	rarityEpicAt      = 15
	rarityLegendaryAt = 24
)

// Generate rolls the traits for a car id.
func Generate(carID string) Traits {
	r := newRoller(carID)
	t := Traits{CarID: carID}
	t.Chassis = r.pick(chassisOptions, &t.RarityScore)
	t.Color = r.pick(colorOptions, &t.RarityScore)
	t.Livery = r.pick(liveryOptions, &t.RarityScore)
	t.Wheels = r.pick(wheelOptions, &t.RarityScore)
	t.Spoiler = r.pick(spoilerOptions, &t.RarityScore)
	t.Rarity = band(t.RarityScore)
	return t
}

func band(score int) string {
	switch {
	case score >= rarityLegendaryAt:
		return "legendary"
	case score >= rarityEpicAt:
		return "epic"
	case score >= rarityRareAt:
		return "rare"
	default:
		return "common"
	}
}

// roller is a splitmix64 stream seeded from the car id's digest.
type roller struct {
	state uint64
}

func newRoller(carID string) *roller {
	sum := sha256.Sum256([]byte(carID))
	return &roller{state: binary.BigEndian.Uint64(sum[:8])}
}

func (r *roller) next() uint64 {
	r.state += 0x9E3779B97F4A7C15
	z := r.state
	z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
	z = (z ^ (z >> 27)) * 0x94D049BB133111EB
	return z ^ (z >> 31)
}

func (r *roller) pick(options []option, score *int) string {
	total := 0
	for _, o := range options {
		total += o.weight
	}
	roll := int(r.next() % uint64(total))
	for _, o := range options {
		roll -= o.weight
		if roll < 0 {
			*score += o.points
			return o.name
		}
	}
	last := options[len(options)-1]
	*score += last.points
	return last.name
}
