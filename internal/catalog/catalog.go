package catalog

import (
	"math/rand"
	"sort"
)

// Role classifies a player within the catalog.
type Role string

const (
	RoleBatsman      Role = "Batsman"
	RoleWicketKeeper Role = "Wicket-keeper"
	RoleFastBowler   Role = "Fast Bowler"
	RoleSpinBowler   Role = "Spin Bowler"
	RoleAllRounder   Role = "All-rounder"
)

// Player is a single selectable catalog entry. Immutable once loaded.
type Player struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	Role      Role   `json:"role"`
	Rating    int    `json:"rating"`
	Country   string `json:"country"`
	Specialty string `json:"specialty"`
}

var players = []Player{
	{ID: 1, Name: "Virat Kohli", Role: RoleBatsman, Rating: 95, Country: "India", Specialty: "Chase Master"},
	{ID: 2, Name: "Rohit Sharma", Role: RoleBatsman, Rating: 92, Country: "India", Specialty: "Opener"},
	{ID: 3, Name: "Kane Williamson", Role: RoleBatsman, Rating: 93, Country: "New Zealand", Specialty: "Anchor"},
	{ID: 4, Name: "Steve Smith", Role: RoleBatsman, Rating: 94, Country: "Australia", Specialty: "Technique"},
	{ID: 5, Name: "Joe Root", Role: RoleBatsman, Rating: 90, Country: "England", Specialty: "Consistency"},
	{ID: 6, Name: "Babar Azam", Role: RoleBatsman, Rating: 91, Country: "Pakistan", Specialty: "Elegance"},
	{ID: 7, Name: "David Warner", Role: RoleBatsman, Rating: 88, Country: "Australia", Specialty: "Aggression"},
	{ID: 8, Name: "KL Rahul", Role: RoleWicketKeeper, Rating: 87, Country: "India", Specialty: "Versatility"},
	{ID: 9, Name: "MS Dhoni", Role: RoleWicketKeeper, Rating: 89, Country: "India", Specialty: "Finisher"},
	{ID: 10, Name: "Rishabh Pant", Role: RoleWicketKeeper, Rating: 85, Country: "India", Specialty: "Explosive"},
	{ID: 11, Name: "Jos Buttler", Role: RoleWicketKeeper, Rating: 86, Country: "England", Specialty: "Power Play"},
	{ID: 12, Name: "Quinton de Kock", Role: RoleWicketKeeper, Rating: 84, Country: "South Africa", Specialty: "Opener"},
	{ID: 13, Name: "Jasprit Bumrah", Role: RoleFastBowler, Rating: 96, Country: "India", Specialty: "Death Bowling"},
	{ID: 14, Name: "Pat Cummins", Role: RoleFastBowler, Rating: 94, Country: "Australia", Specialty: "Pace & Bounce"},
	{ID: 15, Name: "Kagiso Rabada", Role: RoleFastBowler, Rating: 92, Country: "South Africa", Specialty: "Express Pace"},
	{ID: 16, Name: "Trent Boult", Role: RoleFastBowler, Rating: 90, Country: "New Zealand", Specialty: "Swing"},
	{ID: 17, Name: "Mohammed Shami", Role: RoleFastBowler, Rating: 88, Country: "India", Specialty: "Reverse Swing"},
	{ID: 18, Name: "Mitchell Starc", Role: RoleFastBowler, Rating: 89, Country: "Australia", Specialty: "Left Arm Pace"},
	{ID: 19, Name: "Rashid Khan", Role: RoleSpinBowler, Rating: 91, Country: "Afghanistan", Specialty: "Leg Spin"},
	{ID: 20, Name: "Ravindra Jadeja", Role: RoleAllRounder, Rating: 87, Country: "India", Specialty: "Spin + Fielding"},
	{ID: 21, Name: "Yuzvendra Chahal", Role: RoleSpinBowler, Rating: 83, Country: "India", Specialty: "Leg Spin"},
	{ID: 22, Name: "Adam Zampa", Role: RoleSpinBowler, Rating: 82, Country: "Australia", Specialty: "Leg Spin"},
	{ID: 23, Name: "Ben Stokes", Role: RoleAllRounder, Rating: 93, Country: "England", Specialty: "Match Winner"},
	{ID: 24, Name: "Hardik Pandya", Role: RoleAllRounder, Rating: 85, Country: "India", Specialty: "Power & Pace"},
	{ID: 25, Name: "Shakib Al Hasan", Role: RoleAllRounder, Rating: 86, Country: "Bangladesh", Specialty: "Spin + Batting"},
	{ID: 26, Name: "Glenn Maxwell", Role: RoleAllRounder, Rating: 84, Country: "Australia", Specialty: "Big Hitting"},
	{ID: 27, Name: "Jason Holder", Role: RoleAllRounder, Rating: 83, Country: "West Indies", Specialty: "Pace + Leadership"},
	{ID: 28, Name: "Chris Woakes", Role: RoleAllRounder, Rating: 81, Country: "England", Specialty: "Swing Bowling"},
	{ID: 29, Name: "Suryakumar Yadav", Role: RoleBatsman, Rating: 82, Country: "India", Specialty: "360 Shots"},
	{ID: 30, Name: "Faf du Plessis", Role: RoleBatsman, Rating: 86, Country: "South Africa", Specialty: "Experience"},
}

// All returns a copy of the full catalog in canonical order.
func All() []Player {
	out := make([]Player, len(players))
	copy(out, players)
	return out
}

// ByRole returns the catalog entries matching the given role.
func ByRole(role Role) []Player {
	var out []Player
	for _, p := range players {
		if p.Role == role {
			out = append(out, p)
		}
	}
	return out
}

// Top returns the n highest-rated players, best first.
func Top(n int) []Player {
	out := All()
	sort.SliceStable(out, func(i, j int) bool { return out[i].Rating > out[j].Rating })
	if n < len(out) {
		out = out[:n]
	}
	return out
}

// Shuffled returns a freshly shuffled copy of the catalog for a new room.
func Shuffled(rng *rand.Rand) []Player {
	out := All()
	rng.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	return out
}
