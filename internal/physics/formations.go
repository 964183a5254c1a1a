package physics

// DefaultFormation is used when a player never picked one.
const DefaultFormation = "1-2"

// formations hold kickoff spots for the left-hand team; the right-hand team
// is mirrored.
var formations = map[string][]Vec2{
	"1-2": {
		{X: 150, Y: 300},
		{X: 380, Y: 180},
		{X: 380, Y: 420},
	},
	"2-1": {
		{X: 220, Y: 180},
		{X: 220, Y: 420},
		{X: 400, Y: 300},
	},
	"1-1-1": {
		{X: 150, Y: 300},
		{X: 280, Y: 300},
		{X: 420, Y: 300},
	},
}

func formationSpots(id string) []Vec2 {
	if spots, ok := formations[id]; ok {
		return spots
	}
	return formations[DefaultFormation]
}

// Formations lists the known formation ids.
func Formations() []string {
	return []string{"1-2", "2-1", "1-1-1"}
}
