package physics

// Pitch and disc constants. Units are pitch units and seconds.
const (
	PitchWidth  = 1000.0
	PitchHeight = 600.0
	GoalWidth   = 180.0

	StrikerRadius = 28.0
	StrikerMass   = 2.0
	BallRadius    = 16.0
	BallMass      = 1.0

	Friction        = 260.0 // speed lost per second
	MinSpeed        = 4.0
	WallRestitution = 0.7
	DiscRestitution = 0.94
	MaxImpulse      = 3000.0
	SpinDamping     = 0.05 // fraction of spin kept per second

	// MaxSubstep bounds the integration step so fast discs cannot tunnel.
	MaxSubstep = 1.0 / 240.0

	BallID = "ball"
)
