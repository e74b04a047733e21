package progression

// Params defines all configurable parameters for experience and levels
type Params struct {
	// XPPerMinute is the baseline experience granted per tracked minute
	XPPerMinute float64

	// OnTimeBonus multiplies the award when a card is finished within its estimate
	OnTimeBonus float64

	// LevelConstant (k) scales the level curve: level = floor(sqrt(xp / k)) + 1
	LevelConstant float64
}

// ParamsConfig allows overriding the default parameters when creating a new Params instance.
// Zero or negative values keep the default.
type ParamsConfig struct {
	XPPerMinute   float64
	OnTimeBonus   float64
	LevelConstant float64
}

// NewDefaultParams creates a new Params instance with default values
func NewDefaultParams() *Params {
	return &Params{
		XPPerMinute: 1.0,

		// 20% extra for finishing on time
		OnTimeBonus: 1.2,

		// 100 XP reaches level 2, 400 XP level 3, 900 XP level 4
		LevelConstant: 100,
	}
}

// NewParams creates a new Params instance with custom configuration
func NewParams(config ParamsConfig) *Params {
	params := NewDefaultParams()

	if config.XPPerMinute > 0 {
		params.XPPerMinute = config.XPPerMinute
	}
	// A bonus below 1 would be a penalty
	if config.OnTimeBonus >= 1 {
		params.OnTimeBonus = config.OnTimeBonus
	}
	if config.LevelConstant > 0 {
		params.LevelConstant = config.LevelConstant
	}

	return params
}
