package sim

// Defaults for the live configuration. The default timing plan green-waves
// the forward direction at 60 mph through three evenly spaced lights.
const (
	DefaultSpeedLimitMPH      = 60.0
	DefaultMiddleLightPercent = 50.0
	DefaultCycleSeconds       = 30.0
	DefaultSpawnEverySeconds  = 2.0
)

// Config is the live simulation configuration. Cycle durations and manual
// offsets are indexed left, middle, right.
type Config struct {
	SpeedLimitMPH      float64     `json:"speedLimitMph"`
	MiddleLightPercent float64     `json:"middleLightPercent"`
	CycleSeconds       [3]float64  `json:"cycleSeconds"`
	ManualOffsets      [3]*float64 `json:"manualOffsets,omitempty"`
	SpawnEverySeconds  float64     `json:"spawnEverySeconds"`
}

// DefaultConfig returns the demonstration's baseline timing plan.
func DefaultConfig() Config {
	return Config{
		SpeedLimitMPH:      DefaultSpeedLimitMPH,
		MiddleLightPercent: DefaultMiddleLightPercent,
		CycleSeconds:       [3]float64{DefaultCycleSeconds, DefaultCycleSeconds, DefaultCycleSeconds},
		SpawnEverySeconds:  DefaultSpawnEverySeconds,
	}
}

func (cfg Config) normalized() Config {
	normalized := cfg
	if normalized.SpeedLimitMPH <= 0 {
		normalized.SpeedLimitMPH = DefaultSpeedLimitMPH
	}
	if normalized.MiddleLightPercent < 0 {
		normalized.MiddleLightPercent = 0
	}
	if normalized.MiddleLightPercent > 100 {
		normalized.MiddleLightPercent = 100
	}
	for i := range normalized.CycleSeconds {
		if normalized.CycleSeconds[i] <= 0 {
			normalized.CycleSeconds[i] = DefaultCycleSeconds
		}
	}
	if normalized.SpawnEverySeconds <= 0 {
		normalized.SpawnEverySeconds = DefaultSpawnEverySeconds
	}
	return normalized
}

// Normalized clamps out-of-range values back to usable defaults.
func (cfg Config) Normalized() Config {
	return cfg.normalized()
}

// spawnIntervalTicks converts the real-second spawn cadence into ticks.
func (cfg Config) spawnIntervalTicks() uint64 {
	ticks := uint64(cfg.SpawnEverySeconds * TickRate)
	if ticks < 1 {
		ticks = 1
	}
	return ticks
}

// ConfigPatch carries an incremental configuration change. Nil fields leave
// the live configuration untouched. GreenWave set to true clears all manual
// offsets so every light re-derives its offset from the forward arrival time.
// The jsonschema tags feed the schema document served to the control surface.
type ConfigPatch struct {
	SpeedLimitMPH      *float64    `json:"speedLimitMph,omitempty" jsonschema:"title=Speed limit,description=Speed limit in miles per hour applied to every live vehicle,minimum=1"`
	MiddleLightPercent *float64    `json:"middleLightPositionPercent,omitempty" jsonschema:"title=Middle light position,description=Movable light position as a percentage of the road between the outer lights,minimum=0,maximum=100"`
	LightOffsets       [3]*float64 `json:"lightOffsetSeconds,omitempty" jsonschema:"title=Light offsets,description=Signed per-light phase offsets in simulated seconds ordered left then middle then right"`
	LightCycles        [3]*float64 `json:"lightCycleSeconds,omitempty" jsonschema:"title=Light cycle durations,description=Per-light cycle durations in simulated seconds ordered left then middle then right"`
	GreenWave          *bool       `json:"greenWave,omitempty" jsonschema:"title=Green wave,description=When true resets every manual offset so the forward direction is green-waved"`
	SpawnEverySeconds  *float64    `json:"spawnEverySeconds,omitempty" jsonschema:"title=Spawn interval,description=Real seconds between vehicle spawn pairs,minimum=0.2"`
}

// Empty reports whether the patch changes nothing.
func (p ConfigPatch) Empty() bool {
	if p.SpeedLimitMPH != nil || p.MiddleLightPercent != nil || p.GreenWave != nil || p.SpawnEverySeconds != nil {
		return false
	}
	for i := range p.LightOffsets {
		if p.LightOffsets[i] != nil || p.LightCycles[i] != nil {
			return false
		}
	}
	return true
}

// apply folds the patch into cfg and reports whether the speed limit changed.
func (p ConfigPatch) apply(cfg *Config) (speedChanged bool) {
	if p.SpeedLimitMPH != nil && *p.SpeedLimitMPH != cfg.SpeedLimitMPH {
		cfg.SpeedLimitMPH = *p.SpeedLimitMPH
		speedChanged = true
	}
	if p.MiddleLightPercent != nil {
		cfg.MiddleLightPercent = *p.MiddleLightPercent
	}
	if p.GreenWave != nil && *p.GreenWave {
		cfg.ManualOffsets = [3]*float64{}
	}
	for i := range p.LightOffsets {
		if p.LightOffsets[i] != nil {
			offset := *p.LightOffsets[i]
			cfg.ManualOffsets[i] = &offset
		}
		if p.LightCycles[i] != nil {
			cfg.CycleSeconds[i] = *p.LightCycles[i]
		}
	}
	if p.SpawnEverySeconds != nil {
		cfg.SpawnEverySeconds = *p.SpawnEverySeconds
	}
	*cfg = cfg.normalized()
	return speedChanged
}
