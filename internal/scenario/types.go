// Package scenario holds named input data sets expressed in the units an
// investigator works in (knots, nautical miles, feet, degrees magnetic,
// clock times) and converts them into simulation parameters.
package scenario

// Uncertain is a mean and one standard deviation in the field's unit.
type Uncertain struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std"`
}

// ClockEstimate is an uncertain time of day. StdDev is in seconds.
type ClockEstimate struct {
	Mean   string  `json:"mean"`
	StdDev float64 `json:"std"`
}

// WindLevel is the wind speed estimate (knots) at one altitude (feet).
type WindLevel struct {
	AltitudeFt float64   `json:"altitude_ft"`
	SpeedKn    Uncertain `json:"speed_kn"`
}

// AltitudeFix is a known altitude (feet) at a clock time.
type AltitudeFix struct {
	Time       string  `json:"time"`
	AltitudeFt float64 `json:"altitude_ft"`
}

// Scenario is one complete data set. Bearings, headings and the wind
// direction are magnetic; GridToMagnetic converts them to grid.
type Scenario struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`

	TowerEasting   float64 `json:"tower_easting"`
	TowerNorthing  float64 `json:"tower_northing"`
	TowerSquare    string  `json:"tower_square"`
	GridToMagnetic float64 `json:"grid_to_magnetic_deg"`

	FixRangeNM     Uncertain     `json:"fix_range_nm"`
	FixBearingDeg  Uncertain     `json:"fix_bearing_deg"`
	FixTime        string        `json:"fix_time"`
	CrashTime      ClockEstimate `json:"crash_time"`
	Wind           []WindLevel   `json:"wind"`
	WindFromDeg    Uncertain     `json:"wind_direction_deg"`
	HeadingDeg     Uncertain     `json:"heading_deg"`
	SpeedStartKn   Uncertain     `json:"initial_speed_kn"`
	SpeedFinishKn  Uncertain     `json:"final_speed_kn"`
	BankRateDeg    Uncertain     `json:"bank_rate_deg_s"`
	BankAccelDeg   Uncertain     `json:"bank_accel_deg_s2"`
	KnownAltitudes []AltitudeFix `json:"known_altitudes"`

	TimeStep      float64 `json:"time_step_s"`
	IterationsExp int     `json:"iterations_exp"`
	Iterations    int     `json:"iterations,omitempty"` // overrides IterationsExp when set
	GridCells     int     `json:"grid_cells"`
	CellSize      float64 `json:"cell_size_m"`
	Workers       int     `json:"workers,omitempty"`
	Seed          uint64  `json:"seed,omitempty"`
}
