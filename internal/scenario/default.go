package scenario

// DefaultName is the name of the built-in data set.
const DefaultName = "williamstown"

// Default returns the built-in data set: a fix from Williamstown tower
// followed by a descent to impact.
func Default() *Scenario {
	return &Scenario{
		Name:        DefaultName,
		Description: "Williamstown tower fix, 48 NM on 320 magnetic",

		TowerEasting:   90345,
		TowerNorthing:  69908,
		TowerSquare:    "56HLJ",
		GridToMagnetic: 11.63,

		FixRangeNM:    Uncertain{Mean: 48, StdDev: 0.5},
		FixBearingDeg: Uncertain{Mean: 320, StdDev: 2},
		FixTime:       "19:36:00",
		CrashTime:     ClockEstimate{Mean: "19:39:27", StdDev: 35},
		Wind: []WindLevel{
			{AltitudeFt: 6000, SpeedKn: Uncertain{Mean: 33, StdDev: 10}},
			{AltitudeFt: 8000, SpeedKn: Uncertain{Mean: 43, StdDev: 10}},
		},
		WindFromDeg:   Uncertain{Mean: 230, StdDev: 10},
		HeadingDeg:    Uncertain{Mean: 140, StdDev: 10},
		SpeedStartKn:  Uncertain{Mean: 145, StdDev: 10},
		SpeedFinishKn: Uncertain{Mean: 85, StdDev: 10},
		BankRateDeg:   Uncertain{Mean: 0, StdDev: 0.1},
		BankAccelDeg:  Uncertain{Mean: 0, StdDev: 0.02},
		KnownAltitudes: []AltitudeFix{
			{Time: "19:36:00", AltitudeFt: 8500},
			{Time: "19:37:39", AltitudeFt: 7500},
			{Time: "19:38:29", AltitudeFt: 6500},
			{Time: "19:39:27", AltitudeFt: 5500},
		},

		TimeStep:      1,
		IterationsExp: 6,
		GridCells:     50,
		CellSize:      1000,
	}
}
