package tomasulo

import "fmt"

// Config sizes the engine's structures and widths.
type Config struct {
	// Reservation station pool sizes.
	ALUStations    int `json:"alu_stations"`
	MulDivStations int `json:"muldiv_stations"`
	LoadStations   int `json:"load_stations"`
	StoreStations  int `json:"store_stations"`
	BranchStations int `json:"branch_stations"`

	// Functional unit counts per pool.
	ALUUnits    int `json:"alu_units"`
	MulDivUnits int `json:"muldiv_units"`
	LoadUnits   int `json:"load_units"`
	StoreUnits  int `json:"store_units"`
	BranchUnits int `json:"branch_units"`

	// ROBSize is the reorder buffer capacity.
	ROBSize int `json:"rob_size"`

	// IssueWidth is the maximum number of instructions issued per cycle.
	IssueWidth int `json:"issue_width"`

	// CDBWidth is the number of broadcasts the bus carries per cycle.
	CDBWidth int `json:"cdb_width"`

	// CommitWidth is the maximum number of instructions retired per cycle.
	CommitWidth int `json:"commit_width"`
}

// DefaultConfig returns the default single-issue configuration.
func DefaultConfig() Config {
	return Config{
		ALUStations:    3,
		MulDivStations: 2,
		LoadStations:   3,
		StoreStations:  3,
		BranchStations: 2,
		ALUUnits:       2,
		MulDivUnits:    1,
		LoadUnits:      1,
		StoreUnits:     1,
		BranchUnits:    1,
		ROBSize:        16,
		IssueWidth:     1,
		CDBWidth:       1,
		CommitWidth:    1,
	}
}

// Validate checks that every size and width is positive.
func (c Config) Validate() error {
	check := func(name string, v int) error {
		if v <= 0 {
			return fmt.Errorf("%s must be > 0, got %d", name, v)
		}
		return nil
	}

	for _, f := range []struct {
		name string
		v    int
	}{
		{"alu_stations", c.ALUStations},
		{"muldiv_stations", c.MulDivStations},
		{"load_stations", c.LoadStations},
		{"store_stations", c.StoreStations},
		{"branch_stations", c.BranchStations},
		{"alu_units", c.ALUUnits},
		{"muldiv_units", c.MulDivUnits},
		{"load_units", c.LoadUnits},
		{"store_units", c.StoreUnits},
		{"branch_units", c.BranchUnits},
		{"rob_size", c.ROBSize},
		{"issue_width", c.IssueWidth},
		{"cdb_width", c.CDBWidth},
		{"commit_width", c.CommitWidth},
	} {
		if err := check(f.name, f.v); err != nil {
			return err
		}
	}
	return nil
}

// stationSize returns the configured pool size for a kind.
func (c Config) stationSize(kind StationKind) int {
	switch kind {
	case StationALU:
		return c.ALUStations
	case StationMulDiv:
		return c.MulDivStations
	case StationLoad:
		return c.LoadStations
	case StationStore:
		return c.StoreStations
	default:
		return c.BranchStations
	}
}

// unitCount returns the configured functional unit count for a kind.
func (c Config) unitCount(kind StationKind) int {
	switch kind {
	case StationALU:
		return c.ALUUnits
	case StationMulDiv:
		return c.MulDivUnits
	case StationLoad:
		return c.LoadUnits
	case StationStore:
		return c.StoreUnits
	default:
		return c.BranchUnits
	}
}
