package telemetry

import (
	"github.com/pthm-cable/chemotaxis/larva"
)

// TrackRecord is one sampled larva position. It is written to track.csv and
// to the tracks table of the track store.
type TrackRecord struct {
	RunID         string  `csv:"run_id" db:"run_id"`
	LarvaID       string  `csv:"larva_id" db:"larva_id"`
	Tick          int64   `csv:"tick" db:"tick"`
	Time          float64 `csv:"time" db:"time"`
	State         string  `csv:"state" db:"state"`
	HeadX         float64 `csv:"head_x" db:"head_x"`
	HeadY         float64 `csv:"head_y" db:"head_y"`
	JointX        float64 `csv:"joint_x" db:"joint_x"`
	JointY        float64 `csv:"joint_y" db:"joint_y"`
	VelX          float64 `csv:"vel_x" db:"vel_x"`
	VelY          float64 `csv:"vel_y" db:"vel_y"`
	HeadAngle     float64 `csv:"head_angle" db:"head_angle"`
	CastDir       int     `csv:"cast_dir" db:"cast_dir"`
	Concentration float64 `csv:"concentration" db:"concentration"`
	PRunTerm      float64 `csv:"p_run_term" db:"p_run_term"`
	PCastTerm     float64 `csv:"p_cast_term" db:"p_cast_term"`
	PWV           float64 `csv:"p_wv" db:"p_wv"`
}

// NewTrackRecord flattens a snapshot.
func NewTrackRecord(runID string, s larva.Snapshot) TrackRecord {
	return TrackRecord{
		RunID:         runID,
		LarvaID:       s.ID,
		Tick:          s.Tick,
		Time:          s.Time,
		State:         s.State.String(),
		HeadX:         s.Head.X,
		HeadY:         s.Head.Y,
		JointX:        s.Joint.X,
		JointY:        s.Joint.Y,
		VelX:          s.Velocity.X,
		VelY:          s.Velocity.Y,
		HeadAngle:     s.HeadAngle,
		CastDir:       s.CastDir,
		Concentration: s.Concentration,
		PRunTerm:      s.Rates.RunTerm,
		PCastTerm:     s.Rates.CastTerm,
		PWV:           s.Rates.WV,
	}
}

// SummaryRecord aggregates one larva over one summary window.
type SummaryRecord struct {
	RunID       string  `csv:"run_id" db:"run_id"`
	LarvaID     string  `csv:"larva_id" db:"larva_id"`
	WindowStart int64   `csv:"window_start" db:"window_start"`
	WindowEnd   int64   `csv:"window_end" db:"window_end"`
	SimTimeSec  float64 `csv:"sim_time" db:"sim_time"`

	Ticks         int     `csv:"ticks" db:"ticks"`
	CrawlFraction float64 `csv:"crawl_fraction" db:"crawl_fraction"` // CRAWL_FWD and weathervaning
	WVFraction    float64 `csv:"wv_fraction" db:"wv_fraction"`
	CastsStarted  int     `csv:"casts_started" db:"casts_started"`
	RunsEnded     int     `csv:"runs_ended" db:"runs_ended"`
	MeanRunSec    float64 `csv:"mean_run_sec" db:"mean_run_sec"`

	MeanConcentration float64 `csv:"mean_concentration" db:"mean_concentration"`
	DistToSource      float64 `csv:"dist_to_source" db:"dist_to_source"`
	PathLength        float64 `csv:"path_length" db:"path_length"`
}

// RunRecord describes one simulation run in the track store.
type RunRecord struct {
	ID         string  `db:"id"`
	Seed       int64   `db:"seed"`
	Larvae     int     `db:"larvae"`
	DT         float64 `db:"dt"`
	StartedAt  string  `db:"started_at"`
	EndedAt    string  `db:"ended_at"`
	Ticks      int64   `db:"ticks"`
	ConfigYAML string  `db:"config_yaml"`
}
