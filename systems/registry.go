package systems

// SystemInfo describes a phase of the simulation step.
type SystemInfo struct {
	ID          string // perf and log key
	Name        string
	Description string
	Category    string // "core" or "output"
}

// Phase identifiers, in the order a step runs them.
const (
	PhaseChemotaxis = "chemotaxis"
	PhaseObserve    = "observe"
	PhaseCensus     = "census"
	PhaseRecord     = "record"
)

var stepPhases = []SystemInfo{
	{ID: PhaseChemotaxis, Name: "Chemotaxis", Description: "Perceives, estimates rates and runs one state handler per larva", Category: "core"},
	{ID: PhaseObserve, Name: "Observe", Description: "Forwards snapshots to observers in spawn order", Category: "output"},
	{ID: PhaseCensus, Name: "Census", Description: "Counts larvae per state", Category: "output"},
	{ID: PhaseRecord, Name: "Record", Description: "Flushes tracks and summaries", Category: "output"},
}

// SystemRegistry indexes the step phases so log lines and the perf
// collector agree on their names.
type SystemRegistry struct {
	systems []SystemInfo
	byID    map[string]int
}

// NewSystemRegistry returns a registry holding every step phase.
func NewSystemRegistry() *SystemRegistry {
	r := &SystemRegistry{
		systems: append([]SystemInfo(nil), stepPhases...),
		byID:    make(map[string]int, len(stepPhases)),
	}
	for i, info := range r.systems {
		r.byID[info.ID] = i
	}
	return r
}

// Get returns system info by ID.
func (r *SystemRegistry) Get(id string) (SystemInfo, bool) {
	i, ok := r.byID[id]
	if !ok {
		return SystemInfo{}, false
	}
	return r.systems[i], true
}

// GetName returns the display name for id, or id itself when unknown.
func (r *SystemRegistry) GetName(id string) string {
	if info, ok := r.Get(id); ok {
		return info.Name
	}
	return id
}

// ByCategory returns the phases of one category in step order.
func (r *SystemRegistry) ByCategory(category string) []SystemInfo {
	var result []SystemInfo
	for _, info := range r.systems {
		if info.Category == category {
			result = append(result, info)
		}
	}
	return result
}

// IDs returns all phase IDs in step order.
func (r *SystemRegistry) IDs() []string {
	ids := make([]string, len(r.systems))
	for i, info := range r.systems {
		ids[i] = info.ID
	}
	return ids
}
