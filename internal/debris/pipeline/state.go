package pipeline

// State is the pipeline's warm-up state.
type State int

const (
	// StateIdle means no frame has been pushed since construction or Reset.
	StateIdle State = iota
	// StateWarming means frames are buffered but too few for a background.
	StateWarming
	// StateReady means every processed frame yields detections.
	StateReady
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateWarming:
		return "warming"
	case StateReady:
		return "ready"
	}
	return "unknown"
}
