package ingestion

// Stage is a state of the ingestion state machine. A run only moves forward.
type Stage int

const (
	StageIdle Stage = iota
	StageConnectivityCheck
	StageSchemaReady
	StageDownloaded
	StageNormalized
	StageFiltered
	StageEmbedded
	StagePersisted
	StageDone
)

var stageNames = [...]string{
	StageIdle:              "idle",
	StageConnectivityCheck: "connectivity_check",
	StageSchemaReady:       "schema_ready",
	StageDownloaded:        "downloaded",
	StageNormalized:        "normalized",
	StageFiltered:          "filtered",
	StageEmbedded:          "embedded",
	StagePersisted:         "persisted",
	StageDone:              "done",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return "unknown"
	}
	return stageNames[s]
}
