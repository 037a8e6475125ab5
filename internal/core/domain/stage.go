package domain

// StageStatus tags the outcome of one optional pipeline stage, making the
// degradation path explicit instead of hiding it in recover/catch logic.
type StageStatus int

const (
	StageOk StageStatus = iota
	StageDegraded
	StageFatal
)

// StageOutcome is the result of running a named retrieval stage. Optional
// stages report StageDegraded with a reason instead of returning an error.
// StageFatal aborts the pipeline: a failed dense signal, or the retrieval
// budget expiring inside any stage.
type StageOutcome struct {
	Signal string
	Status StageStatus
	Reason string
	Err    error
}

func Ok(signal string) StageOutcome {
	return StageOutcome{Signal: signal, Status: StageOk}
}

func Degraded(signal, reason string, err error) StageOutcome {
	return StageOutcome{Signal: signal, Status: StageDegraded, Reason: reason, Err: err}
}

func Fatal(signal string, err error) StageOutcome {
	return StageOutcome{Signal: signal, Status: StageFatal, Err: err}
}

func (o StageOutcome) Succeeded() bool { return o.Status == StageOk }
