package checkout

import "time"

// Step names a remote write in the commit sequence.
type Step string

const (
	StepOrder      Step = "order"
	StepOrderLines Step = "order_lines"
	StepShipment   Step = "shipment"
)

const (
	SagaStepPending   = "pending"
	SagaStepCompleted = "completed"
	SagaStepFailed    = "failed"
	SagaStepSkipped   = "skipped"
)

// SagaStep records what happened to one write of a commit.
type SagaStep struct {
	Name       Step      `json:"name"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
	ExecutedAt time.Time `json:"executed_at,omitempty"`
}

func NewSagaStep(name Step) SagaStep {
	return SagaStep{
		Name:   name,
		Status: SagaStepPending,
	}
}

func (s *SagaStep) Complete(at time.Time) {
	s.Status = SagaStepCompleted
	s.ExecutedAt = at.UTC()
}

func (s *SagaStep) Fail(err error, at time.Time) {
	s.Status = SagaStepFailed
	s.Error = err.Error()
	s.ExecutedAt = at.UTC()
}

// Skip marks a step abandoned because an earlier one failed.
func (s *SagaStep) Skip() {
	s.Status = SagaStepSkipped
}

// ledger is the ordered step list for one commit.
type ledger []SagaStep

func newLedger(shipping bool) ledger {
	l := ledger{NewSagaStep(StepOrder), NewSagaStep(StepOrderLines)}
	if shipping {
		l = append(l, NewSagaStep(StepShipment))
	}
	return l
}

func (l ledger) step(name Step) *SagaStep {
	for i := range l {
		if l[i].Name == name {
			return &l[i]
		}
	}
	return nil
}

// skipPending marks every step that never ran.
func (l ledger) skipPending() {
	for i := range l {
		if l[i].Status == SagaStepPending {
			l[i].Skip()
		}
	}
}

func (l ledger) snapshot() []SagaStep {
	out := make([]SagaStep, len(l))
	copy(out, l)
	return out
}
