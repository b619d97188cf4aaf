package domain

// StageOutputs records stage results in completion order. A recorded
// stage is never overwritten, so the set only grows.
type StageOutputs struct {
	order   []string
	outputs map[string]any
}

func NewStageOutputs() *StageOutputs {
	return &StageOutputs{outputs: make(map[string]any)}
}

// Record stores the output for a stage. Recording a stage twice is a
// no-op; the first output wins.
func (s *StageOutputs) Record(stage string, output any) {
	if _, ok := s.outputs[stage]; ok {
		return
	}
	s.order = append(s.order, stage)
	s.outputs[stage] = output
}

func (s *StageOutputs) Get(stage string) (any, bool) {
	out, ok := s.outputs[stage]
	return out, ok
}

func (s *StageOutputs) Has(stage string) bool {
	_, ok := s.outputs[stage]
	return ok
}

func (s *StageOutputs) Len() int {
	return len(s.order)
}

// Stages returns the recorded stage names in completion order.
func (s *StageOutputs) Stages() []string {
	return append([]string(nil), s.order...)
}

// Last returns the most recently recorded stage and its output.
func (s *StageOutputs) Last() (string, any, bool) {
	if len(s.order) == 0 {
		return "", nil, false
	}
	stage := s.order[len(s.order)-1]
	return stage, s.outputs[stage], true
}

// Map copies the outputs into a plain map for stage consumption.
func (s *StageOutputs) Map() map[string]any {
	m := make(map[string]any, len(s.outputs))
	for k, v := range s.outputs {
		m[k] = v
	}
	return m
}

func (s *StageOutputs) Clone() *StageOutputs {
	cp := NewStageOutputs()
	for _, stage := range s.order {
		cp.Record(stage, s.outputs[stage])
	}
	return cp
}
