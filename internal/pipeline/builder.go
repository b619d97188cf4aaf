package pipeline

import "fmt"

// StageBuilder constructs a stage body from declarative parameters.
type StageBuilder func(params map[string]string) (StageFunc, error)

// BuilderSet maps stage kinds to builders so pipelines can be declared
// in configuration. Register everything before the first Build; the
// set is read-only afterwards.
type BuilderSet struct {
	builders map[string]StageBuilder
}

func NewBuilderSet() *BuilderSet {
	return &BuilderSet{builders: make(map[string]StageBuilder)}
}

// Register binds a stage kind; later registrations replace earlier
// ones.
func (s *BuilderSet) Register(kind string, b StageBuilder) {
	s.builders[kind] = b
}

// Build constructs the body for one declared stage.
func (s *BuilderSet) Build(kind string, params map[string]string) (StageFunc, error) {
	b, ok := s.builders[kind]
	if !ok {
		return nil, fmt.Errorf("unknown stage kind %q", kind)
	}
	return b(params)
}
