package render

import (
	log "github.com/sirupsen/logrus"
)

// releaseStack collects destroy callbacks in acquisition order and runs
// them in reverse. Constructors push a release for each resource the
// moment it exists, so a failure halfway through a build can unwind the
// partial state with the same code path as a full teardown.
type releaseStack struct {
	names []string
	funcs []func()
}

func (s *releaseStack) push(name string, fn func()) {
	s.names = append(s.names, name)
	s.funcs = append(s.funcs, fn)
}

// release runs every pushed callback newest-first, then empties the
// stack. A second call is a no-op.
func (s *releaseStack) release() {
	for i := len(s.funcs) - 1; i >= 0; i-- {
		s.funcs[i]()
		log.Trace("released ", s.names[i])
	}
	s.names = nil
	s.funcs = nil
}

func (s *releaseStack) depth() int {
	return len(s.funcs)
}
