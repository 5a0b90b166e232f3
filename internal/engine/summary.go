package engine

import "github.com/chmouel/lazystatus/internal/status"

// Summary is a repository-level digest for status bars and headers.
type Summary struct {
	Gate      Gate
	Updating  bool
	Staging   int
	Pending   int
	Version   uint64
	Branch    string
	Counts    status.Counts
	Threading Threading
}

// Summary collects the current engine state.
func (e *Engine) Summary() Summary {
	s := Summary{
		Gate:      e.Gate(),
		Updating:  e.IsUpdating(),
		Staging:   e.stages.Len(),
		Pending:   e.pendingCount(),
		Threading: e.Threading(),
	}
	if v := e.View(); v != nil {
		s.Version = v.Version
		s.Branch = v.Branch
		s.Counts = v.Snapshot.Counts()
	}
	return s
}

// Clean reports whether the published snapshot has no changes.
func (s Summary) Clean() bool {
	return s.Counts.Total == s.Counts.Ignored
}
