package engine

import (
	"fmt"
	"strings"
)

// Threading selects which kinds of work run on background workers.
type Threading uint8

// Threading bits.
const (
	ThreadingStage Threading = 1 << iota
	ThreadingUnstage
	ThreadingStatus
	ThreadingTree
	ThreadingList
)

// DefaultThreading runs scans, tree builds and list flattening in the
// background while staging stays synchronous.
const DefaultThreading = ThreadingStatus | ThreadingTree | ThreadingList

var threadingNames = []struct {
	bit  Threading
	name string
}{
	{ThreadingStage, "stage"},
	{ThreadingUnstage, "unstage"},
	{ThreadingStatus, "status"},
	{ThreadingTree, "tree"},
	{ThreadingList, "list"},
}

// Has reports whether all bits of flag are set.
func (t Threading) Has(flag Threading) bool {
	return t&flag == flag
}

func (t Threading) String() string {
	if t == 0 {
		return "none"
	}
	parts := make([]string, 0, len(threadingNames))
	for _, tn := range threadingNames {
		if t.Has(tn.bit) {
			parts = append(parts, tn.name)
		}
	}
	return strings.Join(parts, ",")
}

// ParseThreading converts names like "status" or "all" into a mask.
func ParseThreading(names []string) (Threading, error) {
	var t Threading
	for _, raw := range names {
		name := strings.ToLower(strings.TrimSpace(raw))
		switch name {
		case "":
			continue
		case "all":
			for _, tn := range threadingNames {
				t |= tn.bit
			}
			continue
		case "none":
			continue
		}
		found := false
		for _, tn := range threadingNames {
			if tn.name == name {
				t |= tn.bit
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("unknown threading kind %q", raw)
		}
	}
	return t, nil
}

// ThreadingAffector adjusts the configured mask each time it is read.
type ThreadingAffector func(Threading) Threading
