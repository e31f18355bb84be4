package curator

import (
	"context"
	"sort"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/vestige/pkg/model"
)

// Archive is the in-memory view of the whole fragment log for one session
type Archive struct {
	memories []*model.Memory
	skipped  int
}

// NewArchive wraps memories already in log order
func NewArchive(memories []*model.Memory) *Archive {
	return &Archive{memories: memories}
}

// Load rebuilds the archive from the log
func (u *UseCase) Load(ctx context.Context) (*Archive, error) {
	result, err := u.repo.LoadMemories(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load memories")
	}

	return &Archive{
		memories: result.Memories,
		skipped:  result.Skipped,
	}, nil
}

// Append adds a memory stored during the session
func (a *Archive) Append(memory *model.Memory) {
	a.memories = append(a.memories, memory)
}

func (a *Archive) Len() int {
	return len(a.memories)
}

// Skipped is the number of log entries dropped while loading
func (a *Archive) Skipped() int {
	return a.skipped
}

// All returns memories in log order
func (a *Archive) All() []*model.Memory {
	return append([]*model.Memory(nil), a.memories...)
}

// Categories returns every observed category, sorted
func (a *Archive) Categories() []string {
	seen := make(map[string]struct{})
	for _, m := range a.memories {
		for _, c := range m.Categories {
			seen[c] = struct{}{}
		}
	}

	labels := make([]string, 0, len(seen))
	for c := range seen {
		labels = append(labels, c)
	}
	sort.Strings(labels)
	return labels
}

// CategoryCounts returns how many memories carry each category
func (a *Archive) CategoryCounts() map[string]int {
	counts := make(map[string]int)
	for _, m := range a.memories {
		for _, c := range m.Categories {
			counts[c]++
		}
	}
	return counts
}

// ByCategory returns memories tagged with label in log order
func (a *Archive) ByCategory(label string) []*model.Memory {
	var matched []*model.Memory
	for _, m := range a.memories {
		if m.HasCategory(label) {
			matched = append(matched, m)
		}
	}
	return matched
}

// ByScore returns memories ordered by score, highest first
func (a *Archive) ByScore() []*model.Memory {
	sorted := a.All()
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Score > sorted[j].Score
	})
	return sorted
}
