package query

import (
	"regexp"
	"slices"
	"strings"
	"sync"
)

var (
	citationPattern = regexp.MustCompile(`\[\[([^\[\]]+)\]\]`)
	citationStrip   = regexp.MustCompile(`\s*\[\[[^\[\]]+\]\]`)
)

// QueryTrace records which papers were considered, handed to the model and
// cited in the answer. It is safe for concurrent use.
type QueryTrace struct {
	mu         sync.Mutex
	considered map[string]struct{}
	used       map[string]struct{}
	cited      map[string]struct{}
}

type QueryTraceSnapshot struct {
	ConsideredPaperIDs []string `json:"considered_paper_ids"`
	UsedPaperIDs       []string `json:"used_paper_ids"`
	CitedPaperIDs      []string `json:"cited_paper_ids"`
}

func NewQueryTrace() *QueryTrace {
	return &QueryTrace{
		considered: make(map[string]struct{}),
		used:       make(map[string]struct{}),
		cited:      make(map[string]struct{}),
	}
}

func (t *QueryTrace) Considered(ids ...string) { t.add(t.considered, ids) }
func (t *QueryTrace) Used(ids ...string)       { t.add(t.used, ids) }

// Cited records the [[paper_id]] references of answer that point at a used
// paper.
func (t *QueryTrace) Cited(answer string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, m := range citationPattern.FindAllStringSubmatch(answer, -1) {
		if _, ok := t.used[m[1]]; ok {
			t.cited[m[1]] = struct{}{}
		}
	}
}

// StripCitations removes [[id]] markers from answer.
func StripCitations(answer string) string {
	return strings.TrimSpace(citationStrip.ReplaceAllString(answer, ""))
}

func (t *QueryTrace) add(set map[string]struct{}, ids []string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, id := range ids {
		if id != "" {
			set[id] = struct{}{}
		}
	}
}

func (t *QueryTrace) Snapshot() QueryTraceSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return QueryTraceSnapshot{
		ConsideredPaperIDs: sortedKeys(t.considered),
		UsedPaperIDs:       sortedKeys(t.used),
		CitedPaperIDs:      sortedKeys(t.cited),
	}
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}
