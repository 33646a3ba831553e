package summarize

import "strings"

// Placeholder entries inserted when a run produced nothing for a category
// the reader must still act on.
const (
	placeholderAssignments    = "Confirm: no assignments announced this session."
	placeholderMissionControl = "No additional summary beyond structured notes."
	emptyCategoryBullet       = "None recorded."
)

// maxNextMoves caps the rendered next_moves list.
const maxNextMoves = 3

// guideData is the fixed schema every guide-pass completion must return.
// Slices are never nil after parsing; an absent category is an empty list.
type guideData struct {
	MissionControl []string `json:"mission_control"`
	KeyConcepts    []string `json:"key_concepts"`
	Assignments    []string `json:"assignments"`
	StudyTheory    []string `json:"study_theory"`
	StudyPractice  []string `json:"study_practice"`
	StudyAdmin     []string `json:"study_admin"`
	ExamIntel      []string `json:"exam_intel"`
	RiskFollowups  []string `json:"risk_followups"`
	NextMoves      []string `json:"next_moves"`
}

// categories returns pointers to every category slice in schema order.
func (g *guideData) categories() []*[]string {
	return []*[]string{
		&g.MissionControl,
		&g.KeyConcepts,
		&g.Assignments,
		&g.StudyTheory,
		&g.StudyPractice,
		&g.StudyAdmin,
		&g.ExamIntel,
		&g.RiskFollowups,
		&g.NextMoves,
	}
}

// guideMerger accumulates per-chunk guide data, deduplicating entries while
// preserving first-seen order within each category.
type guideMerger struct {
	merged guideData
	seen   []map[string]bool
}

func newGuideMerger() *guideMerger {
	m := &guideMerger{}
	cats := m.merged.categories()
	m.seen = make([]map[string]bool, len(cats))
	for i, c := range cats {
		*c = []string{}
		m.seen[i] = make(map[string]bool)
	}
	return m
}

func (m *guideMerger) add(data guideData) {
	dst := m.merged.categories()
	src := data.categories()
	for i := range dst {
		for _, entry := range *src[i] {
			entry = strings.TrimSpace(entry)
			if entry == "" || m.seen[i][entry] {
				continue
			}
			m.seen[i][entry] = true
			*dst[i] = append(*dst[i], entry)
		}
	}
}

// finalize applies the placeholder rules and the next_moves cap, then
// returns the merged result.
func (m *guideMerger) finalize() guideData {
	g := m.merged
	if len(g.Assignments) == 0 {
		g.Assignments = []string{placeholderAssignments}
	}
	if len(g.MissionControl) == 0 {
		g.MissionControl = []string{placeholderMissionControl}
	}
	if len(g.NextMoves) > maxNextMoves {
		g.NextMoves = g.NextMoves[:maxNextMoves]
	}
	return g
}

// guideSection describes how one category renders in the final document.
type guideSection struct {
	title    string
	entries  func(guideData) []string
	checkbox bool
}

var guideSections = []guideSection{
	{"Mission Control", func(g guideData) []string { return g.MissionControl }, false},
	{"Key Concepts", func(g guideData) []string { return g.KeyConcepts }, false},
	{"Assignments", func(g guideData) []string { return g.Assignments }, true},
	{"Study Plan: Theory", func(g guideData) []string { return g.StudyTheory }, true},
	{"Study Plan: Practice", func(g guideData) []string { return g.StudyPractice }, true},
	{"Study Plan: Admin", func(g guideData) []string { return g.StudyAdmin }, true},
	{"Exam Intel", func(g guideData) []string { return g.ExamIntel }, false},
	{"Risks & Follow-ups", func(g guideData) []string { return g.RiskFollowups }, false},
	{"Next Moves", func(g guideData) []string { return g.NextMoves }, false},
}

// renderGuide produces the Markdown action guide. Actionable categories
// render as checkboxes, reference categories as plain bullets, and an empty
// category renders a single placeholder bullet so the section never vanishes.
func renderGuide(g guideData) string {
	var b strings.Builder
	b.WriteString("# Lecture Action Guide\n")

	for _, s := range guideSections {
		b.WriteString("\n## ")
		b.WriteString(s.title)
		b.WriteString("\n\n")

		entries := s.entries(g)
		if len(entries) == 0 {
			entries = []string{emptyCategoryBullet}
		}
		for _, e := range entries {
			if s.checkbox {
				b.WriteString("- [ ] ")
			} else {
				b.WriteString("- ")
			}
			b.WriteString(e)
			b.WriteString("\n")
		}
	}
	return b.String()
}
