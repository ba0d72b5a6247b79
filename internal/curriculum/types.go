package curriculum

// Track is a curriculum document: one learning track split into segments.
type Track struct {
	Title    string    `yaml:"trackTitle" json:"trackTitle"`
	Folder   string    `yaml:"folder" json:"folder"`
	Segments []Segment `yaml:"segments" json:"segments"`
}

// Segment groups modules of a track (e.g., "Foundations").
type Segment struct {
	ID      string   `yaml:"segmentId" json:"segmentId"`
	Title   string   `yaml:"title" json:"title"`
	Summary string   `yaml:"summary" json:"summary,omitempty"`
	Level   string   `yaml:"level" json:"level,omitempty"`
	Modules []Module `yaml:"modules" json:"modules"`
}

// Module is a unit of curriculum with an ordered list of topic titles.
// Topics have no identity of their own beyond their position in Topics.
type Module struct {
	ID             string   `yaml:"moduleId" json:"moduleId"`
	Slug           string   `yaml:"slug" json:"slug"`
	Title          string   `yaml:"title" json:"title"`
	Summary        string   `yaml:"summary" json:"summary,omitempty"`
	Level          string   `yaml:"level" json:"level,omitempty"`
	Difficulty     string   `yaml:"difficulty" json:"difficulty,omitempty"`
	EstimatedHours float64  `yaml:"estimatedHours" json:"estimatedHours,omitempty"`
	Topics         []string `yaml:"topics" json:"topics"`
}

// TopicCount returns the number of topics in the module.
func (m Module) TopicCount() int {
	return len(m.Topics)
}

// Topic returns the title of the topic at index i.
func (m Module) Topic(i int) (string, bool) {
	if i < 0 || i >= len(m.Topics) {
		return "", false
	}
	return m.Topics[i], true
}

// ModuleCount returns the total number of modules across all segments.
func (t *Track) ModuleCount() int {
	n := 0
	for _, s := range t.Segments {
		n += len(s.Modules)
	}
	return n
}
