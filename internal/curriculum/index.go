package curriculum

// Index is the flattened, linear ordering of every module of a track.
// Positions are contiguous from 0 and follow segment-then-module document order.
type Index struct {
	modules    []Module
	positions  map[string]int
	duplicates []string
}

// BuildIndex flattens segments into an Index. It is a pure function of its input.
//
// A slug that appears more than once keeps the position of its first occurrence
// and is reported by Duplicates; loaders are expected to reject such tracks.
func BuildIndex(segments []Segment) *Index {
	idx := &Index{
		modules:   []Module{},
		positions: make(map[string]int),
	}

	for _, seg := range segments {
		for _, m := range seg.Modules {
			pos := len(idx.modules)
			idx.modules = append(idx.modules, m)
			if _, seen := idx.positions[m.Slug]; seen {
				idx.duplicates = append(idx.duplicates, m.Slug)
				continue
			}
			idx.positions[m.Slug] = pos
		}
	}

	return idx
}

// Len returns the number of indexed modules.
func (idx *Index) Len() int {
	return len(idx.modules)
}

// Modules returns all modules in flattened order.
func (idx *Index) Modules() []Module {
	return append([]Module{}, idx.modules...)
}

// ModuleAt returns the module at position pos.
func (idx *Index) ModuleAt(pos int) (Module, bool) {
	if pos < 0 || pos >= len(idx.modules) {
		return Module{}, false
	}
	return idx.modules[pos], true
}

// Position returns the flattened position of the module with the given slug.
func (idx *Index) Position(slug string) (int, bool) {
	pos, ok := idx.positions[slug]
	return pos, ok
}

// Lookup returns the module with the given slug.
func (idx *Index) Lookup(slug string) (Module, bool) {
	pos, ok := idx.positions[slug]
	if !ok {
		return Module{}, false
	}
	return idx.modules[pos], true
}

// Duplicates lists slugs that occurred more than once, in encounter order.
func (idx *Index) Duplicates() []string {
	return append([]string{}, idx.duplicates...)
}
