package content

import "sync"

// View tracks the content state of the topic currently shown:
// Loading until the lookup finishes, then Found or Missing until the next Navigate.
type View struct {
	registry *Registry
	mu       sync.Mutex
	result   Result
}

// NewView creates a view over registry. It starts in the Loading state.
func NewView(registry *Registry) *View {
	return &View{
		registry: registry,
		result:   Result{State: StateLoading},
	}
}

// Navigate restarts the cycle for a new (slug, topicIndex) and returns the terminal result.
func (v *View) Navigate(slug string, topicIndex int) Result {
	v.mu.Lock()
	v.result = Result{State: StateLoading, Key: Key(slug, topicIndex)}
	v.mu.Unlock()

	res := v.registry.Resolve(slug, topicIndex)

	v.mu.Lock()
	defer v.mu.Unlock()
	// A newer Navigate wins.
	if v.result.Key == res.Key && v.result.State == StateLoading {
		v.result = res
	}
	return res
}

// Current returns the current state of the view.
func (v *View) Current() Result {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.result
}
