package remediator

import "fmt"

// Registry maps AWS Config resource types to their remedies
type Registry struct {
	remedies map[string]Remedy
}

// NewRegistry creates an empty remedy registry
func NewRegistry() *Registry {
	return &Registry{remedies: make(map[string]Remedy)}
}

// Register adds a remedy for its resource type
func (r *Registry) Register(remedy Remedy) error {
	resourceType := remedy.ResourceType()
	if resourceType == "" {
		return fmt.Errorf("remedy has empty resource type")
	}
	if _, exists := r.remedies[resourceType]; exists {
		return fmt.Errorf("remedy for %s already registered", resourceType)
	}
	r.remedies[resourceType] = remedy
	return nil
}

// Lookup returns the remedy for a resource type
func (r *Registry) Lookup(resourceType string) (Remedy, bool) {
	remedy, ok := r.remedies[resourceType]
	return remedy, ok
}

// Types returns the registered resource types
func (r *Registry) Types() []string {
	names := make([]string, 0, len(r.remedies))
	for name := range r.remedies {
		names = append(names, name)
	}
	return names
}
