// ABOUTME: Schema definitions for plugin admin views.
// ABOUTME: Plugins describe their resources, the admin package renders them.

package core

// PluginSchema defines the admin view for a plugin
type PluginSchema struct {
	Resources []ResourceSchema
}

// ResourceSchema defines a resource (Accounts, Groups, etc.)
type ResourceSchema struct {
	Name        string        // "Accounts", "Groups"
	Slug        string        // "accounts", "groups" (URL path)
	Fields      []FieldSchema // What data to show
	ListColumns []string      // Which fields in list view
}

// FieldSchema defines a field in a resource
type FieldSchema struct {
	Name    string // "player", "balance"
	Type    string // "string", "number", "list"
	Display string // "Player", "Balance"
}

// FindResource returns the resource with the given slug, or nil.
func (s PluginSchema) FindResource(slug string) *ResourceSchema {
	for i := range s.Resources {
		if s.Resources[i].Slug == slug {
			return &s.Resources[i]
		}
	}
	return nil
}
