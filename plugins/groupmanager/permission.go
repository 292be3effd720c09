// ABOUTME: Group-aware permission provider over the YAML document.
// ABOUTME: Worlds share one mirror; the world argument is accepted and ignored.

package groupmanager

import (
	"slices"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// Permission implements core.Permission with group inheritance. Every
// mutation is written back to the groups file.
type Permission struct {
	mu      sync.RWMutex
	doc     *Document
	store   *FileStore
	log     logrus.FieldLogger
	enabled atomic.Bool
}

func NewPermission(doc *Document, store *FileStore, log logrus.FieldLogger) *Permission {
	if log == nil {
		log = logrus.StandardLogger()
	}
	p := &Permission{doc: doc, store: store, log: log}
	p.enabled.Store(true)
	return p
}

func (p *Permission) Name() string { return "GroupManager" }

func (p *Permission) IsEnabled() bool { return p.enabled.Load() }

func (p *Permission) HasSuperPermsCompat() bool { return false }

func (p *Permission) HasGroupSupport() bool { return true }

// Has evaluates the player's own nodes first, then the player's groups
// breadth-first through inheritance. The first matching entry decides; a "-"
// prefix denies.
func (p *Permission) Has(world, player, node string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	node = strings.ToLower(node)
	if u, ok := p.doc.Users[strings.ToLower(player)]; ok {
		if decided, allowed := evaluate(u.Permissions, node); decided {
			return allowed
		}
	}
	for _, group := range p.expand(p.memberships(player)) {
		if decided, allowed := evaluate(p.doc.Groups[group].Permissions, node); decided {
			return allowed
		}
	}
	return false
}

func (p *Permission) PlayerAdd(world, player, node string) bool {
	if node == "" {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	u := p.user(player)
	if !containsFold(u.Permissions, node) {
		u.Permissions = append(u.Permissions, node)
	}
	p.save()
	return true
}

func (p *Permission) PlayerRemove(world, player, node string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	u, ok := p.doc.Users[strings.ToLower(player)]
	if !ok {
		return false
	}
	var removed bool
	u.Permissions, removed = removeFold(u.Permissions, node)
	if removed {
		p.save()
	}
	return removed
}

func (p *Permission) GroupHas(world, group, node string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if _, ok := p.doc.Groups[group]; !ok {
		return false
	}
	node = strings.ToLower(node)
	for _, g := range p.expand([]string{group}) {
		if decided, allowed := evaluate(p.doc.Groups[g].Permissions, node); decided {
			return allowed
		}
	}
	return false
}

func (p *Permission) GroupAdd(world, group, node string) bool {
	if node == "" {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	g, ok := p.doc.Groups[group]
	if !ok {
		return false
	}
	if !containsFold(g.Permissions, node) {
		g.Permissions = append(g.Permissions, node)
	}
	p.save()
	return true
}

func (p *Permission) GroupRemove(world, group, node string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	g, ok := p.doc.Groups[group]
	if !ok {
		return false
	}
	var removed bool
	g.Permissions, removed = removeFold(g.Permissions, node)
	if removed {
		p.save()
	}
	return removed
}

// PlayerInGroup includes groups reached through inheritance.
func (p *Permission) PlayerInGroup(world, player, group string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	for _, g := range p.expand(p.memberships(player)) {
		if g == group {
			return true
		}
	}
	return false
}

// PlayerAddGroup moves a player out of the default group into group, or adds
// group as a subgroup when the player already has a non-default primary.
func (p *Permission) PlayerAddGroup(world, player, group string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.doc.Groups[group]; !ok {
		return false
	}
	u := p.user(player)
	def := p.doc.defaultGroup()
	switch {
	case u.Group == group || slices.Contains(u.Subgroups, group):
		return true
	case u.Group == "" || u.Group == def:
		u.Group = group
	default:
		u.Subgroups = append(u.Subgroups, group)
	}
	p.save()
	return true
}

// PlayerRemoveGroup drops a subgroup, or resets the primary group to the
// default group.
func (p *Permission) PlayerRemoveGroup(world, player, group string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	u, ok := p.doc.Users[strings.ToLower(player)]
	if !ok {
		return false
	}
	def := p.doc.defaultGroup()
	switch {
	case u.Group == group && group != def:
		u.Group = def
	case slices.Contains(u.Subgroups, group):
		kept := u.Subgroups[:0]
		for _, g := range u.Subgroups {
			if g != group {
				kept = append(kept, g)
			}
		}
		u.Subgroups = kept
	default:
		return false
	}
	p.save()
	return true
}

// PlayerGroups returns the primary group followed by subgroups.
func (p *Permission) PlayerGroups(world, player string) []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.memberships(player)
}

func (p *Permission) PrimaryGroup(world, player string) string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if u, ok := p.doc.Users[strings.ToLower(player)]; ok && u.Group != "" {
		return u.Group
	}
	return p.doc.defaultGroup()
}

func (p *Permission) Groups() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	names := make([]string, 0, len(p.doc.Groups))
	for name := range p.doc.Groups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// snapshot returns copies of the users and groups for the admin view.
func (p *Permission) snapshot() (map[string]User, map[string]Group) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	users := make(map[string]User, len(p.doc.Users))
	for name, u := range p.doc.Users {
		users[name] = User{
			Group:       u.Group,
			Subgroups:   slices.Clone(u.Subgroups),
			Permissions: slices.Clone(u.Permissions),
		}
	}
	groups := make(map[string]Group, len(p.doc.Groups))
	for name, g := range p.doc.Groups {
		groups[name] = Group{
			Default:     g.Default,
			Permissions: slices.Clone(g.Permissions),
			Inherits:    slices.Clone(g.Inherits),
		}
	}
	return users, groups
}

// memberships lists the player's direct groups. The caller holds p.mu.
func (p *Permission) memberships(player string) []string {
	u, ok := p.doc.Users[strings.ToLower(player)]
	if !ok || u.Group == "" {
		if def := p.doc.defaultGroup(); def != "" {
			return []string{def}
		}
		return nil
	}
	out := make([]string, 0, 1+len(u.Subgroups))
	out = append(out, u.Group)
	out = append(out, u.Subgroups...)
	return out
}

// expand walks inheritance breadth-first, skipping unknown groups and cycles.
// The caller holds p.mu.
func (p *Permission) expand(groups []string) []string {
	seen := make(map[string]bool)
	var out []string
	queue := append([]string(nil), groups...)
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		g, ok := p.doc.Groups[name]
		if !ok || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
		queue = append(queue, g.Inherits...)
	}
	return out
}

// user returns the player's record, creating it in the default group.
// The caller holds p.mu for writing.
func (p *Permission) user(player string) *User {
	key := strings.ToLower(player)
	u, ok := p.doc.Users[key]
	if !ok {
		u = &User{Group: p.doc.defaultGroup()}
		p.doc.Users[key] = u
	}
	return u
}

// save persists the document. The caller holds p.mu; the in-memory state
// stays authoritative when the write fails.
func (p *Permission) save() {
	if p.store == nil {
		return
	}
	if err := p.store.Save(p.doc); err != nil {
		p.log.WithError(err).WithField("path", p.store.Path()).Error("failed to save groups file")
	}
}

// evaluate finds the most specific entry matching node: an exact node beats
// a "prefix.*" wildcard, a longer prefix beats a shorter one, and "*" matches
// last. Between equally specific entries a denial wins.
func evaluate(entries []string, node string) (decided, allowed bool) {
	best := -1
	for _, entry := range entries {
		entry = strings.ToLower(entry)
		deny := strings.HasPrefix(entry, "-")
		score := specificity(strings.TrimPrefix(entry, "-"), node)
		if score < 0 {
			continue
		}
		if score > best || (score == best && deny) {
			best = score
			allowed = !deny
		}
	}
	return best >= 0, allowed
}

// specificity scores how closely pattern matches node, or -1 for no match.
func specificity(pattern, node string) int {
	switch {
	case pattern == node:
		return len(node) + 1
	case pattern == "*":
		return 0
	}
	if prefix, ok := strings.CutSuffix(pattern, ".*"); ok && strings.HasPrefix(node, prefix+".") {
		return len(prefix)
	}
	return -1
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

func removeFold(list []string, s string) ([]string, bool) {
	out := list[:0]
	removed := false
	for _, v := range list {
		if strings.EqualFold(v, s) {
			removed = true
			continue
		}
		out = append(out, v)
	}
	return out, removed
}
