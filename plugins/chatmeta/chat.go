// ABOUTME: Chat provider that layers player metadata over group metadata.
// ABOUTME: Group membership comes from whichever permission provider is bound at call time.

package chatmeta

import (
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/2389/vault/plugins/core"
)

// Chat implements core.Chat. A player's own entry wins; otherwise the entry
// of the player's primary group applies.
type Chat struct {
	store      *ChatMetaStore
	permission func() (core.Permission, bool)
	log        logrus.FieldLogger
	enabled    atomic.Bool
}

func NewChat(store *ChatMetaStore, permission func() (core.Permission, bool), log logrus.FieldLogger) *Chat {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if permission == nil {
		permission = func() (core.Permission, bool) { return nil, false }
	}
	c := &Chat{store: store, permission: permission, log: log}
	c.enabled.Store(true)
	return c
}

func (c *Chat) Name() string { return "ChatMeta" }

func (c *Chat) IsEnabled() bool { return c.enabled.Load() }

func (c *Chat) PlayerPrefix(world, player string) string {
	return c.PlayerInfo(world, player, nodePrefix, "")
}

func (c *Chat) SetPlayerPrefix(world, player, prefix string) {
	c.set(subjectPlayer, world, player, nodePrefix, prefix)
}

func (c *Chat) PlayerSuffix(world, player string) string {
	return c.PlayerInfo(world, player, nodeSuffix, "")
}

func (c *Chat) SetPlayerSuffix(world, player, suffix string) {
	c.set(subjectPlayer, world, player, nodeSuffix, suffix)
}

func (c *Chat) GroupPrefix(world, group string) string {
	return c.GroupInfo(world, group, nodePrefix, "")
}

func (c *Chat) SetGroupPrefix(world, group, prefix string) {
	c.set(subjectGroup, world, group, nodePrefix, prefix)
}

func (c *Chat) GroupSuffix(world, group string) string {
	return c.GroupInfo(world, group, nodeSuffix, "")
}

func (c *Chat) SetGroupSuffix(world, group, suffix string) {
	c.set(subjectGroup, world, group, nodeSuffix, suffix)
}

func (c *Chat) PlayerInfo(world, player, node, def string) string {
	if v, ok := c.get(subjectPlayer, world, player, node); ok {
		return v
	}
	if group := c.primaryGroup(world, player); group != "" {
		if v, ok := c.get(subjectGroup, world, group, node); ok {
			return v
		}
	}
	return def
}

func (c *Chat) SetPlayerInfo(world, player, node, value string) {
	c.set(subjectPlayer, world, player, node, value)
}

func (c *Chat) GroupInfo(world, group, node, def string) string {
	if v, ok := c.get(subjectGroup, world, group, node); ok {
		return v
	}
	return def
}

func (c *Chat) SetGroupInfo(world, group, node, value string) {
	c.set(subjectGroup, world, group, node, value)
}

func (c *Chat) primaryGroup(world, player string) string {
	perm, ok := c.permission()
	if !ok || !perm.HasGroupSupport() {
		return ""
	}
	return perm.PrimaryGroup(world, player)
}

func (c *Chat) get(subject, world, name, node string) (string, bool) {
	v, ok, err := c.store.Get(subject, world, name, node)
	if err != nil {
		c.log.WithError(err).WithFields(logrus.Fields{
			"subject": subject,
			"name":    name,
			"node":    node,
		}).Error("chat metadata lookup failed")
		return "", false
	}
	return v, ok
}

func (c *Chat) set(subject, world, name, node, value string) {
	if err := c.store.Set(subject, world, name, node, value); err != nil {
		c.log.WithError(err).WithFields(logrus.Fields{
			"subject": subject,
			"name":    name,
			"node":    node,
		}).Error("chat metadata update failed")
	}
}
