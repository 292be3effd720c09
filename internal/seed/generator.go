// ABOUTME: Demo data generator for players, balances, groups, and prefixes.
// ABOUTME: Uses OpenAI when an API key is configured and falls back to static data.

package seed

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"
)

// DefaultModel is used when Options.Model is empty.
const DefaultModel = "gpt-5-mini"

// Options configures the generator. An empty APIKey selects static data.
type Options struct {
	APIKey  string
	Model   string
	BaseURL string
}

// Generator creates fake players using OpenAI or falls back to static data.
type Generator struct {
	client *openai.Client
	useAI  bool
	model  string
	log    logrus.FieldLogger
}

// NewGenerator creates a generator from opts.
func NewGenerator(opts Options, log logrus.FieldLogger) *Generator {
	if log == nil {
		log = logrus.StandardLogger()
	}
	g := &Generator{
		model: opts.Model,
		log:   log.WithField("component", "seed"),
	}
	if g.model == "" {
		g.model = DefaultModel
	}

	if opts.APIKey != "" {
		cfg := openai.DefaultConfig(opts.APIKey)
		if opts.BaseURL != "" {
			cfg.BaseURL = opts.BaseURL
		}
		g.client = openai.NewClientWithConfig(cfg)
		g.useAI = true
		g.log.WithField("model", g.model).Info("OpenAI API key found, using AI-generated players")
	} else {
		g.log.Info("no OpenAI API key configured, using static players")
	}
	return g
}

// UsesAI reports whether Generate calls OpenAI.
func (g *Generator) UsesAI() bool {
	return g.useAI
}

// Data holds the generated players.
type Data struct {
	Players []PlayerData `json:"players"`
}

// PlayerData is one generated player. Group is only applied when the bound
// permission provider already has a group by that name.
type PlayerData struct {
	Name        string   `json:"name"`
	Balance     float64  `json:"balance"`
	Group       string   `json:"group"`
	Prefix      string   `json:"prefix"`
	Permissions []string `json:"permissions"`
}

// Generate creates count players. groups lists the permission groups the
// players may join.
func (g *Generator) Generate(ctx context.Context, count int, groups []string) (*Data, error) {
	if count <= 0 {
		return &Data{}, nil
	}
	if !g.useAI {
		return &Data{Players: generateStaticPlayers(count, groups)}, nil
	}

	g.log.WithField("players", count).Info("generating players via AI")
	players, err := g.generatePlayers(ctx, count, groups)
	if err == nil {
		players = cleanPlayers(players, count)
		if len(players) == 0 {
			err = fmt.Errorf("response held no usable players")
		}
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		g.log.WithError(err).Warn("AI generation failed, falling back to static players")
		return &Data{Players: generateStaticPlayers(count, groups)}, nil
	}

	g.log.WithField("players", len(players)).Info("AI generation complete")
	return &Data{Players: players}, nil
}

func (g *Generator) generatePlayers(ctx context.Context, count int, groups []string) ([]PlayerData, error) {
	groupHint := "Leave group empty."
	if len(groups) > 0 {
		groupHint = fmt.Sprintf("Set group to one of: %s.", strings.Join(groups, ", "))
	}

	prompt := fmt.Sprintf(`Generate %d fake players for a multiplayer game server.

Return as JSON array with objects containing: name, balance, group, prefix, permissions.
- name: a unique in-game username, 3-16 characters, letters, digits, and underscores only
- balance: a coin balance between 0 and 5000 with at most 2 decimals
- prefix: a short chat prefix such as "[VIP] " or an empty string
- permissions: 0-3 dotted permission nodes such as "essentials.home" or "worldedit.wand"
%s
Make the names varied and believable.`, count, groupHint)

	return callOpenAI[[]PlayerData](ctx, g.client, g.model, prompt)
}

// cleanPlayers drops unnamed and duplicate players, clamps negative balances,
// and caps the list at count.
func cleanPlayers(players []PlayerData, count int) []PlayerData {
	seen := make(map[string]bool, len(players))
	out := make([]PlayerData, 0, min(len(players), count))
	for _, p := range players {
		p.Name = strings.TrimSpace(p.Name)
		key := strings.ToLower(p.Name)
		if p.Name == "" || seen[key] {
			continue
		}
		seen[key] = true
		if p.Balance < 0 {
			p.Balance = 0
		}
		out = append(out, p)
		if len(out) == count {
			break
		}
	}
	return out
}

func callOpenAI[T any](ctx context.Context, client *openai.Client, model, prompt string) (T, error) {
	var result T

	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You are a data generator. Always respond with valid JSON only, no markdown or explanation.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
	})
	if err != nil {
		return result, fmt.Errorf("OpenAI API error: %w", err)
	}

	if len(resp.Choices) == 0 {
		return result, fmt.Errorf("no response from OpenAI")
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.Trim(content, "`\n ")
	if err := json.Unmarshal([]byte(content), &result); err != nil {
		return result, fmt.Errorf("failed to parse JSON response: %w", err)
	}

	return result, nil
}
