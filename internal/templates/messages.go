// Package templates renders notification events into message text.
package templates

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"points-miner/internal/notify"
	"points-miner/internal/types"
)

var defaults = map[types.Tag]string{
	types.TagStreamerOnline:     `{{.Username}} is online{{if .Title}}: {{.Title}}{{end}}{{if .Game}} [{{.Game}}]{{end}}`,
	types.TagStreamerOffline:    `{{.Username}} is offline{{if .Speculative}} (heartbeats failing){{end}}`,
	types.TagGainForWatchStreak: `Watch streak completed for {{.Username}} after {{.Minutes}} minutes`,
	types.TagBetStart:           `Prediction "{{.Title}}" opened on {{.Username}}, deciding at {{.PlaceAt.Format "15:04:05"}}`,
	types.TagBetPlaced:          `Placed {{.Amount}} points on "{{.Outcome}}" in "{{.Title}}" ({{.Username}}, {{.Strategy}})`,
	types.TagBetWin:             `Won {{.Won}} points on "{{.Title}}" ({{.Username}}), bet {{.Amount}} on "{{.Outcome}}"`,
	types.TagBetLose:            `Lost {{.Amount}} points on "{{.Title}}" ({{.Username}}), picked "{{.Outcome}}"`,
	types.TagBetRefund:          `Refunded {{.Amount}} points on "{{.Title}}" ({{.Username}})`,
	types.TagBetFilters:         `Skipped "{{.Title}}" on {{.Username}}: {{.Filter.By}} {{.Filter.Where}} {{.Filter.Value}} not met`,
	types.TagBetGeneral:         `Skipped "{{.Title}}" on {{.Username}}: {{.Reason}}`,
	types.TagBetFailed:          `Bet on "{{.Title}}" ({{.Username}}) failed: {{.Error}}`,
	types.TagDropClaim:          `Claimed drop {{.Name}} on {{.Username}}`,
	types.TagDropStatus:         `Drop {{.Name}} on {{.Username}}: {{.Current}}/{{.Required}} minutes`,
	types.TagChatMention:        `{{.Author}} mentioned you in {{.Username}}'s chat: {{.Message}}`,
	types.TagJoinRaid:           `Joined raid from {{.Username}} to {{.Target}}`,
	types.TagMomentClaim:        `Claimed moment {{.MomentID}} on {{.Username}}`,
}

// Renderer holds one parsed template per tag.
type Renderer struct {
	templates map[types.Tag]*template.Template
}

// New parses the built-in templates. When dir is set, a file named
// <TAG>.tmpl in it replaces the built-in template for that tag.
func New(dir string) (*Renderer, error) {
	r := &Renderer{templates: make(map[types.Tag]*template.Template, len(defaults))}
	for tag, text := range defaults {
		if dir != "" {
			override, err := readOverride(dir, tag)
			if err != nil {
				return nil, err
			}
			if override != "" {
				text = override
			}
		}
		tmpl, err := template.New(string(tag)).Option("missingkey=error").Parse(text)
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", tag, err)
		}
		r.templates[tag] = tmpl
	}
	return r, nil
}

func readOverride(dir string, tag types.Tag) (string, error) {
	content, err := os.ReadFile(filepath.Join(dir, string(tag)+".tmpl"))
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read template file: %w", err)
	}
	return strings.TrimRight(string(content), "\r\n"), nil
}

func (r *Renderer) Render(ev notify.Event) (string, error) {
	tmpl, ok := r.templates[ev.Tag()]
	if !ok {
		return "", fmt.Errorf("no template for %s", ev.Tag())
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, ev); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}
	return buf.String(), nil
}
