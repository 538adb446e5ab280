package dir

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"fastnodes/internal/logger"
	"fastnodes/internal/publishers"
)

// Publisher writes each grouping as <dir>/<name>.txt and <dir>/<name>.yaml.
type Publisher struct{}

func (p *Publisher) Publish(ctx context.Context, groupings []publishers.Grouping, config map[string]interface{}) error {
	root, _ := config["path"].(string)
	if root == "" {
		root = "sub"
	}
	base64Text, _ := config["base64"].(bool)

	for _, g := range groupings {
		if err := ctx.Err(); err != nil {
			return err
		}
		base := filepath.Join(root, filepath.FromSlash(g.Name))
		if err := os.MkdirAll(filepath.Dir(base), 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}

		text, err := publishers.Payload(g, map[string]interface{}{"base64": base64Text})
		if err != nil {
			return err
		}
		if err := os.WriteFile(base+".txt", text, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", g.Name, err)
		}

		doc, err := publishers.Clash(g, config)
		if err != nil {
			return err
		}
		if err := os.WriteFile(base+".yaml", doc, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", g.Name, err)
		}
		logger.Log.Infof(" → %s (%d)", base+".txt", len(g.Entries))
	}
	return nil
}

func init() {
	publishers.Register("dir", func() publishers.Publisher { return &Publisher{} })
}
