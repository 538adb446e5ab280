package stdout

import (
	"context"
	"fmt"
	"io"
	"os"

	"fastnodes/internal/publishers"
)

type Publisher struct {
	Out io.Writer
}

func (p *Publisher) Publish(ctx context.Context, groupings []publishers.Grouping, config map[string]interface{}) error {
	out := p.Out
	if out == nil {
		out = os.Stdout
	}
	for _, g := range groupings {
		payload, err := publishers.Payload(g, config)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "========== %s (%d) ==========\n", g.Name, len(g.Entries))
		out.Write(payload)
		fmt.Fprintln(out, "============================================")
	}
	return nil
}

func init() {
	publishers.Register("stdout", func() publishers.Publisher { return &Publisher{} })
}
