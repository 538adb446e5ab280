package file

import (
	"context"
	"fmt"
	"os"

	"fastnodes/internal/collectors"
	"fastnodes/internal/logger"
)

type FileCollector struct{}

func (c *FileCollector) Collect(ctx context.Context, config map[string]interface{}) ([]string, error) {
	path, err := collectors.StringParam(config, "path")
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	logger.Log.Debugf("Reading file: %s", path)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return collectors.SplitLines(string(data)), nil
}

func init() {
	collectors.Register("file", func() collectors.Collector {
		return &FileCollector{}
	})
}
