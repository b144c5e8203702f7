// Package catalog loads the featured pools offered by /pools.
package catalog

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

// Pool is one featured pool. Label is optional.
type Pool struct {
	ID    string `yaml:"id"`
	Label string `yaml:"label"`
}

type Catalog struct {
	pools []Pool
}

type fileFormat struct {
	Pools []Pool `yaml:"pools"`
}

// Load reads a catalog file. An empty path or a missing file yields an
// empty catalog.
func Load(path string) (*Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return &Catalog{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Catalog{}, nil
		}
		return nil, fmt.Errorf("read pools file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML and rejects malformed or duplicate pool ids.
func Parse(data []byte) (*Catalog, error) {
	var file fileFormat
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse pools file: %w", err)
	}
	seen := make(map[string]struct{}, len(file.Pools))
	pools := make([]Pool, 0, len(file.Pools))
	for i, pool := range file.Pools {
		id := strings.TrimSpace(pool.ID)
		if !common.IsHexAddress(id) {
			return nil, fmt.Errorf("pool %d: invalid id %q", i, pool.ID)
		}
		id = common.HexToAddress(id).Hex()
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("pool %d: duplicate id %s", i, id)
		}
		seen[id] = struct{}{}
		pools = append(pools, Pool{ID: id, Label: strings.TrimSpace(pool.Label)})
	}
	return &Catalog{pools: pools}, nil
}

// Pools returns the featured pools in file order.
func (c *Catalog) Pools() []Pool {
	if c == nil {
		return nil
	}
	out := make([]Pool, len(c.pools))
	copy(out, c.pools)
	return out
}

func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.pools)
}
