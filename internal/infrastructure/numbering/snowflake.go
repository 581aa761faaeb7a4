// Package numbering issues document numbers for ledger transactions and stock requests.
package numbering

import (
	"fmt"

	"github.com/bwmarrin/snowflake"
)

// SnowflakeGenerator renders snowflake ids as PREFIX-<id>. Ids are unique
// across replicas as long as every replica runs with its own node id.
type SnowflakeGenerator struct {
	node *snowflake.Node
}

// NewSnowflakeGenerator creates a generator for node (0-1023)
func NewSnowflakeGenerator(node int64) (*SnowflakeGenerator, error) {
	n, err := snowflake.NewNode(node)
	if err != nil {
		return nil, fmt.Errorf("init snowflake node %d: %w", node, err)
	}
	return &SnowflakeGenerator{node: n}, nil
}

// Next returns a fresh number such as GRN-1789034112345678848
func (g *SnowflakeGenerator) Next(prefix string) string {
	return prefix + "-" + g.node.Generate().String()
}
