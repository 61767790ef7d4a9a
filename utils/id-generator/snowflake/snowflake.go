package snowflake

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Organization, assignment and inspection ids: 41 bits of milliseconds,
// 10 bits of node and 12 bits of sequence. Replicas sharing a database
// need distinct SNOWFLAKE_NODE_ID values.

const (
	MaxNodeID = 1023
	EnvNodeID = "SNOWFLAKE_NODE_ID"
)

var ErrNodeIDRange = errors.New("snowflake: node id must be between 0 and 1023")

// Generator is safe for concurrent use.
type Generator struct {
	node *snowflake.Node
}

func NewGenerator(nodeID int64) (*Generator, error) {
	if nodeID < 0 || nodeID > MaxNodeID {
		return nil, fmt.Errorf("%w: got %d", ErrNodeIDRange, nodeID)
	}
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, fmt.Errorf("snowflake: %w", err)
	}
	return &Generator{node: node}, nil
}

func NewGeneratorFromEnv() (*Generator, error) {
	nodeID, err := NodeIDFromEnv()
	if err != nil {
		return nil, err
	}
	return NewGenerator(nodeID)
}

// NodeIDFromEnv reads SNOWFLAKE_NODE_ID; unset means node 0.
func NodeIDFromEnv() (int64, error) {
	raw := os.Getenv(EnvNodeID)
	if raw == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s=%q: not an integer", EnvNodeID, raw)
	}
	if id < 0 || id > MaxNodeID {
		return 0, fmt.Errorf("%s=%d: %w", EnvNodeID, id, ErrNodeIDRange)
	}
	return id, nil
}

func (g *Generator) Generate() int64 {
	return g.node.Generate().Int64()
}

// Components are the fields packed into an id.
type Components struct {
	Time time.Time
	Node int64
	Step int64
}

func Decompose(id int64) Components {
	sid := snowflake.ID(id)
	return Components{
		Time: time.UnixMilli(sid.Time()),
		Node: sid.Node(),
		Step: sid.Step(),
	}
}

var shared = sync.OnceValues(NewGeneratorFromEnv)

// Generate draws from the process-wide generator. A malformed
// SNOWFLAKE_NODE_ID panics on first use.
func Generate() int64 {
	g, err := shared()
	if err != nil {
		panic(err)
	}
	return g.Generate()
}
