package id

import (
	"fmt"
	"sync"

	"github.com/bwmarrin/snowflake"
)

var (
	node     *snowflake.Node
	initOnce sync.Once
	initErr  error
)

// Init initializes the snowflake node. Call once at startup.
// nodeID must be unique per running instance (0-1023).
func Init(nodeID int64) error {
	initOnce.Do(func() {
		node, initErr = snowflake.NewNode(nodeID)
	})
	if initErr != nil {
		return fmt.Errorf("initializing snowflake node: %w", initErr)
	}
	return nil
}

// New returns a new unique int64 ID. Panics if Init was not called.
func New() int64 {
	if node == nil {
		panic("id: Init must be called before New")
	}
	return node.Generate().Int64()
}
