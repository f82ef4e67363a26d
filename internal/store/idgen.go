package store

import (
	"sync"

	"github.com/bwmarrin/snowflake"
	"github.com/pkg/errors"
)

var (
	idMu   sync.Mutex
	idNode *snowflake.Node
)

// SetNode selects the snowflake node used for new document ids.
func SetNode(n int64) error {
	node, err := snowflake.NewNode(n)
	if err != nil {
		return errors.Wrap(err, "snowflake node")
	}
	idMu.Lock()
	idNode = node
	idMu.Unlock()
	return nil
}

// NextID returns a new unique document id.
func NextID() int64 {
	idMu.Lock()
	defer idMu.Unlock()
	if idNode == nil {
		idNode, _ = snowflake.NewNode(1)
	}
	return idNode.Generate().Int64()
}
