package zookeeper

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSequenceOrdersProtectedNodes(t *testing.T) {
	nodes := []string{
		"_c_9f1e-lock-0000000012",
		"_c_01ab-lock-0000000003",
		"_c_77cd-lock-0000000007",
	}
	sort.Slice(nodes, func(i, j int) bool { return sequence(nodes[i]) < sequence(nodes[j]) })

	assert.Equal(t, "_c_01ab-lock-0000000003", nodes[0])
	assert.Equal(t, "_c_9f1e-lock-0000000012", nodes[2])
}
