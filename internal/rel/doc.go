// Package rel defines the relational algebra: logical nodes, the cluster
// they are built in, costs, and the rule interfaces the planner drives.
//
// Nodes are immutable. Copy produces an equivalent node over new inputs and
// Digest identifies nodes that are interchangeable, which is how the
// planner detects duplicates.
package rel
