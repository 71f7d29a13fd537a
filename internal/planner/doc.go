// Package planner implements the cost-based optimizer.
//
// ARCHITECTURE:
//
// Memo:
// Every registered node belongs to an equivalence set. A node's inputs are
// replaced by Subsets, placeholders naming a set in one convention, so a
// rule that rewrites a node automatically sees every alternative of its
// inputs. Nodes with equal digests are registered once. A rule that declares
// a node equivalent to one in another set merges the two sets.
//
// Search:
// Rules are queued per (rule, node) and fired until nothing new can match
// or the firing budget runs out. Costs are then relaxed bottom-up until no
// subset gets cheaper, and the cheapest node per subset is extracted into a
// plain tree.
//
// Driver:
// A Driver owns one Planner and one Cluster and is created per preparation.
// It registers the convention trait, the abstract rules, and the ENUMERABLE
// implementation rules. When the root cannot be implemented in ENUMERABLE
// the result is a PlanningError; there is no fallback.
package planner
