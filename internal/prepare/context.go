package prepare

import (
	"github.com/google/uuid"

	"github.com/roach88/quarry/internal/catalog"
	"github.com/roach88/quarry/internal/ir"
)

// Context supplies what one preparation reads: the catalog root, the type
// system and the data context plans will later run against.
type Context interface {
	RootSchema() catalog.Schema
	TypeFactory() *ir.TypeFactory
	DataContext() catalog.DataContext
}

type schemaContext struct {
	root catalog.Schema
	tf   *ir.TypeFactory
}

// NewContext creates a Context over root with a fresh type factory.
func NewContext(root catalog.Schema) Context {
	return &schemaContext{root: root, tf: ir.NewTypeFactory()}
}

func (c *schemaContext) RootSchema() catalog.Schema       { return c.root }
func (c *schemaContext) TypeFactory() *ir.TypeFactory     { return c.tf }
func (c *schemaContext) DataContext() catalog.DataContext { return catalog.NewDataContext(c.root) }

// IDGenerator generates the correlation id of each preparation.
// Implemented by UUIDv7Generator (production) and testutil.FixedIDGenerator.
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 ids.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate returns a new hyphenated UUIDv7.
//
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}
