package prepare

import (
	"context"
	"log/slog"
	"reflect"

	"github.com/roach88/quarry/internal/catalog"
	"github.com/roach88/quarry/internal/enumerable"
	"github.com/roach88/quarry/internal/ir"
	"github.com/roach88/quarry/internal/linq"
	"github.com/roach88/quarry/internal/planner"
	"github.com/roach88/quarry/internal/rel"
	"github.com/roach88/quarry/internal/sql2rel"
	"github.com/roach88/quarry/internal/sqlparse"
	"github.com/roach88/quarry/internal/translate"
	"github.com/roach88/quarry/internal/validate"
)

// Option configures a Preparer.
type Option func(*Preparer)

// WithCompiler replaces the default enumerable.ClosureCompiler.
func WithCompiler(c enumerable.Compiler) Option {
	return func(p *Preparer) { p.compiler = c }
}

// WithStatistics supplies table row counts to the planner.
// Without it every table reports the catalog's placeholder count.
func WithStatistics(s catalog.StatisticsProvider) Option {
	return func(p *Preparer) { p.readerOpts = append(p.readerOpts, catalog.WithStatistics(s)) }
}

// WithFlattener replaces the pass-through flattener.
func WithFlattener(f planner.Flattener) Option {
	return func(p *Preparer) { p.driverOpts = append(p.driverOpts, planner.WithFlattener(f)) }
}

// WithRules registers extra planner rules.
func WithRules(rules ...rel.Rule) Option {
	return func(p *Preparer) { p.driverOpts = append(p.driverOpts, planner.WithRules(rules...)) }
}

// WithPlannerOptions configures every planner the Preparer creates.
func WithPlannerOptions(opts ...planner.Option) Option {
	return func(p *Preparer) { p.driverOpts = append(p.driverOpts, planner.WithPlannerOptions(opts...)) }
}

// WithParameterBinder replaces NoParameters.
func WithParameterBinder(b ParameterBinder) Option {
	return func(p *Preparer) { p.binder = b }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(p *Preparer) { p.logger = l }
}

// WithIDGenerator replaces the UUIDv7 correlation ids.
func WithIDGenerator(g IDGenerator) Option {
	return func(p *Preparer) { p.ids = g }
}

// Preparer turns queries into PreparedResults.
type Preparer struct {
	compiler   enumerable.Compiler
	binder     ParameterBinder
	logger     *slog.Logger
	ids        IDGenerator
	readerOpts []catalog.ReaderOption
	driverOpts []planner.DriverOption
}

// New creates a Preparer.
func New(opts ...Option) *Preparer {
	p := &Preparer{
		compiler: enumerable.ClosureCompiler{},
		binder:   NoParameters{},
		logger:   slog.Default(),
		ids:      UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// PrepareSQL prepares query text. Panics if text is empty.
func (p *Preparer) PrepareSQL(ctx context.Context, pc Context, text string) (*PreparedResult, error) {
	return p.prepare(ctx, pc, text, nil, nil)
}

// PrepareQueryable prepares a queryable whose rows have type elem; a nil
// elem means q.ElementType(). Panics if q is nil.
func (p *Preparer) PrepareQueryable(ctx context.Context, pc Context, q *linq.Queryable, elem reflect.Type) (*PreparedResult, error) {
	return p.prepare(ctx, pc, "", q, elem)
}

// preparation carries the per-call state shared by the stages.
type preparation struct {
	*Preparer
	reader *catalog.Reader
	driver *planner.Driver
	log    *slog.Logger
	query  string
}

func (p *Preparer) prepare(ctx context.Context, pc Context, text string, q *linq.Queryable, elem reflect.Type) (*PreparedResult, error) {
	if (text == "") == (q == nil) {
		panic("prepare: exactly one of SQL text and queryable must be given")
	}

	id := p.ids.Generate()
	tf := pc.TypeFactory()
	st := &preparation{
		Preparer: p,
		reader:   catalog.NewReader(pc.RootSchema(), tf, p.readerOpts...),
		log:      p.logger.With("prepare_id", id),
		query:    text,
	}
	st.driver = planner.NewDriver(tf, append([]planner.DriverOption{planner.WithDriverLogger(st.log)}, p.driverOpts...)...)

	var root rel.Node
	var rowType *ir.Type
	var err error
	if q == nil {
		root, rowType, err = st.fromSQL(text)
	} else {
		st.query = q.String()
		root, rowType, err = st.fromQueryable(q, elem)
	}
	if err != nil {
		return nil, err
	}
	rowType = MakeStruct(tf, rowType)
	root = st.driver.Flatten(root)
	logical := rel.Explain(root)
	st.log.Debug("prepare: translated", "row_type", rowType.Digest())

	best, err := st.driver.Optimize(root, rowType)
	if err != nil {
		return nil, st.fail(CodePlanning, err)
	}
	st.log.Debug("prepare: optimized", "sets", st.driver.Planner().Sets())

	proc, err := enumerable.NewImplementor().ImplementRoot(best)
	if err != nil {
		return nil, st.fail(CodeCompilation, err)
	}
	st.log.Debug("prepare: compiling procedure", "stmts", len(proc.Stmts), "source", proc.Source())
	exe, err := p.compiler.Compile(proc)
	if err != nil {
		return nil, st.fail(CodeCompilation, err)
	}

	res := &PreparedResult{
		ID:         id,
		SQL:        text,
		Parameters: p.binder.Parameters(best, rowType),
		Columns:    Columns(rowType),
		RowType:    rowType,
		Executable: exe,
		plan: Plan{
			Logical:  logical,
			Physical: rel.Explain(best),
			Source:   proc.Source(),
			Digest:   ir.PlanHash(rel.Digest(best)),
		},
	}
	st.log.InfoContext(ctx, "prepare: prepared", "columns", len(res.Columns))
	return res, nil
}

func (st *preparation) fail(code Code, err error) *Error {
	e := newError(code, st.query, err)
	st.log.Debug("prepare: failed", "code", e.Code, "error", err)
	return e
}

func (st *preparation) fromSQL(text string) (rel.Node, *ir.Type, error) {
	q, err := sqlparse.Parse(text)
	if err != nil {
		return nil, nil, st.fail(CodeParse, err)
	}
	c := st.driver.Cluster()
	v := validate.New(st.reader, c.Builder())
	validated, rowType, err := v.Validate(q)
	if err != nil {
		return nil, nil, st.fail(CodeValidation, err)
	}
	st.log.Debug("prepare: validated", "row_type", rowType.Digest())
	root, err := sql2rel.NewConverter(v, st.reader, c.Builder(), c).ConvertValidated(validated)
	if err != nil {
		return nil, nil, st.fail(CodeTranslation, err)
	}
	return root, rowType, nil
}

// fromQueryable lowers q. The declared element type, not the lowered
// root, supplies the result type.
func (st *preparation) fromQueryable(q *linq.Queryable, elem reflect.Type) (rel.Node, *ir.Type, error) {
	c := st.driver.Cluster()
	root, err := translate.NewQueryableTranslator(c, st.reader).Translate(q)
	if err != nil {
		return nil, nil, st.fail(CodeTranslation, err)
	}
	if elem == nil {
		elem = q.ElementType()
	}
	rowType, err := c.TypeFactory().CreateTypeFromGo(elem)
	if err != nil {
		return nil, nil, st.fail(CodeTranslation, err)
	}
	return root, rowType, nil
}
