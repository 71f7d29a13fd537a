package sqlparse

import (
	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// sqlLexer tokenizes the supported SQL subset. Keywords are matched
// case-insensitively; identifiers keep their case.
var sqlLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Keyword", Pattern: `(?i)\b(SELECT|DISTINCT|ALL|FROM|WHERE|GROUP|BY|HAVING|ORDER|ASC|DESC|LIMIT|OFFSET|UNION|INTERSECT|EXCEPT|MINUS|JOIN|INNER|LEFT|OUTER|CROSS|ON|AS|AND|OR|NOT|IS|NULL|TRUE|FALSE|CASE|WHEN|THEN|ELSE|END|BETWEEN|IN)\b`},
	{Name: "Number", Pattern: `(?:\d+(?:\.\d*)?|\.\d+)(?:[eE][-+]?\d+)?`},
	{Name: "String", Pattern: `'(?:[^']|'')*'`},
	{Name: "QuotedIdent", Pattern: `"(?:[^"]|"")*"`},
	{Name: "Ident", Pattern: `[A-Za-z_][A-Za-z0-9_$]*`},
	{Name: "Comment", Pattern: `--[^\n]*`},
	{Name: "Operator", Pattern: `<>|!=|<=|>=|\|\||[-+*/=<>]`},
	{Name: "Punct", Pattern: `[(),.;]`},
	{Name: "Whitespace", Pattern: `\s+`},
})

var parser = participle.MustBuild[rawStatement](
	participle.Lexer(sqlLexer),
	participle.Elide("Whitespace", "Comment"),
	participle.CaseInsensitive("Keyword"),
	participle.UseLookahead(4),
)

// The raw* types mirror the grammar; parse.go turns them into the AST.

type rawStatement struct {
	Query *rawQuery `@@ ";"?`
}

type rawQuery struct {
	Pos     lexer.Position
	Body    *rawUnion   `@@`
	OrderBy []*rawOrder `( "ORDER" "BY" @@ ( "," @@ )* )?`
	Limit   *rawNumber  `( "LIMIT" @@ )?`
	Offset  *rawNumber  `( "OFFSET" @@ )?`
}

type rawNumber struct {
	Pos  lexer.Position
	Text string `@Number`
}

type rawUnion struct {
	Left *rawIntersect `@@`
	Rest []*rawUnionOp `@@*`
}

type rawUnionOp struct {
	Pos   lexer.Position
	Op    string        `@( "UNION" | "EXCEPT" | "MINUS" )`
	All   bool          `( @"ALL" | "DISTINCT" )?`
	Right *rawIntersect `@@`
}

type rawIntersect struct {
	Left *rawTerm          `@@`
	Rest []*rawIntersectOp `@@*`
}

type rawIntersectOp struct {
	Pos   lexer.Position
	All   bool     `"INTERSECT" ( @"ALL" | "DISTINCT" )?`
	Right *rawTerm `@@`
}

type rawTerm struct {
	Select *rawSelect `  @@`
	Nested *rawQuery  `| "(" @@ ")"`
}

type rawSelect struct {
	Pos      lexer.Position
	Distinct bool       `"SELECT" ( @"DISTINCT" | "ALL" )?`
	Items    []*rawItem `@@ ( "," @@ )*`
	From     *rawFrom   `( "FROM" @@ )?`
	Where    *rawExpr   `( "WHERE" @@ )?`
	GroupBy  []*rawExpr `( "GROUP" "BY" @@ ( "," @@ )* )?`
	Having   *rawExpr   `( "HAVING" @@ )?`
}

type rawItem struct {
	Pos       lexer.Position
	Star      bool      `(  @"*"`
	Qualifier *rawIdent `| @@ "." "*"`
	Expr      *rawExpr  `| @@ )`
	Alias     *rawIdent `( "AS"? @@ )?`
}

type rawIdent struct {
	Pos   lexer.Position
	Token string `@( Ident | QuotedIdent )`
}

type rawFrom struct {
	First *rawTableRef `@@`
	Rest  []*rawJoin   `@@*`
}

type rawJoin struct {
	Pos   lexer.Position
	Comma bool         `(  @","`
	Left  bool         `| ( @"LEFT" "OUTER"?`
	Cross bool         `  | @"CROSS" | "INNER" )? "JOIN" )`
	Table *rawTableRef `@@`
	On    *rawExpr     `( "ON" @@ )?`
}

type rawTableRef struct {
	Pos      lexer.Position
	Names    []*rawIdent `(  @@ ( "." @@ )*`
	Subquery *rawQuery   `| "(" @@ ")" )`
	Alias    *rawIdent   `( "AS"? @@ )?`
}

type rawOrder struct {
	Expr *rawExpr `@@`
	Desc bool     `( @"DESC" | "ASC" )?`
}

type rawExpr struct {
	Left *rawAnd   `@@`
	Rest []*rawAnd `( "OR" @@ )*`
}

type rawAnd struct {
	Left *rawNot   `@@`
	Rest []*rawNot `( "AND" @@ )*`
}

type rawNot struct {
	Pos       lexer.Position
	Not       *rawNot       `(  "NOT" @@`
	Predicate *rawPredicate `| @@ )`
}

type rawPredicate struct {
	Left    *rawAdditive `@@`
	Compare *rawCompare  `( @@`
	Is      *rawIs       `| @@`
	Between *rawBetween  `| @@`
	In      *rawIn       `| @@ )?`
}

type rawCompare struct {
	Pos   lexer.Position
	Op    string       `@( "=" | "<>" | "!=" | "<=" | ">=" | "<" | ">" )`
	Right *rawAdditive `@@`
}

type rawIs struct {
	Pos lexer.Position
	Not bool `"IS" @"NOT"? "NULL"`
}

type rawBetween struct {
	Pos  lexer.Position
	Not  bool         `@"NOT"? "BETWEEN"`
	Low  *rawAdditive `@@`
	High *rawAdditive `"AND" @@`
}

type rawIn struct {
	Pos  lexer.Position
	Not  bool       `@"NOT"? "IN"`
	List []*rawExpr `"(" @@ ( "," @@ )* ")"`
}

type rawAdditive struct {
	Left *rawMultiplicative `@@`
	Rest []*rawAddOp        `@@*`
}

type rawAddOp struct {
	Pos   lexer.Position
	Op    string             `@( "+" | "-" | "||" )`
	Right *rawMultiplicative `@@`
}

type rawMultiplicative struct {
	Left *rawUnary   `@@`
	Rest []*rawMulOp `@@*`
}

type rawMulOp struct {
	Pos   lexer.Position
	Op    string    `@( "*" | "/" )`
	Right *rawUnary `@@`
}

type rawUnary struct {
	Pos     lexer.Position
	Negate  *rawUnary   `(  "-" @@`
	Plus    *rawUnary   `| "+" @@`
	Primary *rawPrimary `| @@ )`
}

type rawPrimary struct {
	Pos    lexer.Position
	Number *string     `(  @Number`
	String *string     `| @String`
	True   bool        `| @"TRUE"`
	False  bool        `| @"FALSE"`
	Null   bool        `| @"NULL"`
	Case   *rawCase    `| @@`
	Call   *rawCall    `| @@`
	Column []*rawIdent `| @@ ( "." @@ )*`
	Paren  *rawExpr    `| "(" @@ ")" )`
}

type rawCall struct {
	Pos      lexer.Position
	Name     *rawIdent  `@@ "("`
	Star     bool       `(  @"*"`
	Distinct bool       `| ( @"DISTINCT" | "ALL" )?`
	Args     []*rawExpr `  ( @@ ( "," @@ )* )? ) ")"`
}

type rawCase struct {
	Pos     lexer.Position
	Operand *rawExpr   `"CASE" @@?`
	Whens   []*rawWhen `@@+`
	Else    *rawExpr   `( "ELSE" @@ )? "END"`
}

type rawWhen struct {
	When *rawExpr `"WHEN" @@`
	Then *rawExpr `"THEN" @@`
}
