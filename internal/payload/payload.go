// Package payload defines the closed set of operation requests that cross
// the dispatcher→worker boundary. Each operation is a distinct Go type
// satisfying the Op marker interface, so a worker's dispatch switch can
// branch on concrete type instead of an untyped tag string.
package payload

// Op is the closed marker interface every payload type satisfies. Its only
// method is unexported, so no type outside this package can satisfy it —
// the set of valid payloads is a compile-time-checked union: one struct
// per operation rather than one struct with a type-enum field.
type Op interface {
	opTag() string
}

// Cond is a query condition. It is a map of column->value (equality
// AND'd together), a list of sub-conditions AND'd together, or a Raw
// literal standing in for a raw subquery/SQL fragment.
type Cond struct {
	Eq  map[string]any
	And []Cond
	Raw string
}

// IsZero reports whether c carries no condition at all.
func (c Cond) IsZero() bool {
	return len(c.Eq) == 0 && len(c.And) == 0 && c.Raw == ""
}

// Attrs holds the recognized ResultSet attribute keys.
type Attrs struct {
	Rows       int
	Offset     int
	Limit      int
	OrderBy    string
	Prefetch   Prefetch
	Collapse   bool
	Alias      string
	IsSubquery bool
	Cache      bool
	ResultCls  string
}

// Prefetch normalizes the three accepted prefetch shapes (a string, an
// array, or a nested mapping) into one representation: a map from
// relation name to its own sub-prefetch (possibly empty).
type Prefetch map[string]Prefetch

// IsEmpty reports whether no prefetch was requested.
func (p Prefetch) IsEmpty() bool { return len(p) == 0 }

// NewPrefetchFromString builds a single-relation Prefetch.
func NewPrefetchFromString(relation string) Prefetch {
	return Prefetch{relation: Prefetch{}}
}

// NewPrefetchFromList builds a multi-relation, flat Prefetch.
func NewPrefetchFromList(relations []string) Prefetch {
	p := make(Prefetch, len(relations))
	for _, r := range relations {
		p[r] = Prefetch{}
	}

	return p
}

type base struct {
	Source string
}

// Count requests an aggregate over a column (or COUNT(*) when Column=="").
type Count struct {
	base
	Cond Cond
	Attrs Attrs
	Fn     string // "count", "sum", "max", "min", "avg"
	Column string
}

func (Count) opTag() string { return "count" }

// Search requests "search"/"all": an array of rows matching Cond/Attrs.
type Search struct {
	base
	Cond  Cond
	Attrs Attrs
}

func (Search) opTag() string { return "search" }

// Find requests a single row by id or condition.
type Find struct {
	base
	Query Cond
	Attrs Attrs
}

func (Find) opTag() string { return "find" }

// Create inserts one row.
type Create struct {
	base
	Data map[string]any
}

func (Create) opTag() string { return "create" }

// Update applies a column update to every row matching Cond.
type Update struct {
	base
	Cond    Cond
	Updates map[string]any
}

func (Update) opTag() string { return "update" }

// Delete removes every row matching Cond.
type Delete struct {
	base
	Cond Cond
}

func (Delete) opTag() string { return "delete" }

// Populate bulk-inserts a batch of rows and returns the materialized
// records (unlike PopulateBulk, which inserts the same way but does not
// return them).
type Populate struct {
	base
	Data []map[string]any
}

func (Populate) opTag() string { return "populate" }

// PopulateBulk bulk-inserts a batch of rows without echoing them back.
type PopulateBulk struct {
	base
	Data []map[string]any
}

func (PopulateBulk) opTag() string { return "populate_bulk" }

// NewCreate builds a Create targeting source. Package-external callers
// cannot set the embedded base field directly since its type is
// unexported, so construction goes through this constructor instead.
func NewCreate(source string, data map[string]any) Create {
	c := Create{Data: data}
	c.Source = source

	return c
}

// NewUpdate builds an Update targeting source.
func NewUpdate(source string, cond Cond, updates map[string]any) Update {
	u := Update{Cond: cond, Updates: updates}
	u.Source = source

	return u
}

// NewDelete builds a Delete targeting source.
func NewDelete(source string, cond Cond) Delete {
	d := Delete{Cond: cond}
	d.Source = source

	return d
}

// NewSearch builds a Search targeting source.
func NewSearch(source string, cond Cond, attrs Attrs) Search {
	s := Search{Cond: cond, Attrs: attrs}
	s.Source = source

	return s
}

// NewFind builds a Find targeting source.
func NewFind(source string, query Cond, attrs Attrs) Find {
	f := Find{Query: query, Attrs: attrs}
	f.Source = source

	return f
}

// NewCount builds a Count targeting source.
func NewCount(source string, cond Cond, attrs Attrs, fn, column string) Count {
	c := Count{Cond: cond, Attrs: attrs, Fn: fn, Column: column}
	c.Source = source

	return c
}

// NewPopulate builds a Populate targeting source.
func NewPopulate(source string, rows []map[string]any) Populate {
	p := Populate{Data: rows}
	p.Source = source

	return p
}

// NewPopulateBulk builds a PopulateBulk targeting source.
func NewPopulateBulk(source string, rows []map[string]any) PopulateBulk {
	p := PopulateBulk{Data: rows}
	p.Source = source

	return p
}

// Deploy delegates schema DDL to the underlying capability (goose
// migrations in internal/ormcap).
type Deploy struct {
	Args map[string]any
	Dir  string
}

func (Deploy) opTag() string { return "deploy" }

// TxnStepKind enumerates the step kinds accepted by TxnBatch/TxnDo.
type TxnStepKind string

const (
	TxnStepCreate TxnStepKind = "create"
	TxnStepUpdate TxnStepKind = "update"
	TxnStepDelete TxnStepKind = "delete"
	TxnStepFind   TxnStepKind = "find"
	TxnStepRaw    TxnStepKind = "raw"
)

// TxnBatchStep is one step of a txn_batch payload.
type TxnBatchStep struct {
	Kind      TxnStepKind
	Source    string
	ID        any
	Data      map[string]any
	SQL       string
	Bind      []any
}

// TxnBatch executes a flat batch of writes inside one transaction, pinned
// to a single worker.
type TxnBatch struct {
	Steps []TxnBatchStep
}

func (TxnBatch) opTag() string { return "txn_batch" }

// TxnDoStep is one step of a txn_do payload. Name, when set, captures the
// step's "id" result into the per-call register under "$name.id" for
// substitution into later steps.
type TxnDoStep struct {
	Action TxnStepKind
	Name   string
	Source string
	ID     any
	Data   map[string]any
	SQL    string
	Bind   []any
}

// TxnDo executes an ordered, named sequence of steps inside one
// transaction with register-based placeholder substitution.
type TxnDo struct {
	Steps []TxnDoStep
}

func (TxnDo) opTag() string { return "txn_do" }

// TxnBatchResult is the result of a successful TxnBatch call: the number
// of steps applied inside the transaction.
type TxnBatchResult struct {
	Count   int
	Success bool
}

// TxnDoResult is the result of a successful TxnDo call: one entry per
// step, in step order — a materialized row for create/find steps, nil
// for update/delete/raw steps.
type TxnDoResult struct {
	Results []any
	Success bool
}

// TxnControlResult is the result of a successful TxnBegin, TxnCommit, or
// TxnRollback call.
type TxnControlResult struct {
	Success bool
}

// TxnBegin/TxnCommit/TxnRollback are issued as separate calls. Round-robin
// routing does not pin them to the same worker; see DESIGN.md for how
// callers needing transactional affinity across the three calls should
// route them.
type TxnBegin struct{}

func (TxnBegin) opTag() string { return "txn_begin" }

type TxnCommit struct{}

func (TxnCommit) opTag() string { return "txn_commit" }

type TxnRollback struct{}

func (TxnRollback) opTag() string { return "txn_rollback" }

// Ping is the liveness probe; worker result is the literal string "pong".
type Ping struct{}

func (Ping) opTag() string { return "ping" }

// HealthCheck is the dispatcher's periodic probe, issued to every worker.
type HealthCheck struct{}

func (HealthCheck) opTag() string { return "health_check" }

// SourceOf returns the table/entity name an Op addresses, or "" for
// payloads that don't target one (Deploy, Ping, HealthCheck, Txn*).
func SourceOf(op Op) string {
	switch v := op.(type) {
	case Count:
		return v.Source
	case Search:
		return v.Source
	case Find:
		return v.Source
	case Create:
		return v.Source
	case Update:
		return v.Source
	case Delete:
		return v.Source
	case Populate:
		return v.Source
	case PopulateBulk:
		return v.Source
	default:
		return ""
	}
}

// Tag returns the operation's tag string, useful for logging and
// ASYNC_TRACE diagnostics without a full type switch.
func Tag(op Op) string { return op.opTag() }
