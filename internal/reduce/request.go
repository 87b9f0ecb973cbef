package reduce

import "github.com/b0nefish/poprc/internal/cell"

// ReqType is the target type a cell is being forced under. TAny matches
// a reduced value of any kind; a fail value still reports FAIL under it.
type ReqType uint8

const (
	TAny ReqType = iota
	TInt
	TFloat
	TSymbol
	TString
	TList
	THandle
	TMap
)

func (t ReqType) String() string {
	switch t {
	case TAny:
		return "any"
	case TInt:
		return "int"
	case TFloat:
		return "float"
	case TSymbol:
		return "symbol"
	case TString:
		return "string"
	case TList:
		return "list"
	case THandle:
		return "handle"
	case TMap:
		return "map"
	default:
		return "type?"
	}
}

// Request carries the type/arity context a cell is being reduced under
// (spec §4.D).
type Request struct {
	Type ReqType
	// ExpectedIn is read by package compose to extend a forced list to
	// the number of inputs it must accept. ExpectedOut is carried but no
	// handler reads it.
	ExpectedIn  int
	ExpectedOut int
	// DelayAssert, Priority and InverseHint are carried with the request
	// but no handler reads them: assert/seq record a deferred trace node
	// on a variable predicate regardless of DelayAssert, DELAY is not
	// gated on Priority, and no operator has an inverse direction.
	DelayAssert bool
	Priority    int
	InverseHint bool
}

// Any returns the default top-level request: any type, base priority.
func Any() Request {
	return Request{Type: TAny}
}

// WithType returns a copy of r with Type replaced.
func (r Request) WithType(t ReqType) Request {
	r.Type = t
	return r
}

// CheckType reports whether a reduced value of kind matches req (spec
// §4.D step 2, §4.E step 1).
func CheckType(req ReqType, kind cell.ValKind) bool {
	if req == TAny {
		return true
	}
	switch req {
	case TInt:
		return kind == cell.VInt
	case TFloat:
		return kind == cell.VFloat
	case TSymbol:
		return kind == cell.VSymbol
	case TString:
		return kind == cell.VString
	case TList:
		return kind == cell.VList
	case THandle:
		return kind == cell.VHandle
	case TMap:
		return kind == cell.VMap
	default:
		return false
	}
}
