package scope

// BindingKind says how a name was introduced.
type BindingKind int

const (
	BindParameter BindingKind = iota
	BindAssignment
	BindImport
	BindFunction
	BindClass
)

var bindingKindNames = [...]string{
	BindParameter:  "parameter",
	BindAssignment: "assignment",
	BindImport:     "import",
	BindFunction:   "function",
	BindClass:      "class",
}

func (k BindingKind) String() string {
	if int(k) < len(bindingKindNames) {
		return bindingKindNames[k]
	}
	return "unknown"
}

// Binding is a name declared within a scope.
type Binding struct {
	Name      string
	Kind      BindingKind
	Line      uint32
	Column    uint32
	Decorated bool
}
