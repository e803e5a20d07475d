package output

// BindingInfo describes one reference bound by a resolution pass.
type BindingInfo struct {
	Symbol string `json:"symbol"`
	State  string `json:"state"`
	Kind   string `json:"kind"`
	Value  string `json:"value"`
}

// ResolveOutput is the JSON form of a resolution report.
type ResolveOutput struct {
	Session    string        `json:"session,omitempty"`
	Resolved   []BindingInfo `json:"resolved"`
	Unresolved []string      `json:"unresolved"`
	Values     []EvalInfo    `json:"values,omitempty"`
}

// EvalInfo is the outcome of evaluating one expression after start.
type EvalInfo struct {
	Expr  string `json:"expr"`
	Value string `json:"value,omitempty"`
	Type  string `json:"type,omitempty"`
	Error string `json:"error,omitempty"`
}

// ClassInfo describes a catalog class.
type ClassInfo struct {
	Name       string   `json:"name"`
	Kind       string   `json:"kind"`
	Super      string   `json:"super,omitempty"`
	Interfaces []string `json:"interfaces,omitempty"`
	Fields     []string `json:"fields,omitempty"`
}

// PackageInfo describes a catalog package and the classes declared in it.
type PackageInfo struct {
	Path    string      `json:"path"`
	Classes []ClassInfo `json:"classes"`
}

// CatalogOutput is the JSON form of a catalog listing.
type CatalogOutput struct {
	Name     string        `json:"name"`
	Packages []PackageInfo `json:"packages"`
	Summary  CatalogCounts `json:"summary"`
}

// CatalogCounts summarizes a catalog.
type CatalogCounts struct {
	Packages int `json:"packages"`
	Classes  int `json:"classes"`
}

// RunEvent is one JSON line emitted by run --json.
type RunEvent struct {
	Event   string   `json:"event"`
	Script  string   `json:"script"`
	Result  string   `json:"result,omitempty"`
	Pending []string `json:"pending,omitempty"`
	Error   string   `json:"error,omitempty"`
}
