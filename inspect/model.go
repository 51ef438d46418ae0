package inspect

// BeanSummary is one entry of GET /beans.
type BeanSummary struct {
	Name        string   `json:"name"`
	Type        string   `json:"type,omitempty"`
	Scope       string   `json:"scope"`
	Lazy        bool     `json:"lazy,omitempty"`
	Primary     bool     `json:"primary,omitempty"`
	Abstract    bool     `json:"abstract,omitempty"`
	Manual      bool     `json:"manual,omitempty"`
	Initialized bool     `json:"initialized"`
	Aliases     []string `json:"aliases,omitempty"`
}

// BeanDetail is the body of GET /beans/:name.
type BeanDetail struct {
	BeanSummary
	Parent        string            `json:"parent,omitempty"`
	Description   string            `json:"description,omitempty"`
	DependsOn     []string          `json:"depends_on,omitempty"`
	FactoryBean   string            `json:"factory_bean,omitempty"`
	FactoryMethod string            `json:"factory_method,omitempty"`
	InitMethod    string            `json:"init_method,omitempty"`
	DestroyMethod string            `json:"destroy_method,omitempty"`
	Qualifiers    map[string]string `json:"qualifiers,omitempty"`
	Attributes    map[string]any    `json:"attributes,omitempty"`
	Dependencies  []string          `json:"dependencies"`
	Dependents    []string          `json:"dependents"`
}

// Edge is a dependency from one managed object to another.
type Edge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Graph is the body of GET /graph. Levels groups the nodes so that every
// node only depends on nodes of lower levels; it is empty when the graph
// has a cycle.
type Graph struct {
	Nodes  []string   `json:"nodes"`
	Edges  []Edge     `json:"edges"`
	Levels [][]string `json:"levels,omitempty"`
	Cycle  string     `json:"cycle,omitempty"`
}
