package models

type ResourceKind string

const (
	KindLabor    ResourceKind = "labor"
	KindMaterial ResourceKind = "material"
	KindTool     ResourceKind = "tool"
)

type ChangeStatus string

const (
	ChangeNew    ChangeStatus = "new"
	ChangeUpdate ChangeStatus = "update"
	ChangeDelete ChangeStatus = "delete"
)

// ResourceLine is one labor, material or tool row. Quantity holds hours for labor.
type ResourceLine struct {
	ID       string       `json:"id"`
	Kind     ResourceKind `json:"kind"`
	Code     string       `json:"code"`
	Name     string       `json:"name,omitempty"`
	Quantity float64      `json:"quantity"`
	Custom   bool         `json:"custom,omitempty"`
	Status   ChangeStatus `json:"status,omitempty"`
}

type Resources struct {
	Labor     []ResourceLine `json:"labor"`
	Materials []ResourceLine `json:"materials"`
	Tools     []ResourceLine `json:"tools"`
}

// Lines flattens the bundle in labor, material, tool order.
func (r Resources) Lines() []ResourceLine {
	lines := make([]ResourceLine, 0, len(r.Labor)+len(r.Materials)+len(r.Tools))
	lines = append(lines, r.Labor...)
	lines = append(lines, r.Materials...)
	lines = append(lines, r.Tools...)
	return lines
}

// ResourcesFromLines regroups lines by kind. Lines of unknown kind are dropped.
func ResourcesFromLines(lines []ResourceLine) Resources {
	r := Resources{
		Labor:     []ResourceLine{},
		Materials: []ResourceLine{},
		Tools:     []ResourceLine{},
	}
	for _, l := range lines {
		switch l.Kind {
		case KindLabor:
			r.Labor = append(r.Labor, l)
		case KindMaterial:
			r.Materials = append(r.Materials, l)
		case KindTool:
			r.Tools = append(r.Tools, l)
		}
	}
	return r
}
