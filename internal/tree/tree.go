package tree

import "fmt"

// StageInstance is one resolved production stage of a detail or binding.
// Zero ids mean the stage does not reference that element.
type StageInstance struct {
	ID                 string            `json:"id"`
	Position           int               `json:"position"`
	StageID            int               `json:"stageId"`
	StageName          string            `json:"stageName"`
	SettingsID         int               `json:"settingsId,omitempty"`
	SettingsName       string            `json:"settingsName,omitempty"`
	OperationVariantID int               `json:"operationVariantId,omitempty"`
	OperationQuantity  float64           `json:"operationQuantity"`
	EquipmentID        int               `json:"equipmentId,omitempty"`
	MaterialVariantID  int               `json:"materialVariantId,omitempty"`
	MaterialQuantity   float64           `json:"materialQuantity"`
	CustomFields       map[string]string `json:"customFields,omitempty"`
	OptionsOperation   string            `json:"optionsOperation,omitempty"`
	OptionsMaterial    string            `json:"optionsMaterial,omitempty"`
	Logic              string            `json:"logic,omitempty"`
}

// Detail is a leaf part.
type Detail struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Width    *float64        `json:"width"`
	Length   *float64        `json:"length"`
	Height   *float64        `json:"height"`
	Weight   *float64        `json:"weight"`
	Stages   []StageInstance `json:"stages"`
	BitrixID int             `json:"bitrixId"`
}

// Binding groups details and other bindings. ChildrenOrder lists both kinds
// in DETAILS order.
type Binding struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Width         *float64        `json:"width"`
	Length        *float64        `json:"length"`
	Height        *float64        `json:"height"`
	Weight        *float64        `json:"weight"`
	HasStages     bool            `json:"hasStages"`
	Stages        []StageInstance `json:"stages"`
	DetailIDs     []string        `json:"detailIds"`
	BindingIDs    []string        `json:"bindingIds"`
	ChildrenOrder []string        `json:"childrenOrder"`
	BitrixID      int             `json:"bitrixId"`
}

// Forest is the arena of built nodes. Nodes reachable from several bindings
// are stored once. Read-only after Build.
type Forest struct {
	details      map[string]*Detail
	bindings     map[string]*Binding
	roots        []string
	detailOrder  []string
	bindingOrder []string
}

func newForest() *Forest {
	return &Forest{
		details:  make(map[string]*Detail),
		bindings: make(map[string]*Binding),
	}
}

// Empty returns a forest with no nodes.
func Empty() *Forest { return newForest() }

// DetailID and BindingID format arena keys.
func DetailID(bitrixID int) string  { return fmt.Sprintf("detail_%d", bitrixID) }
func BindingID(bitrixID int) string { return fmt.Sprintf("binding_%d", bitrixID) }

// Roots returns the top-level node ids in preset order.
func (f *Forest) Roots() []string { return f.roots }

// Detail looks a detail up by arena id.
func (f *Forest) Detail(id string) (*Detail, bool) {
	d, ok := f.details[id]
	return d, ok
}

// Binding looks a binding up by arena id.
func (f *Forest) Binding(id string) (*Binding, bool) {
	b, ok := f.bindings[id]
	return b, ok
}

// Details returns all details in the order they were first reached.
func (f *Forest) Details() []*Detail {
	out := make([]*Detail, 0, len(f.detailOrder))
	for _, id := range f.detailOrder {
		out = append(out, f.details[id])
	}
	return out
}

// Bindings returns all bindings in the order they were first reached.
func (f *Forest) Bindings() []*Binding {
	out := make([]*Binding, 0, len(f.bindingOrder))
	for _, id := range f.bindingOrder {
		out = append(out, f.bindings[id])
	}
	return out
}

// Len is the number of distinct nodes.
func (f *Forest) Len() int { return len(f.details) + len(f.bindings) }
