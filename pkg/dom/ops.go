package dom

// Op kinds recorded in a document's journal.
const (
	OpAddClass    = "addClass"
	OpRemoveClass = "removeClass"
	OpSetAttr     = "setAttr"
	OpRemoveAttr  = "removeAttr"
	OpReload      = "reload"
	OpAppend      = "append"
	OpSetFragment = "setFragment"
)

// Op is a single mutation applied to a document, addressed by element id.
type Op struct {
	Op     string `json:"op"`
	Target string `json:"target,omitempty"`
	Name   string `json:"name,omitempty"`
	Value  string `json:"value,omitempty"`
}

// Record appends op to the journal.
func (d *Document) Record(op Op) {
	d.ops = append(d.ops, op)
}

// Ops returns the pending ops without clearing them.
func (d *Document) Ops() []Op {
	return append([]Op(nil), d.ops...)
}

// Drain returns the pending ops and clears the journal.
func (d *Document) Drain() []Op {
	ops := d.ops
	d.ops = nil
	return ops
}

// SetFragment records a change of the host address fragment. The fragment
// is not part of the tree, so only the journal sees it.
func (d *Document) SetFragment(fragment string) {
	d.Record(Op{Op: OpSetFragment, Value: fragment})
}
