package model

import (
	"fmt"
	"sync/atomic"
)

// contextIDs generates process-unique context discriminators.
var contextIDs atomic.Uint64

// Context is an opaque grouping token that isolates one caller's tasks from
// another's in the scheduler.
//
// Contexts have identity semantics: they are compared and used as map keys by
// pointer, never by label, so two contexts created with the same label remain
// distinct. The label is for diagnostics only.
type Context struct {
	id    uint64
	label string
}

// NewContext creates a new context token. The label is optional and only used
// in diagnostics output.
func NewContext(label string) *Context {
	return &Context{
		id:    contextIDs.Add(1),
		label: label,
	}
}

// Label returns the diagnostics label of the context, empty when unlabeled.
func (c *Context) Label() string { return c.label }

// String returns a human readable identifier for the context. The identity
// discriminator guarantees that two contexts sharing a label still print
// distinct strings.
func (c *Context) String() string {
	if c.label != "" {
		return fmt.Sprintf("Context(%s#%x)", c.label, c.id)
	}
	return fmt.Sprintf("Context@%x", c.id)
}
