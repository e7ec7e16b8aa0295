// Package view abstracts the element tree the renderer writes into, so the
// render pipeline does not depend on a particular markup toolkit.
package view

// Node is an element created by a Builder. Nodes may only be passed back to the
// Builder that created them.
type Node interface {
	// Len reports the number of direct child elements.
	Len() int
}

// Builder creates and mutates nodes.
type Builder interface {
	// CreateGroup returns the grouping element for one product, tagged with its category.
	CreateGroup(category string) Node
	// CreateLabel returns a text element carrying class.
	CreateLabel(class, text string) Node
	// CreateImage returns an image element.
	CreateImage(src, alt string) Node
	// Append adds child as the last child of parent.
	Append(parent, child Node)
	// Clear removes every child of container. Clearing an empty container is a no-op.
	Clear(container Node)
}
