package bubbletea

// BlockSeparator exports blockSeparator for testing.
func BlockSeparator(curr MessageBlock) string {
	return blockSeparator(curr)
}

// RenderContent exports renderContent for testing.
func RenderContent(m Model) string {
	return m.renderContent()
}

// BlockFocus returns the index of the focused sources block.
func BlockFocus(m Model) int {
	return m.blockFocus
}

// Truncate exports truncate for testing.
var Truncate = truncate
