//go:build !windows

package process

// visibleWindowPIDs is empty off Windows; every match counts as windowless.
func visibleWindowPIDs() map[uint32]struct{} {
	return nil
}
