//go:build windows

package process

import (
	"sync"
	"unsafe"

	"golang.org/x/sys/windows"
)

// Callbacks created by windows.NewCallback are never released, so a single
// one is shared and fed through enumTarget while enumMu is held.
var (
	enumOnce     sync.Once
	enumCallback uintptr
	enumMu       sync.Mutex
	enumTarget   map[uint32]struct{}
)

// visibleWindowPIDs returns the owners of visible top-level windows.
func visibleWindowPIDs() map[uint32]struct{} {
	enumOnce.Do(func() {
		enumCallback = windows.NewCallback(func(hwnd windows.HWND, _ uintptr) uintptr {
			if !windows.IsWindowVisible(hwnd) {
				return 1
			}
			var pid uint32
			if _, err := windows.GetWindowThreadProcessId(hwnd, &pid); err == nil && pid != 0 {
				enumTarget[pid] = struct{}{}
			}
			return 1
		})
	})

	enumMu.Lock()
	defer enumMu.Unlock()
	enumTarget = make(map[uint32]struct{})
	_ = windows.EnumWindows(enumCallback, unsafe.Pointer(nil))
	pids := enumTarget
	enumTarget = nil
	return pids
}
