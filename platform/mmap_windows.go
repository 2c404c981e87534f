//go:build windows

package platform

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/codegenlib/jitasm/asm"
)

func mmapRW(n int) ([]byte, error) {
	addr, err := windows.VirtualAlloc(0, uintptr(n), windows.MEM_COMMIT|windows.MEM_RESERVE, windows.PAGE_READWRITE)
	if err != nil {
		return nil, fmt.Errorf("%w: VirtualAlloc: %v", asm.ErrFailedToMapExecutableMemory, err)
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), n), nil
}

func mprotect(b []byte, to Protection) error {
	prot := uint32(windows.PAGE_READWRITE)
	if to == ProtectionExecutable {
		prot = windows.PAGE_EXECUTE_READ
	}
	var old uint32
	addr := uintptr(unsafe.Pointer(&b[0]))
	if err := windows.VirtualProtect(addr, uintptr(len(b)), prot, &old); err != nil {
		return fmt.Errorf("%w: VirtualProtect: %v", asm.ErrFailedToMapExecutableMemory, err)
	}
	return nil
}

func munmap(b []byte) error {
	addr := uintptr(unsafe.Pointer(&b[0]))
	if err := windows.VirtualFree(addr, 0, windows.MEM_RELEASE); err != nil {
		return fmt.Errorf("%w: VirtualFree: %v", asm.ErrFailedToMapExecutableMemory, err)
	}
	return nil
}
