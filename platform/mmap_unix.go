//go:build linux || darwin

package platform

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/codegenlib/jitasm/asm"
)

func mmapRW(n int) ([]byte, error) {
	b, err := unix.Mmap(-1, 0, n, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, fmt.Errorf("%w: mmap: %v", asm.ErrFailedToMapExecutableMemory, err)
	}
	return b, nil
}

func mprotect(b []byte, to Protection) error {
	prot := unix.PROT_READ | unix.PROT_WRITE
	if to == ProtectionExecutable {
		prot = unix.PROT_READ | unix.PROT_EXEC
	}
	if err := unix.Mprotect(b, prot); err != nil {
		return fmt.Errorf("%w: mprotect: %v", asm.ErrFailedToMapExecutableMemory, err)
	}
	return nil
}

func munmap(b []byte) error {
	if err := unix.Munmap(b); err != nil {
		return fmt.Errorf("%w: munmap: %v", asm.ErrFailedToMapExecutableMemory, err)
	}
	return nil
}
