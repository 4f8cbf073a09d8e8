package state

import "unsafe"

func offsetOf(p any) uintptr {
	switch v := p.(type) {
	case *State:
		return uintptr(unsafe.Pointer(v))
	case *[16]uint32:
		return uintptr(unsafe.Pointer(v))
	case *[5]uint32:
		return uintptr(unsafe.Pointer(v))
	case *[numBankedModes]uint32:
		return uintptr(unsafe.Pointer(v))
	case *uint32:
		return uintptr(unsafe.Pointer(v))
	case *Mode:
		return uintptr(unsafe.Pointer(v))
	default:
		panic("state: offsetOf unsupported type")
	}
}

func addByteOffset(s *State, off uintptr) unsafe.Pointer {
	return unsafe.Add(unsafe.Pointer(s), off)
}
