package linux

import "golang.org/x/sys/unix"

func Ioctl(fd int, req uintptr, arg uintptr) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), req, arg)
	if errno != 0 {
		return errno
	}
	return nil
}

func IoctlSetInt(fd int, req uintptr, value int) error {
	return Ioctl(fd, req, uintptr(value))
}

// Grab takes or releases exclusive access to an evdev device.
func Grab(fd int, grab bool) error {
	value := 0
	if grab {
		value = 1
	}
	return IoctlSetInt(fd, EVIOCGRAB, value)
}
