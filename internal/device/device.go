// Package device finds evdev keyboards and opens them for grabbing.
package device

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"unsafe"

	"golang.org/x/sys/unix"

	"pinfe/internal/linux"
)

// Keyboard is an evdev node that reports the keys an IME needs.
type Keyboard struct {
	Path string `json:"path"`
	Name string `json:"name"`
}

type DetectionError struct {
	Message string
}

func (e DetectionError) Error() string { return e.Message }

var inputRoot = "/dev/input"

// requiredKeys must all be reported for a node to count as a keyboard.
var requiredKeys = []int{linux.KeyA, linux.KeyZ, linux.KeySpace, linux.KeyEnter, linux.KeyLeftShift, linux.KeyBackspace}

func bitsToBytes(bits int) int {
	return (bits + 7) / 8
}

func ioctlRead(fd int, request uintptr, buffer []byte) error {
	if len(buffer) == 0 {
		return nil
	}
	return linux.Ioctl(fd, request, uintptr(unsafe.Pointer(&buffer[0])))
}

func testBit(bits []byte, bit int) bool {
	idx := bit / 8
	if idx < 0 || idx >= len(bits) {
		return false
	}
	return bits[idx]&(1<<uint(bit%8)) != 0
}

// hasKeys reports whether evBits and keyBits describe a keyboard.
func hasKeys(evBits, keyBits []byte) bool {
	if !testBit(evBits, linux.EvKey) {
		return false
	}
	for _, code := range requiredKeys {
		if !testBit(keyBits, code) {
			return false
		}
	}
	return true
}

func isKeyboardFD(fd int) bool {
	evBits := make([]byte, bitsToBytes(linux.EvMax+1))
	if err := ioctlRead(fd, linux.EVIOCGBIT(0, len(evBits)), evBits); err != nil {
		return false
	}
	keyBits := make([]byte, bitsToBytes(linux.KeyMax+1))
	if err := ioctlRead(fd, linux.EVIOCGBIT(linux.EvKey, len(keyBits)), keyBits); err != nil {
		return false
	}
	return hasKeys(evBits, keyBits)
}

func readDeviceName(fd int) string {
	buf := make([]byte, 256)
	if err := ioctlRead(fd, linux.EVIOCGNAME(len(buf)), buf); err != nil {
		return ""
	}
	return unix.ByteSliceToString(buf)
}

// looksLikeKeyboard matches the by-id and by-path link names udev gives
// keyboards.
func looksLikeKeyboard(name string) bool {
	lower := strings.ToLower(name)
	return strings.Contains(lower, "kbd") || strings.Contains(lower, "keyboard")
}

func collectKeyboardLinks(dir string) []string {
	var entries []string
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() && looksLikeKeyboard(d.Name()) {
			entries = append(entries, path)
		}
		return nil
	})
	return entries
}

func collectEventNodes(dir string) []string {
	var entries []string
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	for _, entry := range dirEntries {
		if !entry.IsDir() && strings.HasPrefix(entry.Name(), "event") {
			entries = append(entries, filepath.Join(dir, entry.Name()))
		}
	}
	return entries
}

// candidates lists probe paths, stable links first, each underlying node
// once.
func candidates(root string) []string {
	var out []string
	seen := make(map[string]struct{})
	add := func(paths []string) {
		slices.Sort(paths)
		for _, p := range paths {
			target := p
			if resolved, err := filepath.EvalSymlinks(p); err == nil {
				target = resolved
			}
			if _, ok := seen[target]; ok {
				continue
			}
			seen[target] = struct{}{}
			out = append(out, p)
		}
	}
	add(collectKeyboardLinks(filepath.Join(root, "by-id")))
	add(collectKeyboardLinks(filepath.Join(root, "by-path")))
	add(collectEventNodes(root))
	return out
}

// ListKeyboardDevices probes every candidate node and returns those that
// report a full set of letter keys.
func ListKeyboardDevices() ([]Keyboard, error) {
	paths := candidates(inputRoot)
	var devices []Keyboard
	permissionDenied := false
	var lastErr error

	for _, path := range paths {
		fd, err := unix.Open(path, unix.O_RDONLY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
		if err != nil {
			if errors.Is(err, unix.EACCES) || errors.Is(err, unix.EPERM) {
				permissionDenied = true
			}
			lastErr = fmt.Errorf("%s: %w", path, err)
			continue
		}
		if isKeyboardFD(fd) {
			devices = append(devices, Keyboard{Path: path, Name: readDeviceName(fd)})
		}
		unix.Close(fd)
	}

	if len(devices) == 0 {
		switch {
		case permissionDenied:
			return nil, DetectionError{Message: "permission denied while probing input devices; run as root or join the input group"}
		case len(paths) == 0:
			return nil, DetectionError{Message: "no evdev devices found under " + inputRoot}
		case lastErr != nil:
			return nil, DetectionError{Message: fmt.Sprintf("no keyboard-like device found (last error: %v)", lastErr)}
		default:
			return nil, DetectionError{Message: "no keyboard-like device found"}
		}
	}
	return devices, nil
}

// DetectKeyboardDevice returns the first keyboard found.
func DetectKeyboardDevice() (Keyboard, error) {
	devices, err := ListKeyboardDevices()
	if err != nil {
		return Keyboard{}, err
	}
	return devices[0], nil
}

// Open opens path for reading events. The caller grabs it.
func Open(path string) (int, error) {
	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		return -1, fmt.Errorf("open %s: %w", path, err)
	}
	return fd, nil
}
