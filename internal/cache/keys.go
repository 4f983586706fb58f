package cache

import "fmt"

// Keys are namespaced by network fingerprint so a reloaded network never
// reads answers computed for different data.

func Namespace(fingerprint string) string {
	return fmt.Sprintf("net:%s:", fingerprint)
}

func KeyStop(fingerprint, name string) string {
	return Namespace(fingerprint) + "stop:" + name
}

func KeyBus(fingerprint, name string) string {
	return Namespace(fingerprint) + "bus:" + name
}

func KeyRoute(fingerprint, from, to string) string {
	// lengths keep "a:b"+"c" and "a"+"b:c" apart
	return Namespace(fingerprint) + fmt.Sprintf("route:%d:%s:%s", len(from), from, to)
}

func KeyShape(fingerprint, name string) string {
	return Namespace(fingerprint) + "shape:" + name
}

func KeyMap(fingerprint string) string {
	return Namespace(fingerprint) + "map"
}
