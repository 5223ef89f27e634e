//go:build !(linux && (amd64 || arm64))

package device

func platformInterfaces() []Interface {
	return nil
}
