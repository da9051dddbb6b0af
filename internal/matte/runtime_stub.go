//go:build !govips || !cgo

package matte

func Startup() error {
	return nil
}

func Shutdown() {}
