//go:build !linux
// +build !linux

package backup

import "os"

func adviseSequential(f *os.File) {}
