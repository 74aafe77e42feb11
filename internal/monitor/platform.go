package monitor

import "runtime"

func platformName() string {
	return runtime.GOOS + "/" + runtime.GOARCH
}
