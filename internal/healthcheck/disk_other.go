//go:build !unix

package healthcheck

import "errors"

func diskUsagePercent(string) (float64, error) {
	return 0, errors.New("not supported on this platform")
}
