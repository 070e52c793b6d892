package monitor

import "errors"

var ErrScanFailed = errors.New("expiration scan failed")
