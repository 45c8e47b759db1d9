package langserver

import (
	"strconv"
	"sync/atomic"
)

const _correlationPrefix = "depbuilder-"

var _correlationSeq atomic.Uint64

// NextCorrelationID returns an identifier that is unique for the lifetime of the process.
func NextCorrelationID() string {
	return _correlationPrefix + strconv.FormatUint(_correlationSeq.Add(1), 10)
}
