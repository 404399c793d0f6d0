package datastore

import (
	"fmt"

	"github.com/soundsentry/screamdet-go/internal/logging"
)

// logPrintf forwards printf style database log lines to the structured
// logger so GORM output lands in the same stream as everything else.
func logPrintf(format string, args ...any) {
	logging.Warn("database", "message", fmt.Sprintf(format, args...))
}
