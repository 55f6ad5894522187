package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const tempIDPrefix = "temp_"

// NewTempID fabricates a local placeholder id of the form temp_<timestamp>.
// Sit and image temp ids live in separate lookup tables, so both entities of
// one action may share the same suffix.
func NewTempID(now time.Time) string {
	return tempIDPrefix + strconv.FormatInt(now.UnixMilli(), 10)
}

// NewTempCollectionID fabricates a collection id of the form <timestamp>_<userId>.
func NewTempCollectionID(now time.Time, userID string) string {
	return fmt.Sprintf("%d_%s", now.UnixMilli(), userID)
}

// IsTempID reports whether id is a locally fabricated placeholder.
func IsTempID(id string) bool { return strings.HasPrefix(id, tempIDPrefix) }
