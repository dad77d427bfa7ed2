package catalog

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Dialect captures the few differences between the supported databases.
type Dialect struct {
	name     string
	numbered bool // $1, $2 ... instead of ?
	// uploadTimeExpr selects upload_time in a form decodeTime accepts.
	uploadTimeExpr string
	// encodeTime converts a timestamp into the driver argument stored
	// in upload_time.
	encodeTime func(time.Time) any
}

// sqliteTimeLayout is fixed-width so lexical order equals time order.
// The trailing Z tells these values apart from the zone-less local
// times of earlier releases.
const sqliteTimeLayout = "2006-01-02 15:04:05.000000Z"

// legacyZone is the zone of timestamps stored without one. Earlier
// releases wrote the host's wall clock.
var legacyZone = time.Local

var (
	// SQLite stores upload_time as fixed-width UTC text. It is read back
	// as text so the driver does not guess a zone for legacy values.
	SQLite = Dialect{
		name:           "sqlite",
		uploadTimeExpr: "CAST(upload_time AS TEXT)",
		encodeTime: func(t time.Time) any {
			return t.UTC().Format(sqliteTimeLayout)
		},
	}

	// Postgres stores upload_time as TIMESTAMPTZ.
	Postgres = Dialect{
		name:           "postgres",
		numbered:       true,
		uploadTimeExpr: "upload_time",
		encodeTime: func(t time.Time) any {
			return t.UTC()
		},
	}
)

// Name returns the dialect name.
func (d Dialect) Name() string {
	return d.name
}

func (d Dialect) selectColumns() string {
	return "id, filename, original_filename, " + d.uploadTimeExpr + ", file_path, uploader_email, file_size"
}

// rebind rewrites ? placeholders into the dialect's form. Queries in
// this package never contain literal question marks.
func (d Dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}
	var sb strings.Builder
	sb.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

var textTimeLayouts = []string{
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02T15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999 -0700 MST",
}

// decodeTime accepts whatever the driver hands back for upload_time:
// a time.Time, or text written by this or an earlier release. Text
// without a zone is read in legacyZone.
func decodeTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t.UTC(), nil
	case string:
		return parseTimeText(t)
	case []byte:
		return parseTimeText(string(t))
	case nil:
		return time.Time{}, fmt.Errorf("upload_time is null")
	default:
		return time.Time{}, fmt.Errorf("unsupported upload_time type %T", v)
	}
}

func parseTimeText(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range textTimeLayouts {
		if t, err := time.ParseInLocation(layout, s, legacyZone); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable upload_time %q", s)
}
