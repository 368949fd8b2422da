// internal/targeting/codec.go
package targeting

import (
	"strings"
	"time"

	"github.com/solatis/flagkeeper/internal/types"
)

/*
 * Condition codec.
 *
 * Converts conditions between the canonical wire shape and the edit shape
 * bound to the editor. The two are inverse up to ephemeral fields.
 *
 * Per condition type:
 *   - segment: the wire carries no subject; the edit shape shows a
 *     localized placeholder which is dropped again on the way back
 *   - datetime: objects[0] is one timestamp+offset string; the edit shape
 *     splits it into Datetime and Timezone and joins them on the way back
 *   - string/number/semver: subject, predicate and objects pass through
 *
 * Datetime split: the value is parsed as RFC 3339 and split in front of
 * the offset ("Z" or "+hh:mm"), so fractional seconds stay on the datetime
 * side. Values the parser rejects fall back to a fixed split after the
 * 19-character "YYYY-MM-DDTHH:mm:ss" prefix. Either way the join is plain
 * concatenation, so any stored value round-trips byte for byte.
 */

// SubjectPlaceholderKey is the message key shown as a segment condition's subject.
const SubjectPlaceholderKey = "common.user.text"

const (
	datetimeLayout = "2006-01-02T15:04:05"
	offsetLayout   = "-07:00"
	fixedSplit     = len(datetimeLayout)
)

// EditCondition is a condition as bound to the editor.
// Datetime and Timezone are only meaningful for datetime conditions.
type EditCondition struct {
	ID        types.EphemeralID
	Type      types.ConditionType
	Subject   string
	Predicate string
	Objects   []string
	Datetime  string
	Timezone  string
}

// Codec converts single conditions. The zero value is not usable; get one
// from Engine.Codec or NewCodec.
type Codec struct {
	localizer Localizer
	now       func() time.Time
	newID     func() types.EphemeralID
}

// NewCodec builds a codec from its collaborators. Nil arguments select
// the defaults: message keys as text, time.Now, random v4 ids.
func NewCodec(localizer Localizer, now func() time.Time, newID func() types.EphemeralID) Codec {
	if localizer == nil {
		localizer = KeyLocalizer{}
	}
	if now == nil {
		now = time.Now
	}
	if newID == nil {
		newID = types.NewEphemeralID
	}
	return Codec{localizer: localizer, now: now, newID: newID}
}

// ToEdit converts a canonical condition to its edit shape with a fresh id.
func (c Codec) ToEdit(cond types.Condition) EditCondition {
	ec := EditCondition{
		ID:        c.newID(),
		Type:      cond.Type,
		Subject:   cond.Subject,
		Predicate: cond.Predicate,
		Objects:   cloneStrings(cond.Objects),
	}

	switch cond.Type {
	case types.ConditionSegment:
		ec.Subject = c.localizer.Text(SubjectPlaceholderKey)
	case types.ConditionDatetime:
		value := c.now().Format(datetimeLayout + offsetLayout)
		if len(cond.Objects) > 0 {
			value = cond.Objects[0]
		}
		ec.Datetime, ec.Timezone = SplitDatetime(value)
	}

	return ec
}

// ToCanonical converts an edit condition back to its wire shape.
func (c Codec) ToCanonical(ec EditCondition) types.Condition {
	cond := types.Condition{
		Type:      ec.Type,
		Subject:   ec.Subject,
		Predicate: ec.Predicate,
		Objects:   cloneStrings(ec.Objects),
	}

	switch ec.Type {
	case types.ConditionSegment:
		cond.Subject = ""
	case types.ConditionDatetime:
		cond.Objects = []string{JoinDatetime(ec.Datetime, ec.Timezone)}
	}

	return cond
}

// SplitDatetime splits a timestamp+offset string into its datetime and
// offset parts. JoinDatetime(SplitDatetime(v)) == v for every v.
func SplitDatetime(v string) (datetime, timezone string) {
	if _, err := time.Parse(time.RFC3339Nano, v); err == nil {
		if strings.HasSuffix(v, "Z") {
			return v[:len(v)-1], "Z"
		}
		// RFC 3339 offsets other than Z are always ±hh:mm.
		cut := len(v) - len(offsetLayout)
		return v[:cut], v[cut:]
	}
	if len(v) >= fixedSplit {
		return v[:fixedSplit], v[fixedSplit:]
	}
	return v, ""
}

// JoinDatetime is the inverse of SplitDatetime.
func JoinDatetime(datetime, timezone string) string {
	return datetime + timezone
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string{}, s...)
}
