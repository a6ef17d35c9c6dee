// Package report implements the device's UART status line format:
//
//	CLASS:<name> CONF:<value> ALARM:<0|1>
//
// The daemon emits these lines and the monitor command parses them back
// into structured records.
package report

import (
	"fmt"
	"strconv"
	"strings"
)

// Class names indexed by class id.
var classNames = [4]string{"HEALTHY", "BEARING_WEAR", "IMBALANCE", "MISALIGNMENT"}

// ClassName returns the report name for a class id, or UNKNOWN for ids
// outside the model's range.
func ClassName(id uint8) string {
	if int(id) >= len(classNames) {
		return "UNKNOWN"
	}
	return classNames[id]
}

// ClassID returns the class id for a report name.
func ClassID(name string) (uint8, bool) {
	for id, n := range classNames {
		if n == name {
			return uint8(id), true
		}
	}
	return 0, false
}

// Report is one parsed status line.
type Report struct {
	ClassID    uint8
	Confidence uint8
	Alarm      bool
}

// Encode formats a report as a status line, without a trailing newline.
func Encode(r Report) string {
	alarm := 0
	if r.Alarm {
		alarm = 1
	}
	return fmt.Sprintf("CLASS:%s CONF:%d ALARM:%d", ClassName(r.ClassID), r.Confidence, alarm)
}

// Parse decodes a status line. Lines that are not status reports (boot
// banners, blank lines) return an error; callers are expected to skip
// them.
func Parse(line string) (Report, error) {
	var r Report
	fields := strings.Fields(strings.TrimSpace(line))
	if len(fields) != 3 {
		return r, fmt.Errorf("not a status line: %q", line)
	}

	name, ok := strings.CutPrefix(fields[0], "CLASS:")
	if !ok {
		return r, fmt.Errorf("missing CLASS field: %q", line)
	}
	id, ok := ClassID(name)
	if !ok {
		return r, fmt.Errorf("unknown class %q", name)
	}
	r.ClassID = id

	confStr, ok := strings.CutPrefix(fields[1], "CONF:")
	if !ok {
		return r, fmt.Errorf("missing CONF field: %q", line)
	}
	conf, err := strconv.ParseUint(confStr, 10, 8)
	if err != nil {
		return r, fmt.Errorf("bad confidence %q: %w", confStr, err)
	}
	r.Confidence = uint8(conf)

	alarmStr, ok := strings.CutPrefix(fields[2], "ALARM:")
	if !ok {
		return r, fmt.Errorf("missing ALARM field: %q", line)
	}
	switch alarmStr {
	case "0":
		r.Alarm = false
	case "1":
		r.Alarm = true
	default:
		return r, fmt.Errorf("bad alarm flag %q", alarmStr)
	}

	return r, nil
}
