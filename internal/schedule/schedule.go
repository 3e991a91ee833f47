// Package schedule previews when an EventBridge cron expression fires.
//
// The preview is advisory: synthesis passes the expression to the scheduler
// unchanged, and the scheduler remains the authority on its syntax.
package schedule

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	cronlib "github.com/robfig/cron/v3"
)

// ErrUnsupportedExpression is returned for valid EventBridge syntax the
// preview cannot model (L, W, #, or a restricted year).
var ErrUnsupportedExpression = errors.New("expression not supported by the preview")

// cronParser reads the five-field form produced by ToStandard.
var cronParser = cronlib.NewParser(
	cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow,
)

// ToStandard converts "min hour dom month dow year" (EventBridge, days of
// week 1-7 starting Sunday) to five-field cron (days of week 0-6).
func ToStandard(awsCron string) (string, error) {
	fields := strings.Fields(awsCron)
	if len(fields) != 6 {
		return "", fmt.Errorf("expected 6 fields, got %d in %q", len(fields), awsCron)
	}

	for _, f := range fields {
		if usesSpecialCharacters(f) {
			return "", fmt.Errorf("%w: %q", ErrUnsupportedExpression, f)
		}
	}

	if fields[5] != "*" {
		return "", fmt.Errorf("%w: year %q", ErrUnsupportedExpression, fields[5])
	}
	if fields[2] != "?" && fields[4] != "?" {
		return "", fmt.Errorf("one of day-of-month or day-of-week must be '?' in %q", awsCron)
	}

	dow, err := shiftDayOfWeek(fields[4])
	if err != nil {
		return "", err
	}

	return strings.Join([]string{fields[0], fields[1], fields[2], fields[3], dow}, " "), nil
}

// specialPattern matches last-day (L, 5L, LW) and nearest-weekday (15W) tokens.
var specialPattern = regexp.MustCompile(`^(L|LW|\d+L|\d+W)$`)

func usesSpecialCharacters(field string) bool {
	if strings.Contains(field, "#") {
		return true
	}
	for _, item := range strings.FieldsFunc(field, func(r rune) bool { return r == ',' || r == '-' || r == '/' }) {
		if specialPattern.MatchString(strings.ToUpper(item)) {
			return true
		}
	}
	return false
}

// shiftDayOfWeek renumbers numeric days from 1-7 to 0-6. Names pass through.
func shiftDayOfWeek(field string) (string, error) {
	if field == "*" || field == "?" {
		return field, nil
	}

	items := strings.Split(field, ",")
	for i, item := range items {
		rangePart, step, hasStep := strings.Cut(item, "/")

		bounds := strings.Split(rangePart, "-")
		for j, b := range bounds {
			if b == "*" {
				continue
			}
			n, err := strconv.Atoi(b)
			if err != nil {
				continue // day name
			}
			if n < 1 || n > 7 {
				return "", fmt.Errorf("day of week %d out of range 1-7", n)
			}
			bounds[j] = strconv.Itoa(n - 1)
		}

		items[i] = strings.Join(bounds, "-")
		if hasStep {
			items[i] += "/" + step
		}
	}
	return strings.Join(items, ","), nil
}

// Parse returns the schedule for an EventBridge cron expression. The
// cron(...) wrapper is optional.
func Parse(awsCron string) (cronlib.Schedule, error) {
	expr := strings.TrimSpace(awsCron)
	if strings.HasPrefix(expr, "cron(") && strings.HasSuffix(expr, ")") {
		expr = strings.TrimSuffix(strings.TrimPrefix(expr, "cron("), ")")
	}

	standard, err := ToStandard(expr)
	if err != nil {
		return nil, err
	}

	sched, err := cronParser.Parse(standard)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", awsCron, err)
	}
	return sched, nil
}

// Next returns the next n fire times after from, in UTC as the scheduler evaluates them.
func Next(awsCron string, from time.Time, n int) ([]time.Time, error) {
	if n < 0 {
		return nil, fmt.Errorf("count must not be negative, got %d", n)
	}

	sched, err := Parse(awsCron)
	if err != nil {
		return nil, err
	}

	times := make([]time.Time, 0, n)
	t := from.UTC()
	for i := 0; i < n; i++ {
		t = sched.Next(t)
		if t.IsZero() {
			break
		}
		times = append(times, t)
	}
	return times, nil
}
