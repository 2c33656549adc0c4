// PicoClaw - Ultra-lightweight personal AI agent
// Inspired by and based on nanobot: https://github.com/HKUDS/nanobot
// License: MIT
//
// Copyright (c) 2026 PicoClaw contributors

// Package cron parses 5-field cron expressions and ticks a minute-granular
// scheduler that feeds TriggeredTask values into the ReAct loop exactly
// like a user turn.
package cron

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// fieldRange is the valid [min, max] for one of the five cron fields.
type fieldRange struct{ min, max int }

var (
	minuteRange = fieldRange{0, 59}
	hourRange   = fieldRange{0, 23}
	domRange    = fieldRange{1, 31}
	monthRange  = fieldRange{1, 12}
	dowRange    = fieldRange{0, 6} // 0 = Sunday
)

// CronExpr is a compiled 5-field cron expression: minute hour
// day-of-month month day-of-week.
type CronExpr struct {
	Minutes     []int
	Hours       []int
	DaysOfMonth []int
	Months      []int
	DaysOfWeek  []int
}

// ParseError reports a malformed cron expression.
type ParseError struct {
	Expr   string
	Detail string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("cron: invalid expression %q: %s", e.Expr, e.Detail)
}

// Parse compiles a 5-field cron expression. Each field supports "*",
// a literal, a range "N-M", a comma-separated list, and a step "*/S" or
// "N-M/S".
func Parse(expr string) (*CronExpr, error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return nil, &ParseError{Expr: expr, Detail: fmt.Sprintf("expected 5 fields, got %d", len(fields))}
	}

	minutes, err := parseField(fields[0], minuteRange)
	if err != nil {
		return nil, &ParseError{Expr: expr, Detail: "minute: " + err.Error()}
	}
	hours, err := parseField(fields[1], hourRange)
	if err != nil {
		return nil, &ParseError{Expr: expr, Detail: "hour: " + err.Error()}
	}
	dom, err := parseField(fields[2], domRange)
	if err != nil {
		return nil, &ParseError{Expr: expr, Detail: "day-of-month: " + err.Error()}
	}
	months, err := parseField(fields[3], monthRange)
	if err != nil {
		return nil, &ParseError{Expr: expr, Detail: "month: " + err.Error()}
	}
	dow, err := parseField(fields[4], dowRange)
	if err != nil {
		return nil, &ParseError{Expr: expr, Detail: "day-of-week: " + err.Error()}
	}

	return &CronExpr{Minutes: minutes, Hours: hours, DaysOfMonth: dom, Months: months, DaysOfWeek: dow}, nil
}

func parseField(field string, r fieldRange) ([]int, error) {
	var out []int
	for _, part := range strings.Split(field, ",") {
		vals, err := parsePart(part, r)
		if err != nil {
			return nil, err
		}
		out = append(out, vals...)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("empty field")
	}
	out = dedupSorted(out)
	return out, nil
}

func parsePart(part string, r fieldRange) ([]int, error) {
	base, step := part, 1
	if i := strings.IndexByte(part, '/'); i >= 0 {
		base = part[:i]
		s, err := strconv.Atoi(part[i+1:])
		if err != nil || s <= 0 {
			return nil, fmt.Errorf("invalid step in %q", part)
		}
		step = s
	}

	var lo, hi int
	switch {
	case base == "*":
		lo, hi = r.min, r.max
	case strings.Contains(base, "-"):
		bounds := strings.SplitN(base, "-", 2)
		a, err1 := strconv.Atoi(bounds[0])
		b, err2 := strconv.Atoi(bounds[1])
		if err1 != nil || err2 != nil {
			return nil, fmt.Errorf("invalid range %q", base)
		}
		lo, hi = a, b
	default:
		n, err := strconv.Atoi(base)
		if err != nil {
			return nil, fmt.Errorf("invalid literal %q", base)
		}
		if step > 1 {
			// Bare number with a step: stepped range from n to the field max,
			// matching the reference implementation's asymmetric handling.
			lo, hi = n, r.max
		} else {
			lo, hi = n, n
		}
	}

	if lo < r.min || hi > r.max || lo > hi {
		return nil, fmt.Errorf("value out of range [%d,%d]", r.min, r.max)
	}

	var out []int
	for v := lo; v <= hi; v += step {
		out = append(out, v)
	}
	return out, nil
}

func dedupSorted(in []int) []int {
	sort.Ints(in)
	out := in[:0:0]
	var last int
	for i, v := range in {
		if i == 0 || v != last {
			out = append(out, v)
		}
		last = v
	}
	return out
}

func contains(set []int, v int) bool {
	for _, x := range set {
		if x == v {
			return true
		}
	}
	return false
}

// Matches reports whether t (interpreted as UTC) satisfies every field of
// the expression: a conjunction of minute/hour/day-of-month/month/
// day-of-week set membership.
func (c *CronExpr) Matches(t time.Time) bool {
	t = t.UTC()
	return contains(c.Minutes, t.Minute()) &&
		contains(c.Hours, t.Hour()) &&
		contains(c.DaysOfMonth, t.Day()) &&
		contains(c.Months, int(t.Month())) &&
		contains(c.DaysOfWeek, int(t.Weekday()))
}
