package models

import "time"

// DateRange is a half-open [From, To) interval; nil bounds mean unbounded.
type DateRange struct {
	From *time.Time
	To   *time.Time
}

// GroupCount is one grouped aggregation bucket.
type GroupCount struct {
	Key   string `db:"key"`
	Count int    `db:"count"`
}

// DayCount is the number of events that fell on one calendar day.
type DayCount struct {
	Day   string `db:"day"`
	Count int    `db:"count"`
}

// SLASplit partitions the filtered ticket set by breach flag.
type SLASplit struct {
	Total    int `db:"total"`
	Breached int `db:"breached"`
}
