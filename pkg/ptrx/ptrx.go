// Package ptrx provides small helpers for taking pointers to literals.
package ptrx

import "time"

func String(s string) *string { return &s }

func Bool(b bool) *bool { return &b }

func Int(i int) *int { return &i }

func Int64(i int64) *int64 { return &i }

func Float64(f float64) *float64 { return &f }

func Time(t time.Time) *time.Time { return &t }

func Value[T any](v T) *T { return &v }
