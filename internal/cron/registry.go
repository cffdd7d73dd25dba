package cron

import "context"

// Job represents a scheduled task that runs inside the cron worker.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Entry binds a job to one schedule. A job may appear in several entries;
// runs are still exclusive per job name.
type Entry struct {
	Job      Job
	Schedule Schedule
}

// Registry tracks scheduled entries.
type Registry struct {
	entries []Entry
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register schedules job on each of the given schedules.
func (r *Registry) Register(job Job, schedules ...Schedule) {
	if job == nil {
		return
	}
	for _, schedule := range schedules {
		if schedule == nil {
			continue
		}
		r.entries = append(r.entries, Entry{Job: job, Schedule: schedule})
	}
}

// Entries returns the registered entries in the order they were added.
func (r *Registry) Entries() []Entry {
	entries := make([]Entry, len(r.entries))
	copy(entries, r.entries)
	return entries
}
