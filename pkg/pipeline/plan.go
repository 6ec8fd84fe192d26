package pipeline

import (
	"strconv"

	"github.com/portsweep/portsweep/pkg/scanner"
)

// Plan crosses every target with every port, target-major: all of the
// first target's ports come before the second target's.
func Plan(targets []string, ports []int) []scanner.Job {
	jobs := make([]scanner.Job, 0, len(targets)*len(ports))
	for _, t := range targets {
		for _, p := range ports {
			jobs = append(jobs, scanner.NewJob(t, strconv.Itoa(p)))
		}
	}
	return jobs
}

// PlanFromSweep turns the sweep's open "target:port" pairs into jobs,
// keeping the first occurrence of each.
func PlanFromSweep(open []string) []scanner.Job {
	seen := make(map[string]struct{}, len(open))
	jobs := make([]scanner.Job, 0, len(open))
	for _, o := range open {
		if _, dup := seen[o]; dup {
			continue
		}
		seen[o] = struct{}{}
		jobs = append(jobs, scanner.Job(o))
	}
	return jobs
}
