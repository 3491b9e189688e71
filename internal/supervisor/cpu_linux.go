//go:build linux

package supervisor

import "golang.org/x/sys/unix"

// pinCPU pins pid to core id modulo the host's CPU count; failures are
// never fatal, since affinity is an optimization, not a correctness
// requirement.
func pinCPU(pid, id int) {
	var set unix.CPUSet
	n := numCPU()
	if n <= 0 {
		return
	}
	set.Set(id % n)
	_ = unix.SchedSetaffinity(pid, &set)
}

func numCPU() int {
	var set unix.CPUSet
	if err := unix.SchedGetaffinity(0, &set); err != nil {
		return 0
	}
	return set.Count()
}
