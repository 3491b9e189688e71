//go:build !linux

package supervisor

// pinCPU is a no-op on platforms without a portable sched_setaffinity
// equivalent exposed through golang.org/x/sys/unix; the kernel's own
// scheduler still balances workers across cores.
func pinCPU(pid, id int) {}
