package proc

import "fmt"

func errNoSuchProcess(pid int) error {
	return fmt.Errorf("proc: no such process %d", pid)
}

func errNoChild(pid int) error {
	return fmt.Errorf("proc: %d: no matching child", pid)
}
