// Command minixkernel boots the simulated kernel core.
package main

import "github.com/go-minix/kernel/cmd"

func main() {
	cmd.Execute()
}
