package main

import "github.com/oshokin/ceph-keysync/cmd/keysync/cmd"

func main() {
	cmd.Execute()
}
