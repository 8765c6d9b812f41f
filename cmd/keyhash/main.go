// Command keyhash prints a bcrypt hash for WORKLOG_ACCESS_KEY_HASH.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"worklog/api/internal/auth"
)

func main() {
	key := ""
	if len(os.Args) > 1 {
		key = os.Args[1]
	} else {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			fmt.Fprintln(os.Stderr, "usage: keyhash <key>  (or pipe the key on stdin)")
			os.Exit(2)
		}
		key = strings.TrimRight(line, "\r\n")
	}

	hash, err := auth.HashKey(key)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Println(hash)
}
