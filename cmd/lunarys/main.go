// Command lunarys is a terminal client for the Lunarys chat server.
//
// Usage:
//
//	lunarys [flags]                      interactive chat
//	lunarys ask [flags] <prompt>         stream one reply to stdout
//	lunarys conversations                list conversations
//	lunarys history <id>                 print a conversation
//	lunarys delete <id>                  delete a conversation
//	lunarys export <id> <file>           write a conversation transcript
//
// Settings come from flags, LUNARYS_* environment variables and
// ~/.lunarys/config.yaml, in that order.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "lunarys: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cmd := newRootCmd(os.Stdout, os.Stderr)
	return cmd.ExecuteContext(ctx)
}
