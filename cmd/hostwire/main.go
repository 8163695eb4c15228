package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/hostwire/hostwire/internal/client"
	"github.com/hostwire/hostwire/internal/logging"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:9000", "reliable (TCP) endpoint")
	lossyAddr := flag.String("lossy-addr", "127.0.0.1:9001", "lossy (UDP) endpoint")
	cast := flag.Bool("cast", false, "fire-and-forget over the lossy transport")
	timeout := flag.Duration("timeout", 5*time.Second, "call timeout")
	flag.Parse()

	logging.ConfigureRuntime()

	args := flag.Args()
	if len(args) < 1 || len(args) > 2 {
		fmt.Fprintln(os.Stderr, "usage: hostwire [flags] <command> [params-json]")
		flag.PrintDefaults()
		os.Exit(2)
	}
	name := args[0]

	params := map[string]any{}
	if len(args) == 2 {
		if err := json.Unmarshal([]byte(args[1]), &params); err != nil {
			fmt.Fprintf(os.Stderr, "hostwire: invalid params: %v\n", err)
			os.Exit(2)
		}
	}

	mgr := client.New(client.Config{
		ReliableAddr: *addr,
		LossyAddr:    *lossyAddr,
		Timeout:      *timeout,
	})
	defer mgr.Close()

	if *cast {
		mgr.Cast(name, params)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	result, err := mgr.Call(ctx, name, params)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hostwire: %v\n", err)
		os.Exit(1)
	}
	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "hostwire: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(out))
}
