package main

import (
	"fmt"
	"os"
	"time"

	"github.com/trezcool/masomo-portal/core"
	backendsvc "github.com/trezcool/masomo-portal/services/backend"
	logsvc "github.com/trezcool/masomo-portal/services/logger"
	pebblestore "github.com/trezcool/masomo-portal/storage/device/pebble"
)

func main() {
	os.Exit(runMain())
}

func runMain() int {
	conf := *core.Conf
	conf.Debug = false // the terminal belongs to the conversation: warnings and errors only, as JSON

	if err := conf.Validate(); err != nil {
		return fail(err)
	}
	logger, err := logsvc.New(&conf)
	if err != nil {
		return fail(err)
	}
	defer logger.Close()

	store, err := pebblestore.Open(conf.Storage.Path)
	if err != nil {
		return fail(err)
	}
	defer store.Close()

	client, err := backendsvc.New(&conf, store, logger)
	if err != nil {
		return fail(err)
	}

	cli := &commandLine{
		conf:    &conf,
		store:   store,
		backend: client,
		log:     logger,
		in:      os.Stdin,
		out:     os.Stdout,
		now:     time.Now,
		loc:     time.Local,
	}
	if err := cli.run(os.Args); err != nil {
		if err == errHelp {
			return 2
		}
		return fail(err)
	}
	return 0
}

func fail(err error) int {
	if core.IsUnauthenticated(err) {
		fmt.Fprintln(os.Stderr, "authentication required, run `portal login`")
	} else {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
	}
	return 1
}
