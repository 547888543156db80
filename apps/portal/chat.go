package main

import (
	"bufio"
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/chat"
	"github.com/trezcool/masomo-portal/core/device"
)

const (
	cmdMore = "/more"
	cmdQuit = "/quit"
)

func (cli *commandLine) chat(ctx context.Context, id string, opts chatOptions) error {
	viewer, err := device.LoadViewer(cli.store)
	if err != nil {
		return err
	}
	sess, err := chat.NewSession(cli.backend, id, viewer, cli.log,
		chat.WithPageSize(cli.conf.Chat.PageSize),
		chat.WithLocation(cli.loc),
		chat.WithClock(cli.now),
	)
	if err != nil {
		return err
	}
	defer sess.Close()

	if err := sess.Open(ctx); err != nil {
		return err
	}
	for i := 0; i < opts.previous; i++ {
		if !sess.LoadPrevious() {
			break
		}
	}
	if opts.send != "" {
		if _, err := sess.Send(ctx, opts.send); err != nil {
			return err
		}
	}

	renderView(cli.out, sess.View(), cli.now().In(cli.loc))
	if opts.once {
		return nil
	}
	return cli.interactive(ctx, sess)
}

// interactive sends the lines read from the input while the conversation is polled;
// messages received in the meantime are printed as they arrive. It ends with the polling error
// when the polling stops on an authentication failure.
func (cli *commandLine) interactive(ctx context.Context, sess *chat.Session) error {
	interval := cli.conf.Chat.PollInterval
	if interval <= 0 {
		interval = chat.DefaultPollInterval
	}
	if err := sess.StartPolling(interval); err != nil {
		return err
	}
	polling := sess.Polling()
	fmt.Fprintf(cli.out, "Type a message and press Enter. %s shows older messages, %s leaves.\n", cmdMore, cmdQuit)

	var mu sync.Mutex // guards out and printed
	printed := make(map[string]bool)
	for _, m := range sess.Messages() {
		printed[m.ID] = true
	}
	printNew := func() {
		mu.Lock()
		defer mu.Unlock()
		for _, m := range sess.Messages() {
			if m.Pending || printed[m.ID] {
				continue
			}
			printed[m.ID] = true
			fmt.Fprintln(cli.out, formatMessage(m, cli.loc))
		}
	}

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				printNew()
			}
		}
	}()
	defer func() {
		close(done)
		wg.Wait()
	}()

	// the reader may stay blocked on the input after we return; it exits with the process
	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(cli.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-done:
				return
			}
		}
		readErr <- scanner.Err()
	}()

	for {
		var line string
		select {
		case <-polling.Done():
			if err := polling.Err(); err != nil {
				return err
			}
			return nil
		case l, ok := <-lines:
			if !ok {
				select {
				case err := <-readErr:
					return err
				default:
					return nil
				}
			}
			line = strings.TrimSpace(l)
		}

		switch line {
		case "":
			continue
		case cmdQuit:
			return nil
		case cmdMore:
			mu.Lock()
			if sess.LoadPrevious() {
				renderView(cli.out, sess.View(), cli.now().In(cli.loc))
			} else {
				fmt.Fprintln(cli.out, "No older messages.")
			}
			mu.Unlock()
			continue
		}

		if _, err := sess.Send(ctx, line); err != nil {
			if core.IsUnauthenticated(err) {
				return err
			}
			mu.Lock()
			fmt.Fprintf(cli.out, "! %v\n", err)
			mu.Unlock()
			continue
		}
		printNew()
	}
}
