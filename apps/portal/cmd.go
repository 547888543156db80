package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/chat"
	"github.com/trezcool/masomo-portal/core/conversation"
	"github.com/trezcool/masomo-portal/core/device"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

// portalBackend is the school API as used by the portal.
type portalBackend interface {
	chat.Backend
	Login(ctx context.Context, username, password string) (device.Session, error)
}

type commandLine struct {
	conf    *core.Config
	store   device.Store
	backend portalBackend
	log     core.Logger
	in      io.Reader
	out     io.Writer
	now     func() time.Time
	loc     *time.Location
}

func (cli *commandLine) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "portal",
		Short: "Masomo parent/teacher portal",
		Long: `Masomo portal lets parents and teachers exchange messages from the terminal.
Log in once; the session is kept on this device until you log out.`,
		Version:       cli.conf.Build,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.SetIn(cli.in)
	root.SetOut(cli.out)
	root.SetErr(cli.out)

	root.AddCommand(
		cli.loginCmd(),
		cli.logoutCmd(),
		cli.whoamiCmd(),
		cli.conversationsCmd(),
		cli.chatCmd(),
	)
	return root
}

// run executes the command line; args[0] is the program name.
func (cli *commandLine) run(args []string) error {
	root := cli.rootCmd()
	root.SetArgs(args[1:])
	return root.Execute()
}

func (cli *commandLine) loginCmd() *cobra.Command {
	var username string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and keep the session on this device",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if core.CleanString(username) == "" {
				_ = cmd.Usage()
				return errHelp
			}

			fmt.Fprint(cli.out, "Enter password: ")
			pwd, err := readPasswordFunc(int(os.Stdin.Fd()))
			fmt.Fprintln(cli.out)
			if err != nil {
				return err
			}
			if len(pwd) == 0 {
				_ = cmd.Usage()
				return errHelp
			}

			sess, err := cli.backend.Login(cmd.Context(), username, string(pwd))
			if err != nil {
				return err
			}
			if err := device.SaveSession(cli.store, sess); err != nil {
				return err
			}
			fmt.Fprintf(cli.out, "Logged in as %s (%s)\n", sess.Viewer.Name, sess.Viewer.Role.Label())
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "username of the parent or teacher account")
	return cmd
}

func (cli *commandLine) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the session kept on this device",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := device.ClearSession(cli.store); err != nil {
				return err
			}
			fmt.Fprintln(cli.out, "Logged out.")
			return nil
		},
	}
}

func (cli *commandLine) whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			viewer, err := device.LoadViewer(cli.store)
			if err != nil {
				return err
			}
			fmt.Fprintf(cli.out, "%s (%s), id %s\n", viewer.Name, viewer.Role.Label(), viewer.ID)
			if viewer.StudentID != "" {
				fmt.Fprintf(cli.out, "student: %s\n", viewer.StudentID)
			}
			return nil
		},
	}
}

func (cli *commandLine) conversationsCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "conversations",
		Aliases: []string{"inbox", "ls"},
		Short:   "List your conversations, most recent first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			viewer, err := device.LoadViewer(cli.store)
			if err != nil {
				return err
			}
			summaries, err := chat.Inbox(cmd.Context(), cli.backend, viewer, conversation.NewResolver(cli.log))
			if err != nil {
				return err
			}
			renderInbox(cli.out, summaries, cli.now())
			return nil
		},
	}
}

type chatOptions struct {
	once     bool
	send     string
	previous int
}

func (cli *commandLine) chatCmd() *cobra.Command {
	var opts chatOptions
	cmd := &cobra.Command{
		Use:   "chat CONVERSATION_ID",
		Short: "Open a conversation",
		Long: `Open a conversation and keep it up to date.
Type a message and press Enter to send it; /more shows older messages and /quit leaves.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.chat(cmd.Context(), args[0], opts)
		},
	}
	cmd.Flags().BoolVar(&opts.once, "once", false, "print the conversation and exit")
	cmd.Flags().StringVarP(&opts.send, "send", "s", "", "send a message before printing the conversation")
	cmd.Flags().IntVarP(&opts.previous, "previous", "p", 0, "number of older pages to show")
	return cmd
}
