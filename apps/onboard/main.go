// Command onboard completes the student or school onboarding against the API,
// interactively or from a YAML answers file.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/studentpakistan/backend/core"
	"github.com/studentpakistan/backend/core/onboarding"
	"github.com/studentpakistan/backend/services/apiclient"
	"github.com/studentpakistan/backend/services/logger"
)

var errNoCredentials = errors.New("a --token or a --login is required")

func main() {
	logger := logsvc.NewLogger(core.Conf)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd(logger, os.Stdin, os.Stdout).ExecuteContext(ctx); err != nil {
		stop()
		logger.Sync()
		os.Exit(1)
	}
}

func newRootCmd(logger core.Logger, in io.Reader, out io.Writer) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("onboard")
	v.AutomaticEnv()

	root := &cobra.Command{
		Use:          "onboard",
		Short:        "Complete the onboarding of a student or a school",
		SilenceUsage: true,
	}
	root.PersistentFlags().String("api", "http://localhost:8000", "API base URL (env ONBOARD_API)")
	root.PersistentFlags().String("token", "", "JWT of the account being onboarded (env ONBOARD_TOKEN)")
	root.PersistentFlags().String("login", "", "username or email to log in with, the password is prompted")
	root.PersistentFlags().StringP("answers", "f", "", "YAML file of field answers, skips the prompts")
	_ = v.BindPFlags(root.PersistentFlags())

	for _, t := range []onboarding.UserType{onboarding.Student, onboarding.School} {
		t := t
		root.AddCommand(&cobra.Command{
			Use:   string(t),
			Short: fmt.Sprintf("Onboard as a %s", t),
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				ctx := cmd.Context()
				client := apiclient.New(v.GetString("api"), v.GetString("token"), logger)
				s := newSession(t, client, logger, in, out)
				if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
					s.secret = func() (string, error) {
						pwd, err := term.ReadPassword(int(f.Fd()))
						return string(pwd), err
					}
				}

				if err := login(ctx, s, v.GetString("login")); err != nil {
					return err
				}
				if path := v.GetString("answers"); path != "" {
					if err := s.loadAnswers(path); err != nil {
						return err
					}
				}
				return s.run(ctx)
			},
		})
	}
	return root
}

func login(ctx context.Context, s *session, uname string) error {
	if s.client.Token() != "" {
		return nil
	}
	if uname = strings.TrimSpace(uname); uname == "" {
		return errNoCredentials
	}

	fmt.Fprintf(s.out, "Password for %s: ", uname)
	var (
		pwd string
		err error
	)
	if s.secret != nil {
		pwd, err = s.secret()
		fmt.Fprintln(s.out)
	} else {
		pwd, err = s.readLine()
	}
	if err != nil {
		return errors.Wrap(err, "reading password")
	}
	if _, err = s.client.Login(ctx, uname, pwd); err != nil {
		return errors.Wrap(err, "logging in")
	}
	return nil
}
