// Copyright (c) 2022. Alvin Baena.
// SPDX-License-Identifier: MIT

package cli

import (
	"context"
	"fmt"
	"github.com/alvinbaena/credcheck/internal/client"
	"github.com/alvinbaena/credcheck/internal/protocol"
	"github.com/alvinbaena/credcheck/internal/util"
	"github.com/manifoldco/promptui"
	"github.com/nbutton23/zxcvbn-go"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"net"
	"strconv"
)

var (
	queryCmd = &cobra.Command{
		Use:   "query [hostname] [port]",
		Short: "Check a username/email and/or a password against a credcheck server",
		Long: "Without --username or --password an interactive session is started. Inputs are hashed with " +
			"SHA-256 locally, only the hex digests are sent to the server.",
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return queryCommand(cmd.Context(), args)
		},
	}

	menuItems = []string{
		"Check username/email",
		"Check password",
		"Check both",
		"Exit",
	}
)

const (
	optionUsername = iota
	optionPassword
	optionBoth
	optionExit
)

func init() {
	queryCmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host of the credcheck server")
	queryCmd.Flags().Uint16VarP(&queryPort, "port", "p", 4000, "Port of the credcheck server")
	queryCmd.Flags().StringVarP(&username, "username", "u", "", "Username or email to check")
	queryCmd.Flags().StringVarP(&password, "password", "w", "", "Password to check")
	queryCmd.Flags().BoolVarP(&hashed, "hashed", "s", false,
		"If the supplied inputs are already Hexadecimal SHA-256 hashes instead of plain text strings.")

	rootCmd.AddCommand(queryCmd)
}

func queryCommand(ctx context.Context, args []string) error {
	util.ApplyCliSettings(verbose, profile, pprofPort)

	// Positional form: query <hostname> <port>
	if len(args) > 0 {
		host = args[0]
	}
	if len(args) > 1 {
		p, err := strconv.ParseUint(args[1], 10, 16)
		if err != nil {
			return errors.Errorf("invalid port %q", args[1])
		}
		queryPort = uint16(p)
	}

	c, err := client.Dial(ctx, net.JoinHostPort(host, strconv.Itoa(int(queryPort))))
	if err != nil {
		return err
	}

	defer func(c *client.Client) {
		if err := c.Close(); err != nil {
			log.Debug().Err(err).Msg("error closing connection")
		}
	}(c)

	if username != "" || password != "" {
		return check(ctx, c, username, password)
	}

	log.Info().Msgf("Running interactive session. ^C to exit")
	if err = runInteractiveSession(ctx, c); err != nil {
		if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
			log.Info().Msgf("Goodbye")
			return nil
		}
		return err
	}

	return nil
}

func runInteractiveSession(ctx context.Context, c *client.Client) error {
	menu := promptui.Select{
		Label: "Select option",
		Items: menuItems,
	}

	for {
		option, _, err := menu.Run()
		if err != nil {
			return err
		}

		var user, pass string
		switch option {
		case optionExit:
			log.Info().Msgf("Goodbye")
			return nil
		case optionUsername:
			if user, err = promptInput("Username/email", false); err != nil {
				return err
			}
		case optionPassword:
			if pass, err = promptInput("Password", true); err != nil {
				return err
			}
		case optionBoth:
			if user, err = promptInput("Username/email", false); err != nil {
				return err
			}
			if pass, err = promptInput("Password", true); err != nil {
				return err
			}
		}

		if err = check(ctx, c, user, pass); err != nil {
			var serverErr *protocol.ServerError
			if !errors.As(err, &serverErr) {
				return err
			}
			log.Error().Err(err).Msg("server rejected the query")
		}
	}
}

func promptInput(label string, secret bool) (string, error) {
	if hashed {
		label += " SHA-256 Hex hash"
	}

	prompt := promptui.Prompt{
		Label: label,
		Validate: func(input string) error {
			_, err := inputHash(input)
			return err
		},
	}
	if secret && !hashed {
		prompt.Mask = '*'
	}

	return prompt.Run()
}

// inputHash returns the hash sent to the server for a user input.
func inputHash(input string) (string, error) {
	if input == "" {
		return "", errors.New("please enter a value")
	}

	if !hashed {
		return client.HashInput(input), nil
	}

	if err := (protocol.Parser{Strict: true}).Validate(input); err != nil {
		return "", errors.New("input is not a valid lowercase SHA-256 Hexadecimal hash")
	}
	return input, nil
}

// buildQuery picks the query kind from which inputs are set.
func buildQuery(user, pass string) (protocol.Query, error) {
	var userHash, passHash string
	var err error
	if user != "" {
		if userHash, err = inputHash(user); err != nil {
			return protocol.Query{}, err
		}
	}
	if pass != "" {
		if passHash, err = inputHash(pass); err != nil {
			return protocol.Query{}, err
		}
	}

	switch {
	case user != "" && pass != "":
		return protocol.BothQuery(userHash, passHash), nil
	case user != "":
		return protocol.UsernameQuery(userHash), nil
	case pass != "":
		return protocol.PasswordQuery(passHash), nil
	}

	return protocol.Query{}, errors.New("nothing to check, set a username and/or a password")
}

func check(ctx context.Context, c *client.Client, user, pass string) error {
	q, err := buildQuery(user, pass)
	if err != nil {
		return err
	}

	if q.Username != "" {
		log.Info().Msgf("Username/email hash: %s", q.Username)
	}
	if q.Password != "" {
		log.Info().Msgf("Password hash: %s", q.Password)
	}
	if pass != "" && !hashed {
		log.Info().Msg(passwordStrength(pass))
	}

	res, err := c.Check(ctx, q)
	if err != nil {
		return err
	}

	log.Info().Msgf("Server response: %s", res.Verdict)
	log.Info().Msgf("Response time: %v", res.Latency)
	return nil
}

func passwordStrength(pass string) string {
	entropy := zxcvbn.PasswordStrength(pass, nil)
	return fmt.Sprintf("Password strength: %d/4, estimated crack time %s", entropy.Score, entropy.CrackTimeDisplay)
}
